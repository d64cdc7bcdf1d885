package vocabulary

import (
	"encoding/json"
	"fmt"
	"time"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
)

type revealOperator struct{ h *Handler }

func (o *revealOperator) Action() exercise.Action { return exercise.ActionRevealAnswer }

func (o *revealOperator) Apply(ec *exercise.Context, _ *types.ExerciseItem, progress exercise.Progress, data json.RawMessage) (*exercise.ActionResult, exercise.Progress, error) {
	p := progress.(*exercise.VocabularyProgress)
	if err := exercise.RequireStage(p, o.Action(), exercise.StagePresentingCard); err != nil {
		return nil, nil, err
	}
	var body struct {
		Answer *string `json:"answer"`
	}
	if err := exercise.DecodeData(o.Action(), p.Stage(), data, &body); err != nil {
		return nil, nil, err
	}
	card, err := o.h.card(ec, p.Current.CardID)
	if err != nil {
		return nil, nil, err
	}
	due, err := o.h.sched.PreviewIntervals(ec.DBC, ec.StudentID, card.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("preview intervals: %w", err)
	}
	preview := make(map[int]string, len(due))
	for r, t := range due {
		preview[r] = t.UTC().Format(time.RFC3339)
	}

	res := &exercise.ActionResult{Action: o.Action(), Expected: card.Back, Preview: preview}
	if body.Answer != nil {
		correct := exercise.NormalizeAnswer(*body.Answer) == exercise.NormalizeAnswer(card.Back)
		res.Correct = &correct
	}
	p.Current.Back = card.Back
	p.CurrentStage = exercise.StageAwaitingRating
	return res, p, nil
}

type rateOperator struct{ h *Handler }

func (o *rateOperator) Action() exercise.Action { return exercise.ActionSubmitRating }

func (o *rateOperator) Apply(ec *exercise.Context, _ *types.ExerciseItem, progress exercise.Progress, data json.RawMessage) (*exercise.ActionResult, exercise.Progress, error) {
	p := progress.(*exercise.VocabularyProgress)
	if err := exercise.RequireStage(p, o.Action(), exercise.StageAwaitingRating); err != nil {
		return nil, nil, err
	}
	var body struct {
		Rating *int `json:"rating"`
	}
	if err := exercise.DecodeData(o.Action(), p.Stage(), data, &body); err != nil {
		return nil, nil, err
	}
	if body.Rating == nil {
		return nil, nil, &types.InvalidActionError{Action: string(o.Action()), Stage: string(p.Stage()), Reason: "rating is required"}
	}
	rating := *body.Rating
	if !fsrs.Rating(rating).Valid() {
		return nil, nil, &types.InvalidRatingError{Rating: rating}
	}

	cardID := p.Current.CardID
	sessionID := ec.SessionID
	state, err := o.h.sched.RecordReview(ec.DBC, ec.StudentID, cardID, rating, &sessionID)
	if err != nil {
		return nil, nil, err
	}

	out := &exercise.ReviewOutcome{
		CardID: cardID,
		Rating: rating,
		State:  string(state.State),
		Due:    state.Due,
	}
	if state.LastReview != nil {
		out.IntervalSeconds = int64(state.Due.Sub(*state.LastReview) / time.Second)
	}
	p.Reviewed++
	if fsrs.Rating(rating) == fsrs.Again {
		p.Again++
		p.Queue = append(p.Queue, exercise.QueueEntry{CardID: cardID, Due: state.Due, Kind: exercise.QueueRequeue})
		out.Requeued = true
	}
	p.Current = nil
	if err := o.h.presentNext(ec, p); err != nil {
		return nil, nil, err
	}
	return &exercise.ActionResult{Action: o.Action(), Review: out, Complete: o.h.IsComplete(p)}, p, nil
}
