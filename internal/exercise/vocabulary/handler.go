package vocabulary

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// Scheduler records ratings. RecordReview must write the ledger event and
// the card state inside dbc's transaction.
type Scheduler interface {
	RecordReview(dbc dbctx.Context, studentID, cardID uuid.UUID, rating int, sessionID *uuid.UUID) (*types.CardState, error)
	PreviewIntervals(dbc dbctx.Context, studentID, cardID uuid.UUID) (map[int]time.Time, error)
}

type CardStateReader interface {
	ListByStudentDeck(dbc dbctx.Context, studentID, deckID uuid.UUID) ([]*types.CardState, error)
}

type CardReader interface {
	ListCards(dbc dbctx.Context, deckID uuid.UUID) ([]*types.Card, error)
	GetCardsByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Card, error)
}

type Handler struct {
	log    *logger.Logger
	states CardStateReader
	cards  CardReader
	sched  Scheduler
	ops    exercise.Operators
}

func New(states CardStateReader, cards CardReader, sched Scheduler, baseLog *logger.Logger) *Handler {
	h := &Handler{
		log:    baseLog.With("handler", "vocabulary"),
		states: states,
		cards:  cards,
		sched:  sched,
	}
	h.ops = exercise.NewOperators(&revealOperator{h: h}, &rateOperator{h: h})
	return h
}

func (h *Handler) Type() types.ExerciseType { return learning.ExerciseVocabularyDeck }

// Initialize queues due reviews (plus every relearning card) by due time,
// then new cards by due time and deck position.
func (h *Handler) Initialize(ec *exercise.Context, item *types.ExerciseItem) (exercise.Progress, error) {
	payload, err := deckPayload(item)
	if err != nil {
		return nil, err
	}
	states, err := h.states.ListByStudentDeck(ec.DBC, ec.StudentID, payload.DeckID)
	if err != nil {
		return nil, fmt.Errorf("list card states: %w", err)
	}
	cards, err := h.cards.ListCards(ec.DBC, payload.DeckID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	position := make(map[uuid.UUID]int, len(cards))
	for _, c := range cards {
		position[c.ID] = c.Position
	}

	var reviews, fresh []exercise.QueueEntry
	for _, s := range states {
		switch {
		case s.State == learning.StateNew:
			fresh = append(fresh, exercise.QueueEntry{CardID: s.CardID, Due: s.Due, Kind: exercise.QueueNew})
		case s.State == learning.StateRelearning || !s.Due.After(ec.Now):
			reviews = append(reviews, exercise.QueueEntry{CardID: s.CardID, Due: s.Due, Kind: exercise.QueueReview})
		}
	}
	sort.SliceStable(reviews, func(i, j int) bool {
		if !reviews[i].Due.Equal(reviews[j].Due) {
			return reviews[i].Due.Before(reviews[j].Due)
		}
		return position[reviews[i].CardID] < position[reviews[j].CardID]
	})
	sort.SliceStable(fresh, func(i, j int) bool {
		if !fresh[i].Due.Equal(fresh[j].Due) {
			return fresh[i].Due.Before(fresh[j].Due)
		}
		return position[fresh[i].CardID] < position[fresh[j].CardID]
	})
	if limit := payload.Config.ReviewLimit; limit > 0 && len(reviews) > limit {
		reviews = reviews[:limit]
	}
	if limit := payload.Config.NewCardsPerSession; len(fresh) > limit {
		fresh = fresh[:limit]
	}

	p := &exercise.VocabularyProgress{Queue: append(reviews, fresh...)}
	p.Total = len(p.Queue)
	h.log.Debug("vocabulary queue built",
		"session_id", ec.SessionID,
		"reviews", len(reviews),
		"new", len(fresh),
	)
	if err := h.presentNext(ec, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) SubmitAnswer(ec *exercise.Context, item *types.ExerciseItem, progress exercise.Progress, action exercise.Action, data json.RawMessage) (*exercise.ActionResult, exercise.Progress, error) {
	if _, ok := progress.(*exercise.VocabularyProgress); !ok {
		return nil, nil, &types.ProgressTypeMismatchError{Want: string(learning.ExerciseVocabularyDeck), Got: string(progress.ExerciseType())}
	}
	return h.ops.Apply(ec, item, progress, action, data)
}

func (h *Handler) IsComplete(progress exercise.Progress) bool {
	p, ok := progress.(*exercise.VocabularyProgress)
	return ok && p.Current == nil && len(p.Queue) == 0
}

// presentNext pops the review entry with the lowest due time, falling back
// to queue order (new cards, then requeued ones).
func (h *Handler) presentNext(ec *exercise.Context, p *exercise.VocabularyProgress) error {
	if len(p.Queue) == 0 {
		p.Current = nil
		p.CurrentStage = exercise.StageComplete
		return nil
	}
	idx := 0
	found := false
	for i, e := range p.Queue {
		if e.Kind != exercise.QueueReview {
			continue
		}
		if !found || e.Due.Before(p.Queue[idx].Due) {
			idx, found = i, true
		}
	}
	next := p.Queue[idx]
	p.Queue = append(p.Queue[:idx:idx], p.Queue[idx+1:]...)

	card, err := h.card(ec, next.CardID)
	if err != nil {
		return err
	}
	p.Current = &exercise.CardView{CardID: card.ID, Front: card.Front, Kind: next.Kind}
	p.CurrentStage = exercise.StagePresentingCard
	return nil
}

func (h *Handler) card(ec *exercise.Context, id uuid.UUID) (*types.Card, error) {
	rows, err := h.cards.GetCardsByIDs(ec.DBC, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("load card: %w", err)
	}
	if len(rows) == 0 {
		return nil, &types.NotFoundError{Entity: "card", ID: id}
	}
	return rows[0], nil
}

func deckPayload(item *types.ExerciseItem) (*learning.DeckPayload, error) {
	payload, err := item.Payload()
	if err != nil {
		return nil, err
	}
	deck, ok := payload.(*learning.DeckPayload)
	if !ok {
		return nil, &types.UnsupportedExerciseTypeError{Type: string(item.Type)}
	}
	return deck, nil
}
