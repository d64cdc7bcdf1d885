package quiz

import (
	"encoding/json"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
)

type submitOperator struct{ h *Handler }

func (o *submitOperator) Action() exercise.Action { return exercise.ActionSubmitAnswer }

func (o *submitOperator) Apply(ec *exercise.Context, item *types.ExerciseItem, progress exercise.Progress, data json.RawMessage) (*exercise.ActionResult, exercise.Progress, error) {
	p := progress.(*exercise.QuizProgress)
	if err := exercise.RequireStage(p, o.Action(), exercise.StagePresentingQuestion); err != nil {
		return nil, nil, err
	}
	var a answer
	if err := exercise.DecodeData(o.Action(), p.Stage(), data, &a); err != nil {
		return nil, nil, err
	}
	qs, cfg, err := o.h.questions(item)
	if err != nil {
		return nil, nil, err
	}
	var q *question
	for i := range qs {
		if qs[i].id == p.Current {
			q = &qs[i]
			break
		}
	}
	if q == nil {
		return nil, nil, &types.InvalidActionError{Action: string(o.Action()), Stage: string(p.Stage()), Reason: "current question " + p.Current + " is not part of the exercise"}
	}
	g, ok := q.grade(a)
	if !ok {
		return nil, nil, &types.InvalidActionError{Action: string(o.Action()), Stage: string(p.Stage()), Reason: "answer is required"}
	}

	if p.Attempts == nil {
		p.Attempts = map[string]int{}
	}
	p.Attempts[q.id]++
	if g.correct {
		p.Correct++
	} else {
		p.Incorrect++
		if cfg.RetryIncorrect {
			p.Queue = append(p.Queue, q.id)
		}
	}
	advance(p)

	correct := g.correct
	return &exercise.ActionResult{
		Action:   o.Action(),
		Correct:  &correct,
		Expected: g.expected,
		Score:    g.score,
		Complete: o.h.IsComplete(p),
	}, p, nil
}

type skipOperator struct{ h *Handler }

func (o *skipOperator) Action() exercise.Action { return exercise.ActionSkipQuestion }

func (o *skipOperator) Apply(_ *exercise.Context, _ *types.ExerciseItem, progress exercise.Progress, _ json.RawMessage) (*exercise.ActionResult, exercise.Progress, error) {
	p := progress.(*exercise.QuizProgress)
	if err := exercise.RequireStage(p, o.Action(), exercise.StagePresentingQuestion); err != nil {
		return nil, nil, err
	}
	p.Skipped++
	advance(p)
	return &exercise.ActionResult{Action: o.Action(), Complete: o.h.IsComplete(p)}, p, nil
}
