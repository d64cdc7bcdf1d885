// Package quiz runs the question based exercise types: GRAMMAR,
// LISTENING and FILL_IN_BLANK.
package quiz

import (
	"encoding/json"
	"fmt"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type answer struct {
	Text   *string `json:"answer"`
	Choice *int    `json:"choice"`
}

type grade struct {
	correct  bool
	score    *float64
	expected string
}

type question struct {
	id    string
	grade func(a answer) (grade, bool)
}

type Handler struct {
	log *logger.Logger
	typ types.ExerciseType
	ops exercise.Operators
}

// New returns the handler for one quiz type.
func New(t types.ExerciseType, baseLog *logger.Logger) (*Handler, error) {
	switch t {
	case learning.ExerciseGrammar, learning.ExerciseListening, learning.ExerciseFillInBlank:
	default:
		return nil, fmt.Errorf("quiz handler: %s is not a quiz type", t)
	}
	h := &Handler{log: baseLog.With("handler", "quiz", "exercise_type", string(t)), typ: t}
	h.ops = exercise.NewOperators(&submitOperator{h: h}, &skipOperator{h: h})
	return h, nil
}

// Handlers returns one handler per quiz type.
func Handlers(baseLog *logger.Logger) []exercise.Handler {
	out := make([]exercise.Handler, 0, 3)
	for _, t := range []types.ExerciseType{learning.ExerciseGrammar, learning.ExerciseListening, learning.ExerciseFillInBlank} {
		h, _ := New(t, baseLog)
		out = append(out, h)
	}
	return out
}

func (h *Handler) Type() types.ExerciseType { return h.typ }

func (h *Handler) Initialize(ec *exercise.Context, item *types.ExerciseItem) (exercise.Progress, error) {
	qs, _, err := h.questions(item)
	if err != nil {
		return nil, err
	}
	p := &exercise.QuizProgress{Type: h.typ, Total: len(qs), Attempts: map[string]int{}}
	for _, q := range qs {
		p.Queue = append(p.Queue, q.id)
	}
	advance(p)
	return p, nil
}

func (h *Handler) SubmitAnswer(ec *exercise.Context, item *types.ExerciseItem, progress exercise.Progress, action exercise.Action, data json.RawMessage) (*exercise.ActionResult, exercise.Progress, error) {
	if progress.ExerciseType() != h.typ {
		return nil, nil, &types.ProgressTypeMismatchError{Want: string(h.typ), Got: string(progress.ExerciseType())}
	}
	if _, ok := progress.(*exercise.QuizProgress); !ok {
		return nil, nil, &types.ProgressTypeMismatchError{Want: string(h.typ), Got: fmt.Sprintf("%T", progress)}
	}
	return h.ops.Apply(ec, item, progress, action, data)
}

func (h *Handler) IsComplete(progress exercise.Progress) bool {
	p, ok := progress.(*exercise.QuizProgress)
	return ok && p.Current == "" && len(p.Queue) == 0
}

func advance(p *exercise.QuizProgress) {
	if len(p.Queue) == 0 {
		p.Current = ""
		p.CurrentStage = exercise.StageComplete
		return
	}
	p.Current = p.Queue[0]
	p.Queue = p.Queue[1:]
	p.CurrentStage = exercise.StagePresentingQuestion
}

func (h *Handler) questions(item *types.ExerciseItem) ([]question, learning.QuizConfig, error) {
	if item.Type != h.typ {
		return nil, learning.QuizConfig{}, &types.UnsupportedExerciseTypeError{Type: string(item.Type)}
	}
	payload, err := item.Payload()
	if err != nil {
		return nil, learning.QuizConfig{}, err
	}
	switch p := payload.(type) {
	case *learning.GrammarPayload:
		out := make([]question, 0, len(p.Questions))
		for _, q := range p.Questions {
			out = append(out, grammarQuestion(q))
		}
		return out, p.Config, nil
	case *learning.ListeningPayload:
		out := make([]question, 0, len(p.Questions))
		for _, q := range p.Questions {
			out = append(out, listeningQuestion(q, p.Config.PassThreshold))
		}
		return out, p.Config, nil
	case *learning.FillInBlankPayload:
		out := make([]question, 0, len(p.Questions))
		for _, q := range p.Questions {
			out = append(out, fillInBlankQuestion(q))
		}
		return out, p.Config, nil
	default:
		return nil, learning.QuizConfig{}, &types.UnsupportedExerciseTypeError{Type: string(item.Type)}
	}
}

// grammarQuestion accepts either the choice index or the choice text.
func grammarQuestion(q learning.GrammarQuestion) question {
	expected := q.Choices[q.Answer]
	return question{id: q.ID, grade: func(a answer) (grade, bool) {
		switch {
		case a.Choice != nil:
			return grade{correct: *a.Choice == q.Answer, expected: expected}, true
		case a.Text != nil:
			return grade{correct: exercise.NormalizeAnswer(*a.Text) == exercise.NormalizeAnswer(expected), expected: expected}, true
		}
		return grade{}, false
	}}
}

func listeningQuestion(q learning.ListeningQuestion, threshold float64) question {
	return question{id: q.ID, grade: func(a answer) (grade, bool) {
		if a.Text == nil {
			return grade{}, false
		}
		score := exercise.WordAccuracy(q.Transcript, *a.Text)
		return grade{correct: score >= threshold, score: &score, expected: q.Transcript}, true
	}}
}

func fillInBlankQuestion(q learning.FillInBlankQuestion) question {
	return question{id: q.ID, grade: func(a answer) (grade, bool) {
		if a.Text == nil {
			return grade{}, false
		}
		got := exercise.NormalizeAnswer(*a.Text)
		for _, acc := range q.Accepted {
			if exercise.NormalizeAnswer(acc) == got {
				return grade{correct: true, expected: q.Accepted[0]}, true
			}
		}
		return grade{correct: false, expected: q.Accepted[0]}, true
	}}
}
