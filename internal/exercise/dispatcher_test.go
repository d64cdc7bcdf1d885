package exercise

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

type stubHandler struct{ t types.ExerciseType }

func (s stubHandler) Type() types.ExerciseType { return s.t }
func (s stubHandler) Initialize(*Context, *types.ExerciseItem) (Progress, error) {
	return &QuizProgress{Type: s.t}, nil
}
func (s stubHandler) SubmitAnswer(*Context, *types.ExerciseItem, Progress, Action, json.RawMessage) (*ActionResult, Progress, error) {
	return nil, nil, nil
}
func (s stubHandler) IsComplete(Progress) bool { return true }

func allStubs() []Handler {
	out := make([]Handler, 0, len(learning.AllExerciseTypes))
	for _, t := range learning.AllExerciseTypes {
		out = append(out, stubHandler{t: t})
	}
	return out
}

func TestNewDispatcherRequiresEveryType(t *testing.T) {
	d, err := NewDispatcher(allStubs()...)
	require.NoError(t, err)
	for _, et := range learning.AllExerciseTypes {
		h, err := d.GetHandler(et)
		require.NoError(t, err)
		assert.Equal(t, et, h.Type())
	}

	_, err = NewDispatcher(allStubs()[1:]...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")
}

func TestNewDispatcherRejectsDuplicatesAndUnknown(t *testing.T) {
	_, err := NewDispatcher(append(allStubs(), stubHandler{t: learning.ExerciseGrammar})...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = NewDispatcher(append(allStubs(), stubHandler{t: "CROSSWORD"})...)
	require.Error(t, err)
}

func TestGetHandlerUnsupported(t *testing.T) {
	d, err := NewDispatcher(allStubs()...)
	require.NoError(t, err)
	_, err = d.GetHandler("CROSSWORD")
	var unsupported *types.UnsupportedExerciseTypeError
	require.True(t, errors.As(err, &unsupported))
}

func TestOperatorsUnknownAction(t *testing.T) {
	ops := NewOperators()
	item := &types.ExerciseItem{Type: learning.ExerciseGrammar}
	_, _, err := ops.Apply(&Context{}, item, &QuizProgress{Type: learning.ExerciseGrammar, CurrentStage: StagePresentingQuestion}, "DANCE", nil)
	var invalid *types.InvalidActionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "DANCE", invalid.Action)
}
