package exercise

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

func TestEncodeProgressEnvelope(t *testing.T) {
	cardID := uuid.New()
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &VocabularyProgress{
		CurrentStage: StageAwaitingRating,
		Queue:        []QueueEntry{{CardID: uuid.New(), Due: due, Kind: QueueReview}},
		Current:      &CardView{CardID: cardID, Front: "hola", Back: "hello", Kind: QueueNew},
		Reviewed:     2,
		Total:        3,
	}
	raw, err := EncodeProgress(p)
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.JSONEq(t, `"VOCABULARY_DECK"`, string(env["type"]))
	assert.JSONEq(t, `"AWAITING_RATING"`, string(env["stage"]))
	assert.Contains(t, string(env["payload"]), cardID.String())

	got, err := DecodeProgress(raw, learning.ExerciseVocabularyDeck)
	require.NoError(t, err)
	vp, ok := got.(*VocabularyProgress)
	require.True(t, ok)
	assert.Equal(t, StageAwaitingRating, vp.Stage())
	assert.Equal(t, "hello", vp.Current.Back)
	assert.Equal(t, 2, vp.Reviewed)
	require.Len(t, vp.Queue, 1)
	assert.True(t, vp.Queue[0].Due.Equal(due))
}

func TestDecodeProgressQuizKeepsType(t *testing.T) {
	raw, err := EncodeProgress(&QuizProgress{
		Type:         learning.ExerciseListening,
		CurrentStage: StagePresentingQuestion,
		Queue:        []string{"q2"},
		Current:      "q1",
		Total:        2,
	})
	require.NoError(t, err)

	got, err := DecodeProgress(raw, learning.ExerciseListening)
	require.NoError(t, err)
	qp := got.(*QuizProgress)
	assert.Equal(t, learning.ExerciseListening, qp.ExerciseType())
	assert.Equal(t, "q1", qp.Current)
	assert.Equal(t, []string{"q2"}, qp.Queue)
}

func TestDecodeProgressTypeMismatch(t *testing.T) {
	raw, err := EncodeProgress(&QuizProgress{Type: learning.ExerciseGrammar, CurrentStage: StagePresentingQuestion})
	require.NoError(t, err)

	_, err = DecodeProgress(raw, learning.ExerciseFillInBlank)
	var mismatch *types.ProgressTypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "GRAMMAR", mismatch.Got)
}

func TestDecodeProgressRejectsGarbage(t *testing.T) {
	_, err := DecodeProgress([]byte(`{"type":"GRAMMAR","stage":"X","payload":{},"extra":1}`), learning.ExerciseGrammar)
	require.Error(t, err)

	_, err = DecodeProgress([]byte(`{"type":"CROSSWORD","stage":"X","payload":{}}`), "CROSSWORD")
	var unsupported *types.UnsupportedExerciseTypeError
	require.True(t, errors.As(err, &unsupported))
}

func TestEncodeProgressNil(t *testing.T) {
	_, err := EncodeProgress(nil)
	require.Error(t, err)
}
