package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tutorloop-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
)

func fillIn(id string, accepted ...string) learning.FillInBlankQuestion {
	return learning.FillInBlankQuestion{ID: id, Prompt: "___ " + id, Accepted: accepted}
}

func TestStartSessionEmptyUnitCreatesNoSession(t *testing.T) {
	h := newHarness(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, h.ctx, h.tx, teacherID, studentID)
	unit, _ := testutil.SeedUnit(t, h.ctx, h.tx)

	_, err := h.sessions.StartSession(h.dbc, teacherID, studentID, unit.ID)
	var empty *types.EmptyUnitError
	require.True(t, errors.As(err, &empty), "got %v", err)
	assert.Equal(t, unit.ID, empty.UnitID)

	n, err := h.repos.Session.CountByUnit(h.dbc, unit.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartSessionRequiresRelationship(t *testing.T) {
	h := newHarness(t)
	unit, _ := testutil.SeedUnit(t, h.ctx, h.tx, testutil.FillInBlankItem(fillIn("q1", "a")))

	_, err := h.sessions.StartSession(h.dbc, uuid.New(), uuid.New(), unit.ID)
	var authErr *types.AuthorizationError
	require.True(t, errors.As(err, &authErr), "got %v", err)

	n, err := h.repos.Session.CountByUnit(h.dbc, unit.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartSessionSkipsDeckWithNothingDue(t *testing.T) {
	h := newHarness(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, h.ctx, h.tx, teacherID, studentID)
	deck, _ := testutil.SeedDeck(t, h.ctx, h.tx, 2)
	unit, items := testutil.SeedUnit(t, h.ctx, h.tx,
		testutil.VocabularyItem(deck.ID, nil),
		testutil.FillInBlankItem(fillIn("q1", "a")),
	)

	snap, err := h.sessions.StartSession(h.dbc, teacherID, studentID, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, learning.SessionInProgress, snap.Session.Status)
	assert.Equal(t, 2, snap.Position)
	require.NotNil(t, snap.CurrentExercise)
	assert.Equal(t, items[1].ID, snap.CurrentExercise.ID)
}

func TestLastCardRatingAdvancesSession(t *testing.T) {
	h := newHarness(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, h.ctx, h.tx, teacherID, studentID)
	deck, cards := testutil.SeedDeck(t, h.ctx, h.tx, 1)
	testutil.SeedCardStates(t, h.ctx, h.tx, studentID, cards, h.clock.Now())
	unit, items := testutil.SeedUnit(t, h.ctx, h.tx,
		testutil.VocabularyItem(deck.ID, nil),
		testutil.FillInBlankItem(fillIn("q1", "a")),
	)

	snap, err := h.sessions.StartSession(h.dbc, teacherID, studentID, unit.ID)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Position)
	assert.Equal(t, 2, snap.TotalExercises)

	res, err := h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionRevealAnswer, json.RawMessage(`{"answer":"back-0"}`))
	require.NoError(t, err)
	require.NotNil(t, res.Result.Correct)
	assert.True(t, *res.Result.Correct)
	assert.False(t, res.Advanced)

	res, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionSubmitRating, json.RawMessage(`{"rating":3}`))
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.False(t, res.Completed)
	assert.Equal(t, 2, res.State.Position)
	require.NotNil(t, res.State.CurrentExercise)
	assert.Equal(t, items[1].ID, res.State.CurrentExercise.ID)
	require.NotNil(t, res.Result.Review)
	assert.Equal(t, string(learning.StateLearning), res.Result.Review.State)

	n, err := h.repos.ReviewEvent.CountByStudent(h.dbc, studentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	events, err := h.repos.ReviewEvent.ListByStudent(h.dbc, studentID)
	require.NoError(t, err)
	require.NotNil(t, events[0].SessionID)
	assert.Equal(t, snap.Session.ID, *events[0].SessionID)

	res, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionSubmitAnswer, json.RawMessage(`{"answer":" A "}`))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, learning.SessionCompleted, res.State.Session.Status)
	assert.Nil(t, res.State.Session.CurrentExerciseID)
	assert.Nil(t, res.State.Progress)
	require.NotNil(t, res.State.Session.EndTime)
}

func TestAgainRatingRequeuesCardWithinExercise(t *testing.T) {
	h := newHarness(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, h.ctx, h.tx, teacherID, studentID)
	deck, cards := testutil.SeedDeck(t, h.ctx, h.tx, 1)
	testutil.SeedCardStates(t, h.ctx, h.tx, studentID, cards, h.clock.Now())
	unit, _ := testutil.SeedUnit(t, h.ctx, h.tx, testutil.VocabularyItem(deck.ID, nil))

	snap, err := h.sessions.StartSession(h.dbc, teacherID, studentID, unit.ID)
	require.NoError(t, err)

	_, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionRevealAnswer, nil)
	require.NoError(t, err)
	res, err := h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionSubmitRating, json.RawMessage(`{"rating":1}`))
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.False(t, res.Completed)
	require.NotNil(t, res.Result.Review)
	assert.True(t, res.Result.Review.Requeued)
	assert.Equal(t, learning.SessionInProgress, res.State.Session.Status)
}

func TestSubmitAnswerRejectsWrongStageAndOtherTeacher(t *testing.T) {
	h := newHarness(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, h.ctx, h.tx, teacherID, studentID)
	unit, _ := testutil.SeedUnit(t, h.ctx, h.tx, testutil.FillInBlankItem(fillIn("q1", "a")))

	snap, err := h.sessions.StartSession(h.dbc, teacherID, studentID, unit.ID)
	require.NoError(t, err)

	_, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionSubmitRating, json.RawMessage(`{"rating":3}`))
	var actionErr *types.InvalidActionError
	require.True(t, errors.As(err, &actionErr), "got %v", err)

	_, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, uuid.New(), exercise.ActionSubmitAnswer, json.RawMessage(`{"answer":"a"}`))
	var authErr *types.AuthorizationError
	require.True(t, errors.As(err, &authErr), "got %v", err)

	_, err = h.sessions.SubmitAnswer(h.dbc, uuid.New(), teacherID, exercise.ActionSubmitAnswer, json.RawMessage(`{"answer":"a"}`))
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)

	state, err := h.sessions.GetFullState(h.dbc, snap.Session.ID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, learning.SessionInProgress, state.Session.Status)
	assert.Equal(t, 1, state.Position)
	assert.NotEmpty(t, state.Progress)
}

func TestEndSessionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, h.ctx, h.tx, teacherID, studentID)
	unit, _ := testutil.SeedUnit(t, h.ctx, h.tx,
		testutil.FillInBlankItem(fillIn("q1", "a"), fillIn("q2", "b")),
	)
	snap, err := h.sessions.StartSession(h.dbc, teacherID, studentID, unit.ID)
	require.NoError(t, err)

	first, err := h.sessions.EndSession(h.dbc, snap.Session.ID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, learning.SessionCompleted, first.Session.Status)
	require.NotNil(t, first.Session.EndTime)
	ended := *first.Session.EndTime

	h.clock.Advance(time.Hour)
	second, err := h.sessions.EndSession(h.dbc, snap.Session.ID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, learning.SessionCompleted, second.Session.Status)
	require.NotNil(t, second.Session.EndTime)
	assert.True(t, ended.Equal(*second.Session.EndTime))

	_, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionSubmitAnswer, json.RawMessage(`{"answer":"a"}`))
	var notActive *types.SessionNotActiveError
	require.True(t, errors.As(err, &notActive), "got %v", err)
}

func TestSubmitAnswerRollsBackReviewWhenAdvanceFails(t *testing.T) {
	h := newHarness(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, h.ctx, h.tx, teacherID, studentID)
	deck, cards := testutil.SeedDeck(t, h.ctx, h.tx, 2)
	testutil.SeedCardStates(t, h.ctx, h.tx, studentID, cards, h.clock.Now())
	unit, _ := testutil.SeedUnit(t, h.ctx, h.tx, testutil.VocabularyItem(deck.ID, nil))

	snap, err := h.sessions.StartSession(h.dbc, teacherID, studentID, unit.ID)
	require.NoError(t, err)
	progress, err := exercise.DecodeProgress(snap.Progress, learning.ExerciseVocabularyDeck)
	require.NoError(t, err)
	vp, ok := progress.(*exercise.VocabularyProgress)
	require.True(t, ok)
	require.NotNil(t, vp.Current)
	current := vp.Current.CardID
	next := cards[0].ID
	if next == current {
		next = cards[1].ID
	}

	_, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionRevealAnswer, nil)
	require.NoError(t, err)

	// The rating succeeds, then presenting the next card fails.
	require.NoError(t, h.tx.Delete(&types.Card{}, "id = ?", next).Error)
	_, err = h.sessions.SubmitAnswer(h.dbc, snap.Session.ID, teacherID, exercise.ActionSubmitRating, json.RawMessage(`{"rating":3}`))
	require.Error(t, err)
	var nf *types.NotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)

	n, err := h.repos.ReviewEvent.CountByStudent(h.dbc, studentID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	st, err := h.repos.CardState.Get(h.dbc, studentID, current)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, learning.StateNew, st.State)
	assert.Equal(t, 0, st.Reps)
	assert.Nil(t, st.LastReview)
}
