package vocabulary

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
	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type fakeDeck struct {
	states []*types.CardState
	cards  []*types.Card
}

func (f *fakeDeck) ListByStudentDeck(_ dbctx.Context, _, _ uuid.UUID) ([]*types.CardState, error) {
	return f.states, nil
}

func (f *fakeDeck) ListCards(_ dbctx.Context, _ uuid.UUID) ([]*types.Card, error) {
	return f.cards, nil
}

func (f *fakeDeck) GetCardsByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.Card, error) {
	var out []*types.Card
	for _, id := range ids {
		for _, c := range f.cards {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type recordedReview struct {
	cardID    uuid.UUID
	rating    int
	sessionID uuid.UUID
}

type fakeScheduler struct {
	now     time.Time
	reviews []recordedReview
}

func (f *fakeScheduler) RecordReview(_ dbctx.Context, _, cardID uuid.UUID, rating int, sessionID *uuid.UUID) (*types.CardState, error) {
	f.reviews = append(f.reviews, recordedReview{cardID: cardID, rating: rating, sessionID: *sessionID})
	last := f.now
	st := &types.CardState{CardID: cardID, State: learning.StateLearning, LastReview: &last, Due: f.now.Add(10 * time.Minute)}
	if rating == 1 {
		st.Due = f.now.Add(3 * time.Minute)
	}
	return st, nil
}

func (f *fakeScheduler) PreviewIntervals(_ dbctx.Context, _, _ uuid.UUID) (map[int]time.Time, error) {
	return map[int]time.Time{1: f.now.Add(3 * time.Minute), 3: f.now.Add(15 * time.Minute)}, nil
}

type fixture struct {
	deck  *fakeDeck
	sched *fakeScheduler
	h     *Handler
	item  *types.ExerciseItem
	ec    *exercise.Context
	cards []*types.Card
}

func newFixture(t *testing.T, config string) *fixture {
	t.Helper()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	deckID := uuid.New()
	f := &fixture{deck: &fakeDeck{}, sched: &fakeScheduler{now: now}}
	for i := 0; i < 6; i++ {
		f.cards = append(f.cards, &types.Card{ID: uuid.New(), DeckID: deckID, Front: "f", Back: "back", Position: i})
	}
	f.deck.cards = f.cards
	f.h = New(f.deck, f.deck, f.sched, logger.Nop())
	f.item = &types.ExerciseItem{ID: uuid.New(), Type: learning.ExerciseVocabularyDeck, DeckID: &deckID}
	if config != "" {
		f.item.Config = []byte(config)
	}
	f.ec = &exercise.Context{SessionID: uuid.New(), StudentID: uuid.New(), Now: now}
	return f
}

func (f *fixture) state(card int, st learning.LearningState, due time.Time) {
	f.deck.states = append(f.deck.states, &types.CardState{CardID: f.cards[card].ID, DeckID: f.cards[card].DeckID, State: st, Due: due})
}

func (f *fixture) act(t *testing.T, p exercise.Progress, action exercise.Action, body string) (*exercise.ActionResult, exercise.Progress) {
	t.Helper()
	res, next, err := f.h.SubmitAnswer(f.ec, f.item, p, action, json.RawMessage(body))
	require.NoError(t, err)
	return res, next
}

func TestInitializeQueueOrder(t *testing.T) {
	f := newFixture(t, `{"new_cards_per_session":1}`)
	now := f.ec.Now
	f.state(0, learning.StateNew, now.Add(-time.Hour))
	f.state(1, learning.StateNew, now.Add(-time.Hour))
	f.state(2, learning.StateReview, now.Add(-time.Minute))
	f.state(3, learning.StateReview, now.Add(-2*time.Hour))
	f.state(4, learning.StateReview, now.Add(24*time.Hour))
	f.state(5, learning.StateRelearning, now.Add(5*time.Minute))

	p, err := f.h.Initialize(f.ec, f.item)
	require.NoError(t, err)
	vp := p.(*exercise.VocabularyProgress)
	assert.Equal(t, 4, vp.Total, "two due reviews, the relearning card and one new card")
	require.NotNil(t, vp.Current)
	assert.Equal(t, f.cards[3].ID, vp.Current.CardID)
	assert.Empty(t, vp.Current.Back)

	var order []uuid.UUID
	for _, e := range vp.Queue {
		order = append(order, e.CardID)
	}
	assert.Equal(t, []uuid.UUID{f.cards[2].ID, f.cards[5].ID, f.cards[0].ID}, order)
}

func TestRevealThenRateRequeuesAgain(t *testing.T) {
	f := newFixture(t, "")
	f.state(0, learning.StateNew, f.ec.Now)
	f.state(1, learning.StateNew, f.ec.Now)

	p, err := f.h.Initialize(f.ec, f.item)
	require.NoError(t, err)

	_, _, err = f.h.SubmitAnswer(f.ec, f.item, p, exercise.ActionSubmitRating, json.RawMessage(`{"rating":3}`))
	var invalid *types.InvalidActionError
	require.True(t, errors.As(err, &invalid), "rating before reveal")

	res, p := f.act(t, p, exercise.ActionRevealAnswer, `{"answer":" BACK "}`)
	require.NotNil(t, res.Correct)
	assert.True(t, *res.Correct)
	assert.Equal(t, "back", res.Expected)
	assert.Len(t, res.Preview, 2)
	assert.Equal(t, exercise.StageAwaitingRating, p.Stage())

	_, _, err = f.h.SubmitAnswer(f.ec, f.item, p, exercise.ActionSubmitRating, json.RawMessage(`{"rating":7}`))
	var badRating *types.InvalidRatingError
	require.True(t, errors.As(err, &badRating))

	res, p = f.act(t, p, exercise.ActionSubmitRating, `{"rating":1}`)
	require.NotNil(t, res.Review)
	assert.True(t, res.Review.Requeued)
	assert.Equal(t, int64(180), res.Review.IntervalSeconds)
	assert.False(t, res.Complete)
	vp := p.(*exercise.VocabularyProgress)
	assert.Equal(t, f.cards[1].ID, vp.Current.CardID)
	require.Len(t, vp.Queue, 1)
	assert.Equal(t, exercise.QueueRequeue, vp.Queue[0].Kind)

	_, p = f.act(t, p, exercise.ActionRevealAnswer, ``)
	_, p = f.act(t, p, exercise.ActionSubmitRating, `{"rating":3}`)
	assert.Equal(t, f.cards[0].ID, p.(*exercise.VocabularyProgress).Current.CardID)

	_, p = f.act(t, p, exercise.ActionRevealAnswer, ``)
	res, p = f.act(t, p, exercise.ActionSubmitRating, `{"rating":4}`)
	assert.True(t, res.Complete)
	assert.True(t, f.h.IsComplete(p))
	assert.Equal(t, exercise.StageComplete, p.Stage())

	require.Len(t, f.sched.reviews, 3)
	for _, r := range f.sched.reviews {
		assert.Equal(t, f.ec.SessionID, r.sessionID)
	}
	assert.Equal(t, 3, p.(*exercise.VocabularyProgress).Reviewed)
	assert.Equal(t, 1, p.(*exercise.VocabularyProgress).Again)
}

func TestInitializeNothingDue(t *testing.T) {
	f := newFixture(t, `{"new_cards_per_session":0}`)
	f.state(0, learning.StateNew, f.ec.Now)
	f.state(1, learning.StateReview, f.ec.Now.Add(48*time.Hour))

	p, err := f.h.Initialize(f.ec, f.item)
	require.NoError(t, err)
	assert.True(t, f.h.IsComplete(p))
	assert.Equal(t, exercise.StageComplete, p.Stage())
}
