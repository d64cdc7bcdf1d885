package optimizer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
)

func baseScheduler(t *testing.T) *fsrs.Scheduler {
	t.Helper()
	s, err := fsrs.NewScheduler(fsrs.DefaultConfig())
	require.NoError(t, err)
	return s
}

// simulate reviews cards at their due times, forgetting with probability 1-R.
func simulate(t *testing.T, s *fsrs.Scheduler, cards, reviewsPerCard int) []Review {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	var out []Review
	for i := 0; i < cards; i++ {
		id := uuid.New()
		card := fsrs.NewCard(start)
		now := start
		for k := 0; k < reviewsPerCard; k++ {
			rating := fsrs.Good
			if r := s.Retrievability(card, now); card.Seeded() && rng.Float64() > r {
				rating = fsrs.Again
			} else if rng.Intn(4) == 0 {
				rating = fsrs.Hard
			}
			out = append(out, Review{CardID: id, Rating: rating, ReviewedAt: now})
			var err error
			card, _, err = s.Review(card, rating, now)
			require.NoError(t, err)
			now = card.Due.Add(time.Duration(rng.Intn(36)) * time.Hour)
		}
	}
	return out
}

func TestFitImprovesOrKeepsLoss(t *testing.T) {
	s := baseScheduler(t)
	reviews := simulate(t, s, 24, 9)

	o := New(Config{Epochs: 2, MiniBatchSize: 64, MinReviews: 20}, s)
	res, err := o.Fit(context.Background(), fsrs.DefaultParameters, reviews)
	require.NoError(t, err)
	assert.False(t, res.Insufficient)
	assert.Equal(t, 2, res.Epochs)
	assert.LessOrEqual(t, res.Loss, res.InitialLoss)
	assert.NoError(t, res.Parameters.Validate())
	assert.InDelta(t, res.Loss, o.Loss(res.Parameters, reviews), 1e-12)
}

func TestFitIsDeterministic(t *testing.T) {
	s := baseScheduler(t)
	reviews := simulate(t, s, 12, 8)
	o := New(Config{Epochs: 1, MiniBatchSize: 32, MinReviews: 10}, s)

	a, err := o.Fit(context.Background(), fsrs.DefaultParameters, reviews)
	require.NoError(t, err)
	b, err := o.Fit(context.Background(), fsrs.DefaultParameters, reviews)
	require.NoError(t, err)
	assert.Equal(t, a.Parameters, b.Parameters)
}

func TestFitInsufficientData(t *testing.T) {
	s := baseScheduler(t)
	reviews := simulate(t, s, 2, 3)
	o := New(Config{}, s)

	res, err := o.Fit(context.Background(), fsrs.DefaultParameters, reviews)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.True(t, res.Insufficient)
	assert.Equal(t, fsrs.DefaultParameters, res.Parameters)
}

func TestFitHonoursCancellation(t *testing.T) {
	s := baseScheduler(t)
	reviews := simulate(t, s, 10, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{MinReviews: 5}, s).Fit(ctx, fsrs.DefaultParameters, reviews)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBCE(t *testing.T) {
	assert.InDelta(t, 0, bce(1, 1), 1e-6)
	assert.Greater(t, bce(0.1, 1), bce(0.9, 1))
	assert.Greater(t, bce(0.9, 0), bce(0.1, 0))
}
