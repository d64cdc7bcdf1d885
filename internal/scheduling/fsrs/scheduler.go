package fsrs

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Parameters       Parameters
	DesiredRetention float64
	LearningSteps    []time.Duration
	RelearningSteps  []time.Duration
	MaximumInterval  int
}

func DefaultConfig() Config {
	return Config{
		Parameters:       DefaultParameters,
		DesiredRetention: 0.9,
		LearningSteps:    []time.Duration{3 * time.Minute, 15 * time.Minute, 30 * time.Minute},
		RelearningSteps:  []time.Duration{10 * time.Minute},
		MaximumInterval:  36500,
	}
}

func (c Config) Validate() error {
	if err := c.Parameters.Validate(); err != nil {
		return err
	}
	if c.DesiredRetention <= 0 || c.DesiredRetention >= 1 {
		return fmt.Errorf("fsrs: desired retention %f out of range (0, 1)", c.DesiredRetention)
	}
	if c.MaximumInterval < 1 {
		return fmt.Errorf("fsrs: maximum interval %d must be positive", c.MaximumInterval)
	}
	for _, d := range c.LearningSteps {
		if d <= 0 {
			return fmt.Errorf("fsrs: learning step %s must be positive", d)
		}
	}
	for _, d := range c.RelearningSteps {
		if d <= 0 {
			return fmt.Errorf("fsrs: relearning step %s must be positive", d)
		}
	}
	return nil
}

var ErrInvalidRating = errors.New("fsrs: invalid rating")

// Outcome describes what a single review did.
type Outcome struct {
	IsLearningStep bool
	Graduated      bool
	Lapsed         bool
	ElapsedDays    float64
	Retrievability float64
	Interval       time.Duration
}

// Scheduler applies reviews to cards. It is deterministic: the same card,
// rating and time always produce the same result, so a card can be rebuilt
// by replaying its reviews.
type Scheduler struct {
	algo Algorithm
	cfg  Config
}

func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LearningSteps = append([]time.Duration(nil), cfg.LearningSteps...)
	cfg.RelearningSteps = append([]time.Duration(nil), cfg.RelearningSteps...)
	return &Scheduler{algo: NewAlgorithm(cfg.Parameters), cfg: cfg}, nil
}

func (s *Scheduler) Config() Config { return s.cfg }

func (s *Scheduler) Algorithm() Algorithm { return s.algo }

// WithParameters returns a scheduler that shares every setting except the weights.
func (s *Scheduler) WithParameters(p Parameters) (*Scheduler, error) {
	cfg := s.cfg
	cfg.Parameters = p
	return NewScheduler(cfg)
}

// Review applies rating to card at now. The input card is not mutated.
func (s *Scheduler) Review(card Card, rating Rating, now time.Time) (Card, Outcome, error) {
	if !rating.Valid() {
		return card, Outcome{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	now = normalize(now)
	c := card.clone()
	var out Outcome
	if c.LastReview != nil {
		out.ElapsedDays = now.Sub(*c.LastReview).Hours() / 24.0
		if out.ElapsedDays < 0 {
			out.ElapsedDays = 0
		}
		out.Retrievability = s.algo.Retrievability(out.ElapsedDays, c.Stability)
	}

	switch c.State {
	case New, Learning, Relearning:
		s.reviewLearning(&c, rating, now, &out)
	default:
		s.reviewMain(&c, rating, now, &out)
	}

	c.Reps++
	c.LastReview = &now
	out.Interval = c.Due.Sub(now)
	return c, out, nil
}

func (s *Scheduler) stepsFor(state State) []time.Duration {
	if state == Relearning {
		return s.cfg.RelearningSteps
	}
	return s.cfg.LearningSteps
}

func (s *Scheduler) reviewLearning(c *Card, rating Rating, now time.Time, out *Outcome) {
	steps := s.stepsFor(c.State)
	if len(steps) > 0 && (rating == Again || c.Step < len(steps)) {
		out.IsLearningStep = true
		if rating == Again {
			c.Step = 0
		}
		c.Due = now.Add(steps[c.Step])
		if rating != Again {
			c.Step++
		}
		if c.State == New {
			c.State = Learning
		}
		return
	}

	if c.State == Relearning && c.Seeded() {
		c.Stability = s.algo.ShortTermStability(c.Stability, rating)
		c.Difficulty = s.algo.NextDifficulty(c.Difficulty, rating)
	} else {
		c.Stability = s.algo.InitStability(rating)
		c.Difficulty = s.algo.InitDifficulty(rating)
	}
	c.State = Review
	c.Step = 0
	out.Graduated = true
	c.Due = now.Add(s.intervalDays(c.Stability))
}

func (s *Scheduler) reviewMain(c *Card, rating Rating, now time.Time, out *Outcome) {
	switch {
	case !c.Seeded():
		c.Stability = s.algo.InitStability(rating)
		c.Difficulty = s.algo.InitDifficulty(rating)
	case c.LastReview == nil || out.ElapsedDays < 1:
		c.Stability = s.algo.ShortTermStability(c.Stability, rating)
		c.Difficulty = s.algo.NextDifficulty(c.Difficulty, rating)
	case rating == Again:
		c.Stability = s.algo.NextForgetStability(c.Difficulty, c.Stability, out.Retrievability)
		c.Difficulty = s.algo.NextDifficulty(c.Difficulty, rating)
	default:
		c.Stability = s.algo.NextRecallStability(c.Difficulty, c.Stability, out.Retrievability, rating)
		c.Difficulty = s.algo.NextDifficulty(c.Difficulty, rating)
	}

	if rating == Again {
		c.Lapses++
		out.Lapsed = true
		if len(s.cfg.RelearningSteps) > 0 {
			c.State = Relearning
			c.Step = 0
			c.Due = now.Add(s.cfg.RelearningSteps[0])
			return
		}
	}
	c.State = Review
	c.Step = 0
	c.Due = now.Add(s.intervalDays(c.Stability))
}

func (s *Scheduler) intervalDays(stability float64) time.Duration {
	days := s.algo.NextInterval(stability, s.cfg.DesiredRetention, s.cfg.MaximumInterval)
	return time.Duration(days) * 24 * time.Hour
}

// Preview returns the card that each rating would produce, without side effects.
func (s *Scheduler) Preview(card Card, now time.Time) map[Rating]Card {
	out := make(map[Rating]Card, len(Ratings))
	for _, r := range Ratings {
		c, _, _ := s.Review(card, r, now)
		out[r] = c
	}
	return out
}

// Event is one recorded review used for replay.
type Event struct {
	Rating     Rating
	ReviewedAt time.Time
}

// Replay folds events, in order, over card.
func (s *Scheduler) Replay(card Card, events []Event) (Card, error) {
	c := card.clone()
	for i, ev := range events {
		next, _, err := s.Review(c, ev.Rating, ev.ReviewedAt)
		if err != nil {
			return c, fmt.Errorf("replay event %d: %w", i, err)
		}
		c = next
	}
	return c, nil
}

// Retrievability is the recall probability of card at now, or 0 for a card
// that has not graduated yet.
func (s *Scheduler) Retrievability(card Card, now time.Time) float64 {
	if card.LastReview == nil || !card.Seeded() {
		return 0
	}
	elapsed := normalize(now).Sub(*card.LastReview).Hours() / 24.0
	return s.algo.Retrievability(elapsed, card.Stability)
}
