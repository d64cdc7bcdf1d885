package fsrs

import (
	"fmt"
	"time"
)

type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

var Ratings = []Rating{Again, Hard, Good, Easy}

func (r Rating) Valid() bool { return r >= Again && r <= Easy }

func (r Rating) String() string {
	switch r {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	default:
		return fmt.Sprintf("rating(%d)", int(r))
	}
}

type State string

const (
	New        State = "NEW"
	Learning   State = "LEARNING"
	Review     State = "REVIEW"
	Relearning State = "RELEARNING"
)

// Card is the scheduling state of one card for one student.
// Stability and Difficulty are zero until the card graduates.
type Card struct {
	State      State
	Step       int
	Stability  float64
	Difficulty float64
	Due        time.Time
	Reps       int
	Lapses     int
	LastReview *time.Time
}

func NewCard(now time.Time) Card {
	return Card{State: New, Due: normalize(now)}
}

func (c Card) Seeded() bool { return c.Stability > 0 }

func (c Card) clone() Card {
	out := c
	if c.LastReview != nil {
		t := *c.LastReview
		out.LastReview = &t
	}
	return out
}

// normalize puts instants on the resolution the database stores.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
