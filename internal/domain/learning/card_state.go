package learning

import (
	"time"

	"github.com/google/uuid"
)

type LearningState string

const (
	StateNew        LearningState = "NEW"
	StateLearning   LearningState = "LEARNING"
	StateReview     LearningState = "REVIEW"
	StateRelearning LearningState = "RELEARNING"
)

// CardState is the materialized scheduling view of one (student, card) pair.
// It is derived from the review ledger and may be dropped and rebuilt.
type CardState struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_card_state_student_card,priority:1;index:idx_card_state_student_deck,priority:1" json:"student_id"`
	CardID       uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_card_state_student_card,priority:2" json:"card_id"`
	DeckID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_card_state_student_deck,priority:2" json:"deck_id"`
	State        LearningState `gorm:"column:state;not null;index" json:"state"`
	LearningStep int           `gorm:"column:learning_step;not null;default:0" json:"learning_step"`
	Stability    float64       `gorm:"column:stability;not null;default:0" json:"stability"`
	Difficulty   float64       `gorm:"column:difficulty;not null;default:0" json:"difficulty"`
	Due          time.Time     `gorm:"column:due;not null;index" json:"due"`
	Reps         int           `gorm:"column:reps;not null;default:0" json:"reps"`
	Lapses       int           `gorm:"column:lapses;not null;default:0" json:"lapses"`
	LastReview   *time.Time    `gorm:"column:last_review" json:"last_review,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
}

func (CardState) TableName() string { return "card_state" }

// CardStateSnapshot is the scheduling part of a CardState, as recorded on the
// ledger before each review.
type CardStateSnapshot struct {
	State        LearningState `json:"state"`
	LearningStep int           `json:"learning_step"`
	Stability    float64       `json:"stability"`
	Difficulty   float64       `json:"difficulty"`
	Due          time.Time     `json:"due"`
	Reps         int           `json:"reps"`
	Lapses       int           `json:"lapses"`
	LastReview   *time.Time    `json:"last_review,omitempty"`
}

func (c *CardState) Snapshot() CardStateSnapshot {
	return CardStateSnapshot{
		State:        c.State,
		LearningStep: c.LearningStep,
		Stability:    c.Stability,
		Difficulty:   c.Difficulty,
		Due:          c.Due,
		Reps:         c.Reps,
		Lapses:       c.Lapses,
		LastReview:   c.LastReview,
	}
}

// Equal compares two snapshots field by field, treating timestamps by instant.
func (s CardStateSnapshot) Equal(o CardStateSnapshot) bool {
	if s.State != o.State || s.LearningStep != o.LearningStep ||
		s.Stability != o.Stability || s.Difficulty != o.Difficulty ||
		s.Reps != o.Reps || s.Lapses != o.Lapses || !s.Due.Equal(o.Due) {
		return false
	}
	if (s.LastReview == nil) != (o.LastReview == nil) {
		return false
	}
	return s.LastReview == nil || s.LastReview.Equal(*o.LastReview)
}
