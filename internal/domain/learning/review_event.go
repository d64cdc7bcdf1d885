package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReviewEvent is one ledger entry. Rows are only ever inserted.
type ReviewEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_review_event_seq,priority:1;index:idx_review_event_student_time,priority:1" json:"student_id"`
	CardID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_review_event_seq,priority:2" json:"card_id"`
	Sequence       int            `gorm:"column:sequence;not null;uniqueIndex:idx_review_event_seq,priority:3" json:"sequence"`
	SessionID      *uuid.UUID     `gorm:"type:uuid;column:session_id;index" json:"session_id,omitempty"`
	Rating         int            `gorm:"column:rating;not null" json:"rating"`
	ReviewedAt     time.Time      `gorm:"column:reviewed_at;not null;index:idx_review_event_student_time,priority:2" json:"reviewed_at"`
	IsLearningStep bool           `gorm:"column:is_learning_step;not null;default:false" json:"is_learning_step"`
	Snapshot       datatypes.JSON `gorm:"column:snapshot;not null" json:"snapshot"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (ReviewEvent) TableName() string { return "review_event" }

// SchedulingProfile holds the per-student fitted FSRS weights.
type SchedulingProfile struct {
	StudentID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"student_id"`
	Weights          datatypes.JSON `gorm:"column:weights;not null" json:"weights"`
	DesiredRetention float64        `gorm:"column:desired_retention;not null;default:0.9" json:"desired_retention"`
	Loss             float64        `gorm:"column:loss;not null;default:0" json:"loss"`
	TrainedOnReviews int            `gorm:"column:trained_on_reviews;not null;default:0" json:"trained_on_reviews"`
	OptimizedAt      *time.Time     `gorm:"column:optimized_at" json:"optimized_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (SchedulingProfile) TableName() string { return "scheduling_profile" }
