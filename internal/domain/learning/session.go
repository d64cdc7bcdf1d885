package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionCreated    SessionStatus = "CREATED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
)

// CanTransition reports whether a session may move from s to next.
// COMPLETED is terminal.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case SessionCreated:
		return next == SessionInProgress || next == SessionCompleted
	case SessionInProgress:
		return next == SessionCompleted
	default:
		return false
	}
}

type Session struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TeacherID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"teacher_id"`
	StudentID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	UnitID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"unit_id"`
	Status            SessionStatus  `gorm:"column:status;not null;index" json:"status"`
	CurrentExerciseID *uuid.UUID     `gorm:"type:uuid;column:current_exercise_id" json:"current_exercise_id,omitempty"`
	Progress          datatypes.JSON `gorm:"column:progress" json:"progress,omitempty"`
	StartTime         time.Time      `gorm:"column:start_time;not null" json:"start_time"`
	EndTime           *time.Time     `gorm:"column:end_time" json:"end_time,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (Session) TableName() string { return "session" }

// HasProgress reports whether the progress column holds a payload.
func (s *Session) HasProgress() bool {
	if s == nil || len(s.Progress) == 0 {
		return false
	}
	return string(s.Progress) != "null"
}
