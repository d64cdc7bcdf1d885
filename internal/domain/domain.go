package domain

import (
	"github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

type Unit = learning.Unit
type ExerciseItem = learning.ExerciseItem
type ExerciseType = learning.ExerciseType
type Deck = learning.Deck
type Card = learning.Card
type TeacherStudent = learning.TeacherStudent
type Session = learning.Session
type SessionStatus = learning.SessionStatus
type CardState = learning.CardState
type CardStateSnapshot = learning.CardStateSnapshot
type LearningState = learning.LearningState
type ReviewEvent = learning.ReviewEvent
type SchedulingProfile = learning.SchedulingProfile

type JobRun = jobs.JobRun
type JobType = jobs.JobType
type JobStatus = jobs.JobStatus

// Models lists every persisted table, in migration order.
func Models() []any {
	return []any{
		&Unit{},
		&ExerciseItem{},
		&Deck{},
		&Card{},
		&TeacherStudent{},
		&Session{},
		&CardState{},
		&ReviewEvent{},
		&SchedulingProfile{},
		&JobRun{},
	}
}
