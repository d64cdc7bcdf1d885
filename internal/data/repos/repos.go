package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos/jobs"
	"github.com/yungbote/tutorloop-backend/internal/data/repos/learning"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type UnitRepo = learning.UnitRepo
type DeckRepo = learning.DeckRepo
type SessionRepo = learning.SessionRepo
type CardStateRepo = learning.CardStateRepo
type ReviewEventRepo = learning.ReviewEventRepo
type SchedulingProfileRepo = learning.SchedulingProfileRepo
type TeacherStudentRepo = learning.TeacherStudentRepo

type JobRunRepo = jobs.JobRunRepo
type StaleSweep = jobs.StaleSweep

type Repos struct {
	Unit              UnitRepo
	Deck              DeckRepo
	Session           SessionRepo
	CardState         CardStateRepo
	ReviewEvent       ReviewEventRepo
	SchedulingProfile SchedulingProfileRepo
	TeacherStudent    TeacherStudentRepo
	JobRun            JobRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Unit:              learning.NewUnitRepo(db, log),
		Deck:              learning.NewDeckRepo(db, log),
		Session:           learning.NewSessionRepo(db, log),
		CardState:         learning.NewCardStateRepo(db, log),
		ReviewEvent:       learning.NewReviewEventRepo(db, log),
		SchedulingProfile: learning.NewSchedulingProfileRepo(db, log),
		TeacherStudent:    learning.NewTeacherStudentRepo(db, log),
		JobRun:            jobs.NewJobRunRepo(db, log),
	}
}
