package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

const staleReason = "stale: worker heartbeat lost"

type Config struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	OptimizeAt    string        `mapstructure:"optimize_at"`
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 5 * time.Minute
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.OptimizeAt == "" {
		c.OptimizeAt = "03:00"
	}
	return c
}

// Scheduler runs the periodic job-queue chores: reclaiming jobs whose worker
// stopped heartbeating, and the nightly parameter optimization sweep.
type Scheduler struct {
	scheduler *gocron.Scheduler
	log       *logger.Logger
	jobsRepo  repos.JobRunRepo
	reviews   repos.ReviewEventRepo
	jobs      services.JobService
	cfg       Config
	now       func() time.Time
}

func New(baseLog *logger.Logger, jobsRepo repos.JobRunRepo, reviews repos.ReviewEventRepo, jobs services.JobService, cfg Config) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		log:       baseLog.With("component", "JobMaintenance"),
		jobsRepo:  jobsRepo,
		reviews:   reviews,
		jobs:      jobs,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// Run registers the chores and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.scheduler.Every(s.cfg.SweepInterval).SingletonMode().Do(func() {
		if _, err := s.SweepStale(ctx); err != nil {
			s.log.Warn("stale sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule stale sweep: %w", err)
	}
	if _, err := s.scheduler.Every(1).Day().At(s.cfg.OptimizeAt).SingletonMode().Do(func() {
		if _, err := s.EnqueueNightlyOptimize(ctx); err != nil {
			s.log.Warn("nightly optimize enqueue failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule nightly optimize: %w", err)
	}

	s.log.Info("job maintenance started", "sweep_interval", s.cfg.SweepInterval.String(), "stale_after", s.cfg.StaleAfter.String(), "optimize_at", s.cfg.OptimizeAt)
	s.scheduler.StartAsync()
	<-ctx.Done()
	s.scheduler.Stop()
	return nil
}

// SweepStale returns RUNNING jobs with a stale heartbeat to PENDING, or fails
// them once they have used up their attempts.
func (s *Scheduler) SweepStale(ctx context.Context) (*repos.StaleSweep, error) {
	sweep, err := s.jobsRepo.ReclaimStale(dbctx.Context{Ctx: ctx}, s.cfg.StaleAfter, s.cfg.MaxAttempts, staleReason)
	if err != nil {
		return nil, err
	}
	if len(sweep.Requeued) > 0 || len(sweep.Failed) > 0 {
		s.log.Warn("reclaimed stale jobs", "requeued", len(sweep.Requeued), "failed", len(sweep.Failed))
	}
	return sweep, nil
}

// EnqueueNightlyOptimize enqueues OPTIMIZE_PARAMETERS for every student with
// reviews in the last 24 hours. Students with a job already pending are
// skipped. It returns the number of jobs enqueued.
func (s *Scheduler) EnqueueNightlyOptimize(ctx context.Context) (int, error) {
	since := s.now().UTC().Add(-24 * time.Hour)
	students, err := s.reviews.ListStudentsReviewedSince(dbctx.Context{Ctx: ctx}, since)
	if err != nil {
		return 0, fmt.Errorf("list active students: %w", err)
	}
	enqueued := 0
	for _, studentID := range students {
		_, created, err := s.jobs.EnqueueForStudentIfNeeded(dbctx.Context{Ctx: ctx}, jobtypes.SystemOwnerID, jobtypes.JobOptimizeParameters, studentID, nil)
		if err != nil {
			s.log.Warn("enqueue optimize failed", "student_id", studentID, "error", err)
			continue
		}
		if created {
			enqueued++
		}
	}
	s.log.Info("nightly optimize enqueued", "students", len(students), "enqueued", enqueued)
	return enqueued, nil
}
