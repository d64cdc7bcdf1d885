package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/exercise/quiz"
	"github.com/yungbote/tutorloop-backend/internal/exercise/vocabulary"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/bulk_import"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/cache_rebuild"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/card_state_init"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/parameter_optimize"
	"github.com/yungbote/tutorloop-backend/internal/jobs/runtime"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/realtime/bus"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type Services struct {
	Engine      services.SchedulingEngine
	Dispatcher  *exercise.Dispatcher
	Authorizer  services.Authorizer
	Sessions    services.SessionService
	Jobs        services.JobService
	JobNotifier services.JobNotifier
	// Tokens is nil when no signing secret is configured.
	Tokens      services.TokenService
	JobRegistry *runtime.Registry
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, rs repos.Repos, b bus.Bus) (Services, error) {
	log.Info("Wiring services...")

	base, err := fsrs.NewScheduler(cfg.Scheduling.FSRS())
	if err != nil {
		return Services{}, fmt.Errorf("init scheduler: %w", err)
	}
	engine := services.NewSchedulingEngine(db, log, base, cfg.Optimizer,
		rs.Deck, rs.CardState, rs.ReviewEvent, rs.SchedulingProfile)

	handlers := []exercise.Handler{vocabulary.New(rs.CardState, rs.Deck, engine, log)}
	handlers = append(handlers, quiz.Handlers(log)...)
	dispatcher, err := exercise.NewDispatcher(handlers...)
	if err != nil {
		return Services{}, fmt.Errorf("init exercise dispatcher: %w", err)
	}

	auth := services.NewAuthorizer(log, rs.TeacherStudent)
	sessions := services.NewSessionService(db, log, rs.Session, rs.Unit, auth, dispatcher,
		services.NewSessionNotifier(b, log))
	jobNotifier := services.NewJobNotifier(b, log)
	jobService := services.NewJobService(db, log, rs.JobRun, jobNotifier)

	var tokens services.TokenService
	if cfg.RequireAuth() == nil {
		tokens, err = services.NewTokenService(log, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
		if err != nil {
			return Services{}, fmt.Errorf("init token service: %w", err)
		}
	}

	registry, err := wireJobRegistry(log, engine, auth)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Engine:      engine,
		Dispatcher:  dispatcher,
		Authorizer:  auth,
		Sessions:    sessions,
		Jobs:        jobService,
		JobNotifier: jobNotifier,
		Tokens:      tokens,
		JobRegistry: registry,
	}, nil
}

func wireJobRegistry(log *logger.Logger, engine services.SchedulingEngine, auth services.Authorizer) (*runtime.Registry, error) {
	jobRegistry := runtime.NewRegistry()

	if err := jobRegistry.Register(card_state_init.New(log, engine, auth)); err != nil {
		return nil, err
	}
	if err := jobRegistry.Register(cache_rebuild.New(log, engine)); err != nil {
		return nil, err
	}
	if err := jobRegistry.Register(parameter_optimize.New(log, engine)); err != nil {
		return nil, err
	}
	if err := jobRegistry.Register(bulk_import.New(log, engine, auth)); err != nil {
		return nil, err
	}

	if err := jobRegistry.Verify(); err != nil {
		return nil, err
	}
	return jobRegistry, nil
}
