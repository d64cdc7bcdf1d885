package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/db"
	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	"github.com/yungbote/tutorloop-backend/internal/jobs/maintenance"
	"github.com/yungbote/tutorloop-backend/internal/jobs/worker"
	"github.com/yungbote/tutorloop-backend/internal/observability"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/realtime"
	"github.com/yungbote/tutorloop-backend/internal/realtime/bus"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Repos
	Services Services
	Bus      bus.Bus
	Hub      *realtime.Hub
	Metrics  *observability.Metrics

	dbService    *db.Service
	shutdownOtel func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.Log.Mode, logger.WithRedaction(cfg.Log.Redaction, cfg.Log.HashSalt))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := observability.Init()
	shutdownOtel := observability.InitOTel(ctx, log, cfg.Otel)

	dbService, err := db.NewService(cfg.Database, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	theDB := dbService.DB()

	b, err := bus.New(cfg.Redis, log)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("init realtime bus: %w", err)
	}

	log.Info("Wiring repos...")
	reposet := repos.New(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, b)
	if err != nil {
		_ = b.Close()
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Bus:          b,
		Hub:          realtime.NewHub(log),
		Metrics:      metrics,
		dbService:    dbService,
		shutdownOtel: shutdownOtel,
	}, nil
}

// Migrate creates or updates every table, then installs the ledger and job
// queue guards.
func (a *App) Migrate() error {
	a.Log.Info("Running auto-migrate...", "driver", a.dbService.Driver())
	return db.AutoMigrateAll(a.DB)
}

// RunServer serves the HTTP API until ctx is done. Realtime events arriving
// on the bus are fanned out to connected event streams.
func (a *App) RunServer(ctx context.Context) error {
	mw, err := wireMiddleware(a.Log, a.Services)
	if err != nil {
		return err
	}
	server := wireServer(a.Log, a.Cfg, wireHandlers(a.DB, a.Log, a.Services, a.Hub), mw)

	if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
		return fmt.Errorf("start realtime forwarder: %w", err)
	}
	a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB, a.Cfg.Jobs.CollectInterval)

	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTP.Addr)
	return server.Run(ctx, a.Cfg.HTTP.Addr)
}

// RunWorker runs the job worker pool and queue maintenance until ctx is done.
// On postgres the pool is also woken by LISTEN/NOTIFY on enqueue.
func (a *App) RunWorker(ctx context.Context) error {
	w := worker.NewWorker(a.DB, a.Log, a.Repos.JobRun, a.Services.JobRegistry, a.Services.JobNotifier, a.Cfg.Jobs.Worker)
	chores := maintenance.New(a.Log, a.Repos.JobRun, a.Repos.ReviewEvent, a.Services.Jobs, a.Cfg.Jobs.Maintenance)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return chores.Run(gctx) })
	if a.dbService.Driver() == db.DriverPostgres {
		listener := worker.NewListener(a.dbService.DSN(), services.JobWakeupChannel, a.Log, w.Wake)
		g.Go(func() error { return listener.Run(gctx) })
	}
	return g.Wait()
}

// Run runs the API and, when withWorker is set, the worker in one process.
func (a *App) Run(ctx context.Context, withWorker bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunServer(gctx) })
	if withWorker {
		g.Go(func() error { return a.RunWorker(gctx) })
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("close realtime bus", "error", err)
		}
	}
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownOtel(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
		cancel()
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("close database", "error", err)
		}
	}
	a.Log.Sync()
}
