package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/jobs/runtime"
	"github.com/yungbote/tutorloop-backend/internal/observability"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type Config struct {
	Concurrency  int           `mapstructure:"worker_concurrency"`
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// HeartbeatInterval must stay well below the sweeper's stale_after.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = time.Minute
	}
	return c
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config
	wake     chan struct{}
	prefix   string
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
		wake:     make(chan struct{}, cfg.Concurrency),
		prefix:   fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
}

// Wake nudges idle loops to poll now instead of at the next tick.
func (w *Worker) Wake() {
	for i := 0; i < cap(w.wake); i++ {
		select {
		case w.wake <- struct{}{}:
		default:
			return
		}
	}
}

// Run starts the worker loops and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.registry.Verify(); err != nil {
		return err
	}
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "batch_size", w.cfg.BatchSize)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.runLoop(ctx, fmt.Sprintf("%s-%d", w.prefix, n))
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID string) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		n, err := w.RunOnce(ctx, workerID)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.log.Warn("ClaimBatch failed", "worker_id", workerID, "error", err)
		}
		if n > 0 {
			// Keep draining while there is work.
			select {
			case <-ctx.Done():
				w.log.Info("Worker loop stopped", "worker_id", workerID)
				return
			default:
				continue
			}
		}
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// RunOnce claims one batch for workerID and executes it. It returns the
// number of jobs claimed.
func (w *Worker) RunOnce(ctx context.Context, workerID string) (int, error) {
	jobs, err := w.repo.ClaimBatch(dbctx.Context{Ctx: ctx}, workerID, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		w.execute(ctx, workerID, job)
	}
	return len(jobs), nil
}

func (w *Worker) execute(ctx context.Context, workerID string, job *types.JobRun) {
	start := time.Now()
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify, w.log)
	spanCtx, span := observability.StartSpan(jc.Ctx, "job."+string(job.JobType), "job_id", job.ID.String())
	jc.Ctx = spanCtx
	stop := jc.KeepAlive(w.cfg.HeartbeatInterval)
	defer stop()

	var runErr error
	defer func() {
		observability.EndSpan(span, runErr)
		observability.Current().ObserveJob(string(job.JobType), string(job.Status), time.Since(start))
	}()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "worker_id", workerID, "job_type", job.JobType, "job_id", job.ID)
		runErr = &missingHandlerError{JobType: string(job.JobType)}
		jc.Fail("dispatch", runErr)
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "panic", r)
				runErr = &panicError{Val: r}
				jc.Fail("panic", runErr)
			}
		}()
		runErr = h.Run(jc)
	}()

	if runErr != nil {
		// Pipelines usually fail the job themselves; this covers the rest.
		jc.Fail(failStage(job), runErr)
		w.log.Warn("job failed", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "error", runErr)
		return
	}
	if !job.Status.Terminal() {
		jc.Succeed("done", nil)
	}
}

func failStage(job *types.JobRun) string {
	if job.Stage == "" || job.Stage == "queued" {
		return "run"
	}
	return job.Stage
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
