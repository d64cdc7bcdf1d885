package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

/*
Context is the execution handle for one claimed job run.
Pipelines never touch job_run directly; they report through Progress, Fail
and Succeed, which only write while the row is still RUNNING under the claim
this Context was created for (locked_by and attempt number). A job reclaimed
by the stale sweeper and claimed again therefore cannot be overwritten by the
worker that lost it.
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Notify services.JobNotifier
	Log    *logger.Logger
	now    func() time.Time

	owner   string
	attempt int
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier, baseLog *logger.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
		Log:    baseLog,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	if job != nil {
		c.Log = baseLog.With("job_id", job.ID, "job_type", job.JobType)
		c.owner = job.LockedBy
		c.attempt = job.Attempts
	}
	c.applyTraceData()
	return c
}

// DBC is the database context pipelines pass to services.
func (c *Context) DBC() dbctx.Context {
	return dbctx.Context{Ctx: c.Ctx}
}

func (c *Context) applyTraceData() {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return
	}
	var meta struct {
		TraceID   string `json:"trace_id"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(c.Job.Payload, &meta); err != nil {
		return
	}
	traceID := strings.TrimSpace(meta.TraceID)
	reqID := strings.TrimSpace(meta.RequestID)
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

// KeepAlive refreshes the heartbeat every interval until the returned stop
// func is called. If the claim is lost, c.Ctx is cancelled so the pipeline
// can give up early. Call it before handing c to the pipeline.
func (c *Context) KeepAlive(interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(c.Ctx)
	c.Ctx = ctx
	if c.Repo == nil || c.Job == nil || interval <= 0 {
		return cancel
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ok, err := c.Repo.Heartbeat(dbctx.Context{Ctx: ctx}, c.Job.ID, c.owner, c.attempt)
			if err != nil {
				c.Log.Warn("job heartbeat failed", "error", err)
				continue
			}
			if !ok {
				c.claimLost()
				cancel()
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		cancel()
	}
}

func (c *Context) claimLost() {
	c.Log.Warn("job claim lost; dropping update", "locked_by", c.owner, "attempt", c.attempt)
}

// Progress records a non-terminal update and refreshes the heartbeat.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	now := c.now()
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsIfOwned(c.DBC(), c.Job.ID, c.owner, c.attempt, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Warn("job progress update failed", "stage", stage, "error", err)
			return
		}
		if !ok {
			c.claimLost()
			return
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job.OwnerUserID, c.Job, stage, pct, msg)
	}
}

// Fail marks the job FAILED. Failed jobs are not retried.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil {
		return
	}
	now := c.now()
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, uerr := c.Repo.UpdateFieldsIfOwned(c.DBC(), c.Job.ID, c.owner, c.attempt, map[string]interface{}{
			"status":        jobtypes.JobFailed,
			"stage":         stage,
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"locked_by":     "",
			"updated_at":    now,
		})
		if uerr != nil {
			c.Log.Error("job fail update failed", "stage", stage, "error", uerr)
			return
		}
		if !ok {
			c.claimLost()
			return
		}
	}
	c.Job.Status = jobtypes.JobFailed
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.LockedBy = ""
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job.OwnerUserID, c.Job, stage, msg)
	}
}

// Succeed marks the job COMPLETED and stores result as JSON.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Job == nil {
		return
	}
	now := c.now()
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail(finalStage, fmt.Errorf("encode result: %w", err))
			return
		}
		res = datatypes.JSON(b)
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsIfOwned(c.DBC(), c.Job.ID, c.owner, c.attempt, map[string]interface{}{
			"status":       jobtypes.JobCompleted,
			"stage":        finalStage,
			"progress":     100,
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"locked_by":    "",
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Error("job succeed update failed", "stage", finalStage, "error", err)
			return
		}
		if !ok {
			c.claimLost()
			return
		}
	}
	c.Job.Status = jobtypes.JobCompleted
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.LockedBy = ""
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobDone(c.Job.OwnerUserID, c.Job)
	}
}
