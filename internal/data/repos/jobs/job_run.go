package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// StaleSweep summarizes one pass over RUNNING jobs with lost heartbeats.
type StaleSweep struct {
	Requeued []uuid.UUID
	Failed   []uuid.UUID
}

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error)
	GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType types.JobType) (*types.JobRun, error)
	// ClaimBatch moves up to limit PENDING jobs to RUNNING for workerID in one
	// transaction. Rows locked by a concurrent claimer are skipped.
	ClaimBatch(dbc dbctx.Context, workerID string, limit int) ([]*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsIfOwned applies updates only while the job is RUNNING under
	// the claim (workerID, attempt). It reports false once the claim is lost.
	UpdateFieldsIfOwned(dbc dbctx.Context, id uuid.UUID, workerID string, attempt int, updates map[string]interface{}) (bool, error)
	// Heartbeat refreshes heartbeat_at under the same claim guard.
	Heartbeat(dbc dbctx.Context, id uuid.UUID, workerID string, attempt int) (bool, error)
	HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType types.JobType) (bool, error)
	ReclaimStale(dbc dbctx.Context, staleAfter time.Duration, maxAttempts int, reason string) (*StaleSweep, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Context()).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRunRepo) GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType types.JobType) (*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return nil, nil
	}
	var job types.JobRun
	err := transaction.WithContext(dbc.Context()).
		Where("entity_type = ? AND entity_id = ? AND job_type = ?", entityType, entityID, jobType).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) ClaimBatch(dbc dbctx.Context, workerID string, limit int) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 1
	}
	ts := now()
	var claimed []*types.JobRun
	err := transaction.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		var batch []*types.JobRun
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", jobtypes.JobPending).
			Order("created_at ASC").
			Limit(limit).
			Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(batch))
		for _, j := range batch {
			ids = append(ids, j.ID)
		}
		if err := txx.Model(&types.JobRun{}).
			Where("id IN ? AND status = ?", ids, jobtypes.JobPending).
			Updates(map[string]interface{}{
				"status":       jobtypes.JobRunning,
				"stage":        "claimed",
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    ts,
				"locked_by":    workerID,
				"heartbeat_at": ts,
				"updated_at":   ts,
			}).Error; err != nil {
			return err
		}
		for _, j := range batch {
			j.Status = jobtypes.JobRunning
			j.Stage = "claimed"
			j.Attempts++
			j.LockedAt = &ts
			j.LockedBy = workerID
			j.HeartbeatAt = &ts
			j.UpdatedAt = ts
		}
		claimed = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = now()
	}
	return transaction.WithContext(dbc.Context()).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) UpdateFieldsIfOwned(dbc dbctx.Context, id uuid.UUID, workerID string, attempt int, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || workerID == "" {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = now()
	}
	res := transaction.WithContext(dbc.Context()).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ? AND locked_by = ? AND attempts = ?", id, jobtypes.JobRunning, workerID, attempt).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID, workerID string, attempt int) (bool, error) {
	ts := now()
	return r.UpdateFieldsIfOwned(dbc, id, workerID, attempt, map[string]interface{}{
		"heartbeat_at": ts,
		"updated_at":   ts,
	})
}

func (r *jobRunRepo) HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType types.JobType) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Context()).
		Model(&types.JobRun{}).
		Where("entity_type = ? AND entity_id = ? AND job_type = ? AND status IN ?",
			entityType, entityID, jobType, []types.JobStatus{jobtypes.JobPending, jobtypes.JobRunning},
		).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *jobRunRepo) ReclaimStale(dbc dbctx.Context, staleAfter time.Duration, maxAttempts int, reason string) (*StaleSweep, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	ts := now()
	cutoff := ts.Add(-staleAfter)
	out := &StaleSweep{}
	err := transaction.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		var stale []*types.JobRun
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)", jobtypes.JobRunning, cutoff).
			Order("created_at ASC").
			Find(&stale).Error; err != nil {
			return err
		}
		for _, j := range stale {
			updates := map[string]interface{}{
				"locked_at":     nil,
				"locked_by":     "",
				"heartbeat_at":  nil,
				"last_error_at": ts,
				"updated_at":    ts,
			}
			if j.Attempts < maxAttempts {
				updates["status"] = jobtypes.JobPending
				updates["stage"] = "requeued"
				out.Requeued = append(out.Requeued, j.ID)
			} else {
				updates["status"] = jobtypes.JobFailed
				updates["stage"] = "stale"
				updates["error"] = reason
				out.Failed = append(out.Failed, j.ID)
			}
			if err := txx.Model(&types.JobRun{}).
				Where("id = ? AND status = ?", j.ID, jobtypes.JobRunning).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
