package services

import (
	"encoding/json"
	"fmt"
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
)

// JobWakeupChannel is the Postgres NOTIFY channel idle workers LISTEN on.
const JobWakeupChannel = "job_run_enqueued"

type JobStatusView struct {
	ID        uuid.UUID       `json:"id"`
	JobType   types.JobType   `json:"job_type"`
	Status    types.JobStatus `json:"status"`
	Stage     string          `json:"stage"`
	Progress  int             `json:"progress"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Entity    *JobEntityRef   `json:"entity,omitempty"`
}

type JobEntityRef struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

type JobService interface {
	// Enqueue records a PENDING job. The payload is validated by the
	// pipeline when the job runs, not here.
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType types.JobType, payload map[string]any) (*types.JobRun, error)
	// EnqueueForStudentIfNeeded skips enqueueing while a PENDING or RUNNING
	// job of the same type exists for the student.
	EnqueueForStudentIfNeeded(dbc dbctx.Context, ownerUserID uuid.UUID, jobType types.JobType, studentID uuid.UUID, payload map[string]any) (*types.JobRun, bool, error)
	GetJobStatus(dbc dbctx.Context, jobID, teacherID uuid.UUID) (*JobStatusView, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, notify JobNotifier) JobService {
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType types.JobType, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if !jobType.Valid() {
		return nil, &types.InvalidPayloadError{JobType: string(jobType), Err: fmt.Errorf("unknown job type %q", jobType)}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &types.InvalidPayloadError{JobType: string(jobType), Err: err}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		Status:      jobtypes.JobPending,
		Stage:       "queued",
		Payload:     datatypes.JSON(raw),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if id, ok := studentIDOf(payload); ok {
		job.EntityType = jobtypes.EntityStudent
		job.EntityID = &id
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	inner := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
	if _, err := s.repo.Create(inner, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	// Inside a transaction the notification is delivered on commit.
	if transaction.Dialector != nil && transaction.Dialector.Name() == "postgres" {
		if err := transaction.WithContext(dbc.Context()).Exec("SELECT pg_notify(?, ?)", JobWakeupChannel, job.ID.String()).Error; err != nil {
			s.log.Warn("pg_notify failed; workers will pick the job up on their next poll", "job_id", job.ID, "error", err)
		}
	}

	s.notify.JobCreated(ownerUserID, job)
	s.log.Info("job enqueued", "job_id", job.ID, "job_type", jobType, "owner_user_id", ownerUserID)
	return job, nil
}

func (s *jobService) EnqueueForStudentIfNeeded(dbc dbctx.Context, ownerUserID uuid.UUID, jobType types.JobType, studentID uuid.UUID, payload map[string]any) (*types.JobRun, bool, error) {
	if studentID == uuid.Nil {
		return nil, false, fmt.Errorf("missing student_id")
	}
	has, err := s.repo.HasRunnableForEntity(dbc, jobtypes.EntityStudent, studentID, jobType)
	if err != nil {
		return nil, false, fmt.Errorf("check runnable jobs: %w", err)
	}
	if has {
		latest, err := s.repo.GetLatestByEntity(dbc, jobtypes.EntityStudent, studentID, jobType)
		if err != nil {
			return nil, false, fmt.Errorf("load latest job: %w", err)
		}
		return latest, false, nil
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["student_id"] = studentID.String()
	job, err := s.Enqueue(dbc, ownerUserID, jobType, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) GetJobStatus(dbc dbctx.Context, jobID, teacherID uuid.UUID) (*JobStatusView, error) {
	rows, err := s.repo.GetByIDs(dbc, []uuid.UUID{jobID})
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if len(rows) == 0 {
		return nil, &types.NotFoundError{Entity: "job", ID: jobID}
	}
	job := rows[0]
	if job.OwnerUserID != teacherID {
		return nil, &types.AuthorizationError{TeacherID: teacherID, Reason: "job belongs to another user"}
	}
	view := &JobStatusView{
		ID:        job.ID,
		JobType:   job.JobType,
		Status:    job.Status,
		Stage:     job.Stage,
		Progress:  job.Progress,
		Attempts:  job.Attempts,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if len(job.Result) > 0 && string(job.Result) != "null" {
		view.Result = json.RawMessage(job.Result)
	}
	if job.EntityID != nil {
		view.Entity = &JobEntityRef{Type: job.EntityType, ID: *job.EntityID}
	}
	return view, nil
}

func studentIDOf(payload map[string]any) (uuid.UUID, bool) {
	raw, ok := payload["student_id"]
	if !ok {
		return uuid.Nil, false
	}
	switch v := raw.(type) {
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil && id != uuid.Nil
	case uuid.UUID:
		return v, v != uuid.Nil
	default:
		return uuid.Nil, false
	}
}
