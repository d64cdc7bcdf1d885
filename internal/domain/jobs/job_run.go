package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobType string

const (
	JobInitCardStates     JobType = "INIT_CARD_STATES"
	JobOptimizeParameters JobType = "OPTIMIZE_PARAMETERS"
	JobRebuildCache       JobType = "REBUILD_CACHE"
	JobBulkImport         JobType = "BULK_IMPORT"
)

// AllJobTypes is the closed set of job types a worker must be able to run.
var AllJobTypes = []JobType{
	JobInitCardStates,
	JobOptimizeParameters,
	JobRebuildCache,
	JobBulkImport,
}

func (t JobType) Valid() bool {
	for _, jt := range AllJobTypes {
		if jt == t {
			return true
		}
	}
	return false
}

type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

const EntityStudent = "student"

type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	JobType     JobType        `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType  string         `gorm:"column:entity_type;index:idx_job_run_entity,priority:1" json:"entity_type,omitempty"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;column:entity_id;index:idx_job_run_entity,priority:2" json:"entity_id,omitempty"`
	Status      JobStatus      `gorm:"column:status;not null;index:idx_job_run_status_created,priority:1" json:"status"`
	Stage       string         `gorm:"column:stage;not null" json:"stage"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	LockedBy    string         `gorm:"column:locked_by" json:"locked_by,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result" json:"result,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_job_run_status_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }

// SystemOwnerID owns jobs enqueued by scheduled maintenance rather than a
// teacher request.
var SystemOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
