package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	QueueLight = "light"
	QueueHeavy = "heavy"

	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"

	TypeIngestSource    = "ingest_source"
	TypeRescoreVariants = "rescore_variants"
	TypeExpireCoupons   = "expire_coupons"
)

// QueueFor returns the queue a job type runs on. Unknown types run light.
func QueueFor(jobType string) string {
	if jobType == TypeIngestSource {
		return QueueHeavy
	}
	return QueueLight
}

// JobRun is one execution of a background job. Light jobs are claimed from
// this table directly; heavy jobs are announced over Redis and claimed here.
type JobRun struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID     *uuid.UUID     `gorm:"type:uuid;column:owner_user_id;index" json:"owner_user_id,omitempty"`
	JobType         string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Queue           string         `gorm:"column:queue;not null;index" json:"queue"`
	Status          string         `gorm:"column:status;not null;index" json:"status"`
	Stage           string         `gorm:"column:stage;not null" json:"stage"`
	Progress        int            `gorm:"column:progress;not null" json:"progress"`
	Attempts        int            `gorm:"column:attempts;not null" json:"attempts"`
	CancelRequested bool           `gorm:"column:cancel_requested;not null" json:"cancel_requested"`
	Error           string         `gorm:"column:error" json:"error,omitempty"`
	Message         string         `gorm:"column:message" json:"message,omitempty"`
	LockedAt        *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt     *time.Time     `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	LastErrorAt     *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	StartedAt       *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	Payload         datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result          datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }

func (j *JobRun) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the run has reached a final status.
func (j *JobRun) Terminal() bool {
	switch j.Status {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
