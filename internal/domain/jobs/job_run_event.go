package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventCreated   = "created"
	EventProgress  = "progress"
	EventMessage   = "message"
	EventFailed    = "failed"
	EventSucceeded = "succeeded"
	EventCancelled = "cancelled"
)

// JobRunEvent is the append-only message stream of a run.
type JobRunEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID      `gorm:"type:uuid;column:job_id;not null;index" json:"job_id"`
	JobType   string         `gorm:"column:job_type;not null" json:"job_type"`
	Kind      string         `gorm:"column:kind;not null" json:"kind"`
	Stage     string         `gorm:"column:stage" json:"stage,omitempty"`
	Progress  int            `gorm:"column:progress;not null" json:"progress"`
	Message   string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (JobRunEvent) TableName() string { return "job_run_event" }

func (e *JobRunEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
