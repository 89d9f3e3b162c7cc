package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    = "queued"
	JobActive    = "active"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// StageJob is one unit of work per (document, stage). A logical queue per
// stage is one stage value in this table; queued rows are claimed in
// created_at order with SKIP LOCKED.
//
// An active job has no timeout. Workers that need external arbitration leave
// the row active and step aside; the only way out of active is a
// force-complete or force-fail from the orchestrator path.
type StageJob struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID string         `gorm:"column:document_id;not null;index:idx_stage_job_doc" json:"document_id"`
	Stage      string         `gorm:"column:stage;not null;index" json:"stage"`
	Status     string         `gorm:"column:status;not null;index:idx_stage_job_doc" json:"status"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result     datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	LockedAt   *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (StageJob) TableName() string { return "stage_job" }
