package types

import (
	"time"

	"gorm.io/datatypes"

	"github.com/google/uuid"
)

// Scan is the document record created at ingestion. The id is the external
// document id and doubles as the job key in every stage queue.
type Scan struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	StoreID   string    `gorm:"column:store_id;not null;index" json:"store_id"`
	Channel   string    `gorm:"column:channel" json:"channel"`
	Author    string    `gorm:"column:author" json:"author"`
	FileID    string    `gorm:"column:file_id" json:"file_id"`
	Filename  string    `gorm:"column:filename" json:"filename"`
	URL       string    `gorm:"column:url" json:"url"`
	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Scan) TableName() string { return "scan" }

// StageRecord is the per-(document, stage) progress record. Record is merged
// on every write, never replaced, so a late partial update (say, a failure
// reason) cannot erase fields an earlier write produced.
type StageRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID string         `gorm:"column:document_id;not null;uniqueIndex:idx_stage_record_doc_stage" json:"document_id"`
	Stage      string         `gorm:"column:stage;not null;uniqueIndex:idx_stage_record_doc_stage" json:"stage"`
	Status     string         `gorm:"column:status;not null" json:"status"`
	Record     datatypes.JSON `gorm:"column:record;type:jsonb" json:"record"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (StageRecord) TableName() string { return "stage_record" }

// JobArtefact is an append-friendly audit blob keyed by (document, stage,
// key). Distinct keys never clobber each other; writing the same key again
// replaces that key only.
type JobArtefact struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID string         `gorm:"column:document_id;not null;uniqueIndex:idx_artefact_doc_stage_key" json:"document_id"`
	Stage      string         `gorm:"column:stage;not null;uniqueIndex:idx_artefact_doc_stage_key" json:"stage"`
	Key        string         `gorm:"column:key;not null;uniqueIndex:idx_artefact_doc_stage_key" json:"key"`
	StoreID    string         `gorm:"column:store_id;index" json:"store_id"`
	Data       datatypes.JSON `gorm:"column:data;type:jsonb" json:"data"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (JobArtefact) TableName() string { return "job_artefact" }
