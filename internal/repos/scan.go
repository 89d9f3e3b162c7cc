package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type ScanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, scan *types.Scan) (*types.Scan, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Scan, error)
	// RecordProgress merges payload onto the (document, stage) record. Later
	// writes win per field; fields the payload does not mention survive.
	RecordProgress(ctx context.Context, tx *gorm.DB, documentID, stage, status string, payload map[string]interface{}) error
	GetStageRecord(ctx context.Context, tx *gorm.DB, documentID, stage string) (*types.StageRecord, error)
}

type scanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScanRepo(db *gorm.DB, baseLog *logger.Logger) ScanRepo {
	return &scanRepo{
		db:  db,
		log: baseLog.With("repo", "ScanRepo"),
	}
}

func (r *scanRepo) Create(ctx context.Context, tx *gorm.DB, scan *types.Scan) (*types.Scan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scan == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(scan).Error; err != nil {
		return nil, err
	}
	return scan, nil
}

func (r *scanRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Scan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return nil, nil
	}
	var scan types.Scan
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&scan).Error
	if err != nil {
		return nil, err
	}
	if scan.ID == "" {
		return nil, nil
	}
	return &scan, nil
}

func (r *scanRepo) RecordProgress(ctx context.Context, tx *gorm.DB, documentID, stage, status string, payload map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == "" || stage == "" {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var existing types.StageRecord
		if err := txx.
			Where("document_id = ? AND stage = ?", documentID, stage).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}

		raw, err := MergeStageRecord(existing.Record, status, payload, now)
		if err != nil {
			r.log.Warn("Discarding unreadable stage record during merge",
				"document_id", documentID, "stage", stage, "error", err)
			raw, err = MergeStageRecord(nil, status, payload, now)
			if err != nil {
				return err
			}
		}

		if existing.ID == uuid.Nil {
			return txx.Create(&types.StageRecord{
				DocumentID: documentID,
				Stage:      stage,
				Status:     status,
				Record:     datatypes.JSON(raw),
			}).Error
		}
		return txx.Model(&types.StageRecord{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"status":     status,
				"record":     datatypes.JSON(raw),
				"updated_at": now,
			}).Error
	})
}

// MergeStageRecord folds a progress payload onto an existing stage record.
// Later writes win per field; fields the payload does not mention survive.
func MergeStageRecord(existing []byte, status string, payload map[string]interface{}, now time.Time) ([]byte, error) {
	merged := map[string]interface{}{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, err
		}
	}
	for k, v := range payload {
		merged[k] = v
	}
	merged["status"] = status
	merged["timestamp"] = now.UTC().Format(time.RFC3339)
	return json.Marshal(merged)
}

func (r *scanRepo) GetStageRecord(ctx context.Context, tx *gorm.DB, documentID, stage string) (*types.StageRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rec types.StageRecord
	err := transaction.WithContext(ctx).
		Where("document_id = ? AND stage = ?", documentID, stage).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}
