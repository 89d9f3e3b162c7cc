package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// ErrJobNotActive is returned by the force transitions when the CAS guard
// does not find the row in active state (double-advance, stale id).
var ErrJobNotActive = errors.New("stage job is not active")

type StageJobRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, job *types.StageJob) (*types.StageJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StageJob, error)
	// ClaimNextQueued picks one queued job for the stage and marks it active
	// (SKIP LOCKED). Returns nil when the queue is empty.
	ClaimNextQueued(ctx context.Context, tx *gorm.DB, stage string) (*types.StageJob, error)
	// ActiveByDocument is the document -> active job index. By invariant at
	// most one row can match across all stages.
	ActiveByDocument(ctx context.Context, tx *gorm.DB, documentID string) (*types.StageJob, error)
	// UpdatePayload replaces the working payload attached to the job.
	UpdatePayload(ctx context.Context, tx *gorm.DB, id uuid.UUID, payload datatypes.JSON) error
	// ForceComplete moves an active job to completed regardless of which
	// worker holds it. This deliberately bypasses worker ownership and is
	// reserved for the orchestrator's advance path.
	ForceComplete(ctx context.Context, tx *gorm.DB, id uuid.UUID, result datatypes.JSON) error
	// ForceFail moves an active job to failed with a reason.
	ForceFail(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error
	CountActiveByDocument(ctx context.Context, tx *gorm.DB, documentID string) (int64, error)
}

type stageJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageJobRepo(db *gorm.DB, baseLog *logger.Logger) StageJobRepo {
	return &stageJobRepo{
		db:  db,
		log: baseLog.With("repo", "StageJobRepo"),
	}
}

func (r *stageJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, job *types.StageJob) (*types.StageJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *stageJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StageJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.StageJob
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
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

func (r *stageJobRepo) ClaimNextQueued(ctx context.Context, tx *gorm.DB, stage string) (*types.StageJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	var claimed *types.StageJob
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var job types.StageJob
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("stage = ? AND status = ?", stage, types.JobQueued).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.StageJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":     types.JobActive,
				"locked_at":  now,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.JobActive
		job.LockedAt = &now
		job.UpdatedAt = now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *stageJobRepo) ActiveByDocument(ctx context.Context, tx *gorm.DB, documentID string) (*types.StageJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == "" {
		return nil, nil
	}
	var job types.StageJob
	err := transaction.WithContext(ctx).
		Where("document_id = ? AND status = ?", documentID, types.JobActive).
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

func (r *stageJobRepo) UpdatePayload(ctx context.Context, tx *gorm.DB, id uuid.UUID, payload datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.StageJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payload":    payload,
			"updated_at": time.Now(),
		}).Error
}

func (r *stageJobRepo) ForceComplete(ctx context.Context, tx *gorm.DB, id uuid.UUID, result datatypes.JSON) error {
	return r.forceTransition(ctx, tx, id, map[string]interface{}{
		"status":     types.JobCompleted,
		"result":     result,
		"locked_at":  nil,
		"updated_at": time.Now(),
	})
}

func (r *stageJobRepo) ForceFail(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error {
	return r.forceTransition(ctx, tx, id, map[string]interface{}{
		"status":     types.JobFailed,
		"error":      reason,
		"locked_at":  nil,
		"updated_at": time.Now(),
	})
}

// forceTransition is a compare-and-swap on status: the update applies only
// while the row is still active, so a concurrent advance loses cleanly.
func (r *stageJobRepo) forceTransition(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return ErrJobNotActive
	}
	res := transaction.WithContext(ctx).
		Model(&types.StageJob{}).
		Where("id = ? AND status = ?", id, types.JobActive).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotActive
	}
	return nil
}

func (r *stageJobRepo) CountActiveByDocument(ctx context.Context, tx *gorm.DB, documentID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(&types.StageJob{}).
		Where("document_id = ? AND status = ?", documentID, types.JobActive).
		Count(&n).Error
	return n, err
}
