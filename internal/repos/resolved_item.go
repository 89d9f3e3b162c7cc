package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type ResolvedItemRepo interface {
	Create(ctx context.Context, tx *gorm.DB, items []*types.ResolvedItem) error
	// RecentByStore returns the store's finalized decisions, newest first, so
	// the caller keeps the latest decision per supplier name.
	RecentByStore(ctx context.Context, tx *gorm.DB, storeID string, limit int) ([]*types.ResolvedItem, error)
}

type resolvedItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResolvedItemRepo(db *gorm.DB, baseLog *logger.Logger) ResolvedItemRepo {
	return &resolvedItemRepo{
		db:  db,
		log: baseLog.With("repo", "ResolvedItemRepo"),
	}
}

func (r *resolvedItemRepo) Create(ctx context.Context, tx *gorm.DB, items []*types.ResolvedItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&items).Error
}

func (r *resolvedItemRepo) RecentByStore(ctx context.Context, tx *gorm.DB, storeID string, limit int) ([]*types.ResolvedItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ResolvedItem
	if storeID == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 2000
	}
	if err := transaction.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
