package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.Message) error
	// ListByStore returns the store's transcript chronologically.
	ListByStore(ctx context.Context, tx *gorm.DB, storeID string) ([]*types.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{
		db:  db,
		log: baseLog.With("repo", "MessageRepo"),
	}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if msg == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(msg).Error
}

func (r *messageRepo) ListByStore(ctx context.Context, tx *gorm.DB, storeID string) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Message
	if storeID == "" {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
