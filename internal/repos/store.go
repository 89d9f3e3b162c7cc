package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type StoreRepo interface {
	Create(ctx context.Context, tx *gorm.DB, store *types.Store) (*types.Store, error)
	GetByStoreID(ctx context.Context, tx *gorm.DB, storeID string) (*types.Store, error)
	GetByPhone(ctx context.Context, tx *gorm.DB, phone string) (*types.Store, error)
	// GetByDocumentID resolves the owning store through the scan record.
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID string) (*types.Store, error)
	// PipelineFor returns the store's ordered stage names.
	PipelineFor(ctx context.Context, tx *gorm.DB, storeID string) ([]string, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, storeID string, updates map[string]interface{}) error
}

type storeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoreRepo(db *gorm.DB, baseLog *logger.Logger) StoreRepo {
	return &storeRepo{
		db:  db,
		log: baseLog.With("repo", "StoreRepo"),
	}
}

func (r *storeRepo) Create(ctx context.Context, tx *gorm.DB, store *types.Store) (*types.Store, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if store == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(store).Error; err != nil {
		return nil, err
	}
	return store, nil
}

func (r *storeRepo) GetByStoreID(ctx context.Context, tx *gorm.DB, storeID string) (*types.Store, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if storeID == "" {
		return nil, nil
	}
	var store types.Store
	err := transaction.WithContext(ctx).
		Where("store_id = ?", storeID).
		Limit(1).
		Find(&store).Error
	if err != nil {
		return nil, err
	}
	if store.ID == uuid.Nil {
		return nil, nil
	}
	return &store, nil
}

func (r *storeRepo) GetByPhone(ctx context.Context, tx *gorm.DB, phone string) (*types.Store, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if phone == "" {
		return nil, nil
	}
	var store types.Store
	err := transaction.WithContext(ctx).
		Where("phone = ?", phone).
		Limit(1).
		Find(&store).Error
	if err != nil {
		return nil, err
	}
	if store.ID == uuid.Nil {
		return nil, nil
	}
	return &store, nil
}

func (r *storeRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID string) (*types.Store, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == "" {
		return nil, nil
	}
	var store types.Store
	err := transaction.WithContext(ctx).
		Joins("JOIN scan ON scan.store_id = store.store_id").
		Where("scan.id = ?", documentID).
		Limit(1).
		Find(&store).Error
	if err != nil {
		return nil, err
	}
	if store.ID == uuid.Nil {
		return nil, nil
	}
	return &store, nil
}

func (r *storeRepo) PipelineFor(ctx context.Context, tx *gorm.DB, storeID string) ([]string, error) {
	store, err := r.GetByStoreID(ctx, tx, storeID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("store not found for storeId: %s", storeID)
	}
	if len(store.Pipeline) == 0 {
		return nil, nil
	}
	var stages []string
	if err := json.Unmarshal(store.Pipeline, &stages); err != nil {
		return nil, fmt.Errorf("malformed pipeline for storeId %s: %w", storeID, err)
	}
	return stages, nil
}

func (r *storeRepo) UpdateFields(ctx context.Context, tx *gorm.DB, storeID string, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if storeID == "" {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Store{}).
		Where("store_id = ?", storeID).
		Updates(updates).Error
}
