package repos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type ArtefactRepo interface {
	// Save upserts a keyed, timestamped blob for (document, stage, key).
	Save(ctx context.Context, tx *gorm.DB, documentID, storeID, stage, key string, data interface{}) error
	ListByDocument(ctx context.Context, tx *gorm.DB, documentID string) ([]*types.JobArtefact, error)
}

type artefactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtefactRepo(db *gorm.DB, baseLog *logger.Logger) ArtefactRepo {
	return &artefactRepo{
		db:  db,
		log: baseLog.With("repo", "ArtefactRepo"),
	}
}

func (r *artefactRepo) Save(ctx context.Context, tx *gorm.DB, documentID, storeID, stage, key string, data interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == "" || stage == "" || key == "" {
		return nil
	}
	// Keys arrive in pass-name form ("vector-ai-pass-input").
	key = strings.ReplaceAll(key, "-", "_")

	wrapped := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	}
	raw, err := json.Marshal(wrapped)
	if err != nil {
		return err
	}

	artefact := &types.JobArtefact{
		DocumentID: documentID,
		StoreID:    storeID,
		Stage:      stage,
		Key:        key,
		Data:       datatypes.JSON(raw),
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "stage"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(artefact).Error
}

func (r *artefactRepo) ListByDocument(ctx context.Context, tx *gorm.DB, documentID string) ([]*types.JobArtefact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobArtefact
	if documentID == "" {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
