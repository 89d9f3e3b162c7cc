package repos

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type ProductRepo interface {
	GetByStoreID(ctx context.Context, tx *gorm.DB, storeID string) ([]*types.Product, error)
	GetByProductID(ctx context.Context, tx *gorm.DB, storeID, productID string) (*types.Product, error)
	// ByBarcodes batches one lookup for all distinct barcodes and returns
	// hits bucketed by the barcode they matched. A stored barcode matches
	// when it ends with the queried digits, so leading prefixes the scanner
	// adds do not break exact matching.
	ByBarcodes(ctx context.Context, tx *gorm.DB, storeID string, barcodes []string) (map[string][]types.ProductCandidate, error)
	// SearchByLemmas returns candidates whose lemmatized names share terms
	// with the query lemmas, best overlap first.
	SearchByLemmas(ctx context.Context, tx *gorm.DB, storeID string, lemmas []string, limit int) ([]types.ProductCandidate, error)
	Upsert(ctx context.Context, tx *gorm.DB, products []*types.Product) error
	DeleteByProductIDs(ctx context.Context, tx *gorm.DB, storeID string, productIDs []string) error
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{
		db:  db,
		log: baseLog.With("repo", "ProductRepo"),
	}
}

func (r *productRepo) GetByStoreID(ctx context.Context, tx *gorm.DB, storeID string) ([]*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Product
	if storeID == "" {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("store_id = ?", storeID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) GetByProductID(ctx context.Context, tx *gorm.DB, storeID, productID string) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if storeID == "" || productID == "" {
		return nil, nil
	}
	var product types.Product
	err := transaction.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		Limit(1).
		Find(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == uuid.Nil {
		return nil, nil
	}
	return &product, nil
}

func (r *productRepo) ByBarcodes(ctx context.Context, tx *gorm.DB, storeID string, barcodes []string) (map[string][]types.ProductCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[string][]types.ProductCandidate, len(barcodes))
	if storeID == "" || len(barcodes) == 0 {
		return out, nil
	}

	var products []*types.Product
	if err := transaction.WithContext(ctx).
		Select("product_id", "name", "unit", "barcodes").
		Where("store_id = ? AND barcodes IS NOT NULL", storeID).
		Find(&products).Error; err != nil {
		return nil, err
	}

	for _, p := range products {
		var stored []string
		if len(p.Barcodes) > 0 {
			if err := json.Unmarshal(p.Barcodes, &stored); err != nil {
				r.log.Warn("Skipping product with unreadable barcodes", "product_id", p.ProductID, "error", err)
				continue
			}
		}
		for _, queried := range barcodes {
			if queried == "" {
				continue
			}
			for _, have := range stored {
				if strings.HasSuffix(have, queried) {
					out[queried] = append(out[queried], types.ProductCandidate{
						ProductID: p.ProductID,
						Name:      p.Name,
						Unit:      p.Unit,
					})
					break
				}
			}
		}
	}
	return out, nil
}

func (r *productRepo) SearchByLemmas(ctx context.Context, tx *gorm.DB, storeID string, lemmas []string, limit int) ([]types.ProductCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if storeID == "" || len(lemmas) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var products []*types.Product
	if err := transaction.WithContext(ctx).
		Select("product_id", "name", "unit", "name_lemmas").
		Where("store_id = ? AND jsonb_exists_any(name_lemmas, ?::text[])", storeID, pqTextArray(lemmas)).
		Find(&products).Error; err != nil {
		return nil, err
	}

	querySet := make(map[string]struct{}, len(lemmas))
	for _, l := range lemmas {
		querySet[l] = struct{}{}
	}

	out := make([]types.ProductCandidate, 0, len(products))
	for _, p := range products {
		var stored []string
		if len(p.NameLemmas) > 0 {
			if err := json.Unmarshal(p.NameLemmas, &stored); err != nil {
				continue
			}
		}
		overlap := 0
		for _, l := range stored {
			if _, ok := querySet[l]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		out = append(out, types.ProductCandidate{
			ProductID: p.ProductID,
			Name:      p.Name,
			Unit:      p.Unit,
			Score:     float64(overlap) / float64(len(lemmas)),
		})
	}
	sortCandidatesByScore(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *productRepo) Upsert(ctx context.Context, tx *gorm.DB, products []*types.Product) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(products) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "unit", "barcodes", "name_lemmas", "fingerprint", "updated_at",
			}),
		}).
		Create(&products).Error
}

func (r *productRepo) DeleteByProductIDs(ctx context.Context, tx *gorm.DB, storeID string, productIDs []string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if storeID == "" || len(productIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("store_id = ? AND product_id IN ?", storeID, productIDs).
		Delete(&types.Product{}).Error
}

func sortCandidatesByScore(cands []types.ProductCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})
}

// pqTextArray renders a postgres text[] literal for the jsonb ?| operator.
func pqTextArray(items []string) string {
	escaped := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.ReplaceAll(it, `\`, `\\`)
		it = strings.ReplaceAll(it, `"`, `\"`)
		escaped = append(escaped, `"`+it+`"`)
	}
	return "{" + strings.Join(escaped, ",") + "}"
}
