package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type fakeJobRepo struct {
	job *types.StageJob
}

func (f *fakeJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, job *types.StageJob) (*types.StageJob, error) {
	return job, nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StageJob, error) {
	return f.job, nil
}

func (f *fakeJobRepo) ClaimNextQueued(ctx context.Context, tx *gorm.DB, stage string) (*types.StageJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) ActiveByDocument(ctx context.Context, tx *gorm.DB, documentID string) (*types.StageJob, error) {
	return f.job, nil
}

func (f *fakeJobRepo) UpdatePayload(ctx context.Context, tx *gorm.DB, id uuid.UUID, payload datatypes.JSON) error {
	f.job.Payload = payload
	return nil
}

func (f *fakeJobRepo) ForceComplete(ctx context.Context, tx *gorm.DB, id uuid.UUID, result datatypes.JSON) error {
	return nil
}

func (f *fakeJobRepo) ForceFail(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error {
	return nil
}

func (f *fakeJobRepo) CountActiveByDocument(ctx context.Context, tx *gorm.DB, documentID string) (int64, error) {
	return 1, nil
}

type fakeStoreRepo struct {
	store *types.Store
}

func (f *fakeStoreRepo) Create(ctx context.Context, tx *gorm.DB, store *types.Store) (*types.Store, error) {
	return store, nil
}

func (f *fakeStoreRepo) GetByStoreID(ctx context.Context, tx *gorm.DB, storeID string) (*types.Store, error) {
	return f.store, nil
}

func (f *fakeStoreRepo) GetByPhone(ctx context.Context, tx *gorm.DB, phone string) (*types.Store, error) {
	return f.store, nil
}

func (f *fakeStoreRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID string) (*types.Store, error) {
	return f.store, nil
}

func (f *fakeStoreRepo) PipelineFor(ctx context.Context, tx *gorm.DB, storeID string) ([]string, error) {
	return nil, nil
}

func (f *fakeStoreRepo) UpdateFields(ctx context.Context, tx *gorm.DB, storeID string, updates map[string]interface{}) error {
	return nil
}

type fakeProductRepo struct {
	products map[string]*types.Product
}

func (f *fakeProductRepo) GetByStoreID(ctx context.Context, tx *gorm.DB, storeID string) ([]*types.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) GetByProductID(ctx context.Context, tx *gorm.DB, storeID, productID string) (*types.Product, error) {
	return f.products[productID], nil
}

func (f *fakeProductRepo) ByBarcodes(ctx context.Context, tx *gorm.DB, storeID string, barcodes []string) (map[string][]types.ProductCandidate, error) {
	return nil, nil
}

func (f *fakeProductRepo) SearchByLemmas(ctx context.Context, tx *gorm.DB, storeID string, lemmas []string, limit int) ([]types.ProductCandidate, error) {
	return nil, nil
}

func (f *fakeProductRepo) Upsert(ctx context.Context, tx *gorm.DB, products []*types.Product) error {
	return nil
}

func (f *fakeProductRepo) DeleteByProductIDs(ctx context.Context, tx *gorm.DB, storeID string, productIDs []string) error {
	return nil
}

func newTestToolset(t *testing.T, doc *types.InventoryDocument, products map[string]*types.Product) (*Toolset, *fakeJobRepo) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	jobs := &fakeJobRepo{job: &types.StageJob{
		ID:         uuid.New(),
		DocumentID: "doc1",
		Stage:      "update_preparation",
		Status:     types.JobActive,
		Payload:    datatypes.JSON(raw),
	}}
	stores := &fakeStoreRepo{store: &types.Store{StoreID: "store1"}}
	ts := NewToolset(log, nil, jobs, stores, &fakeProductRepo{products: products}, nil, nil)
	return ts, jobs
}

func documentFrom(t *testing.T, jobs *fakeJobRepo) *types.InventoryDocument {
	t.Helper()
	var doc types.InventoryDocument
	if err := json.Unmarshal(jobs.job.Payload, &doc); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return &doc
}

func TestApplyRowCorrectionManualMatch(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", SupplierItemName: "Cola", Candidates: []types.ProductCandidate{{ProductID: "prodX"}}},
	}}
	products := map[string]*types.Product{
		"prod1": {ProductID: "prod1", Name: "Cola 1l", Unit: "l"},
	}
	ts, jobs := newTestToolset(t, doc, products)

	res := ts.ApplyRowCorrection(context.Background(), "doc1", "1", "prod1", "6 * 1")
	if !res.Success {
		t.Fatalf("correction failed: %s", res.Message)
	}

	got := documentFrom(t, jobs).Items[0]
	if got.MatchType != types.MatchManual || got.InventoryItemID != "prod1" {
		t.Fatalf("row not corrected: %#v", got)
	}
	if got.Candidates != nil {
		t.Fatalf("candidates not cleared: %#v", got.Candidates)
	}
	if got.QuantityExpression != "6 * 1" {
		t.Fatalf("expression not stored: %#v", got)
	}
}

func TestApplyRowCorrectionSkip(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", SupplierItemName: "Pfand", InventoryItemID: "stale", MatchType: types.MatchName},
	}}
	ts, jobs := newTestToolset(t, doc, nil)

	res := ts.ApplyRowCorrection(context.Background(), "doc1", "1", "skip", "")
	if !res.Success {
		t.Fatalf("skip failed: %s", res.Message)
	}

	got := documentFrom(t, jobs).Items[0]
	if got.MatchType != types.MatchSkip || got.InventoryItemID != "" {
		t.Fatalf("row not skipped: %#v", got)
	}
}

func TestApplyRowCorrectionUnknownProduct(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", SupplierItemName: "Cola"},
	}}
	ts, _ := newTestToolset(t, doc, nil)

	res := ts.ApplyRowCorrection(context.Background(), "doc1", "1", "ghost", "")
	if res.Success {
		t.Fatal("unknown product must fail")
	}
	if !strings.Contains(res.Message, "ghost") {
		t.Fatalf("message should name the product: %q", res.Message)
	}
}

func TestApplyRowCorrectionUnknownRow(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", SupplierItemName: "Cola"},
	}}
	ts, _ := newTestToolset(t, doc, nil)

	res := ts.ApplyRowCorrection(context.Background(), "doc1", "99", "skip", "")
	if res.Success {
		t.Fatal("unknown row must fail")
	}
}

func TestApplyRowCorrectionRejectsBadExpression(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", SupplierItemName: "Cola"},
	}}
	ts, _ := newTestToolset(t, doc, nil)

	res := ts.ApplyRowCorrection(context.Background(), "doc1", "1", "skip", "1 + 2")
	if res.Success {
		t.Fatal("malformed expression must fail")
	}
}

func TestSummary(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", SupplierItemName: "Cola", MatchType: types.MatchBarcode},
		{RowNumber: "2", SupplierItemName: "Pfand", MatchType: types.MatchSkip},
		{RowNumber: "3", SupplierItemName: "Mystery"},
	}}
	s := Summary(doc)
	if !strings.Contains(s, "1 matched, 1 skipped, 1 open of 3 rows") {
		t.Fatalf("summary counts: %q", s)
	}
	if !strings.Contains(s, "row 3: Mystery") {
		t.Fatalf("summary must list open rows: %q", s)
	}

	doc.Items[2].MatchType = types.MatchManual
	s = Summary(doc)
	if !strings.Contains(s, "confirm") {
		t.Fatalf("clean summary should invite confirmation: %q", s)
	}
}
