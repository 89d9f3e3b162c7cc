package matching

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type fakeProductRepo struct {
	barcodeHits map[string][]types.ProductCandidate
	lemmaHits   []types.ProductCandidate
	catalog     []*types.Product
}

func (f *fakeProductRepo) GetByStoreID(ctx context.Context, tx *gorm.DB, storeID string) ([]*types.Product, error) {
	return f.catalog, nil
}

func (f *fakeProductRepo) GetByProductID(ctx context.Context, tx *gorm.DB, storeID, productID string) (*types.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) ByBarcodes(ctx context.Context, tx *gorm.DB, storeID string, barcodes []string) (map[string][]types.ProductCandidate, error) {
	out := map[string][]types.ProductCandidate{}
	for _, b := range barcodes {
		if hits, ok := f.barcodeHits[b]; ok {
			out[b] = hits
		}
	}
	return out, nil
}

func (f *fakeProductRepo) SearchByLemmas(ctx context.Context, tx *gorm.DB, storeID string, lemmas []string, limit int) ([]types.ProductCandidate, error) {
	return f.lemmaHits, nil
}

func (f *fakeProductRepo) Upsert(ctx context.Context, tx *gorm.DB, products []*types.Product) error {
	return nil
}

func (f *fakeProductRepo) DeleteByProductIDs(ctx context.Context, tx *gorm.DB, storeID string, productIDs []string) error {
	return nil
}

type fakeResolvedRepo struct {
	items []*types.ResolvedItem
}

func (f *fakeResolvedRepo) Create(ctx context.Context, tx *gorm.DB, items []*types.ResolvedItem) error {
	f.items = append(items, f.items...)
	return nil
}

func (f *fakeResolvedRepo) RecentByStore(ctx context.Context, tx *gorm.DB, storeID string, limit int) ([]*types.ResolvedItem, error) {
	return f.items, nil
}

type fakeAI struct {
	jsonOut map[string]any
	jsonIn  []string
	embedIn []string
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.embedIn = append(f.embedIn, inputs...)
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.jsonIn = append(f.jsonIn, user)
	return f.jsonOut, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", nil
}

type countingPass struct {
	calls int
}

func (p *countingPass) Name() string { return "counting" }
func (p *countingPass) Apply(run *Run) error {
	p.calls++
	return nil
}

func newLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestCascadeSkipsPassesWhenDocumentReady(t *testing.T) {
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{SupplierItemName: "Milk 1L", MatchType: types.MatchManual},
		{SupplierItemName: "Bread", MatchType: types.MatchSkip},
	}}

	counter := &countingPass{}
	engine := NewEngine(newLog(t), counter)

	if err := engine.Resolve(context.Background(), "store1", "doc1", doc, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if counter.calls != 0 {
		t.Fatalf("pass invoked %d times on a ready document", counter.calls)
	}
}

func TestBarcodePassUniqueHitResolves(t *testing.T) {
	products := &fakeProductRepo{barcodeHits: map[string][]types.ProductCandidate{
		"4001234567890": {{ProductID: "prod1", Name: "Oat Milk 1L", Unit: "l"}},
	}}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{SupplierItemName: "Oat Drink", Barcode: "4001234567890"},
	}}

	engine := NewEngine(newLog(t), NewBarcodePass(products))
	if err := engine.Resolve(context.Background(), "store1", "doc1", doc, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	it := doc.Items[0]
	if it.MatchType != types.MatchBarcode {
		t.Fatalf("match type: %#v", it)
	}
	if it.InventoryItemID != "prod1" || it.InventoryItemName != "Oat Milk 1L" {
		t.Fatalf("resolution: %#v", it)
	}
	if it.Candidates != nil {
		t.Fatalf("candidates not cleared: %#v", it.Candidates)
	}
}

func TestBarcodePassCollisionGathersCandidates(t *testing.T) {
	products := &fakeProductRepo{barcodeHits: map[string][]types.ProductCandidate{
		"7012345": {
			{ProductID: "prod1", Name: "Cola 0.33l"},
			{ProductID: "prod2", Name: "Cola 1l"},
		},
	}}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{SupplierItemName: "Cola", Barcode: "7012345"},
	}}

	engine := NewEngine(newLog(t), NewBarcodePass(products))
	if err := engine.Resolve(context.Background(), "store1", "doc1", doc, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	it := doc.Items[0]
	if it.Ready() {
		t.Fatalf("collision must not resolve: %#v", it)
	}
	if len(it.Candidates) != 2 {
		t.Fatalf("candidates: %#v", it.Candidates)
	}
}

func TestHistoryPassReplaysLatestDecision(t *testing.T) {
	resolved := &fakeResolvedRepo{items: []*types.ResolvedItem{
		// Newest first, as the repo returns them.
		{SupplierItemName: "Tomaten 5kg", InventoryItemID: "prod2", InventoryItemName: "Tomatoes", InventoryItemUnit: "kg", MatchType: string(types.MatchManual), QuantityExpression: "5 * 1"},
		{SupplierItemName: "Tomaten 5kg", InventoryItemID: "prod1", InventoryItemName: "Old Tomatoes", MatchType: string(types.MatchManual)},
		{SupplierItemName: "Altbier", MatchType: string(types.MatchSkip)},
	}}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{SupplierItemName: "Tomaten 5kg"},
		{SupplierItemName: "Altbier"},
	}}

	engine := NewEngine(newLog(t), NewHistoryPass(resolved))
	if err := engine.Resolve(context.Background(), "store1", "doc1", doc, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tomato := doc.Items[0]
	if tomato.MatchType != types.MatchHistory || tomato.InventoryItemID != "prod2" {
		t.Fatalf("latest decision not replayed: %#v", tomato)
	}
	if tomato.QuantityExpression != "5 * 1" {
		t.Fatalf("quantity expression not carried: %#v", tomato)
	}
	beer := doc.Items[1]
	if beer.MatchType != types.MatchSkip || beer.InventoryItemID != "" {
		t.Fatalf("remembered skip not replayed: %#v", beer)
	}
}

func TestHistoryPassFuzzyTolerance(t *testing.T) {
	resolved := &fakeResolvedRepo{items: []*types.ResolvedItem{
		{SupplierItemName: "Kartoffeln 10kg", InventoryItemID: "prod1", InventoryItemName: "Potatoes", MatchType: string(types.MatchManual)},
		{SupplierItemName: "Egg", InventoryItemID: "prod2", InventoryItemName: "Eggs", MatchType: string(types.MatchManual)},
	}}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{SupplierItemName: "Kartofeln 10kg"}, // one deletion away: within tolerance for long names
		{SupplierItemName: "Eggplant"},       // five edits from "Egg": out of tolerance
	}}

	engine := NewEngine(newLog(t), NewHistoryPass(resolved))
	if err := engine.Resolve(context.Background(), "store1", "doc1", doc, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if doc.Items[0].MatchType != types.MatchHistory {
		t.Fatalf("near miss on long name not matched: %#v", doc.Items[0])
	}
	if doc.Items[1].Ready() {
		t.Fatalf("distant name must not match: %#v", doc.Items[1])
	}
}

func TestFuzzyToleranceCountsRunes(t *testing.T) {
	cases := []struct {
		name string
		want int
	}{
		{"milk", 1},
		{"bottle", 2},
		{"müsli", 1},      // 5 runes, 6 bytes
		{"חלב", 1},        // 3 runes, 6 bytes
		{"käsekuchen", 2}, // 10 runes
	}
	for _, tc := range cases {
		if got := fuzzyTolerance(tc.name); got != tc.want {
			t.Errorf("fuzzyTolerance(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestArbitrationResolvesByAlias(t *testing.T) {
	ai := &fakeAI{jsonOut: map[string]any{
		"selections": []interface{}{
			map[string]interface{}{"item": float64(0), "choice": "p_0_1"},
		},
	}}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{
			SupplierItemName: "Cola",
			Candidates: []types.ProductCandidate{
				// prod1 proposed twice; dedupe keeps alias indices stable.
				{ProductID: "prod1", Name: "Cola 0.33l"},
				{ProductID: "prod1", Name: "Cola 0.33l"},
				{ProductID: "prod2", Name: "Cola 1l", Unit: "l"},
			},
		},
	}}

	engine := NewEngine(newLog(t), NewArbitrationPass(ai))
	if err := engine.Resolve(context.Background(), "store1", "doc1", doc, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	it := doc.Items[0]
	if it.MatchType != types.MatchName || it.InventoryItemID != "prod2" {
		t.Fatalf("alias selection: %#v", it)
	}
	if it.InventoryItemUnit != "l" {
		t.Fatalf("unit not carried: %#v", it)
	}
}

func TestArbitrationIgnoresInvalidSelections(t *testing.T) {
	ai := &fakeAI{jsonOut: map[string]any{
		"selections": []interface{}{
			map[string]interface{}{"item": float64(0), "choice": "p_9_9"},
			map[string]interface{}{"item": float64(7), "choice": "p_0_0"},
			map[string]interface{}{"item": float64(0), "choice": "none"},
		},
	}}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{
			SupplierItemName: "Cola",
			Candidates:       []types.ProductCandidate{{ProductID: "prod1", Name: "Cola 0.33l"}},
		},
	}}

	engine := NewEngine(newLog(t), NewArbitrationPass(ai))
	if err := engine.Resolve(context.Background(), "store1", "doc1", doc, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if doc.Items[0].Ready() {
		t.Fatalf("invalid selections must not resolve the item: %#v", doc.Items[0])
	}
}
