package matching

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shelfsync/shelfsync-backend/internal/platform/pinecone"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type fakeVectorStore struct {
	mu      sync.Mutex
	matches []pinecone.VectorMatch
	queries int
}

func (f *fakeVectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	return nil
}

func (f *fakeVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int) ([]pinecone.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return f.matches, nil
}

func (f *fakeVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	return nil
}

type fakeLemma struct {
	inputs []string
}

func (f *fakeLemma) Lemmatize(ctx context.Context, texts []string) ([][]string, error) {
	f.inputs = append(f.inputs, texts...)
	out := make([][]string, len(texts))
	for i, t := range texts {
		out[i] = strings.Fields(strings.ToLower(t))
	}
	return out, nil
}

func newRun(t *testing.T, doc *types.InventoryDocument) *Run {
	t.Helper()
	return &Run{
		Ctx:        context.Background(),
		StoreID:    "store1",
		DocumentID: "doc1",
		Doc:        doc,
		Log:        newLog(t),
	}
}

func TestVectorPassAppendsCandidatesWithoutResolving(t *testing.T) {
	products := &fakeProductRepo{catalog: []*types.Product{
		{ProductID: "prod1", Name: "Cola 1l", Unit: "bottle"},
		{ProductID: "prod2", Name: "Cola Zero 1l", Unit: "bottle"},
	}}
	vectors := &fakeVectorStore{matches: []pinecone.VectorMatch{
		{ID: "prod1", Score: 0.91},
		{ID: "prod-gone", Score: 0.66},
		{ID: "prod2", Score: 0.42},
	}}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1", SupplierItemName: "Cola bottle"},
	}}

	pass := NewVectorPass(&fakeAI{}, vectors, products)
	if err := pass.Apply(newRun(t, doc)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	it := doc.Items[0]
	if it.Ready() {
		t.Fatal("a similarity pass must never resolve an item on its own")
	}
	// prod-gone points at a product deleted since the last sync.
	if len(it.Candidates) != 2 {
		t.Fatalf("candidates: %#v", it.Candidates)
	}
	if it.Candidates[0].ProductID != "prod1" || it.Candidates[1].ProductID != "prod2" {
		t.Fatalf("candidate order: %#v", it.Candidates)
	}
	if it.Candidates[0].Score != 0.91 {
		t.Fatalf("score not carried: %#v", it.Candidates[0])
	}
}

func TestVectorPassIgnoresNamelessItems(t *testing.T) {
	vectors := &fakeVectorStore{matches: []pinecone.VectorMatch{{ID: "prod1", Score: 0.42}}}
	products := &fakeProductRepo{catalog: []*types.Product{
		{ProductID: "prod1", Name: "Cola 1l", Unit: "bottle"},
	}}
	ai := &fakeAI{}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1"},
		{RowNumber: "2", SupplierItemName: "   "},
	}}

	pass := NewVectorPass(ai, vectors, products)
	if err := pass.Apply(newRun(t, doc)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, it := range doc.Items {
		if len(it.Candidates) != 0 {
			t.Fatalf("an item with neither name nor barcode can never gain candidates; got %d candidate(s)", len(it.Candidates))
		}
	}
	if len(ai.embedIn) != 0 {
		t.Fatalf("embedded nameless items: %#v", ai.embedIn)
	}
	if vectors.queries != 0 {
		t.Fatalf("queried the index for nameless items: %d", vectors.queries)
	}
}

func TestLemmaPassAppendsForNamedItemsOnly(t *testing.T) {
	products := &fakeProductRepo{lemmaHits: []types.ProductCandidate{
		{ProductID: "prod1", Name: "Dark Rye Bread", Unit: "pc"},
	}}
	lemmas := &fakeLemma{}
	doc := &types.InventoryDocument{Items: []*types.InventoryItem{
		{RowNumber: "1"},
		{RowNumber: "2", SupplierItemName: "Rye bread"},
	}}

	pass := NewLemmaPass(lemmas, products)
	if err := pass.Apply(newRun(t, doc)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(doc.Items[0].Candidates) != 0 {
		t.Fatalf("nameless item gained candidates: %#v", doc.Items[0].Candidates)
	}
	if len(doc.Items[1].Candidates) != 1 || doc.Items[1].Candidates[0].ProductID != "prod1" {
		t.Fatalf("named item candidates: %#v", doc.Items[1].Candidates)
	}
	if doc.Items[1].Ready() {
		t.Fatal("a similarity pass must never resolve an item on its own")
	}
	if len(lemmas.inputs) != 1 || lemmas.inputs[0] != "Rye bread" {
		t.Fatalf("lemmatized inputs: %#v", lemmas.inputs)
	}
}
