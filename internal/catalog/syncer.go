package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/platform/lemma"
	"github.com/shelfsync/shelfsync-backend/internal/platform/openai"
	"github.com/shelfsync/shelfsync-backend/internal/platform/pinecone"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

const defaultCooldownMinutes = 60

// SourceItem is one catalog entry as the store's inventory system reports
// it. BarcodeFields carries the raw fields that may contain a GTIN/UPC
// (barcode field, external product id); barcodes are mined out of them.
type SourceItem struct {
	ProductID     string
	Name          string
	Unit          string
	BarcodeFields []string
}

// Source fetches the live catalog from the store's inventory system.
type Source interface {
	FetchCatalog(ctx context.Context, store *types.Store) ([]SourceItem, error)
}

// Syncer mirrors a store's catalog into the product table and the vector
// index. Embedding and lemmatization only run for entries whose fingerprint
// changed, which keeps routine syncs cheap.
type Syncer struct {
	log      *logger.Logger
	stores   repos.StoreRepo
	products repos.ProductRepo
	source   Source
	ai       openai.Client
	lemmas   lemma.Client
	vectors  pinecone.VectorStore
}

func NewSyncer(baseLog *logger.Logger, stores repos.StoreRepo, products repos.ProductRepo, source Source, ai openai.Client, lemmas lemma.Client, vectors pinecone.VectorStore) *Syncer {
	return &Syncer{
		log:      baseLog.With("component", "CatalogSyncer"),
		stores:   stores,
		products: products,
		source:   source,
		ai:       ai,
		lemmas:   lemmas,
		vectors:  vectors,
	}
}

// Sync refreshes the store's catalog unless the last sync is still within
// the cooldown window. force bypasses the cooldown.
func (s *Syncer) Sync(ctx context.Context, storeID string, force bool) error {
	store, err := s.stores.GetByStoreID(ctx, nil, storeID)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("store not found: %s", storeID)
	}

	if !force && withinCooldown(store, time.Now()) {
		s.log.Info("Catalog sync skipped, still within cooldown", "store_id", storeID)
		return nil
	}

	incoming, err := s.source.FetchCatalog(ctx, store)
	if err != nil {
		return fmt.Errorf("fetch catalog for storeId %s: %w", storeID, err)
	}

	existing, err := s.products.GetByStoreID(ctx, nil, storeID)
	if err != nil {
		return err
	}
	fingerprints := make(map[string]string, len(existing))
	for _, p := range existing {
		fingerprints[p.ProductID] = p.Fingerprint
	}

	changed, removed := diffCatalog(fingerprints, incoming)
	s.log.Info("Catalog diff computed",
		"store_id", storeID,
		"total", len(incoming),
		"changed", len(changed),
		"removed", len(removed),
	)

	if len(changed) > 0 {
		if err := s.applyChanged(ctx, storeID, changed); err != nil {
			return err
		}
	}
	if len(removed) > 0 {
		if err := s.products.DeleteByProductIDs(ctx, nil, storeID, removed); err != nil {
			return err
		}
		if err := s.vectors.DeleteIDs(ctx, storeID, removed); err != nil {
			return err
		}
	}

	now := time.Now()
	return s.stores.UpdateFields(ctx, nil, storeID, map[string]interface{}{
		"catalog_last_sync_at": now,
	})
}

func (s *Syncer) applyChanged(ctx context.Context, storeID string, changed []SourceItem) error {
	names := make([]string, len(changed))
	for i, item := range changed {
		names[i] = item.Name
	}

	embeddings, err := s.ai.Embed(ctx, names)
	if err != nil {
		return err
	}
	lemmaLists, err := s.lemmas.Lemmatize(ctx, names)
	if err != nil {
		return err
	}

	rows := make([]*types.Product, 0, len(changed))
	vectors := make([]pinecone.Vector, 0, len(changed))
	for i, item := range changed {
		barcodesJSON, err := json.Marshal(ExtractBarcodes(item.BarcodeFields))
		if err != nil {
			return err
		}
		lemmasJSON, err := json.Marshal(lemmaLists[i])
		if err != nil {
			return err
		}
		rows = append(rows, &types.Product{
			StoreID:     storeID,
			ProductID:   item.ProductID,
			Name:        item.Name,
			Unit:        item.Unit,
			Barcodes:    datatypes.JSON(barcodesJSON),
			NameLemmas:  datatypes.JSON(lemmasJSON),
			Fingerprint: Fingerprint(item),
		})
		vectors = append(vectors, pinecone.Vector{
			ID:     item.ProductID,
			Values: embeddings[i],
		})
	}

	if err := s.products.Upsert(ctx, nil, rows); err != nil {
		return err
	}
	return s.vectors.Upsert(ctx, storeID, vectors)
}

func withinCooldown(store *types.Store, now time.Time) bool {
	if store.CatalogLastSyncAt == nil {
		return false
	}
	cooldown := store.CatalogSyncCooldown
	if cooldown <= 0 {
		cooldown = defaultCooldownMinutes
	}
	return now.Sub(*store.CatalogLastSyncAt) < time.Duration(cooldown)*time.Minute
}

// diffCatalog splits the incoming catalog into entries that need a write
// (new or fingerprint changed) and the product ids no longer present.
func diffCatalog(existing map[string]string, incoming []SourceItem) (changed []SourceItem, removed []string) {
	seen := make(map[string]struct{}, len(incoming))
	for _, item := range incoming {
		seen[item.ProductID] = struct{}{}
		if existing[item.ProductID] != Fingerprint(item) {
			changed = append(changed, item)
		}
	}
	for productID := range existing {
		if _, ok := seen[productID]; !ok {
			removed = append(removed, productID)
		}
	}
	return changed, removed
}

// Fingerprint hashes the matchable fields of a catalog entry. Any change to
// name, unit or barcodes changes the fingerprint and forces a re-write.
func Fingerprint(item SourceItem) string {
	parts := append([]string{item.ProductID, item.Name, item.Unit}, ExtractBarcodes(item.BarcodeFields)...)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// ExtractBarcodes pulls digit runs of at least seven characters out of the
// candidate fields. Source systems report codes inconsistently (barcode
// column, external id, sometimes with separators), so every run counts.
func ExtractBarcodes(fields []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, field := range fields {
		for _, code := range digitRuns(field) {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

func digitRuns(s string) []string {
	var out []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= 7 {
			out = append(out, s[start:end])
		}
		start = -1
	}
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(s))
	return out
}
