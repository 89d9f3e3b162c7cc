package matching

import (
	"context"
	"strings"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// ArtefactSink receives the audit blobs the AI passes emit. The pipeline's
// job context satisfies this.
type ArtefactSink func(key string, data interface{}) error

// Run carries one document through the pass cascade.
type Run struct {
	Ctx        context.Context
	StoreID    string
	DocumentID string
	Doc        *types.InventoryDocument
	Log        *logger.Logger

	artefacts ArtefactSink
}

// SaveArtefact is best-effort; a failed audit write never fails the run.
func (r *Run) SaveArtefact(key string, data interface{}) {
	if r.artefacts == nil {
		return
	}
	if err := r.artefacts(key, data); err != nil {
		r.Log.Warn("Failed to save matching artefact", "key", key, "error", err)
	}
}

// Pass attempts to resolve (or gather candidates for) the document's
// unresolved items. Passes mutate items in place and must leave resolved
// items alone.
type Pass interface {
	Name() string
	Apply(run *Run) error
}

// Engine resolves a supplier document against a store's catalog by running
// a fixed cascade of passes, cheapest first. The cascade short-circuits as
// soon as every item carries a terminal match type.
type Engine struct {
	log    *logger.Logger
	passes []Pass
}

func NewEngine(baseLog *logger.Logger, passes ...Pass) *Engine {
	return &Engine{
		log:    baseLog.With("component", "MatchingEngine"),
		passes: passes,
	}
}

// Resolve runs the cascade. A pass error aborts the run; partial progress
// made by earlier passes stays on the document.
func (e *Engine) Resolve(ctx context.Context, storeID, documentID string, doc *types.InventoryDocument, artefacts ArtefactSink) error {
	run := &Run{
		Ctx:        ctx,
		StoreID:    storeID,
		DocumentID: documentID,
		Doc:        doc,
		Log:        e.log.With("document_id", documentID, "store_id", storeID),
		artefacts:  artefacts,
	}

	for _, pass := range e.passes {
		if doc.Ready() {
			break
		}
		unresolved := len(doc.Unresolved())
		run.Log.Info("Running matching pass", "pass", pass.Name(), "unresolved", unresolved)
		if err := pass.Apply(run); err != nil {
			return err
		}
	}

	run.Log.Info("Matching cascade finished",
		"items", len(doc.Items),
		"unresolved", len(doc.Unresolved()),
	)
	return nil
}

// withNames drops items without a supplier name. Similarity passes have
// nothing to search on for those, so an item with neither name nor barcode
// never gains candidates and leaves every pass unresolved.
func withNames(items []*types.InventoryItem) []*types.InventoryItem {
	out := make([]*types.InventoryItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.SupplierItemName) == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}

// dedupeCandidates collapses repeated product ids, keeping the first
// occurrence (passes append best-first).
func dedupeCandidates(cands []types.ProductCandidate) []types.ProductCandidate {
	seen := make(map[string]struct{}, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if _, ok := seen[c.ProductID]; ok {
			continue
		}
		seen[c.ProductID] = struct{}{}
		out = append(out, c)
	}
	return out
}
