package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/quantity"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// StockUpdate is one quantity delta to apply in the store's system.
type StockUpdate struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
}

// Applier writes stock deltas into the store's inventory system.
type Applier interface {
	ApplyStockUpdates(ctx context.Context, store *types.Store, updates []StockUpdate) error
}

// UpdateHandler applies the confirmed document to the store's stock. This is
// the one stage with no human in the loop: by the time it runs, every row
// has been confirmed, so it completes synchronously.
type UpdateHandler struct {
	scans   repos.ScanRepo
	stores  repos.StoreRepo
	applier Applier
}

func NewUpdateHandler(scans repos.ScanRepo, stores repos.StoreRepo, applier Applier) *UpdateHandler {
	return &UpdateHandler{scans: scans, stores: stores, applier: applier}
}

func (h *UpdateHandler) Stage() string { return pipeline.InventoryUpdate }

func (h *UpdateHandler) Run(jc *pipeline.JobContext) (pipeline.Outcome, map[string]interface{}, error) {
	documentID := jc.Job.DocumentID

	store, err := h.stores.GetByDocumentID(jc.Ctx, nil, documentID)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}
	if store == nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("store not found for document: %s", documentID)
	}

	doc, err := finalizedDocument(jc.Ctx, h.scans, documentID)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}

	updates, err := buildStockUpdates(doc)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}

	if err := h.applier.ApplyStockUpdates(jc.Ctx, store, updates); err != nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("apply stock updates: %w", err)
	}

	if err := jc.SaveArtefact(store.StoreID, "applied_updates", updates); err != nil {
		jc.Log.Warn("Failed to save update artefact", "error", err)
	}

	return pipeline.OutcomeCompleted, map[string]interface{}{
		"updated": len(updates),
		"skipped": len(doc.Items) - len(updates),
	}, nil
}

// buildStockUpdates turns confirmed rows into deltas. A learned conversion
// expression overrides the raw supplier quantity entirely.
func buildStockUpdates(doc *types.InventoryDocument) ([]StockUpdate, error) {
	updates := make([]StockUpdate, 0, len(doc.Items))
	for _, it := range doc.Items {
		if it.MatchType == types.MatchSkip {
			continue
		}
		if it.InventoryItemID == "" {
			return nil, fmt.Errorf("row %s is confirmed but carries no product id", it.RowNumber)
		}

		var qty float64
		var err error
		switch {
		case it.QuantityExpression != "":
			qty, err = quantity.Evaluate(it.QuantityExpression)
		case quantity.Valid(it.Quantity):
			qty, err = quantity.Evaluate(it.Quantity)
		default:
			qty, err = strconv.ParseFloat(strings.TrimSpace(it.Quantity), 64)
		}
		if err != nil {
			return nil, fmt.Errorf("row %s quantity: %w", it.RowNumber, err)
		}

		updates = append(updates, StockUpdate{
			ProductID: it.InventoryItemID,
			Name:      it.InventoryItemName,
			Quantity:  qty,
		})
	}
	return updates, nil
}

// finalizedDocument reads the confirmed document off the preparation
// stage's record.
func finalizedDocument(ctx context.Context, scans repos.ScanRepo, documentID string) (*types.InventoryDocument, error) {
	record, err := scans.GetStageRecord(ctx, nil, documentID, pipeline.UpdatePreparation)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("no preparation record for document %s", documentID)
	}
	var payload struct {
		Document *types.InventoryDocument `json:"document"`
	}
	if err := json.Unmarshal(record.Record, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal preparation record: %w", err)
	}
	if payload.Document == nil {
		return nil, fmt.Errorf("preparation record for document %s has no confirmed rows", documentID)
	}
	return payload.Document, nil
}
