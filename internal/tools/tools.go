// Package tools exposes the operations the conversational agent may invoke
// on behalf of a user. Every tool converts failures into a Result the model
// can read back to the user; errors never escape a tool call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/shelfsync/shelfsync-backend/internal/conversation"
	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/quantity"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// SkipProductID marks a row as intentionally unmatched.
const SkipProductID = "skip"

// Result is what a tool call reports back into the conversation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func success(format string, args ...interface{}) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func failure(err error) Result {
	return Result{Success: false, Message: err.Error()}
}

type Toolset struct {
	log      *logger.Logger
	orch     *pipeline.Orchestrator
	jobs     repos.StageJobRepo
	stores   repos.StoreRepo
	products repos.ProductRepo
	resolved repos.ResolvedItemRepo
	conv     *conversation.Manager
}

func NewToolset(baseLog *logger.Logger, orch *pipeline.Orchestrator, jobs repos.StageJobRepo, stores repos.StoreRepo, products repos.ProductRepo, resolved repos.ResolvedItemRepo, conv *conversation.Manager) *Toolset {
	return &Toolset{
		log:      baseLog.With("component", "Toolset"),
		orch:     orch,
		jobs:     jobs,
		stores:   stores,
		products: products,
		resolved: resolved,
		conv:     conv,
	}
}

// AdvancePipeline completes the document's suspended stage and moves it on.
func (t *Toolset) AdvancePipeline(ctx context.Context, documentID string) Result {
	next, err := t.orch.Advance(ctx, documentID, nil)
	if err != nil {
		return failure(err)
	}
	if next == "" {
		return success("document %s has completed its pipeline", documentID)
	}
	return success("document %s advanced to %s", documentID, next)
}

// ApplyRowCorrection rewrites one row's resolution on the suspended job's
// working payload. productID may be a catalog id or "skip". An optional
// quantity expression records how supplier quantity converts to stock units.
func (t *Toolset) ApplyRowCorrection(ctx context.Context, documentID, rowNumber, productID, quantityExpression string) Result {
	job, doc, err := t.loadDocument(ctx, documentID)
	if err != nil {
		return failure(err)
	}

	item := findRow(doc, rowNumber)
	if item == nil {
		return failure(&ItemNotFoundError{DocumentID: documentID, RowNumber: rowNumber})
	}

	if quantityExpression != "" && !quantity.Valid(quantityExpression) {
		return failure(fmt.Errorf("invalid quantity expression %q, expected e.g. \"12 * 0.5\"", quantityExpression))
	}

	if strings.EqualFold(productID, SkipProductID) {
		item.InventoryItemID = ""
		item.InventoryItemName = ""
		item.InventoryItemUnit = ""
		item.MatchType = types.MatchSkip
		item.Candidates = nil
	} else {
		store, err := t.stores.GetByDocumentID(ctx, nil, documentID)
		if err != nil {
			return failure(err)
		}
		if store == nil {
			return failure(fmt.Errorf("store not found for document: %s", documentID))
		}
		product, err := t.products.GetByProductID(ctx, nil, store.StoreID, productID)
		if err != nil {
			return failure(err)
		}
		if product == nil {
			return failure(&ProductNotFoundError{StoreID: store.StoreID, ProductID: productID})
		}
		item.Resolve(product.ProductID, product.Name, product.Unit, types.MatchManual)
	}
	if quantityExpression != "" {
		item.QuantityExpression = quantityExpression
	}

	if err := t.saveDocument(ctx, job, doc); err != nil {
		return failure(err)
	}
	if item.MatchType == types.MatchSkip {
		return success("row %s will be skipped", rowNumber)
	}
	return success("row %s set to %s", rowNumber, item.InventoryItemName)
}

// RequestConfirmation sends the user a resolution summary for sign-off.
func (t *Toolset) RequestConfirmation(ctx context.Context, user, documentID string) Result {
	_, doc, err := t.loadDocument(ctx, documentID)
	if err != nil {
		return failure(err)
	}
	if err := t.conv.Send(ctx, user, documentID, Summary(doc)); err != nil {
		return failure(err)
	}
	return success("confirmation request sent")
}

// FinalizeInventoryUpdate records the document's decisions into the match
// history and advances it to the update stage. It refuses while any row is
// still unresolved.
func (t *Toolset) FinalizeInventoryUpdate(ctx context.Context, documentID string) Result {
	_, doc, err := t.loadDocument(ctx, documentID)
	if err != nil {
		return failure(err)
	}
	if unresolved := doc.Unresolved(); len(unresolved) > 0 {
		return failure(fmt.Errorf("%d rows are still unresolved, resolve or skip them first", len(unresolved)))
	}

	store, err := t.stores.GetByDocumentID(ctx, nil, documentID)
	if err != nil {
		return failure(err)
	}
	if store == nil {
		return failure(fmt.Errorf("store not found for document: %s", documentID))
	}

	var history []*types.ResolvedItem
	for _, it := range doc.Items {
		history = append(history, &types.ResolvedItem{
			StoreID:            store.StoreID,
			DocumentID:         documentID,
			SupplierItemName:   it.SupplierItemName,
			InventoryItemID:    it.InventoryItemID,
			InventoryItemName:  it.InventoryItemName,
			InventoryItemUnit:  it.InventoryItemUnit,
			MatchType:          string(it.MatchType),
			QuantityExpression: it.QuantityExpression,
		})
	}
	if err := t.resolved.Create(ctx, nil, history); err != nil {
		return failure(err)
	}

	// The finalized document rides along in the stage record so the update
	// stage works from the confirmed state, not the mutable job payload.
	next, err := t.orch.Advance(ctx, documentID, map[string]interface{}{
		"document": doc,
		"items":    len(doc.Items),
	})
	if err != nil {
		return failure(err)
	}
	if next == "" {
		return success("inventory update finalized, pipeline complete")
	}
	return success("inventory update finalized, document moved to %s", next)
}

// ShiftConversationContext arms a context shift after the document's next
// outbound message, so a closing summary still reaches the user under the
// old topic.
func (t *Toolset) ShiftConversationContext(ctx context.Context, user, documentID string) Result {
	t.conv.ScheduleContextShift(user, documentID)
	return success("conversation will move to the next document after the close-out message")
}

func (t *Toolset) loadDocument(ctx context.Context, documentID string) (*types.StageJob, *types.InventoryDocument, error) {
	job, err := t.jobs.ActiveByDocument(ctx, nil, documentID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, &pipeline.NoActiveJobError{DocumentID: documentID}
	}
	var doc types.InventoryDocument
	if len(job.Payload) == 0 {
		return nil, nil, fmt.Errorf("job %s carries no working document", job.ID)
	}
	if err := json.Unmarshal(job.Payload, &doc); err != nil {
		return nil, nil, fmt.Errorf("unmarshal working document: %w", err)
	}
	return job, &doc, nil
}

func (t *Toolset) saveDocument(ctx context.Context, job *types.StageJob, doc *types.InventoryDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return t.jobs.UpdatePayload(ctx, nil, job.ID, datatypes.JSON(raw))
}

func findRow(doc *types.InventoryDocument, rowNumber string) *types.InventoryItem {
	for _, it := range doc.Items {
		if it.RowNumber == rowNumber {
			return it
		}
	}
	return nil
}

// Summary renders the human-readable resolution overview sent for sign-off.
func Summary(doc *types.InventoryDocument) string {
	var matched, skipped int
	var open []string
	for _, it := range doc.Items {
		switch {
		case it.MatchType == types.MatchSkip:
			skipped++
		case it.Ready():
			matched++
		default:
			open = append(open, fmt.Sprintf("  row %s: %s", it.RowNumber, it.SupplierItemName))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Resolution summary: %d matched, %d skipped, %d open of %d rows.",
		matched, skipped, len(open), len(doc.Items))
	if len(open) > 0 {
		b.WriteString("\nStill open:\n")
		b.WriteString(strings.Join(open, "\n"))
	} else {
		b.WriteString("\nReply to confirm the update or correct individual rows.")
	}
	return b.String()
}
