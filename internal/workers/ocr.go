package workers

import (
	"context"
	"fmt"

	"github.com/shelfsync/shelfsync-backend/internal/conversation"
	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// Extractor turns a scanned document into structured invoice rows.
type Extractor interface {
	Extract(ctx context.Context, scan *types.Scan) (*types.InventoryDocument, error)
}

// OCRHandler extracts the document's rows, records them on the stage
// record, and suspends for the user to review the raw extraction. The agent
// advances the stage once the user signs off or corrects the rows.
type OCRHandler struct {
	scans     repos.ScanRepo
	stores    repos.StoreRepo
	extractor Extractor
	conv      *conversation.Manager
}

func NewOCRHandler(scans repos.ScanRepo, stores repos.StoreRepo, extractor Extractor, conv *conversation.Manager) *OCRHandler {
	return &OCRHandler{scans: scans, stores: stores, extractor: extractor, conv: conv}
}

func (h *OCRHandler) Stage() string { return pipeline.OCRExtraction }

func (h *OCRHandler) Run(jc *pipeline.JobContext) (pipeline.Outcome, map[string]interface{}, error) {
	documentID := jc.Job.DocumentID

	scan, err := h.scans.GetByID(jc.Ctx, nil, documentID)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}
	if scan == nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("scan not found: %s", documentID)
	}
	store, err := h.stores.GetByDocumentID(jc.Ctx, nil, documentID)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}
	if store == nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("store not found for document: %s", documentID)
	}

	doc, err := h.extractor.Extract(jc.Ctx, scan)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("ocr extraction: %w", err)
	}
	if len(doc.Items) == 0 {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("ocr extraction found no rows in document %s", documentID)
	}

	if err := jc.SaveArtefact(store.StoreID, "ocr_output", doc); err != nil {
		jc.Log.Warn("Failed to save OCR artefact", "error", err)
	}

	// The extracted document is persisted on the stage record so the
	// preparation stage reads a stable copy even after this job completes.
	if err := h.scans.RecordProgress(jc.Ctx, nil, documentID, jc.Job.Stage, "extracted", map[string]interface{}{
		"document": doc,
	}); err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}
	if err := jc.SetPayload(doc); err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}

	msg := fmt.Sprintf("I read %d rows from %s. Reply once you have checked the extraction looks complete.", len(doc.Items), scan.Filename)
	if err := h.conv.Send(jc.Ctx, store.Phone, documentID, msg); err != nil {
		jc.Log.Warn("Failed to notify user about extraction", "error", err)
	}

	return pipeline.OutcomeSuspended, nil, nil
}
