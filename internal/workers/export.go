package workers

import (
	"context"
	"fmt"

	"github.com/shelfsync/shelfsync-backend/internal/conversation"
	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// Exporter renders the confirmed document as a spreadsheet and returns a
// download URL.
type Exporter interface {
	Export(ctx context.Context, store *types.Store, doc *types.InventoryDocument) (string, error)
}

// ExportHandler produces the bookkeeping spreadsheet after the stock update
// and sends the user the download link.
type ExportHandler struct {
	scans    repos.ScanRepo
	stores   repos.StoreRepo
	exporter Exporter
	conv     *conversation.Manager
}

func NewExportHandler(scans repos.ScanRepo, stores repos.StoreRepo, exporter Exporter, conv *conversation.Manager) *ExportHandler {
	return &ExportHandler{scans: scans, stores: stores, exporter: exporter, conv: conv}
}

func (h *ExportHandler) Stage() string { return pipeline.ExcelExport }

func (h *ExportHandler) Run(jc *pipeline.JobContext) (pipeline.Outcome, map[string]interface{}, error) {
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

	url, err := h.exporter.Export(jc.Ctx, store, doc)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("export: %w", err)
	}

	if err := jc.SaveArtefact(store.StoreID, "export_url", map[string]string{"url": url}); err != nil {
		jc.Log.Warn("Failed to save export artefact", "error", err)
	}

	if err := h.conv.Send(jc.Ctx, store.Phone, documentID, "Your updated inventory sheet is ready: "+url); err != nil {
		jc.Log.Warn("Failed to send export link", "error", err)
	}

	return pipeline.OutcomeCompleted, map[string]interface{}{"url": url}, nil
}
