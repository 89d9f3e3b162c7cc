package workers

import (
	"encoding/json"
	"fmt"

	"github.com/shelfsync/shelfsync-backend/internal/catalog"
	"github.com/shelfsync/shelfsync-backend/internal/conversation"
	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/matching"
	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/tools"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// PreparationHandler is the heart of the pipeline: it refreshes the
// catalog, runs the matching cascade over the extracted rows, and suspends
// with the proposed resolution in the user's hands.
type PreparationHandler struct {
	log      *logger.Logger
	scans    repos.ScanRepo
	stores   repos.StoreRepo
	messages repos.MessageRepo
	syncer   *catalog.Syncer
	engine   *matching.Engine
	conv     *conversation.Manager
}

func NewPreparationHandler(baseLog *logger.Logger, scans repos.ScanRepo, stores repos.StoreRepo, messages repos.MessageRepo, syncer *catalog.Syncer, engine *matching.Engine, conv *conversation.Manager) *PreparationHandler {
	return &PreparationHandler{
		log:      baseLog.With("handler", "PreparationHandler"),
		scans:    scans,
		stores:   stores,
		messages: messages,
		syncer:   syncer,
		engine:   engine,
		conv:     conv,
	}
}

func (h *PreparationHandler) Stage() string { return pipeline.UpdatePreparation }

func (h *PreparationHandler) Run(jc *pipeline.JobContext) (pipeline.Outcome, map[string]interface{}, error) {
	documentID := jc.Job.DocumentID

	store, err := h.stores.GetByDocumentID(jc.Ctx, nil, documentID)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}
	if store == nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("store not found for document: %s", documentID)
	}

	if err := h.syncer.Sync(jc.Ctx, store.StoreID, false); err != nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("catalog sync: %w", err)
	}

	doc, err := h.extractedDocument(jc, documentID)
	if err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}

	sink := func(key string, data interface{}) error {
		return jc.SaveArtefact(store.StoreID, key, data)
	}
	if err := h.engine.Resolve(jc.Ctx, store.StoreID, documentID, doc, sink); err != nil {
		return pipeline.OutcomeCompleted, nil, fmt.Errorf("matching: %w", err)
	}

	if err := jc.SetPayload(doc); err != nil {
		return pipeline.OutcomeCompleted, nil, err
	}

	summary := tools.Summary(doc)
	h.recordMessage(jc, store, summary)
	if err := h.conv.Send(jc.Ctx, store.Phone, documentID, summary); err != nil {
		jc.Log.Warn("Failed to send resolution summary", "error", err)
	}

	return pipeline.OutcomeSuspended, nil, nil
}

func (h *PreparationHandler) extractedDocument(jc *pipeline.JobContext, documentID string) (*types.InventoryDocument, error) {
	record, err := h.scans.GetStageRecord(jc.Ctx, nil, documentID, pipeline.OCRExtraction)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("no extraction record for document %s", documentID)
	}
	var payload struct {
		Document *types.InventoryDocument `json:"document"`
	}
	if err := json.Unmarshal(record.Record, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal extraction record: %w", err)
	}
	if payload.Document == nil || len(payload.Document.Items) == 0 {
		return nil, fmt.Errorf("extraction record for document %s has no rows", documentID)
	}
	return payload.Document, nil
}

func (h *PreparationHandler) recordMessage(jc *pipeline.JobContext, store *types.Store, text string) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return
	}
	if err := h.messages.Create(jc.Ctx, nil, &types.Message{
		StoreID: store.StoreID,
		Phone:   store.Phone,
		Role:    "assistant",
		Content: content,
	}); err != nil {
		jc.Log.Warn("Failed to record outbound message", "error", err)
	}
}
