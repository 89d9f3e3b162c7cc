package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shelfsync/shelfsync-backend/internal/repos"
)

type DocumentHandler struct {
	stores    repos.StoreRepo
	scans     repos.ScanRepo
	jobs      repos.StageJobRepo
	artefacts repos.ArtefactRepo
}

func NewDocumentHandler(stores repos.StoreRepo, scans repos.ScanRepo, jobs repos.StageJobRepo, artefacts repos.ArtefactRepo) *DocumentHandler {
	return &DocumentHandler{stores: stores, scans: scans, jobs: jobs, artefacts: artefacts}
}

// GET /api/documents/:id/status
func (h *DocumentHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := c.Param("id")

	store, err := h.stores.GetByDocumentID(ctx, nil, documentID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "status_failed", err)
		return
	}
	if store == nil {
		RespondError(c, http.StatusNotFound, "document_not_found", fmt.Errorf("document %s not found", documentID))
		return
	}

	stages, err := h.stores.PipelineFor(ctx, nil, store.StoreID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "status_failed", err)
		return
	}

	progress := make([]gin.H, 0, len(stages))
	for _, stage := range stages {
		entry := gin.H{"stage": stage}
		record, err := h.scans.GetStageRecord(ctx, nil, documentID, stage)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "status_failed", err)
			return
		}
		if record != nil {
			var payload map[string]interface{}
			if err := json.Unmarshal(record.Record, &payload); err == nil {
				entry["record"] = payload
			}
		}
		progress = append(progress, entry)
	}

	active, err := h.jobs.ActiveByDocument(ctx, nil, documentID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "status_failed", err)
		return
	}

	out := gin.H{
		"document_id": documentID,
		"store_id":    store.StoreID,
		"stages":      progress,
	}
	if active != nil {
		out["active_stage"] = active.Stage
	}
	RespondOK(c, out)
}

// GET /api/documents/:id/artefacts
func (h *DocumentHandler) Artefacts(c *gin.Context) {
	documentID := c.Param("id")
	artefacts, err := h.artefacts.ListByDocument(c.Request.Context(), nil, documentID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "artefacts_failed", err)
		return
	}
	RespondOK(c, gin.H{"document_id": documentID, "artefacts": artefacts})
}
