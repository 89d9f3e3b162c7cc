package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/shelfsync/shelfsync-backend/internal/catalog"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

type StoreHandler struct {
	stores          repos.StoreRepo
	syncer          *catalog.Syncer
	defaultPipeline []string
}

func NewStoreHandler(stores repos.StoreRepo, syncer *catalog.Syncer, defaultPipeline []string) *StoreHandler {
	return &StoreHandler{stores: stores, syncer: syncer, defaultPipeline: defaultPipeline}
}

type createStoreRequest struct {
	StoreID             string   `json:"store_id" binding:"required"`
	Phone               string   `json:"phone" binding:"required"`
	System              string   `json:"system" binding:"required"`
	Pipeline            []string `json:"pipeline"`
	CatalogSyncCooldown int      `json:"catalog_sync_cooldown"`
}

// POST /api/stores
func (h *StoreHandler) Create(c *gin.Context) {
	var in createStoreRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_store", err)
		return
	}

	stages := in.Pipeline
	if len(stages) == 0 {
		stages = h.defaultPipeline
	}
	pipelineJSON, err := json.Marshal(stages)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_pipeline", err)
		return
	}

	store, err := h.stores.Create(c.Request.Context(), nil, &types.Store{
		StoreID:             in.StoreID,
		Phone:               in.Phone,
		System:              in.System,
		Pipeline:            datatypes.JSON(pipelineJSON),
		CatalogSyncCooldown: in.CatalogSyncCooldown,
	})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "store_create_failed", err)
		return
	}

	RespondOK(c, gin.H{"store": store})
}

// POST /api/stores/:id/catalog-sync
func (h *StoreHandler) SyncCatalog(c *gin.Context) {
	storeID := c.Param("id")
	force := c.Query("force") == "true"

	if err := h.syncer.Sync(c.Request.Context(), storeID, force); err != nil {
		RespondError(c, http.StatusBadRequest, "catalog_sync_failed", err)
		return
	}
	RespondOK(c, gin.H{"store_id": storeID, "forced": force})
}
