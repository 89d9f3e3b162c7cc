package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shelfsync/shelfsync-backend/internal/agent"
	"github.com/shelfsync/shelfsync-backend/internal/services"
)

// WebhookHandler receives callbacks from the messaging gateway: document
// uploads and plain text messages.
type WebhookHandler struct {
	intake services.IntakeService
	agent  agent.Agent
}

func NewWebhookHandler(intake services.IntakeService, ag agent.Agent) *WebhookHandler {
	return &WebhookHandler{intake: intake, agent: ag}
}

// POST /webhooks/documents
func (h *WebhookHandler) IncomingDocument(c *gin.Context) {
	var in services.IncomingScan
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document", err)
		return
	}
	if err := h.intake.Onboard(c.Request.Context(), in); err != nil {
		RespondDomainError(c, "onboard_failed", err)
		return
	}
	RespondOK(c, gin.H{"document_id": in.DocumentID})
}

type incomingMessage struct {
	Phone string `json:"phone" binding:"required"`
	Text  string `json:"text" binding:"required"`
}

// POST /webhooks/messages
func (h *WebhookHandler) IncomingMessage(c *gin.Context) {
	var in incomingMessage
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_message", err)
		return
	}
	if err := h.agent.Process(c.Request.Context(), in.Phone, in.Text); err != nil {
		RespondError(c, http.StatusBadRequest, "message_failed", err)
		return
	}
	RespondOK(c, gin.H{"status": "processed"})
}
