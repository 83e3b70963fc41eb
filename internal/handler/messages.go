package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/colloquy/internal/middleware"
	"github.com/capitalize-ai/colloquy/internal/service"
	"github.com/capitalize-ai/colloquy/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	conversationService *service.ConversationService
	logger              *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(convSvc *service.ConversationService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		conversationService: convSvc,
		logger:              log,
	}
}

// List handles GET /api/conversations/{id}/messages
// Supports ?offset=N&limit=M paging.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID("conversation", conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offset := intQuery(r, "offset", 0, 0, 1<<30)
	limit := intQuery(r, "limit", 50, 1, 500)

	resp, err := h.conversationService.Messages(r.Context(), conversationID, offset, limit)
	if err != nil {
		writeStoreError(w, err, "conversation not found", "failed to get messages")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
