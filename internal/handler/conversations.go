package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/middleware"
	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/service"
	"github.com/capitalize-ai/colloquy/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var conv model.Conversation
	if err := decodeJSON(w, r, &conv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if conv.ID != "" {
		if err := middleware.ValidateID("conversation", conv.ID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := middleware.ValidateTitle(conv.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), &conv)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// Get handles GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID("conversation", conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Get(r.Context(), conversationID)
	if err != nil {
		writeStoreError(w, err, "conversation not found", "failed to get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Update handles PUT /api/conversations/{id}
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID("conversation", conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var conv model.Conversation
	if err := decodeJSON(w, r, &conv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if conv.ID != "" && conv.ID != conversationID {
		writeError(w, http.StatusBadRequest, "conversation ID does not match path")
		return
	}
	if err := middleware.ValidateTitle(conv.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), conversationID, &conv)
	if err != nil {
		h.logger.Debug("conversation update failed", zap.String("conversation_id", conversationID), zap.Error(err))
		writeStoreError(w, err, "conversation not found", "failed to update conversation")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID("conversation", conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), conversationID); err != nil {
		writeStoreError(w, err, "conversation not found", "failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
