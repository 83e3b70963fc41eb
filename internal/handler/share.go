package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/middleware"
	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/service"
	"github.com/capitalize-ai/colloquy/pkg/logger"
)

// ShareHandler handles shareable content endpoints.
type ShareHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewShareHandler creates a new share handler.
func NewShareHandler(svc *service.ConversationService, log *logger.Logger) *ShareHandler {
	return &ShareHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/share
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	if len(req.Content) == 0 || !json.Valid(req.Content) {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	share, err := h.service.CreateShare(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create share", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, &model.CreateShareResponse{ShareID: share.ID})
}

// Get handles GET /api/share/{id}
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "id")
	if err := middleware.ValidateID("share", shareID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	share, err := h.service.GetShare(r.Context(), shareID)
	if err != nil {
		writeStoreError(w, err, "Content not found", "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, share)
}
