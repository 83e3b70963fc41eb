package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/middleware"
	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/service"
	"github.com/capitalize-ai/colloquy/internal/stream"
	"github.com/capitalize-ai/colloquy/pkg/logger"
	"github.com/capitalize-ai/colloquy/pkg/metrics"
)

// ChatHandler handles the streaming chat endpoints.
type ChatHandler struct {
	chatService *service.ChatService
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatSvc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatSvc,
		logger:      log,
	}
}

// Chat handles POST /api/chat
// The response is a newline-delimited stream of message frames. Headers are
// flushed before any model call so clients can render progress immediately.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if verr := middleware.ValidateChatRequest(&req, middleware.BearerToken(r)); verr != nil {
		writeError(w, verr.Status, verr.Message)
		return
	}

	log := h.logger.WithRequest(middleware.GetCorrelationID(ctx), req.MessageID)

	messages, err := h.chatService.Stream(ctx, &req)
	if err != nil {
		log.Error("failed to start chat stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start chat stream")
		return
	}

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	fw := stream.NewWriter(w)
	fw.Flush()

	metrics.IncrementStreams()
	defer metrics.DecrementStreams()

	// The producer blocks until each message is taken, so keep reading after
	// a failed write until the run closes the channel.
	var writeErr error
	frames := 0
	for msg := range messages {
		if writeErr != nil {
			continue
		}
		if writeErr = fw.WriteMessage(msg); writeErr != nil {
			log.Warn("client write failed, draining stream", zap.Error(writeErr))
			continue
		}
		frames++
		metrics.FramesTotal.WithLabelValues(string(msg.Role)).Inc()
	}

	log.Info("chat stream closed", zap.Int("frames", frames))
}

// Replay handles GET /api/chat/threads/{parentMessageId}/frames
// It writes every journaled frame of a user message in the chat stream format.
func (h *ChatHandler) Replay(w http.ResponseWriter, r *http.Request) {
	parentMessageID := chi.URLParam(r, "parentMessageId")
	if err := middleware.ValidateID("message", parentMessageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	frames, err := h.chatService.Replay(r.Context(), parentMessageID)
	if errors.Is(err, service.ErrJournalDisabled) {
		writeError(w, http.StatusNotFound, "frame journal is disabled")
		return
	}
	if err != nil {
		h.logger.Error("failed to replay frames",
			zap.String("parent_message_id", parentMessageID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to replay frames")
		return
	}
	if len(frames) == 0 {
		writeError(w, http.StatusNotFound, "no frames recorded for message")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	fw := stream.NewWriter(w)
	for _, f := range frames {
		if err := fw.WriteFrame(f); err != nil {
			h.logger.Warn("client write failed during replay", zap.Error(err))
			return
		}
	}
}
