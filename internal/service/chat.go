// Package service provides business logic for the chat platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/engine"
	"github.com/capitalize-ai/colloquy/internal/llm"
	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/pkg/logger"
	"github.com/capitalize-ai/colloquy/pkg/metrics"
)

// ErrJournalDisabled is returned by Replay when no frame journal is configured.
var ErrJournalDisabled = errors.New("frame journal is disabled")

const journalPublishTimeout = 2 * time.Second

// GatewayFactory builds the model gateway for one request's credentials.
type GatewayFactory func(creds llm.Credentials) (engine.Completer, error)

// FrameJournal records frames for later replay.
type FrameJournal interface {
	PublishFrame(ctx context.Context, parentMessageID string, frame model.Frame) (uint64, error)
	Frames(ctx context.Context, parentMessageID string) ([]model.Frame, error)
}

// ChatConfig holds the run settings of the chat service.
type ChatConfig struct {
	Engine  engine.Config
	Timeout time.Duration
}

// ChatService runs review orchestrations and exposes them as message channels.
type ChatService struct {
	newGateway GatewayFactory
	cfg        ChatConfig
	journal    FrameJournal
	logger     *logger.Logger
}

// NewChatService creates a chat service. journal may be nil.
func NewChatService(factory GatewayFactory, cfg ChatConfig, journal FrameJournal, log *logger.Logger) *ChatService {
	return &ChatService{
		newGateway: factory,
		cfg:        cfg,
		journal:    journal,
		logger:     log,
	}
}

// NewGatewayFactory returns a factory building llm gateways with opts.
func NewGatewayFactory(opts llm.Options) GatewayFactory {
	return func(creds llm.Credentials) (engine.Completer, error) {
		return llm.NewGateway(creds, opts)
	}
}

// Stream starts a review run for req and returns the channel its messages
// arrive on. The channel is always closed when the run ends, whether it
// succeeded, failed or timed out; failures end with one isError message.
// The caller must drain the channel.
func (s *ChatService) Stream(ctx context.Context, req *model.ChatRequest) (<-chan model.Message, error) {
	gw, err := s.newGateway(llm.Credentials{OpenAIKey: req.APIKey, AnthropicKey: req.AnthropicKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create model gateway: %w", err)
	}

	if req.MessageID == "" {
		req.MessageID = uuid.Must(uuid.NewV7()).String()
	}

	in := engine.Input{
		Message:      req.Message,
		MessageID:    req.MessageID,
		History:      req.ChatHistory,
		ActiveAgents: req.ActiveAgents,
		Agents:       req.Agents,
	}
	log := s.logger.With(
		zap.String("message_id", req.MessageID),
		zap.Int("active_agents", len(req.ActiveAgents)),
	)
	eng := engine.New(gw, s.cfg.Engine, log)

	out := make(chan model.Message)
	go s.run(ctx, eng, in, out, log)
	return out, nil
}

func (s *ChatService) run(ctx context.Context, eng *engine.Engine, in engine.Input, out chan<- model.Message, log *logger.Logger) {
	defer close(out)
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	emitted := make(chan model.Message)
	done := make(chan error, 1)
	go func() {
		done <- eng.Run(runCtx, in, emitted)
		close(emitted)
	}()

	for msg := range emitted {
		s.record(ctx, in.MessageID, msg, log)
		send(ctx, out, msg)
	}
	err := <-done

	outcome := "success"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		outcome = "cancelled"
		log.Info("client went away, review run stopped", zap.Error(err))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome = "timeout"
		log.Warn("review run timed out", zap.Duration("timeout", s.cfg.Timeout))
		s.fail(ctx, in.MessageID, out, fmt.Sprintf(
			"Request timed out after %s. Please try again with fewer agents.", s.cfg.Timeout), log)
	default:
		outcome = "error"
		log.Error("review run failed", zap.Error(err))
		s.fail(ctx, in.MessageID, out, err.Error(), log)
	}

	metrics.OrchestrationsTotal.WithLabelValues(outcome).Inc()
	log.Info("review run finished",
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	)
}

// fail emits the terminal error message of a run.
func (s *ChatService) fail(ctx context.Context, messageID string, out chan<- model.Message, content string, log *logger.Logger) {
	msg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Content:   content,
		Role:      model.RoleAssistant,
		Timestamp: time.Now().UTC(),
		IsError:   true,
	}
	s.record(ctx, messageID, msg, log)
	send(ctx, out, msg)
}

// record journals a message. Journal failures never affect the stream.
func (s *ChatService) record(ctx context.Context, messageID string, msg model.Message, log *logger.Logger) {
	if s.journal == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalPublishTimeout)
	defer cancel()

	if _, err := s.journal.PublishFrame(pubCtx, messageID, model.NewMessageFrame(msg)); err != nil {
		metrics.JournalPublishFailures.Inc()
		log.Warn("failed to journal frame", zap.String("frame_id", msg.ID), zap.Error(err))
	}
}

// send forwards msg unless the consumer's context is gone.
func send(ctx context.Context, out chan<- model.Message, msg model.Message) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

// Replay returns the journaled frames of one user message.
func (s *ChatService) Replay(ctx context.Context, parentMessageID string) ([]model.Frame, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	frames, err := s.journal.Frames(ctx, parentMessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to replay frames: %w", err)
	}
	return frames, nil
}
