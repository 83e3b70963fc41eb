package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/store"
	"github.com/capitalize-ai/colloquy/pkg/logger"
	"github.com/capitalize-ai/colloquy/pkg/metrics"
)

const (
	defaultTitle   = "New conversation"
	maxTitleLength = 50
)

// ConversationService handles conversation and share operations.
type ConversationService struct {
	store  store.Store
	logger *logger.Logger
	now    func() time.Time
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  st,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new conversation. Missing ids, titles and timestamps are
// filled in.
func (s *ConversationService) Create(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	now := s.now()
	if conv.ID == "" {
		conv.ID = uuid.Must(uuid.NewV7()).String()
	}
	if conv.Title == "" {
		conv.Title = deriveTitle(conv.Messages)
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues("create").Inc()

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.Int("messages", len(conv.Messages)),
	)
	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// List returns conversation summaries, most recent first.
func (s *ConversationService) List(ctx context.Context) ([]model.ConversationSummary, error) {
	summaries, err := s.store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return summaries, nil
}

// Update replaces the conversation stored under id. The creation time of
// the stored copy is kept when the update carries none.
func (s *ConversationService) Update(ctx context.Context, id string, conv *model.Conversation) (*model.Conversation, error) {
	existing, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	conv.ID = id
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = existing.CreatedAt
	}
	if conv.Title == "" {
		conv.Title = existing.Title
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	conv.UpdatedAt = s.now()

	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues("update").Inc()
	return conv, nil
}

// Delete removes a conversation.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	metrics.ConversationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}

// Messages returns one page of a conversation's messages.
func (s *ConversationService) Messages(ctx context.Context, id string, offset, limit int) (*model.ListMessagesResponse, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	total := len(conv.Messages)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &model.ListMessagesResponse{
		Messages: conv.Messages[start:end],
		Total:    total,
		HasMore:  end < total,
	}, nil
}

// CreateShare publishes content under a new share id.
func (s *ConversationService) CreateShare(ctx context.Context, req *model.CreateShareRequest) (*model.Share, error) {
	share := &model.Share{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      req.Type,
		Content:   req.Content,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateShare(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues("share").Inc()
	return share, nil
}

// GetShare retrieves shared content.
func (s *ConversationService) GetShare(ctx context.Context, id string) (*model.Share, error) {
	return s.store.GetShare(ctx, id)
}

// deriveTitle uses the first user message, shortened, as a title.
func deriveTitle(messages []model.Message) string {
	for _, m := range messages {
		if m.Role != model.RoleUser || m.Content == "" {
			continue
		}
		r := []rune(m.Content)
		if len(r) <= maxTitleLength {
			return m.Content
		}
		return string(r[:maxTitleLength]) + "..."
	}
	return defaultTitle
}
