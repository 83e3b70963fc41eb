package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	conversations map[string]*model.Conversation
	shares        map[string]*model.Share
	mu            sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		shares:        make(map[string]*model.Share),
	}
}

// CreateConversation stores a new conversation.
func (s *MemoryStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}
	s.conversations[conv.ID] = copyConversation(conv)
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	conv, exists := s.conversations[id]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// UpdateConversation replaces a conversation.
func (s *MemoryStore) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; !exists {
		return ErrNotFound
	}
	s.conversations[conv.ID] = copyConversation(conv)
	return nil
}

// DeleteConversation removes a conversation.
func (s *MemoryStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// ListConversations returns summaries of all conversations.
func (s *MemoryStore) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]model.ConversationSummary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		summaries = append(summaries, conv.Summary())
	}
	sortSummaries(summaries)
	return summaries, nil
}

// CreateShare stores shared content.
func (s *MemoryStore) CreateShare(ctx context.Context, share *model.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *share
	cp.Content = slices.Clone(share.Content)
	s.shares[share.ID] = &cp
	return nil
}

// GetShare retrieves shared content by ID.
func (s *MemoryStore) GetShare(ctx context.Context, id string) (*model.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	share, exists := s.shares[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *share
	return &cp, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func copyConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Messages = slices.Clone(c.Messages)
	return &cp
}
