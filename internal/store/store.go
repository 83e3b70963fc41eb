// Package store persists conversations and shared content.
//
// Writes are last-write-wins; no backend offers multi-document transactions.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// ErrNotFound is returned when a conversation or share does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator of the chat service.
type Store interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// UpdateConversation replaces a stored conversation wholesale.
	UpdateConversation(ctx context.Context, conv *model.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	// ListConversations returns summaries, most recently updated first.
	ListConversations(ctx context.Context) ([]model.ConversationSummary, error)

	CreateShare(ctx context.Context, share *model.Share) error
	GetShare(ctx context.Context, id string) (*model.Share, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func sortSummaries(s []model.ConversationSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].UpdatedAt.After(s[j].UpdatedAt)
	})
}
