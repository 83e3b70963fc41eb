package model

import (
	"encoding/json"
	"time"
)

// Conversation is a persisted message history.
type Conversation struct {
	ID        string    `json:"id" bson:"id"`
	Title     string    `json:"title" bson:"title"`
	Messages  []Message `json:"messages" bson:"messages"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Summary builds the list view of the conversation.
func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:        c.ID,
		Title:     c.Title,
		UpdatedAt: c.UpdatedAt,
	}
	if n := len(c.Messages); n > 0 {
		s.LastMessage = c.Messages[n-1].Content
	}
	return s
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"lastMessage"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Share is a piece of content published under a share id.
type Share struct {
	ID        string          `json:"id" bson:"id"`
	Type      string          `json:"type" bson:"type"`
	Content   json.RawMessage `json:"content" bson:"content"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
}

// CreateShareRequest is the request to publish shareable content.
type CreateShareRequest struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// CreateShareResponse is returned after publishing shareable content.
type CreateShareResponse struct {
	ShareID string `json:"shareId"`
}
