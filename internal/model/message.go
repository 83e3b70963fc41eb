// Package model defines data structures for the review chat service.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleAgent     Role = "agent"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleAgent, RoleSystem:
		return true
	}
	return false
}

// Message is one unit of conversation. The orchestration metadata is only
// populated on server-generated messages.
type Message struct {
	ID        string    `json:"id" bson:"id"`
	Content   string    `json:"content" bson:"content"`
	Role      Role      `json:"role" bson:"role"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// Orchestration metadata
	AgentID         string `json:"agentId,omitempty" bson:"agentId,omitempty"`
	AgentName       string `json:"agentName,omitempty" bson:"agentName,omitempty"`
	ThreadID        string `json:"threadId,omitempty" bson:"threadId,omitempty"`
	ParentMessageID string `json:"parentMessageId,omitempty" bson:"parentMessageId,omitempty"`
	IterationNumber int    `json:"iterationNumber,omitempty" bson:"iterationNumber,omitempty"`
	IsInterim       bool   `json:"isInterim,omitempty" bson:"isInterim,omitempty"`
	IsDiscussion    bool   `json:"isDiscussion,omitempty" bson:"isDiscussion,omitempty"`
	IsFinal         bool   `json:"isFinal,omitempty" bson:"isFinal,omitempty"`
	ResponseToAgent string `json:"responseToAgent,omitempty" bson:"responseToAgent,omitempty"`
	CurrentTurn     int    `json:"currentTurn,omitempty" bson:"currentTurn,omitempty"`
	MaxTurns        int    `json:"maxTurns,omitempty" bson:"maxTurns,omitempty"`
	IsError         bool   `json:"isError,omitempty" bson:"isError,omitempty"`
}

// InThread reports whether the message belongs to a review cycle.
func (m *Message) InThread() bool {
	return m.ParentMessageID != ""
}

// ChatRequest is the body of the streaming chat endpoint.
type ChatRequest struct {
	Message      string    `json:"message"`
	MessageID    string    `json:"messageId"`
	APIKey       string    `json:"apiKey"`
	AnthropicKey string    `json:"anthropicKey,omitempty"`
	ActiveAgents []string  `json:"activeAgents"`
	Agents       []Agent   `json:"agents"`
	ChatHistory  []Message `json:"chatHistory"`
}

// ListMessagesResponse is the response for listing the messages of a conversation.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}
