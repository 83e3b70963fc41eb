// Package llm provides the model gateway: one completion interface over the
// OpenAI-style and Anthropic-style chat providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ChatMessage represents a prior conversation turn sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a completion request.
type Request struct {
	SystemPrompt    string
	UserPrompt      string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	PriorMessages   []ChatMessage
}

// Response represents a completion response.
type Response struct {
	Text         string
	FinishReason string
	Model        string
	TokensIn     int
	TokensOut    int
	LatencyMs    int64
}

// Truncated reports whether the model stopped on its output limit.
func (r *Response) Truncated() bool {
	return r.FinishReason == FinishLength
}

// Normalized finish reasons.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// Provider is the interface for a single chat-completion backend.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// ProviderKind selects the request shape and backend for a model.
type ProviderKind int

const (
	// KindChat is a generic chat-completion model (system + user, temperature, token cap).
	KindChat ProviderKind = iota
	// KindReasoning is a reasoning-only model: no system role, no temperature, no prior turns.
	KindReasoning
	// KindAnthropic is a model served by the Anthropic messages API.
	KindAnthropic
)

func (k ProviderKind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindReasoning:
		return "reasoning"
	case KindAnthropic:
		return "anthropic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var reasoningPrefixes = []string{"o1", "o3", "o4"}

// KindOf resolves the provider kind from a model identifier.
func KindOf(model string) ProviderKind {
	m := strings.ToLower(strings.TrimSpace(model))
	if strings.HasPrefix(m, "claude") {
		return KindAnthropic
	}
	for _, p := range reasoningPrefixes {
		if strings.HasPrefix(m, p) {
			return KindReasoning
		}
	}
	return KindChat
}

// ErrProviderUnavailable is the cause when no backend is configured for a model.
var ErrProviderUnavailable = errors.New("provider not configured")

// ProviderError is returned for network, auth and rate-limit failures of a backend.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s): status %d: %v", e.Provider, e.Model, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}
