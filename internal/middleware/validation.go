package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/colloquy/internal/model"
)

const (
	maxMessageLength = 100000
	maxIDLength      = 128
	maxTitleLength   = 256
)

// ValidationError is a request problem reported before any work starts.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func badRequest(format string, args ...any) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ValidateChatRequest checks a chat request and fills the primary
// credential from bearer when the body has none.
func ValidateChatRequest(req *model.ChatRequest, bearer string) *ValidationError {
	if strings.TrimSpace(req.Message) == "" {
		return badRequest("Message is required")
	}
	if err := ValidateMessageContent(req.Message); err != nil {
		return badRequest("%s", err.Error())
	}

	if req.APIKey == "" {
		req.APIKey = bearer
	}
	if req.APIKey == "" {
		return &ValidationError{Status: http.StatusUnauthorized, Message: "OpenAI API key is required"}
	}

	ids := make(map[string]bool, len(req.Agents))
	for i, a := range req.Agents {
		if a.ID == "" {
			return badRequest("agents[%d]: id is required", i)
		}
		if ids[a.ID] {
			return badRequest("agents[%d]: duplicate id %q", i, a.ID)
		}
		ids[a.ID] = true
	}

	active := make(map[string]bool, len(req.ActiveAgents))
	for _, id := range req.ActiveAgents {
		if active[id] {
			return badRequest("activeAgents: duplicate id %q", id)
		}
		active[id] = true

		if a, ok := model.FindAgent(req.Agents, id); ok && a.MaxTurns < 1 {
			return badRequest("agent %q: maxTurns must be at least 1", id)
		}
	}

	for i, m := range req.ChatHistory {
		if !m.Role.Valid() {
			return badRequest("chatHistory[%d]: invalid role %q", i, m.Role)
		}
	}

	return nil
}

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxMessageLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateID validates a client supplied identifier.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%s ID exceeds maximum length", kind)
	}
	if strings.ContainsAny(id, " \t\r\n/") {
		return fmt.Errorf("invalid %s ID format", kind)
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > maxTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
