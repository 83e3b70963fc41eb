package handler

import (
	"net/http"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// AgentHandler serves the configured agent roster.
type AgentHandler struct {
	agents []model.Agent
}

// NewAgentHandler creates a handler serving agents.
func NewAgentHandler(agents []model.Agent) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// List handles GET /api/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agents)
}
