package model

import (
	"strings"
	"unicode"
)

// Agent is a configured reviewer that critiques the executor's solution.
type Agent struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Prompt      string `json:"prompt" yaml:"prompt"`
	Model       string `json:"model" yaml:"model"`
	MaxTurns    int    `json:"maxTurns" yaml:"max_turns"`
	Order       int    `json:"order" yaml:"order"`
	IsActive    bool   `json:"isActive" yaml:"active"`
}

const (
	// DefaultAgentModel is used when an agent is added without a model.
	DefaultAgentModel = "gpt-4"
	// DefaultAgentMaxTurns is used when an agent is added without a turn budget.
	DefaultAgentMaxTurns = 5
)

// Slug derives a stable agent id from a display name.
func Slug(name string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(name), unicode.IsSpace), "-")
}

// FindAgent returns the agent with the given id.
func FindAgent(agents []Agent, id string) (Agent, bool) {
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// DefaultAgents returns the predefined reviewer roster.
func DefaultAgents() []Agent {
	return []Agent{
		{
			ID:          "technical-expert",
			Name:        "Technical Expert",
			Description: "Ensures technical accuracy and implementation details",
			Prompt:      "You are a senior technical expert reviewing solutions. Engage in natural conversation with the executor to ensure technical accuracy and proper implementation. Focus on correctness, efficiency, and best practices.",
			Model:       DefaultAgentModel,
			MaxTurns:    1,
			Order:       1,
		},
		{
			ID:          "ux-specialist",
			Name:        "UX Specialist",
			Description: "Focuses on user experience and interface design",
			Prompt:      "You are a UX/UI specialist. Have a natural conversation with the executor about user experience, interface design, and accessibility. Suggest improvements that enhance usability and user satisfaction.",
			Model:       DefaultAgentModel,
			MaxTurns:    1,
			Order:       2,
		},
		{
			ID:          "security-expert",
			Name:        "Security Expert",
			Description: "Reviews security implications and best practices",
			Prompt:      "You are a security expert. Engage with the executor to discuss security implications, identify potential vulnerabilities, and suggest security best practices. Focus on making the solution secure by design.",
			Model:       DefaultAgentModel,
			MaxTurns:    1,
			Order:       3,
		},
	}
}
