package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// Roster is a YAML file of reviewer agents.
//
//	agents:
//	  - name: Performance Reviewer
//	    prompt: You review for latency and allocation costs.
//	    model: gpt-4o
//	    max_turns: 2
//	    active: true
type Roster struct {
	Agents []model.Agent `yaml:"agents"`
}

// LoadRoster reads a roster file from path.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}
	return ParseRoster(data)
}

// ParseRoster unmarshals YAML bytes into a validated Roster.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("roster: parse: %w", err)
	}
	r.applyDefaults()
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// DefaultRoster returns the predefined agents.
func DefaultRoster() *Roster {
	return &Roster{Agents: model.DefaultAgents()}
}

// ActiveIDs returns the ids of agents marked active, in roster order.
func (r *Roster) ActiveIDs() []string {
	var ids []string
	for _, a := range r.Agents {
		if a.IsActive {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// applyDefaults fills in derived and default values.
func (r *Roster) applyDefaults() {
	for i := range r.Agents {
		a := &r.Agents[i]
		if a.ID == "" {
			a.ID = model.Slug(a.Name)
		}
		if a.Model == "" {
			a.Model = model.DefaultAgentModel
		}
		if a.MaxTurns == 0 {
			a.MaxTurns = model.DefaultAgentMaxTurns
		}
		if a.Order == 0 {
			a.Order = i + 1
		}
	}
}

// validate checks that all required fields are present and consistent.
func (r *Roster) validate() error {
	var errs []string
	if len(r.Agents) == 0 {
		errs = append(errs, "at least one agent is required")
	}
	seen := make(map[string]bool, len(r.Agents))
	for i, a := range r.Agents {
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("agents[%d].name is required", i))
		}
		if a.Prompt == "" {
			errs = append(errs, fmt.Sprintf("agents[%d].prompt is required", i))
		}
		if a.MaxTurns < 1 {
			errs = append(errs, fmt.Sprintf("agents[%d].max_turns must be at least 1", i))
		}
		if a.ID != "" && seen[a.ID] {
			errs = append(errs, fmt.Sprintf("agents[%d]: duplicate id %q", i, a.ID))
		}
		seen[a.ID] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("roster: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
