// Package chatstore holds the client side of a chat: the ordered message log,
// the agent roster with its active selection, and the discussion threads the
// streamed review messages are grouped into.
//
// State values are immutable. Every reducer returns a new State and leaves
// the receiver untouched, so snapshots can be shared freely.
package chatstore

import (
	"errors"
	"fmt"
	"slices"

	"github.com/capitalize-ai/colloquy/internal/model"
)

var (
	// ErrAgentNameRequired is returned when an agent is added without a name.
	ErrAgentNameRequired = errors.New("agent name is required")
	// ErrAgentExists is returned when the derived agent id is already taken.
	ErrAgentExists = errors.New("agent already exists")
)

// Thread is the arrival-ordered bucket of review messages for one user message.
type Thread struct {
	ParentMessageID string
	ThreadID        string
	Messages        []model.Message
	Expanded        bool
}

// State is a snapshot of the chat.
type State struct {
	Messages     []model.Message
	Agents       []model.Agent
	ActiveAgents []string

	threads     map[string]Thread
	threadOrder []string
}

// New returns the initial state seeded with the default roster and no
// active agents.
func New() State {
	return State{
		Agents:  model.DefaultAgents(),
		threads: map[string]Thread{},
	}
}

// AgentInput describes an agent to add. Zero Model and MaxTurns take the
// defaults.
type AgentInput struct {
	Name        string
	Description string
	Prompt      string
	Model       string
	MaxTurns    int
}

// AddMessage appends msg to the log and, when it belongs to a review cycle,
// to its thread. New threads start collapsed.
func (s State) AddMessage(msg model.Message) State {
	next := s.clone()
	next.Messages = append(next.Messages, msg)

	if !msg.InThread() {
		return next
	}

	key := msg.ParentMessageID
	t, ok := next.threads[key]
	if !ok {
		t = Thread{ParentMessageID: key}
		next.threadOrder = append(next.threadOrder, key)
	}
	if t.ThreadID == "" {
		t.ThreadID = msg.ThreadID
	}
	t.Messages = append(slices.Clone(t.Messages), msg)
	next.threads[key] = t
	return next
}

// AddAgent appends a new inactive agent whose id is derived from its name.
func (s State) AddAgent(in AgentInput) (State, error) {
	id := model.Slug(in.Name)
	if id == "" {
		return s, ErrAgentNameRequired
	}
	if _, ok := model.FindAgent(s.Agents, id); ok {
		return s, fmt.Errorf("%w: %s", ErrAgentExists, id)
	}

	agent := model.Agent{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Prompt:      in.Prompt,
		Model:       in.Model,
		MaxTurns:    in.MaxTurns,
		Order:       len(s.Agents) + 1,
	}
	if agent.Model == "" {
		agent.Model = model.DefaultAgentModel
	}
	if in.MaxTurns == 0 {
		agent.MaxTurns = model.DefaultAgentMaxTurns
	}
	if agent.MaxTurns < 1 {
		agent.MaxTurns = 1
	}

	next := s.clone()
	next.Agents = append(next.Agents, agent)
	return next, nil
}

// RemoveAgent drops the agent from the roster and from the active selection.
func (s State) RemoveAgent(id string) State {
	next := s.clone()
	next.Agents = slices.DeleteFunc(next.Agents, func(a model.Agent) bool { return a.ID == id })
	next.ActiveAgents = slices.DeleteFunc(next.ActiveAgents, func(a string) bool { return a == id })
	return next
}

// ToggleAgent deactivates an active agent or activates an inactive one.
// Activation always appends, so re-activated agents run last. Unknown ids
// are ignored.
func (s State) ToggleAgent(id string) State {
	if _, ok := model.FindAgent(s.Agents, id); !ok {
		return s
	}

	next := s.clone()
	active := !slices.Contains(next.ActiveAgents, id)
	if active {
		next.ActiveAgents = append(next.ActiveAgents, id)
	} else {
		next.ActiveAgents = slices.DeleteFunc(next.ActiveAgents, func(a string) bool { return a == id })
	}
	for i := range next.Agents {
		if next.Agents[i].ID == id {
			next.Agents[i].IsActive = active
		}
	}
	return next
}

// ToggleThread flips the expansion of the thread for parentMessageID.
func (s State) ToggleThread(parentMessageID string) State {
	t, ok := s.threads[parentMessageID]
	if !ok {
		return s
	}
	next := s.clone()
	t.Expanded = !t.Expanded
	next.threads[parentMessageID] = t
	return next
}

// ClearMessages empties the log and all threads. The roster is kept.
func (s State) ClearMessages() State {
	next := s.clone()
	next.Messages = nil
	next.threads = map[string]Thread{}
	next.threadOrder = nil
	return next
}

// Thread returns the thread for a parent message id.
func (s State) Thread(parentMessageID string) (Thread, bool) {
	t, ok := s.threads[parentMessageID]
	return t, ok
}

// Threads returns all threads in the order they were opened.
func (s State) Threads() []Thread {
	out := make([]Thread, 0, len(s.threadOrder))
	for _, key := range s.threadOrder {
		out = append(out, s.threads[key])
	}
	return out
}

// ActiveAgentConfigs resolves the active selection to agent configs, in
// activation order.
func (s State) ActiveAgentConfigs() []model.Agent {
	out := make([]model.Agent, 0, len(s.ActiveAgents))
	for _, id := range s.ActiveAgents {
		if a, ok := model.FindAgent(s.Agents, id); ok {
			out = append(out, a)
		}
	}
	return out
}

func (s State) clone() State {
	threads := make(map[string]Thread, len(s.threads))
	for k, v := range s.threads {
		threads[k] = v
	}
	return State{
		Messages:     slices.Clone(s.Messages),
		Agents:       slices.Clone(s.Agents),
		ActiveAgents: slices.Clone(s.ActiveAgents),
		threads:      threads,
		threadOrder:  slices.Clone(s.threadOrder),
	}
}
