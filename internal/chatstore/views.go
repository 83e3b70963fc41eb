package chatstore

import (
	"sort"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// Iteration groups the messages of one review cycle.
type Iteration struct {
	Number   int
	Messages []model.Message
}

// ThreadView is the discussion panel of one user message.
type ThreadView struct {
	ParentMessageID string
	ThreadID        string
	Iterations      []Iteration
	Final           *model.Message
}

type dedupeKey struct {
	content      string
	role         model.Role
	iteration    int
	isDiscussion bool
}

// BuildThreadViews groups the review messages of log by parent message id,
// in the order threads first appear. Final messages are exposed separately,
// duplicates by (content, role, iteration, discussion) are dropped and
// messages without an iteration number are counted as iteration 1.
func BuildThreadViews(log []model.Message) []ThreadView {
	var order []string
	views := map[string]*ThreadView{}
	seen := map[string]map[dedupeKey]bool{}
	groups := map[string]map[int][]model.Message{}

	for i := range log {
		msg := log[i]
		if !msg.InThread() {
			continue
		}
		key := msg.ParentMessageID

		v, ok := views[key]
		if !ok {
			v = &ThreadView{ParentMessageID: key}
			views[key] = v
			seen[key] = map[dedupeKey]bool{}
			groups[key] = map[int][]model.Message{}
			order = append(order, key)
		}
		if v.ThreadID == "" {
			v.ThreadID = msg.ThreadID
		}

		if msg.IsFinal {
			if v.Final == nil {
				v.Final = &msg
			}
			continue
		}

		iteration := msg.IterationNumber
		if iteration == 0 {
			iteration = 1
		}
		dk := dedupeKey{content: msg.Content, role: msg.Role, iteration: iteration, isDiscussion: msg.IsDiscussion}
		if seen[key][dk] {
			continue
		}
		seen[key][dk] = true
		groups[key][iteration] = append(groups[key][iteration], msg)
	}

	out := make([]ThreadView, 0, len(order))
	for _, key := range order {
		v := views[key]
		numbers := make([]int, 0, len(groups[key]))
		for n := range groups[key] {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		for _, n := range numbers {
			v.Iterations = append(v.Iterations, Iteration{Number: n, Messages: groups[key][n]})
		}
		out = append(out, *v)
	}
	return out
}

// Timeline returns the top-level messages of log: user messages, final
// answers and errors that are not part of a review thread.
func Timeline(log []model.Message) []model.Message {
	var out []model.Message
	for _, msg := range log {
		switch {
		case msg.Role == model.RoleUser:
			out = append(out, msg)
		case msg.IsFinal:
			out = append(out, msg)
		case msg.IsError && !msg.InThread():
			out = append(out, msg)
		}
	}
	return out
}
