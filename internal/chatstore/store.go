package chatstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/stream"
	"github.com/capitalize-ai/colloquy/pkg/logger"
)

// Reducer transforms one state into the next.
type Reducer func(State) State

// Store is a shared handle to an evolving State.
type Store struct {
	mu       sync.RWMutex
	state    State
	listener func(State)
}

// NewStore creates a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// OnChange registers a listener called with every new state. It runs with
// the store unlocked, after the state is replaced.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// Dispatch applies r and returns the resulting state.
func (s *Store) Dispatch(r Reducer) State {
	s.mu.Lock()
	s.state = r(s.state)
	next, listener := s.state, s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(next)
	}
	return next
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AddMessage dispatches State.AddMessage.
func (s *Store) AddMessage(msg model.Message) State {
	return s.Dispatch(func(st State) State { return st.AddMessage(msg) })
}

// Ingest reads a frame stream into store until EOF. Malformed frames are
// logged and skipped. It returns the number of messages added.
func Ingest(ctx context.Context, r io.Reader, store *Store, log *logger.Logger) (int, error) {
	dec := stream.NewDecoder(r)
	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		var perr *stream.ParseError
		if errors.As(err, &perr) {
			log.Warn("skipping malformed frame",
				zap.Int("line", perr.Line),
				zap.Error(perr.Err),
			)
			continue
		}
		if err != nil {
			return count, fmt.Errorf("failed to ingest stream: %w", err)
		}

		store.AddMessage(frame.Data)
		count++
	}
}
