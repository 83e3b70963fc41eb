package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/colloquy/internal/model"
)

const (
	// StreamName is the name of the frame journal stream.
	StreamName = "CHAT_FRAMES"

	// SubjectPrefix is the prefix for all frame subjects.
	SubjectPrefix = "chat.frames"

	fetchBatch = 100
)

// Journal records every frame of a chat stream so a review run can be
// replayed after the fact.
type Journal struct {
	client *Client
	maxAge time.Duration
}

// NewJournal creates a journal on client. Frames older than maxAge are
// discarded by the server.
func NewJournal(client *Client, maxAge time.Duration) *Journal {
	return &Journal{client: client, maxAge: maxAge}
}

// EnsureStream ensures the journal stream exists.
func (j *Journal) EnsureStream(ctx context.Context) error {
	js := j.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      j.maxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Chat stream frames keyed by user message id",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// FrameSubject returns the subject frames for one user message are published on.
func FrameSubject(parentMessageID string) string {
	return SubjectPrefix + "." + subjectToken(parentMessageID)
}

// subjectToken makes an id safe to use as a single subject token.
func subjectToken(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, id)
}

// PublishFrame appends a frame to the journal of a user message.
func (j *Journal) PublishFrame(ctx context.Context, parentMessageID string, frame model.Frame) (uint64, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal frame: %w", err)
	}

	ack, err := j.client.JetStream().Publish(ctx, FrameSubject(parentMessageID), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish frame: %w", err)
	}

	return ack.Sequence, nil
}

// Frames returns every journaled frame of a user message in publish order.
func (j *Journal) Frames(ctx context.Context, parentMessageID string) ([]model.Frame, error) {
	consumer, err := j.client.JetStream().CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject:     FrameSubject(parentMessageID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	info, err := consumer.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read consumer info: %w", err)
	}
	pending := int(info.NumPending)

	frames := make([]model.Frame, 0, pending)
	for len(frames) < pending {
		batch, err := consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch frames: %w", err)
		}

		received := 0
		for msg := range batch.Messages() {
			received++
			var frame model.Frame
			if err := json.Unmarshal(msg.Data(), &frame); err != nil {
				continue
			}
			frames = append(frames, frame)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("batch error: %w", err)
		}
		if received == 0 {
			break
		}
	}

	return frames, nil
}
