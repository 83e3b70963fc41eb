package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/capitalize-ai/colloquy/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func conversation(id string, updated time.Time, contents ...string) *model.Conversation {
	c := &model.Conversation{
		ID:        id,
		Title:     "Conversation " + id,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
	for i, content := range contents {
		c.Messages = append(c.Messages, model.Message{
			ID:        id + "-" + string(rune('a'+i)),
			Content:   content,
			Role:      model.RoleUser,
			Timestamp: updated,
		})
	}
	return c
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			conv := conversation("c1", base, "hello", "world")
			if err := s.CreateConversation(ctx, conv); err != nil {
				t.Fatalf("CreateConversation: %v", err)
			}

			got, err := s.GetConversation(ctx, "c1")
			if err != nil {
				t.Fatalf("GetConversation: %v", err)
			}
			if got.Title != conv.Title || len(got.Messages) != 2 || got.Messages[1].Content != "world" {
				t.Errorf("got %+v", got)
			}
			if !got.UpdatedAt.Equal(base) {
				t.Errorf("updatedAt = %v, want %v", got.UpdatedAt, base)
			}

			got.Title = "Renamed"
			got.Messages = append(got.Messages, model.Message{ID: "c1-c", Content: "again", Role: model.RoleUser})
			got.UpdatedAt = base.Add(time.Minute)
			if err := s.UpdateConversation(ctx, got); err != nil {
				t.Fatalf("UpdateConversation: %v", err)
			}

			again, _ := s.GetConversation(ctx, "c1")
			if again.Title != "Renamed" || len(again.Messages) != 3 {
				t.Errorf("after update = %+v", again)
			}

			if err := s.UpdateConversation(ctx, conversation("missing", base)); !errors.Is(err, ErrNotFound) {
				t.Errorf("update missing err = %v", err)
			}

			if err := s.DeleteConversation(ctx, "c1"); err != nil {
				t.Fatalf("DeleteConversation: %v", err)
			}
			if _, err := s.GetConversation(ctx, "c1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("get deleted err = %v", err)
			}
			if err := s.DeleteConversation(ctx, "c1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("delete missing err = %v", err)
			}
		})
	}
}

func TestListConversations_SortedByRecency(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, c := range []*model.Conversation{
				conversation("old", base, "first"),
				conversation("new", base.Add(2*time.Hour), "a", "latest"),
				conversation("mid", base.Add(time.Hour)),
			} {
				if err := s.CreateConversation(ctx, c); err != nil {
					t.Fatalf("CreateConversation: %v", err)
				}
			}

			summaries, err := s.ListConversations(ctx)
			if err != nil {
				t.Fatalf("ListConversations: %v", err)
			}
			if len(summaries) != 3 {
				t.Fatalf("summaries = %d", len(summaries))
			}
			order := []string{summaries[0].ID, summaries[1].ID, summaries[2].ID}
			if order[0] != "new" || order[1] != "mid" || order[2] != "old" {
				t.Errorf("order = %v", order)
			}
			if summaries[0].LastMessage != "latest" || summaries[1].LastMessage != "" {
				t.Errorf("last messages = %q, %q", summaries[0].LastMessage, summaries[1].LastMessage)
			}
		})
	}
}

func TestShares(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			share := &model.Share{
				ID:        "s1",
				Type:      "conversation",
				Content:   json.RawMessage(`{"messages":[{"content":"hi"}]}`),
				CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			}
			if err := s.CreateShare(ctx, share); err != nil {
				t.Fatalf("CreateShare: %v", err)
			}

			got, err := s.GetShare(ctx, "s1")
			if err != nil {
				t.Fatalf("GetShare: %v", err)
			}
			if got.Type != "conversation" || string(got.Content) != string(share.Content) {
				t.Errorf("got %+v", got)
			}

			if _, err := s.GetShare(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("missing share err = %v", err)
			}
			if err := s.Ping(ctx); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	conv := conversation("c1", time.Now(), "hello")
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}

	conv.Messages[0].Content = "mutated"
	got, _ := s.GetConversation(ctx, "c1")
	if got.Messages[0].Content != "hello" {
		t.Error("store shares message slice with caller")
	}

	if err := s.CreateConversation(ctx, conv); err == nil {
		t.Error("expected duplicate create to fail")
	}
}
