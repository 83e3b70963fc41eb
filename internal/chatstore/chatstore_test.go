package chatstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/stream"
	"github.com/capitalize-ai/colloquy/pkg/logger"
)

func TestNew_SeedsDefaultRoster(t *testing.T) {
	s := New()
	if len(s.Agents) != 3 {
		t.Fatalf("agents = %d, want 3", len(s.Agents))
	}
	if len(s.ActiveAgents) != 0 {
		t.Errorf("active agents = %v, want none", s.ActiveAgents)
	}
}

func TestAddAgent(t *testing.T) {
	s, err := New().AddAgent(AgentInput{Name: "Performance  Guru", Prompt: "Be fast"})
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	a, ok := model.FindAgent(s.Agents, "performance-guru")
	if !ok {
		t.Fatalf("agent not added: %+v", s.Agents)
	}
	if a.Model != "gpt-4" || a.MaxTurns != 5 || a.Order != 4 || a.IsActive {
		t.Errorf("defaults not applied: %+v", a)
	}

	s, err = s.AddAgent(AgentInput{Name: "Clamp", MaxTurns: -3, Model: "claude-3-5-sonnet-20241022"})
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if a, _ := model.FindAgent(s.Agents, "clamp"); a.MaxTurns != 1 || a.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("clamped agent = %+v", a)
	}

	if _, err := s.AddAgent(AgentInput{Name: "performance guru"}); !errors.Is(err, ErrAgentExists) {
		t.Errorf("duplicate err = %v", err)
	}
	if _, err := s.AddAgent(AgentInput{Name: "   "}); !errors.Is(err, ErrAgentNameRequired) {
		t.Errorf("blank name err = %v", err)
	}
}

func TestRemoveAgent_ClearsActive(t *testing.T) {
	s := New().ToggleAgent("ux-specialist").ToggleAgent("security-expert")
	s = s.RemoveAgent("ux-specialist")

	if _, ok := model.FindAgent(s.Agents, "ux-specialist"); ok {
		t.Error("agent still in roster")
	}
	if strings.Join(s.ActiveAgents, ",") != "security-expert" {
		t.Errorf("active = %v", s.ActiveAgents)
	}
}

func TestToggleAgent_ReactivationAppends(t *testing.T) {
	s := New().
		ToggleAgent("technical-expert").
		ToggleAgent("ux-specialist").
		ToggleAgent("security-expert")

	s = s.ToggleAgent("technical-expert").ToggleAgent("technical-expert")

	want := "ux-specialist,security-expert,technical-expert"
	if got := strings.Join(s.ActiveAgents, ","); got != want {
		t.Errorf("active = %s, want %s", got, want)
	}
	if a, _ := model.FindAgent(s.Agents, "technical-expert"); !a.IsActive {
		t.Error("IsActive not set on re-activation")
	}

	if got := s.ToggleAgent("nobody"); len(got.ActiveAgents) != 3 {
		t.Errorf("unknown id changed selection: %v", got.ActiveAgents)
	}

	configs := s.ActiveAgentConfigs()
	if len(configs) != 3 || configs[2].ID != "technical-expert" {
		t.Errorf("ActiveAgentConfigs = %+v", configs)
	}
}

func TestReducers_DoNotMutateReceiver(t *testing.T) {
	base := New().AddMessage(model.Message{ID: "u1", Role: model.RoleUser, Content: "hi"})
	_ = base.AddMessage(model.Message{ID: "a1", ParentMessageID: "u1", Content: "draft"})
	_ = base.ToggleAgent("ux-specialist")

	if len(base.Messages) != 1 || len(base.Threads()) != 0 || len(base.ActiveAgents) != 0 {
		t.Errorf("base state mutated: %+v", base)
	}
}

func TestAddMessage_Threads(t *testing.T) {
	s := New().
		AddMessage(model.Message{ID: "u1", Role: model.RoleUser, Content: "q1"}).
		AddMessage(model.Message{ID: "a1", Role: model.RoleAssistant, ThreadID: "t1", ParentMessageID: "u1", IterationNumber: 1, IsInterim: true}).
		AddMessage(model.Message{ID: "u2", Role: model.RoleUser, Content: "q2"}).
		AddMessage(model.Message{ID: "b1", Role: model.RoleAssistant, ThreadID: "t2", ParentMessageID: "u2", IterationNumber: 1, IsInterim: true}).
		AddMessage(model.Message{ID: "a2", Role: model.RoleAssistant, ParentMessageID: "u1", IsFinal: true})

	if len(s.Messages) != 5 {
		t.Fatalf("log = %d messages", len(s.Messages))
	}

	threads := s.Threads()
	if len(threads) != 2 || threads[0].ParentMessageID != "u1" || threads[1].ParentMessageID != "u2" {
		t.Fatalf("threads = %+v", threads)
	}
	if threads[0].ThreadID != "t1" || len(threads[0].Messages) != 2 {
		t.Errorf("thread u1 = %+v", threads[0])
	}
	if threads[0].Expanded {
		t.Error("threads should start collapsed")
	}

	s = s.ToggleThread("u1")
	if th, _ := s.Thread("u1"); !th.Expanded {
		t.Error("ToggleThread did not expand")
	}
	if th, _ := s.Thread("u2"); th.Expanded {
		t.Error("ToggleThread touched another thread")
	}

	s = s.ClearMessages()
	if len(s.Messages) != 0 || len(s.Threads()) != 0 || len(s.Agents) != 3 {
		t.Errorf("ClearMessages = %+v", s)
	}
}

func TestBuildThreadViews(t *testing.T) {
	log := []model.Message{
		{ID: "u1", Role: model.RoleUser, Content: "q"},
		{ID: "1", Role: model.RoleAssistant, Content: "draft", ParentMessageID: "u1", ThreadID: "t", IterationNumber: 1, IsInterim: true},
		{ID: "2", Role: model.RoleAgent, Content: "fix it", ParentMessageID: "u1", ThreadID: "t", IterationNumber: 3, IsDiscussion: true},
		{ID: "3", Role: model.RoleAgent, Content: "tighten", ParentMessageID: "u1", ThreadID: "t", IterationNumber: 2, IsDiscussion: true},
		{ID: "4", Role: model.RoleAgent, Content: "tighten", ParentMessageID: "u1", ThreadID: "t", IterationNumber: 2, IsDiscussion: true},
		{ID: "5", Role: model.RoleAssistant, Content: "legacy", ParentMessageID: "u1"},
		{ID: "6", Role: model.RoleAssistant, Content: "done", ParentMessageID: "u1", IsFinal: true},
		{ID: "7", Role: model.RoleAssistant, Content: "other", ParentMessageID: "u9", IterationNumber: 1},
	}

	views := BuildThreadViews(log)
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}

	v := views[0]
	if v.ParentMessageID != "u1" || v.ThreadID != "t" {
		t.Errorf("view = %+v", v)
	}
	if v.Final == nil || v.Final.ID != "6" {
		t.Errorf("final = %+v", v.Final)
	}

	var numbers []int
	for _, it := range v.Iterations {
		numbers = append(numbers, it.Number)
		for _, m := range it.Messages {
			if m.IsFinal {
				t.Errorf("final message inside iteration %d", it.Number)
			}
		}
	}
	if len(numbers) != 3 || numbers[0] != 1 || numbers[1] != 2 || numbers[2] != 3 {
		t.Errorf("iterations = %v, want [1 2 3]", numbers)
	}
	if got := len(v.Iterations[0].Messages); got != 2 {
		t.Errorf("iteration 1 = %d messages, want draft + legacy", got)
	}
	if got := len(v.Iterations[1].Messages); got != 1 {
		t.Errorf("iteration 2 = %d messages, want duplicate dropped", got)
	}
}

func TestTimeline(t *testing.T) {
	log := []model.Message{
		{ID: "u1", Role: model.RoleUser, Content: "q"},
		{ID: "1", Role: model.RoleAssistant, ParentMessageID: "u1", IterationNumber: 1, IsInterim: true},
		{ID: "2", Role: model.RoleAssistant, AgentID: "x", IsError: true, Content: "Error from X"},
		{ID: "3", Role: model.RoleAssistant, ParentMessageID: "u1", IsFinal: true},
	}

	var ids []string
	for _, m := range Timeline(log) {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, ",") != "u1,2,3" {
		t.Errorf("timeline = %v", ids)
	}
}

func TestStore_DispatchNotifies(t *testing.T) {
	store := NewStore(New())
	var calls int
	store.OnChange(func(State) { calls++ })

	store.AddMessage(model.Message{ID: "u1", Role: model.RoleUser})
	store.Dispatch(func(s State) State { return s.ToggleAgent("ux-specialist") })

	if calls != 2 {
		t.Errorf("listener calls = %d, want 2", calls)
	}
	snap := store.Snapshot()
	if len(snap.Messages) != 1 || len(snap.ActiveAgents) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestIngest_SkipsMalformedFrames(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"message","data":{"id":"a","content":"draft","role":"assistant","timestamp":"2024-05-01T12:00:00Z","parentMessageId":"u1","threadId":"t","iterationNumber":1,"isInterim":true}}`,
		`garbage`,
		`{"type":"message","data":{"id":"b","content":"draft","role":"assistant","timestamp":"2024-05-01T12:00:01Z","parentMessageId":"u1","isFinal":true}}`,
	}, "\n")

	store := NewStore(New())
	n, err := Ingest(context.Background(), strings.NewReader(input), store, logger.NewNop())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Errorf("ingested = %d, want 2", n)
	}

	snap := store.Snapshot()
	timeline := Timeline(snap.Messages)
	if len(timeline) != 1 || !timeline[0].IsFinal {
		t.Errorf("timeline = %+v", timeline)
	}
	if th, ok := snap.Thread("u1"); !ok || len(th.Messages) != 2 {
		t.Errorf("thread = %+v", th)
	}
}

func TestIngest_OversizedFrameDoesNotAbort(t *testing.T) {
	input := `{"type":"message","data":{"id":"big","content":"` + strings.Repeat("x", stream.MaxLineSize+1024) + `"}}` + "\n" +
		`{"type":"message","data":{"id":"f","content":"answer","role":"assistant","parentMessageId":"u1","isFinal":true}}` + "\n"

	store := NewStore(New())
	n, err := Ingest(context.Background(), strings.NewReader(input), store, logger.NewNop())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 {
		t.Errorf("ingested = %d, want 1", n)
	}
	if timeline := Timeline(store.Snapshot().Messages); len(timeline) != 1 || timeline[0].Content != "answer" {
		t.Errorf("timeline = %+v", timeline)
	}
}
