package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/stream"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// reviewFrames is the stream of one run with a single agent.
func reviewFrames(t *testing.T, parentID string) []byte {
	t.Helper()
	msgs := []model.Message{
		{ID: "a1", Role: model.RoleAssistant, Content: "draft answer", ParentMessageID: parentID, ThreadID: "t1", IterationNumber: 1, IsInterim: true},
		{ID: "a2", Role: model.RoleAgent, Content: "add an example", AgentID: "technical-expert", AgentName: "Technical Expert",
			ParentMessageID: parentID, ThreadID: "t1", IterationNumber: 2, IsInterim: true, IsDiscussion: true, CurrentTurn: 1, MaxTurns: 1},
		{ID: "a3", Role: model.RoleAssistant, Content: "answer with example", AgentID: "technical-expert", AgentName: "Technical Expert",
			ParentMessageID: parentID, ThreadID: "t1", IterationNumber: 2, IsInterim: true, IsDiscussion: true,
			ResponseToAgent: "technical-expert", CurrentTurn: 1, MaxTurns: 1},
		{ID: "a4", Role: model.RoleAssistant, Content: "answer with example", ParentMessageID: parentID, IsFinal: true},
	}

	var buf bytes.Buffer
	for _, m := range msgs {
		line, err := stream.Encode(model.NewMessageFrame(m))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		buf.Write(line)
	}
	return buf.Bytes()
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "colloquy dev") || !strings.Contains(out, "commit: none") {
		t.Errorf("unexpected version output: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "", "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, sub := range []string{"ask", "replay", "agents", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help output to list %q, got: %s", sub, out)
		}
	}
}

func TestAgentsCmd_Defaults(t *testing.T) {
	out, err := run(t, "", "agents")
	if err != nil {
		t.Fatalf("agents command failed: %v", err)
	}
	for _, want := range []string{"Technical Expert", "(ux-specialist)", "(security-expert)", "model: gpt-4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestAgentsCmd_RosterFile(t *testing.T) {
	path := writeFile(t, "agents.yaml", `agents:
  - name: Performance Reviewer
    prompt: You review for latency.
    max_turns: 2
    active: true
`)

	out, err := run(t, "", "agents", "--agents", path)
	if err != nil {
		t.Fatalf("agents command failed: %v", err)
	}
	if !strings.Contains(out, "* Performance Reviewer (performance-reviewer)") {
		t.Errorf("expected active marker and slug id, got: %s", out)
	}
	if !strings.Contains(out, "max turns: 2") {
		t.Errorf("expected max turns, got: %s", out)
	}
}

func TestAgentsCmd_InvalidRoster(t *testing.T) {
	path := writeFile(t, "agents.yaml", "agents:\n  - name: Nameless\n")
	if _, err := run(t, "", "agents", "--agents", path); err == nil {
		t.Fatal("expected validation error for agent without prompt")
	}
}

func TestReplayCmd(t *testing.T) {
	data := append(reviewFrames(t, "u1"), []byte("not json\n")...)
	path := writeFile(t, "run.ndjson", string(data))

	out, err := run(t, "", "replay", path)
	if err != nil {
		t.Fatalf("replay command failed: %v", err)
	}
	for _, want := range []string{"Discussion", "Iteration 1", "Iteration 2", "Technical Expert (1/1): add an example", "answer:", "answer with example"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
	if strings.Index(out, "Discussion") > strings.Index(out, "answer:") {
		t.Errorf("discussion should precede the answer: %s", out)
	}
}

func TestReplayCmd_StdinCollapsed(t *testing.T) {
	out, err := run(t, string(reviewFrames(t, "u1")), "replay", "-", "--collapsed")
	if err != nil {
		t.Fatalf("replay command failed: %v", err)
	}
	if strings.Contains(out, "Discussion") {
		t.Errorf("collapsed replay should not show the discussion: %s", out)
	}
	if !strings.Contains(out, "answer with example") {
		t.Errorf("expected final answer, got: %s", out)
	}
}

func TestAskCmd(t *testing.T) {
	var got model.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", stream.ContentType)
		w.Write(reviewFrames(t, got.MessageID))
	}))
	defer srv.Close()

	out, err := run(t, "", "ask", "--server", srv.URL, "--api-key", "sk-test",
		"--activate", "technical-expert,security-expert", "--show-discussion", "What", "is", "Go?")
	if err != nil {
		t.Fatalf("ask command failed: %v", err)
	}

	if got.Message != "What is Go?" || got.APIKey != "sk-test" || got.MessageID == "" {
		t.Errorf("request = %+v", got)
	}
	if len(got.ActiveAgents) != 2 || got.ActiveAgents[0] != "technical-expert" || len(got.Agents) != 3 {
		t.Errorf("agents = %v / %d", got.ActiveAgents, len(got.Agents))
	}
	for _, want := range []string{"Discussion", "you: What is Go?", "answer with example"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestAskCmd_RendersOnlyCurrentRun(t *testing.T) {
	history := writeFile(t, "history.json", `[
		{"id":"h1","role":"user","content":"earlier question"},
		{"id":"h2","role":"assistant","content":"earlier answer","parentMessageId":"h1","isFinal":true},
		{"id":"h3","role":"assistant","content":"old failure","isError":true}
	]`)

	var got model.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(reviewFrames(t, got.MessageID))
		line, _ := stream.Encode(model.NewMessageFrame(model.Message{
			ID: "e1", Role: model.RoleAssistant, Content: "Error from Security Expert: timeout", IsError: true,
		}))
		w.Write(line)
	}))
	defer srv.Close()

	out, err := run(t, "", "ask", "--server", srv.URL, "--api-key", "k", "--history", history, "next question")
	if err != nil {
		t.Fatalf("ask command failed: %v", err)
	}

	if len(got.ChatHistory) != 3 {
		t.Errorf("history sent = %d messages, want 3", len(got.ChatHistory))
	}
	for _, unwanted := range []string{"earlier question", "earlier answer", "old failure"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("history message %q rendered: %s", unwanted, out)
		}
	}
	for _, want := range []string{"you: next question", "answer with example", "Error from Security Expert: timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestAskCmd_MessageFromStdinAndRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Message != "from stdin" {
			t.Errorf("message = %q", req.Message)
		}
		w.Write(reviewFrames(t, req.MessageID))
	}))
	defer srv.Close()

	out, err := run(t, "from stdin\n", "ask", "--server", srv.URL, "--api-key", "k", "--raw")
	if err != nil {
		t.Fatalf("ask command failed: %v", err)
	}
	if n := strings.Count(out, "\n"); n != 4 {
		t.Errorf("raw output lines = %d, want 4: %s", n, out)
	}
}

func TestAskCmd_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"OpenAI API key is required"}`))
	}))
	defer srv.Close()

	_, err := run(t, "", "ask", "--server", srv.URL, "--api-key", "k", "hello")
	if err == nil || !strings.Contains(err.Error(), "401: OpenAI API key is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadHistory(t *testing.T) {
	arr := writeFile(t, "history.json", `[{"id":"h1","role":"user","content":"hi"},{"id":"h2","role":"assistant","content":"hello"}]`)
	msgs, err := loadHistory(arr)
	if err != nil || len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Fatalf("array history = %+v, %v", msgs, err)
	}

	frames := writeFile(t, "history.ndjson", string(reviewFrames(t, "u1")))
	msgs, err = loadHistory(frames)
	if err != nil || len(msgs) != 4 || !msgs[3].IsFinal {
		t.Fatalf("frame history = %+v, %v", msgs, err)
	}
}
