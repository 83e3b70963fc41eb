package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		model string
		want  ProviderKind
	}{
		{"gpt-4", KindChat},
		{"gpt-4o-mini", KindChat},
		{"o1-preview", KindReasoning},
		{"o3-mini", KindReasoning},
		{"O1", KindReasoning},
		{"claude-3-5-sonnet-20241022", KindAnthropic},
		{"", KindChat},
	}
	for _, tt := range tests {
		if got := KindOf(tt.model); got != tt.want {
			t.Errorf("KindOf(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

// openAIServer records the last chat completion body and answers with reply.
func openAIServer(t *testing.T, status int, reply string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		captured = map[string]any{}
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

const openAIReply = `{"id":"c1","object":"chat.completion","model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`

func TestOpenAIClient_ChatShape(t *testing.T) {
	srv, captured := openAIServer(t, http.StatusOK, openAIReply)
	gw, err := NewGateway(Credentials{OpenAIKey: "sk-test"}, Options{OpenAIBaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	resp, err := gw.Complete(context.Background(), &Request{
		SystemPrompt:    "be helpful",
		UserPrompt:      "hi",
		Model:           "gpt-4",
		MaxOutputTokens: 1000,
		Temperature:     0.7,
		PriorMessages:   []ChatMessage{{Role: "assistant", Content: "earlier"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello there" || resp.FinishReason != FinishStop {
		t.Errorf("resp = %+v", resp)
	}
	if resp.TokensIn != 7 || resp.TokensOut != 3 {
		t.Errorf("tokens = %d/%d", resp.TokensIn, resp.TokensOut)
	}

	body := *captured
	msgs := body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first role = %v, want system", role)
	}
	if body["temperature"] != 0.7 {
		t.Errorf("temperature = %v", body["temperature"])
	}
	if body["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
}

func TestOpenAIClient_ReasoningShape(t *testing.T) {
	reply := strings.Replace(openAIReply, `"finish_reason":"stop"`, `"finish_reason":"length"`, 1)
	srv, captured := openAIServer(t, http.StatusOK, reply)
	gw, err := NewGateway(Credentials{OpenAIKey: "sk-test"}, Options{OpenAIBaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	resp, err := gw.Complete(context.Background(), &Request{
		SystemPrompt:    "review carefully",
		UserPrompt:      "the solution",
		Model:           "o1-mini",
		MaxOutputTokens: 4096,
		Temperature:     0.7,
		PriorMessages:   []ChatMessage{{Role: "user", Content: "dropped"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !resp.Truncated() {
		t.Errorf("expected truncated response, got finish %q", resp.FinishReason)
	}

	body := *captured
	msgs := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	only := msgs[0].(map[string]any)
	if only["role"] != "user" {
		t.Errorf("role = %v, want user", only["role"])
	}
	if content := only["content"].(string); !strings.HasPrefix(content, "review carefully\n\n") {
		t.Errorf("system prompt not folded: %q", content)
	}
	if _, ok := body["temperature"]; ok {
		t.Errorf("temperature must not be sent: %v", body["temperature"])
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens must not be sent to reasoning models")
	}
	if body["max_completion_tokens"] != float64(4096) {
		t.Errorf("max_completion_tokens = %v", body["max_completion_tokens"])
	}
}

func TestGateway_ProviderError(t *testing.T) {
	srv, _ := openAIServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	gw, err := NewGateway(Credentials{OpenAIKey: "sk-bad"}, Options{OpenAIBaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	_, err = gw.Complete(context.Background(), &Request{UserPrompt: "hi", Model: "gpt-4"})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if perr.Provider != "openai" || perr.StatusCode != http.StatusUnauthorized {
		t.Errorf("perr = %+v", perr)
	}
}

func TestGateway_AnthropicRequiresKey(t *testing.T) {
	gw, err := NewGateway(Credentials{OpenAIKey: "sk-test"}, Options{})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if gw.Supports("claude-3-haiku-20240307") {
		t.Error("anthropic model supported without a key")
	}
	if !gw.Supports("gpt-4") || !gw.Supports("o1") {
		t.Error("openai kinds should be supported")
	}

	_, err = gw.Complete(context.Background(), &Request{Model: "claude-3-haiku-20240307"})
	if !IsUnavailable(err) {
		t.Errorf("err = %v, want provider unavailable", err)
	}
}

func TestNewGateway_RequiresOpenAIKey(t *testing.T) {
	if _, err := NewGateway(Credentials{AnthropicKey: "a"}, Options{}); err == nil {
		t.Fatal("expected error without OpenAI key")
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "ak-test" {
			t.Errorf("api key header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022",`+
			`"content":[{"type":"text","text":"Looks good. "},{"type":"text","text":"[SATISFIED: true]"}],`+
			`"stop_reason":"max_tokens","stop_sequence":null,"usage":{"input_tokens":11,"output_tokens":5}}`)
	}))
	defer srv.Close()

	gw, err := NewGateway(
		Credentials{OpenAIKey: "sk-test", AnthropicKey: "ak-test"},
		Options{AnthropicBaseURL: srv.URL},
	)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	resp, err := gw.Complete(context.Background(), &Request{
		SystemPrompt:  "you review",
		UserPrompt:    "solution",
		Model:         "claude-3-5-sonnet-20241022",
		Temperature:   0.7,
		PriorMessages: []ChatMessage{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Looks good. [SATISFIED: true]" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.FinishReason != FinishLength {
		t.Errorf("finish = %q, want %q", resp.FinishReason, FinishLength)
	}

	system := captured["system"].([]any)
	if text := system[0].(map[string]any)["text"]; text != "you review" {
		t.Errorf("system = %v", system)
	}
	msgs := captured["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if role := msgs[1].(map[string]any)["role"]; role != "assistant" {
		t.Errorf("second role = %v", role)
	}
	if captured["max_tokens"] != float64(defaultMaxOutputTokens) {
		t.Errorf("max_tokens = %v", captured["max_tokens"])
	}
}
