package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/capitalize-ai/colloquy/internal/chatstore"
	"github.com/capitalize-ai/colloquy/internal/config"
	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/internal/stream"
	"github.com/capitalize-ai/colloquy/pkg/logger"
)

const defaultServer = "http://localhost:8080"

type askOptions struct {
	server         string
	apiKey         string
	anthropicKey   string
	agentsFile     string
	activate       []string
	historyFile    string
	showDiscussion bool
	raw            bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask a question and stream the reviewed answer",
		Long: "Sends the message to the server and streams the review run. Without arguments\n" +
			"the message is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := readMessage(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAsk(ctx, cmd, opts, message)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", envOr("COLLOQUY_SERVER", defaultServer), "server base URL")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "OpenAI API key (default $OPENAI_API_KEY)")
	cmd.Flags().StringVar(&opts.anthropicKey, "anthropic-key", "", "Anthropic API key (default $ANTHROPIC_API_KEY)")
	cmd.Flags().StringVar(&opts.agentsFile, "agents", "", "YAML agent roster (default: built-in agents)")
	cmd.Flags().StringSliceVar(&opts.activate, "activate", nil, "agent ids to run, in order (default: roster's active agents)")
	cmd.Flags().StringVar(&opts.historyFile, "history", "", "prior messages as a JSON array or a frame stream")
	cmd.Flags().BoolVar(&opts.showDiscussion, "show-discussion", false, "print the agents' discussion")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "echo stream frames as they arrive")
	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, opts askOptions, message string) error {
	log := logger.Global()
	out := cmd.OutOrStdout()

	apiKey, err := resolveAPIKey(opts.apiKey, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	anthropicKey := opts.anthropicKey
	if anthropicKey == "" {
		anthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	roster, err := loadRoster(opts.agentsFile)
	if err != nil {
		return err
	}
	active := opts.activate
	if len(active) == 0 {
		active = roster.ActiveIDs()
	}

	var history []model.Message
	if opts.historyFile != "" {
		if history, err = loadHistory(opts.historyFile); err != nil {
			return err
		}
	}

	messageID := uuid.Must(uuid.NewV7()).String()
	req := &model.ChatRequest{
		Message:      message,
		MessageID:    messageID,
		APIKey:       apiKey,
		AnthropicKey: anthropicKey,
		ActiveAgents: active,
		Agents:       roster.Agents,
		ChatHistory:  history,
	}

	store := chatstore.NewStore(chatstore.New())
	store.Dispatch(func(s chatstore.State) chatstore.State {
		s.Agents = roster.Agents
		s.ActiveAgents = active
		return s
	})
	for _, m := range history {
		store.AddMessage(m)
	}
	from := len(store.Snapshot().Messages)
	store.AddMessage(model.Message{ID: messageID, Role: model.RoleUser, Content: message})

	body, err := postChat(ctx, opts.server, req)
	if err != nil {
		return err
	}
	defer body.Close()

	th := newTheme(out)
	progress := newTheme(cmd.ErrOrStderr())
	store.OnChange(func(s chatstore.State) {
		last := s.Messages[len(s.Messages)-1]
		if opts.raw {
			if line, err := stream.Encode(model.NewMessageFrame(last)); err == nil {
				out.Write(line)
			}
			return
		}
		renderProgress(cmd.ErrOrStderr(), progress, last)
	})

	n, err := chatstore.Ingest(ctx, body, store, log)
	store.OnChange(nil)
	if err != nil {
		return err
	}
	log.Debug("stream finished", zap.Int("messages", n), zap.String("message_id", messageID))

	if opts.raw {
		return nil
	}
	if opts.showDiscussion {
		store.Dispatch(func(s chatstore.State) chatstore.State { return s.ToggleThread(messageID) })
	}
	renderSession(out, th, store.Snapshot(), from, messageID)
	return nil
}

// renderSession prints the timeline of the current question and, when its
// thread is expanded, the discussion panel. Messages before index from are
// history and are not printed.
func renderSession(w io.Writer, th theme, state chatstore.State, from int, messageID string) {
	var current []model.Message
	if from < len(state.Messages) {
		current = state.Messages[from:]
	}

	if thread, ok := state.Thread(messageID); ok && thread.Expanded {
		for _, view := range chatstore.BuildThreadViews(current) {
			renderThread(w, th, view)
		}
		fmt.Fprintln(w)
	}
	renderTimeline(w, th, chatstore.Timeline(current))
}

// postChat starts a review run and returns the frame stream.
func postChat(ctx context.Context, server string, req *model.ChatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", stream.ContentType)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
	return resp.Body, nil
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// resolveAPIKey returns the flag value, then $OPENAI_API_KEY, then prompts
// when stdin is a terminal.
func resolveAPIKey(flag string, prompt io.Writer) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("OpenAI API key is required: pass --api-key or set OPENAI_API_KEY")
	}
	fmt.Fprint(prompt, "OpenAI API key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	if k := strings.TrimSpace(string(key)); k != "" {
		return k, nil
	}
	return "", errors.New("OpenAI API key is required")
}

func readMessage(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "", errors.New("message is required")
	}
	return msg, nil
}

func loadRoster(path string) (*config.Roster, error) {
	if path == "" {
		return config.DefaultRoster(), nil
	}
	return config.LoadRoster(path)
}

// loadHistory reads prior messages from a JSON array or a frame stream.
func loadHistory(path string) ([]model.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var msgs []model.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, fmt.Errorf("failed to parse history: %w", err)
		}
		return msgs, nil
	}

	var msgs []model.Message
	dec := stream.NewDecoder(bytes.NewReader(data))
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return msgs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse history: %w", err)
		}
		msgs = append(msgs, frame.Data)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
