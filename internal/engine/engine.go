// Package engine runs the executor/agent review protocol for one user message.
//
// A run produces a linear sequence of messages: the executor's initial
// solution (iteration 1), then for each active agent in the order supplied by
// the caller one iteration of feedback/reply turns, and finally a single
// message marked final carrying the last working solution. Agents run strictly
// one after another because each one reviews the solution left by the last.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/llm"
	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/pkg/logger"
	"github.com/capitalize-ai/colloquy/pkg/metrics"
)

var tracer = otel.Tracer("github.com/capitalize-ai/colloquy/internal/engine")

const noSolution = "No solution generated"

// Phase names a step of the run state machine.
type Phase string

const (
	PhaseInit            Phase = "init"
	PhaseInitialSolution Phase = "initial_solution"
	PhaseAgentLoop       Phase = "agent_loop"
	PhaseFinalize        Phase = "finalize"
	PhaseDone            Phase = "done"
	PhaseAborted         Phase = "aborted"
)

// Completer is the slice of the model gateway the engine needs.
type Completer interface {
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)
	Supports(model string) bool
}

// Config holds the executor settings of a run.
type Config struct {
	ExecutorModel      string
	MaxOutputTokens    int
	Temperature        float64
	ReasoningMaxTokens int
	StepDelay          time.Duration
	TruncationBudget   int
}

// DefaultConfig returns the stock executor settings.
func DefaultConfig() Config {
	return Config{
		ExecutorModel:      "gpt-4",
		MaxOutputTokens:    1000,
		Temperature:        0.7,
		ReasoningMaxTokens: 4096,
		StepDelay:          100 * time.Millisecond,
		TruncationBudget:   1000,
	}
}

// Input is one user question plus the agent configuration to review it with.
type Input struct {
	Message      string
	MessageID    string
	History      []model.Message
	ActiveAgents []string
	Agents       []model.Agent
}

// Engine drives the review protocol against a Completer.
type Engine struct {
	gateway Completer
	cfg     Config
	logger  *logger.Logger

	newID func() string
	now   func() time.Time
}

// New creates an engine.
func New(gateway Completer, cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		gateway: gateway,
		cfg:     cfg,
		logger:  log,
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// run is the ephemeral turn record of one Run call.
type run struct {
	in        Input
	history   string
	threadID  string
	solution  string
	iteration int
	out       chan<- model.Message
	log       *logger.Logger
}

// Run executes the protocol, sending every produced message on out. It does
// not close out. A returned error means the run aborted: either the initial
// solution failed or ctx was cancelled. Per-agent provider failures are
// reported as error messages on out and do not abort the run.
func (e *Engine) Run(ctx context.Context, in Input, out chan<- model.Message) error {
	ctx, span := tracer.Start(ctx, "engine.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.message_id", in.MessageID),
		attribute.Int("chat.active_agents", len(in.ActiveAgents)),
	)

	r := &run{
		in:        in,
		history:   formatHistory(in.History),
		threadID:  e.newID(),
		iteration: 1,
		out:       out,
	}
	r.log = e.logger.With(
		zap.String("thread_id", r.threadID),
		zap.String("message_id", in.MessageID),
	)

	err := e.run(ctx, r)
	if err != nil {
		span.AddEvent(string(PhaseAborted))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("review run aborted", zap.Error(err))
		return err
	}

	span.AddEvent(string(PhaseDone))
	r.log.Info("review run complete", zap.Int("iterations", r.iteration))
	return nil
}

func (e *Engine) run(ctx context.Context, r *run) error {
	r.log.Debug("phase", zap.String("phase", string(PhaseInit)))

	// Initial solution: without one there is nothing to review.
	r.log.Debug("phase", zap.String("phase", string(PhaseInitialSolution)))
	resp, err := e.gateway.Complete(ctx, e.executorRequest(executorSystemPrompt, initialUserPrompt(r.history, r.in.Message)))
	if err != nil {
		return fmt.Errorf("failed to generate initial solution: %w", err)
	}
	r.solution = resp.Text
	if r.solution == "" {
		r.solution = noSolution
	}

	if err := e.emit(ctx, r, model.Message{
		Role:            model.RoleAssistant,
		Content:         r.solution,
		ThreadID:        r.threadID,
		ParentMessageID: r.in.MessageID,
		IterationNumber: r.iteration,
		IsInterim:       true,
	}); err != nil {
		return err
	}

	r.log.Debug("phase", zap.String("phase", string(PhaseAgentLoop)))
	for _, id := range r.in.ActiveAgents {
		agent, ok := model.FindAgent(r.in.Agents, id)
		if !ok {
			r.log.Debug("skipping unknown agent", zap.String("agent_id", id))
			continue
		}
		r.iteration++

		if !e.gateway.Supports(agent.Model) {
			r.log.Warn("skipping agent without provider credentials",
				zap.String("agent_id", agent.ID),
				zap.String("model", agent.Model),
			)
			metrics.AgentTurnsTotal.WithLabelValues(agent.ID, "skipped").Inc()
			continue
		}

		if err := e.review(ctx, r, agent); err != nil {
			return err
		}
		if err := sleep(ctx, e.cfg.StepDelay); err != nil {
			return err
		}
	}

	r.log.Debug("phase", zap.String("phase", string(PhaseFinalize)))
	return e.emit(ctx, r, model.Message{
		Role:            model.RoleAssistant,
		Content:         r.solution,
		ParentMessageID: r.in.MessageID,
		IsFinal:         true,
	})
}

// review runs one agent's feedback/reply turns. Only cancellation is returned;
// provider failures end this agent with an error message.
func (e *Engine) review(ctx context.Context, r *run, agent model.Agent) error {
	maxTurns := agent.MaxTurns
	if maxTurns < 1 {
		maxTurns = 1
	}
	log := r.log.With(zap.String("agent_id", agent.ID), zap.Int("iteration", r.iteration))

	for turn := 1; turn <= maxTurns; turn++ {
		raw, err := e.feedback(ctx, r, agent, turn)
		if err != nil {
			return e.agentFailed(ctx, r, agent, log, err)
		}
		feedback, satisfied := parseFeedback(raw)

		if err := e.emit(ctx, r, model.Message{
			Role:            model.RoleAgent,
			Content:         feedback,
			AgentID:         agent.ID,
			AgentName:       agent.Name,
			ThreadID:        r.threadID,
			ParentMessageID: r.in.MessageID,
			IterationNumber: r.iteration,
			IsInterim:       true,
			IsDiscussion:    true,
			CurrentTurn:     turn,
			MaxTurns:        maxTurns,
		}); err != nil {
			return err
		}
		if err := sleep(ctx, e.cfg.StepDelay); err != nil {
			return err
		}

		resp, err := e.gateway.Complete(ctx, e.executorRequest(
			executorReplySystemPrompt(agent.Name, r.in.Message),
			executorReplyUserPrompt(r.history, r.in.Message, r.solution, agent.Name, feedback, turn == maxTurns),
		))
		if err != nil {
			return e.agentFailed(ctx, r, agent, log, err)
		}

		// Every reply to feedback becomes the working solution.
		r.solution = resp.Text

		if err := e.emit(ctx, r, model.Message{
			Role:            model.RoleAssistant,
			Content:         resp.Text,
			AgentID:         agent.ID,
			AgentName:       agent.Name,
			ThreadID:        r.threadID,
			ParentMessageID: r.in.MessageID,
			IterationNumber: r.iteration,
			IsInterim:       true,
			IsDiscussion:    true,
			ResponseToAgent: agent.ID,
			CurrentTurn:     turn,
			MaxTurns:        maxTurns,
		}); err != nil {
			return err
		}

		result := "revised"
		if satisfied {
			result = "satisfied"
		}
		metrics.AgentTurnsTotal.WithLabelValues(agent.ID, result).Inc()
		log.Debug("agent turn complete", zap.Int("turn", turn), zap.Bool("satisfied", satisfied))

		if satisfied || turn == maxTurns {
			break
		}
		if err := sleep(ctx, e.cfg.StepDelay); err != nil {
			return err
		}
	}

	return nil
}

// feedback asks the agent to review the working solution. A truncated
// reasoning-model answer is retried once with a shortened solution and the
// retry's output is used as is.
func (e *Engine) feedback(ctx context.Context, r *run, agent model.Agent, turn int) (string, error) {
	req := e.request(agent.Model, agentSystemPrompt(agent), agentUserPrompt(r.history, r.in.Message, r.solution, turn))
	resp, err := e.gateway.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	if llm.KindOf(agent.Model) == llm.KindReasoning && resp.Truncated() {
		r.log.Info("reasoning response truncated, retrying with shorter input",
			zap.String("agent_id", agent.ID),
			zap.String("model", agent.Model),
		)
		if err := e.emit(ctx, r, model.Message{
			Role:      model.RoleAssistant,
			Content:   fmt.Sprintf("Warning: %s response was truncated. Attempting with shorter input...", agent.Model),
			AgentID:   agent.ID,
			AgentName: agent.Name,
			IsError:   true,
		}); err != nil {
			return "", err
		}

		resp, err = e.gateway.Complete(ctx, e.request(agent.Model, "", shortReviewPrompt(r.solution, e.cfg.TruncationBudget)))
		if err != nil {
			return "", err
		}
	}

	return resp.Text, nil
}

// agentFailed reports a provider failure for one agent. Cancellation is
// propagated instead so the whole run stops.
func (e *Engine) agentFailed(ctx context.Context, r *run, agent model.Agent, log *logger.Logger, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	log.Error("agent step failed", zap.Error(err))
	metrics.AgentTurnsTotal.WithLabelValues(agent.ID, "error").Inc()

	return e.emit(ctx, r, model.Message{
		Role:      model.RoleAssistant,
		Content:   fmt.Sprintf("Error from %s (%s): %v", agent.Name, agent.Model, err),
		AgentID:   agent.ID,
		AgentName: agent.Name,
		IsError:   true,
	})
}

func (e *Engine) executorRequest(system, user string) *llm.Request {
	return e.request(e.cfg.ExecutorModel, system, user)
}

func (e *Engine) request(modelName, system, user string) *llm.Request {
	req := &llm.Request{
		SystemPrompt:    system,
		UserPrompt:      user,
		Model:           modelName,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
		Temperature:     e.cfg.Temperature,
	}
	if llm.KindOf(modelName) == llm.KindReasoning {
		req.MaxOutputTokens = e.cfg.ReasoningMaxTokens
	}
	return req
}

func (e *Engine) emit(ctx context.Context, r *run, msg model.Message) error {
	msg.ID = e.newID()
	msg.Timestamp = e.now()

	select {
	case r.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
