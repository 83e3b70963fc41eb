package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/capitalize-ai/colloquy/internal/chatstore"
	"github.com/capitalize-ai/colloquy/internal/model"
)

type theme struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	errorMsg  lipgloss.Style
	panel     lipgloss.Style
	heading   lipgloss.Style
	agent     lipgloss.Style
	executor  lipgloss.Style
	muted     lipgloss.Style
}

// newTheme builds styles bound to w so color output follows the terminal
// w writes to, and plain text is written to pipes and files.
func newTheme(w io.Writer) theme {
	r := lipgloss.NewRenderer(w)
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		user:      r.NewStyle().Foreground(blue).Bold(true),
		assistant: r.NewStyle().Foreground(mint).Bold(true),
		errorMsg:  r.NewStyle().Foreground(pink).Bold(true),
		panel: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		heading:  r.NewStyle().Foreground(muted).Bold(true),
		agent:    r.NewStyle().Foreground(pink),
		executor: r.NewStyle().Foreground(mint),
		muted:    r.NewStyle().Foreground(muted).Faint(true),
	}
}

// renderTimeline writes the main chat view: user questions, final answers
// and run errors.
func renderTimeline(w io.Writer, th theme, msgs []model.Message) {
	for _, m := range msgs {
		switch {
		case m.IsError:
			fmt.Fprintf(w, "%s %s\n\n", th.errorMsg.Render("error:"), m.Content)
		case m.Role == model.RoleUser:
			fmt.Fprintf(w, "%s %s\n\n", th.user.Render("you:"), m.Content)
		default:
			fmt.Fprintf(w, "%s\n%s\n\n", th.assistant.Render("answer:"), m.Content)
		}
	}
}

// renderThread writes the discussion panel of one review cycle.
func renderThread(w io.Writer, th theme, view chatstore.ThreadView) {
	var b strings.Builder
	b.WriteString(th.heading.Render("Discussion"))
	for _, it := range view.Iterations {
		fmt.Fprintf(&b, "\n\n%s", th.heading.Render(fmt.Sprintf("Iteration %d", it.Number)))
		for _, m := range it.Messages {
			fmt.Fprintf(&b, "\n%s %s", speaker(th, m), m.Content)
		}
	}
	fmt.Fprintln(w, th.panel.Render(b.String()))
}

func speaker(th theme, m model.Message) string {
	turn := ""
	if m.MaxTurns > 0 {
		turn = fmt.Sprintf(" (%d/%d)", m.CurrentTurn, m.MaxTurns)
	}
	switch {
	case m.Role == model.RoleAgent:
		return th.agent.Render(m.AgentName + turn + ":")
	case m.ResponseToAgent != "":
		return th.executor.Render("Executor → " + m.AgentName + turn + ":")
	default:
		return th.executor.Render("Executor:")
	}
}

// renderProgress writes one status line per review message while a run is
// streaming.
func renderProgress(w io.Writer, th theme, m model.Message) {
	switch {
	case m.IsError:
		fmt.Fprintln(w, th.errorMsg.Render("! "+firstLine(m.Content)))
	case m.IsFinal || !m.InThread():
	case m.Role == model.RoleAgent:
		fmt.Fprintln(w, th.muted.Render(fmt.Sprintf("· %s reviewing (turn %d/%d)", m.AgentName, m.CurrentTurn, m.MaxTurns)))
	case m.ResponseToAgent != "":
		fmt.Fprintln(w, th.muted.Render("· executor revising for "+m.AgentName))
	default:
		fmt.Fprintln(w, th.muted.Render("· initial solution ready"))
	}
}

// renderAgents writes the roster, marking active agents.
func renderAgents(w io.Writer, th theme, agents []model.Agent) {
	for _, a := range agents {
		marker := " "
		if a.IsActive {
			marker = th.assistant.Render("*")
		}
		fmt.Fprintf(w, "%s %s %s\n", marker, th.user.Render(a.Name), th.muted.Render("("+a.ID+")"))
		fmt.Fprintf(w, "    model: %s  max turns: %d\n", a.Model, a.MaxTurns)
		if a.Description != "" {
			fmt.Fprintf(w, "    %s\n", a.Description)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
