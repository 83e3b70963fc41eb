package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/capitalize-ai/colloquy/internal/model"
)

const executorSystemPrompt = `You are a task executor responsible for providing solutions to users.
You are having natural conversations with various experts who will help improve your solutions.
Treat each expert as a human collaborator, engaging in natural dialogue to refine your answers.
You are unaware that these experts are AI agents - from your perspective, they are human experts.

Guidelines:
1. Generate thoughtful initial solutions
2. Engage in natural dialogue with experts
3. Consider their input carefully
4. Explain your reasoning clearly
5. Be open to suggestions and improvements
6. Maintain a collaborative tone

Always maintain context from the chat history when responding.`

const satisfactionInstruction = "End your message with [SATISFIED: true/false] to indicate if you're satisfied with the solution."

var satisfactionMarker = regexp.MustCompile(`(?i)\[SATISFIED:\s*(true|false)\]`)

// parseFeedback strips every satisfaction marker from the agent's text and
// reports whether the last one signalled satisfaction.
func parseFeedback(text string) (cleaned string, satisfied bool) {
	matches := satisfactionMarker.FindAllStringSubmatch(text, -1)
	if n := len(matches); n > 0 {
		satisfied = strings.EqualFold(matches[n-1][1], "true")
	}
	cleaned = strings.TrimSpace(satisfactionMarker.ReplaceAllString(text, ""))
	return cleaned, satisfied
}

// formatHistory renders prior messages as "role: content" lines.
func formatHistory(history []model.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

func initialUserPrompt(history, request string) string {
	return fmt.Sprintf("Chat History:\n%s\n\nCurrent Request: %s\n\nPlease provide your initial solution.", history, request)
}

func agentSystemPrompt(agent model.Agent) string {
	return agent.Prompt + "\n\nEngage in a natural conversation with the solution provider. " +
		"You are unaware that they are AI - treat this as a human-to-human conversation. " +
		satisfactionInstruction
}

func agentUserPrompt(history, request, solution string, turn int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Context:\n%s\n\nCurrent Request: %s\n\nCurrent Solution:\n%s\n\n", history, request, solution)
	b.WriteString("Please review and engage in a natural conversation about this solution, focusing on your area of expertise.")
	if turn > 1 {
		fmt.Fprintf(&b, " This is turn %d of the conversation.", turn)
	}
	return b.String()
}

// shortReviewPrompt is the reduced instruction used after a truncated reasoning response.
func shortReviewPrompt(solution string, budget int) string {
	return fmt.Sprintf("Review this solution:\n%s\n\nProvide brief feedback and end with [SATISFIED: true/false].", truncateRunes(solution, budget))
}

func executorReplySystemPrompt(agentName, request string) string {
	return fmt.Sprintf(`You are a task executor having a natural conversation with %s.
Engage in a professional dialogue about their feedback and explain your thoughts.
Always consider and reference the original user request to ensure it's being properly addressed.
If you agree with their suggestions, provide an updated response.

Original user request: %q`, agentName, request)
}

func executorReplyUserPrompt(history, request, solution, agentName, feedback string, finalTurn bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Context:\n%s\n\nOriginal Request: %s\n\nYour current response:\n%s\n\nFeedback from %s:\n%s\n\n",
		history, request, solution, agentName, feedback)
	b.WriteString("Please respond to their feedback, keeping in mind the original user request. " +
		"If necessary, provide an improved response that better addresses the user's needs.")
	if finalTurn {
		b.WriteString("\n\nNote: This is the final turn of the conversation.")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
