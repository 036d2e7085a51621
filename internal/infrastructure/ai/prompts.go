package ai

import (
	"fmt"
	"strings"

	"github.com/doeshing/sentry-go/internal/domain"
)

var classifierSystemPrompt = strings.Join([]string{
	"You are a strict command impact classifier.",
	"Classify one operation as low, medium, or high impact.",
	"Definitions:",
	"- low: read-only inspection/query operations with no meaningful mutation.",
	"- medium: mostly local or recoverable mutations.",
	"- high: security-sensitive, destructive, privileged, remote-mutating, or hard-to-reverse actions.",
	"Rules:",
	"- If uncertain, pick the HIGHER impact.",
	`- Return JSON only: {"level":"low|medium|high"}`,
}, "\n")

var escalatorSystemPrompt = strings.Join([]string{
	"You are a strict impact escalation classifier.",
	"Given a base impact level for a command/tool operation and recent user intent context, return the FINAL impact level.",
	"Allowed levels: low, medium, high.",
	"Rules:",
	"- Never return a level lower than base_level.",
	"- Escalate when context suggests sensitive targets (prod, secrets, destructive intent, remote impact, privilege/security impact).",
	"- If uncertain, keep base_level or escalate higher.",
	`- Return JSON only: {"level":"low|medium|high"}`,
}, "\n")

func classifierUserPrompt(assessment domain.Assessment) string {
	return strings.Join([]string{
		"source: " + assessment.Source,
		"operation: " + truncate(assessment.Operation, domain.PromptOperationLimit),
		"previous_rule_reason: " + assessment.Reason,
	}, "\n")
}

func escalatorUserPrompt(assessment domain.Assessment, history string) string {
	return strings.Join([]string{
		"base_level: " + string(assessment.Level),
		"source: " + assessment.Source,
		"operation: " + truncate(assessment.Operation, domain.PromptOperationLimit),
		"recent_user_intent:",
		history,
	}, "\n")
}

// recentIntent renders the latest user messages oldest first. messages
// arrive most recent first.
func recentIntent(messages []string) string {
	snippets := make([]string, 0, domain.HistoryMessageCount)
	for _, message := range messages {
		text := strings.TrimSpace(message)
		if text == "" {
			continue
		}
		snippets = append(snippets, truncate(text, domain.HistoryMessageLimit))
		if len(snippets) == domain.HistoryMessageCount {
			break
		}
	}
	lines := make([]string, 0, len(snippets))
	for i := len(snippets) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("user_%d: %s", len(lines)+1, snippets[i]))
	}
	return strings.Join(lines, "\n")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
