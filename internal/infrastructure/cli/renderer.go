package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/doeshing/sentry-go/internal/domain"
)

// renderAssessment prints an assessment in a friendly, ASCII-only format.
func renderAssessment(out io.Writer, assessment domain.Assessment) {
	fmt.Fprintf(out, "Impact: %s\n", strings.ToUpper(assessment.ImpactLabel()))
	if assessment.Unknown {
		fmt.Fprintf(out, "Severity so far: %s\n", assessment.Level)
	}
	fmt.Fprintf(out, "Source: %s\n", assessment.Source)
	fmt.Fprintf(out, "Operation: %s\n", assessment.Operation)
	if assessment.Reason != "" {
		fmt.Fprintf(out, "Reason: %s\n", assessment.Reason)
	}
}

func renderDecision(out io.Writer, decision domain.Decision) {
	if decision.Allowed {
		fmt.Fprintln(out, "Decision: ALLOW")
		return
	}
	fmt.Fprintln(out, "Decision: BLOCK")
	if decision.Reason != "" {
		fmt.Fprintf(out, "  %s\n", decision.Reason)
	}
}

func renderHealthReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n",
			strings.ToUpper(string(check.Status)),
			check.Name,
			check.Details)
	}
}

func renderRecords(out io.Writer, records []domain.DecisionRecord) {
	for _, rec := range records {
		outcome := "allow"
		if !rec.Allowed {
			outcome = "block"
		}
		impact := string(rec.Level)
		if rec.Unknown {
			impact = "unknown"
		}
		fmt.Fprintf(out, "%s | %-5s | %-7s | %-6s | %s\n",
			rec.Timestamp.Format(domain.TimestampFormat),
			outcome,
			impact,
			rec.PermissionLevel,
			rec.Operation)
	}
}

func renderStats(out io.Writer, stats domain.DecisionStats) {
	fmt.Fprintf(out, "Decisions: %d\n", stats.Total)
	if stats.Total == 0 {
		return
	}
	fmt.Fprintf(out, "Allowed: %d (%.1f%%)\n", stats.Allowed, percent(stats.Allowed, stats.Total))
	fmt.Fprintf(out, "Blocked: %d (%.1f%%)\n", stats.Blocked, percent(stats.Blocked, stats.Total))
	fmt.Fprintf(out, "Unknown impact: %d\n", stats.Unknown)

	levels := make([]string, 0, len(stats.ByLevel))
	for level := range stats.ByLevel {
		levels = append(levels, string(level))
	}
	sort.Slice(levels, func(i, j int) bool {
		return domain.ImpactLevel(levels[i]).Rank() < domain.ImpactLevel(levels[j]).Rank()
	})
	for _, level := range levels {
		fmt.Fprintf(out, "  %-6s %d\n", level, stats.ByLevel[domain.ImpactLevel(level)])
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func printJSON(out io.Writer, value interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
