package security

import (
	"fmt"
	"strings"

	"github.com/doeshing/sentry-go/internal/domain"
)

// Classification is the verdict of the rule tables for one command.
type Classification struct {
	Level   domain.ImpactLevel
	Unknown bool
	Reason  string
}

// RuleClassifier evaluates the rule tables high, then medium, then low. The
// first matching rule decides.
type RuleClassifier struct {
	rules RuleSet
}

// NewRuleClassifier builds a classifier over the built-in tables, with any
// user rules evaluated first within their table.
func NewRuleClassifier(user RuleSet) *RuleClassifier {
	return &RuleClassifier{rules: DefaultRules().Prepend(user)}
}

// Rules exposes the effective rule set.
func (c *RuleClassifier) Rules() RuleSet {
	return c.rules
}

// Classify matches a single command against the tables.
func (c *RuleClassifier) Classify(command string) Classification {
	normalized := Normalize(command)
	if normalized == "" {
		return Classification{Level: domain.ImpactLow, Reason: domain.ReasonEmpty}
	}
	for _, table := range c.rules.Tables() {
		for _, rule := range table.Rules {
			if rule.Matches(normalized) {
				return Classification{Level: table.Level, Reason: rule.Reason}
			}
		}
	}
	return Classification{Level: domain.ImpactMedium, Unknown: true, Reason: domain.ReasonUnmappedCommand}
}

// ClassifyCommand classifies a possibly compound command line. The result
// carries the most impactful part; it is unknown when any part is unmapped.
func (c *RuleClassifier) ClassifyCommand(command, source string) domain.Assessment {
	normalized := Normalize(command)
	if normalized == "" {
		return domain.Assessment{Level: domain.ImpactLow, Source: source, Reason: domain.ReasonEmpty}
	}

	whole := c.assess(normalized, source)
	commands := Split(command)
	if len(commands) <= 1 {
		return whole
	}

	parts := make([]domain.Assessment, 0, len(commands))
	for _, sub := range commands {
		parts = append(parts, c.assess(Normalize(sub), source))
	}

	// The whole line only counts when it matched a high rule, which catches
	// patterns spanning separators such as curl ... | sh.
	var highest domain.Assessment
	var unknown bool
	var floor domain.ImpactLevel
	candidates := parts
	wholeCounts := !whole.Unknown && whole.Level == domain.ImpactHigh
	if wholeCounts {
		candidates = append([]domain.Assessment{whole}, parts...)
	}
	for i, candidate := range candidates {
		if i == 0 {
			highest = candidate
		} else {
			highest = pickMoreImpactful(highest, candidate)
		}
		if !candidate.Unknown {
			floor = maxFloor(floor, candidate.Level)
		}
	}
	// The whole-line rule is named in the reason unless a part is high on
	// its own.
	var partHigh bool
	for _, part := range parts {
		unknown = unknown || part.Unknown
		partHigh = partHigh || (!part.Unknown && part.Level == domain.ImpactHigh)
	}

	summary := make([]string, 0, len(parts)+1)
	if wholeCounts && !partHigh {
		summary = append(summary, fmt.Sprintf("whole line: %s(%s)", whole.Reason, whole.Level))
	}
	for _, part := range parts {
		summary = append(summary, fmt.Sprintf("%s(%s)", truncate(part.Operation, domain.CompoundOperationDisplayLimit), part.Level))
	}

	highest.Operation = normalized
	highest.Unknown = unknown
	highest.Reason = "compound: " + strings.Join(summary, "; ")
	if unknown {
		highest.Floor = floor
	}
	return highest
}

func (c *RuleClassifier) assess(normalized, source string) domain.Assessment {
	result := c.Classify(normalized)
	return domain.Assessment{
		Level:     result.Level,
		Source:    source,
		Operation: normalized,
		Unknown:   result.Unknown,
		Reason:    result.Reason,
	}
}

// pickMoreImpactful prefers the higher level, then a known assessment over
// an unknown one, then the current one.
func pickMoreImpactful(current, candidate domain.Assessment) domain.Assessment {
	if candidate.Level.Rank() > current.Level.Rank() {
		return candidate
	}
	if candidate.Level.Rank() < current.Level.Rank() {
		return current
	}
	if current.Unknown && !candidate.Unknown {
		return candidate
	}
	return current
}

func maxFloor(floor, level domain.ImpactLevel) domain.ImpactLevel {
	if floor == "" {
		return level
	}
	return domain.MaxImpact(floor, level)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
