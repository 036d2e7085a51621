package domain

import (
	"fmt"
	"strings"
)

// ImpactLevel is the assessed severity of a single operation.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// ImpactLevels lists every impact level from least to most severe.
var ImpactLevels = []ImpactLevel{ImpactLow, ImpactMedium, ImpactHigh}

// Rank orders impact levels. Unrecognized values rank above high so they are
// never treated as safe.
func (l ImpactLevel) Rank() int {
	switch l {
	case ImpactLow:
		return 0
	case ImpactMedium:
		return 1
	case ImpactHigh:
		return 2
	default:
		return 3
	}
}

// Valid reports whether l is one of the known impact levels.
func (l ImpactLevel) Valid() bool {
	return l == ImpactLow || l == ImpactMedium || l == ImpactHigh
}

// AtMost reports whether l is less than or equal to max.
func (l ImpactLevel) AtMost(max ImpactLevel) bool {
	return l.Rank() <= max.Rank()
}

func (l ImpactLevel) String() string {
	return string(l)
}

// ParseImpactLevel parses a level case-insensitively.
func ParseImpactLevel(raw string) (ImpactLevel, error) {
	level := ImpactLevel(strings.ToLower(strings.TrimSpace(raw)))
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
	}
	return level, nil
}

// MaxImpact returns the more severe of two levels, preferring a on ties.
func MaxImpact(a, b ImpactLevel) ImpactLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
