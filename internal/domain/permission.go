package domain

import (
	"fmt"
	"strings"
)

// PermissionLevel is the user-facing policy threshold.
type PermissionLevel string

const (
	PermissionLow    PermissionLevel = "low"
	PermissionMedium PermissionLevel = "medium"
	PermissionHigh   PermissionLevel = "high"
	PermissionYOLO   PermissionLevel = "yolo"
)

// DefaultPermissionLevel is active when nothing is persisted or flagged.
const DefaultPermissionLevel = PermissionLow

// Scheme selects which set of permission levels is in force.
type Scheme string

const (
	// SchemeThreeLevel uses low/medium/high; the threshold is the level itself.
	SchemeThreeLevel Scheme = "three-level"
	// SchemeYOLO uses low/medium/yolo; yolo skips classification entirely.
	SchemeYOLO Scheme = "yolo"
)

// Levels returns the cycle order for the scheme.
func (s Scheme) Levels() []PermissionLevel {
	if s == SchemeYOLO {
		return []PermissionLevel{PermissionLow, PermissionMedium, PermissionYOLO}
	}
	return []PermissionLevel{PermissionLow, PermissionMedium, PermissionHigh}
}

// Valid reports whether s is a known scheme.
func (s Scheme) Valid() bool {
	return s == SchemeThreeLevel || s == SchemeYOLO
}

// Contains reports whether level belongs to the scheme.
func (s Scheme) Contains(level PermissionLevel) bool {
	for _, candidate := range s.Levels() {
		if candidate == level {
			return true
		}
	}
	return false
}

// Next returns the level after current, wrapping to the first one. A level
// outside the scheme restarts the cycle.
func (s Scheme) Next(current PermissionLevel) PermissionLevel {
	levels := s.Levels()
	for i, candidate := range levels {
		if candidate == current {
			return levels[(i+1)%len(levels)]
		}
	}
	return levels[0]
}

// MaxAllowed maps a permission level to the highest impact that is
// auto-approved under the scheme.
func (s Scheme) MaxAllowed(level PermissionLevel) ImpactLevel {
	if s == SchemeYOLO {
		if level == PermissionMedium {
			return ImpactMedium
		}
		return ImpactLow
	}
	switch level {
	case PermissionHigh:
		return ImpactHigh
	case PermissionMedium:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// Bypasses reports whether the level skips classification altogether.
func (s Scheme) Bypasses(level PermissionLevel) bool {
	return s == SchemeYOLO && level == PermissionYOLO
}

// Parse reads a level name case-insensitively and checks it against the
// scheme.
func (s Scheme) Parse(raw string) (PermissionLevel, error) {
	level := PermissionLevel(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Contains(level) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
	}
	return level, nil
}

// Valid reports whether l belongs to any scheme.
func (l PermissionLevel) Valid() bool {
	switch l {
	case PermissionLow, PermissionMedium, PermissionHigh, PermissionYOLO:
		return true
	}
	return false
}

func (l PermissionLevel) String() string {
	return string(l)
}

// Upper is the form used in notifications.
func (l PermissionLevel) Upper() string {
	return strings.ToUpper(string(l))
}
