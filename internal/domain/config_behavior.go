package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// GetScheme returns the configured scheme, defaulting to three-level.
func (b Behavior) GetScheme() Scheme {
	if !b.Scheme.Valid() {
		return SchemeThreeLevel
	}
	return b.Scheme
}

// GetWriteLevel returns the impact assigned to the write tool.
func (b Behavior) GetWriteLevel() ImpactLevel {
	if !b.WriteLevel.Valid() {
		return ImpactMedium
	}
	return b.WriteLevel
}

// GetEditLevel returns the impact assigned to the edit tool.
func (b Behavior) GetEditLevel() ImpactLevel {
	if !b.EditLevel.Valid() {
		return ImpactLow
	}
	return b.EditLevel
}

// GetFailSafe returns the policy for unresolved unknown assessments.
func (b Behavior) GetFailSafe() FailSafe {
	if b.FailSafe == FailSafeBlock {
		return FailSafeBlock
	}
	return FailSafeHigh
}

// GetAITimeout bounds a single model completion.
func (b Behavior) GetAITimeout() time.Duration {
	if b.AITimeout <= 0 {
		return DefaultAITimeout
	}
	return time.Duration(b.AITimeout)
}

// GetCacheSize returns the AI classification cache capacity.
func (b Behavior) GetCacheSize() int {
	if b.CacheSize <= 0 {
		return DefaultCacheSize
	}
	return b.CacheSize
}

// GetCycleShortcut returns the key binding used to cycle levels.
func (c Config) GetCycleShortcut() string {
	if c.CycleShortcut == "" {
		return DefaultCycleShortcut
	}
	return c.CycleShortcut
}

// Validate checks values that the loader cannot repair on its own.
func (c Config) Validate() error {
	scheme := c.Behavior.GetScheme()
	if c.Level != "" && !scheme.Contains(c.Level) {
		return fmt.Errorf("%w: level %q is not part of the %s scheme", ErrInvalidLevel, c.Level, scheme)
	}
	if c.Behavior.WriteLevel != "" && !c.Behavior.WriteLevel.Valid() {
		return fmt.Errorf("%w: write_level %q", ErrInvalidLevel, c.Behavior.WriteLevel)
	}
	if c.Behavior.EditLevel != "" && !c.Behavior.EditLevel.Valid() {
		return fmt.Errorf("%w: edit_level %q", ErrInvalidLevel, c.Behavior.EditLevel)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch value := raw.(type) {
	case float64:
		*d = Duration(time.Duration(value) * time.Millisecond)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %v", raw)
	}
	return nil
}
