package domain

import "time"

// Config is the merged view of the layered config.json files.
type Config struct {
	CycleShortcut string          `json:"cycle_shortcut"`
	Level         PermissionLevel `json:"level"`
	RulesFile     string          `json:"rules_file,omitempty"`
	Behavior      Behavior        `json:"behavior"`
	Model         ModelSettings   `json:"model"`
}

// Behavior carries the switches that distinguish engine variants.
type Behavior struct {
	Scheme            Scheme      `json:"scheme"`
	WriteLevel        ImpactLevel `json:"write_level"`
	EditLevel         ImpactLevel `json:"edit_level"`
	FailSafe          FailSafe    `json:"fail_safe"`
	HistoryEscalation bool        `json:"history_escalation"`
	AITimeout         Duration    `json:"ai_timeout"`
	CacheSize         int         `json:"cache_size"`
	ProtectedPaths    []string    `json:"protected_paths,omitempty"`
}

// FailSafe decides what happens to an unknown assessment the model could
// not resolve.
type FailSafe string

const (
	// FailSafeHigh resolves the assessment as high impact.
	FailSafeHigh FailSafe = "high"
	// FailSafeBlock leaves it unknown so the authorizer prompts or blocks.
	FailSafeBlock FailSafe = "block"
)

// Duration marshals as a Go duration string ("20s").
type Duration time.Duration

// Defaults applied when no layer provides a value.
const (
	DefaultCycleShortcut = "shift+tab"
	DefaultAITimeout     = 20 * time.Second
	DefaultCacheSize     = 500
)

// DefaultConfig returns the built-in base layer.
func DefaultConfig() Config {
	return Config{
		CycleShortcut: DefaultCycleShortcut,
		Level:         DefaultPermissionLevel,
		Behavior: Behavior{
			Scheme:            SchemeThreeLevel,
			WriteLevel:        ImpactMedium,
			EditLevel:         ImpactLow,
			FailSafe:          FailSafeHigh,
			HistoryEscalation: true,
			AITimeout:         Duration(DefaultAITimeout),
			CacheSize:         DefaultCacheSize,
		},
		Model: ModelSettings{
			Provider:  ProviderNone,
			MaxTokens: DefaultMaxTokens,
		},
	}
}
