package config

import (
	"github.com/doeshing/sentry-go/internal/domain"
)

// layer is one config file. Pointer fields distinguish "absent" from a
// zero value so layers merge per key.
type layer struct {
	CycleShortcut       *string        `json:"cycle_shortcut"`
	LegacyCycleShortcut *string        `json:"cycle_shorcut"`
	Level               *string        `json:"level"`
	RulesFile           *string        `json:"rules_file"`
	Behavior            *behaviorLayer `json:"behavior"`
	Model               *modelLayer    `json:"model"`
}

type behaviorLayer struct {
	Scheme            *string          `json:"scheme"`
	WriteLevel        *string          `json:"write_level"`
	EditLevel         *string          `json:"edit_level"`
	FailSafe          *string          `json:"fail_safe"`
	HistoryEscalation *bool            `json:"history_escalation"`
	AITimeout         *domain.Duration `json:"ai_timeout"`
	CacheSize         *int             `json:"cache_size"`
	ProtectedPaths    *[]string        `json:"protected_paths"`
}

type modelLayer struct {
	Provider   *string           `json:"provider"`
	Name       *string           `json:"name"`
	Endpoint   *string           `json:"endpoint"`
	AuthEnvVar *string           `json:"auth_env_var"`
	MaxTokens  *int              `json:"max_tokens"`
	APIFormat  *domain.APIFormat `json:"api_format"`
}

// shortcut returns the layer's shortcut; the correctly spelled key wins
// over the legacy one.
func (l layer) shortcut() *string {
	if l.CycleShortcut != nil {
		return l.CycleShortcut
	}
	return l.LegacyCycleShortcut
}

func (l layer) apply(cfg *domain.Config) {
	if s := l.shortcut(); s != nil && *s != "" {
		cfg.CycleShortcut = *s
	}
	if l.Level != nil {
		cfg.Level = domain.PermissionLevel(*l.Level)
	}
	if l.RulesFile != nil {
		cfg.RulesFile = *l.RulesFile
	}
	if l.Behavior != nil {
		l.Behavior.apply(&cfg.Behavior)
	}
	if l.Model != nil {
		l.Model.apply(&cfg.Model)
	}
}

func (b behaviorLayer) apply(dst *domain.Behavior) {
	if b.Scheme != nil {
		dst.Scheme = domain.Scheme(*b.Scheme)
	}
	if b.WriteLevel != nil {
		dst.WriteLevel = domain.ImpactLevel(*b.WriteLevel)
	}
	if b.EditLevel != nil {
		dst.EditLevel = domain.ImpactLevel(*b.EditLevel)
	}
	if b.FailSafe != nil {
		dst.FailSafe = domain.FailSafe(*b.FailSafe)
	}
	if b.HistoryEscalation != nil {
		dst.HistoryEscalation = *b.HistoryEscalation
	}
	if b.AITimeout != nil {
		dst.AITimeout = *b.AITimeout
	}
	if b.CacheSize != nil {
		dst.CacheSize = *b.CacheSize
	}
	if b.ProtectedPaths != nil {
		dst.ProtectedPaths = append([]string(nil), (*b.ProtectedPaths)...)
	}
}

func (m modelLayer) apply(dst *domain.ModelSettings) {
	if m.Provider != nil {
		dst.Provider = domain.ProviderKind(*m.Provider)
	}
	if m.Name != nil {
		dst.Name = *m.Name
	}
	if m.Endpoint != nil {
		dst.Endpoint = *m.Endpoint
	}
	if m.AuthEnvVar != nil {
		dst.AuthEnvVar = *m.AuthEnvVar
	}
	if m.MaxTokens != nil {
		dst.MaxTokens = *m.MaxTokens
	}
	if m.APIFormat != nil {
		dst.APIFormat = *m.APIFormat
	}
}
