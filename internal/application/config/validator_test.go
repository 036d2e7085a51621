package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/sentry-go/internal/domain"
)

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, Validate(domain.DefaultConfig()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
		want   string
	}{
		{"level outside scheme", func(c *domain.Config) { c.Level = domain.PermissionYOLO }, "invalid level"},
		{"fail safe", func(c *domain.Config) { c.Behavior.FailSafe = "maybe" }, "behavior.fail_safe"},
		{"unknown provider", func(c *domain.Config) { c.Model.Provider = "gemini"; c.Model.Name = "x" }, "model.provider"},
		{"http without endpoint", func(c *domain.Config) { c.Model.Provider = domain.ProviderHTTP; c.Model.Name = "x" }, "model.endpoint is required"},
		{"model without name", func(c *domain.Config) { c.Model.Provider = domain.ProviderAnthropic }, "model.name"},
		{"bad endpoint", func(c *domain.Config) {
			c.Model = domain.ModelSettings{Provider: domain.ProviderOpenAI, Name: "gpt", Endpoint: "not a url"}
		}, "model.endpoint invalid"},
		{"empty shortcut", func(c *domain.Config) { c.CycleShortcut = " " }, "cycle_shortcut"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
