package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/doeshing/sentry-go/internal/domain"
)

// Validate checks a merged config for values the engine would silently
// repair or ignore at runtime.
func Validate(cfg domain.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateBehavior(cfg.Behavior); err != nil {
		return err
	}
	if err := validateModel(cfg.Model); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.CycleShortcut) == "" {
		return errors.New("cycle_shortcut must not be empty")
	}
	return nil
}

func validateBehavior(behavior domain.Behavior) error {
	if behavior.Scheme != "" && !behavior.Scheme.Valid() {
		return fmt.Errorf("behavior.scheme must be three-level|yolo, got %s", behavior.Scheme)
	}
	switch behavior.FailSafe {
	case "", domain.FailSafeHigh, domain.FailSafeBlock:
	default:
		return fmt.Errorf("behavior.fail_safe must be high|block, got %s", behavior.FailSafe)
	}
	if behavior.AITimeout < 0 {
		return fmt.Errorf("behavior.ai_timeout must be >= 0")
	}
	if behavior.CacheSize < 0 {
		return fmt.Errorf("behavior.cache_size must be >= 0")
	}
	return nil
}

func validateModel(model domain.ModelSettings) error {
	switch model.Provider {
	case "", domain.ProviderNone:
		return nil
	case domain.ProviderAnthropic, domain.ProviderOpenAI:
	case domain.ProviderHTTP:
		if model.Endpoint == "" {
			return errors.New("model.endpoint is required for the http provider")
		}
	default:
		return fmt.Errorf("model.provider must be none|anthropic|openai|http, got %s", model.Provider)
	}
	if model.Name == "" {
		return fmt.Errorf("model.name must be set for provider %s", model.Provider)
	}
	if model.Endpoint != "" {
		parsed, err := url.Parse(model.Endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("model.endpoint invalid: %q", model.Endpoint)
		}
	}
	switch model.APIFormat.SystemMessageMode {
	case "", domain.SystemMessageModeInline, domain.SystemMessageModeSeparate:
	default:
		return fmt.Errorf("model.api_format.system_message_mode must be inline|separate, got %s", model.APIFormat.SystemMessageMode)
	}
	return nil
}
