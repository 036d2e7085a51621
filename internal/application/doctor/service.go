package doctor

import (
	"context"
	"fmt"
	"os"

	configapp "github.com/doeshing/sentry-go/internal/application/config"
	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// LayerSource reports the config layers without merging them.
type LayerSource interface {
	Layers() []domain.ConfigLayer
}

// RulesChecker compiles the user rules file and counts its rules.
type RulesChecker func(path string) (int, error)

// CacheInfo describes the classification cache.
type CacheInfo struct {
	Entries  int
	Capacity int
	Path     string
}

// Service runs environment diagnostics.
type Service struct {
	Config         ports.ConfigStore
	Layers         LayerSource
	Rules          RulesChecker
	Decisions      ports.DecisionStore
	HistoryBackend string
	Cache          func() CacheInfo
	Getenv         func(string) string
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	if s.Layers != nil {
		for _, layer := range s.Layers.Layers() {
			checks = append(checks, layerCheck(layer))
		}
	}

	cfg, err := s.Config.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := configapp.Validate(cfg); err != nil {
		checks = append(checks, warn("Config", err.Error()))
	} else {
		checks = append(checks, ok("Config", fmt.Sprintf("level %s, scheme %s", cfg.Level, cfg.Behavior.GetScheme())))
	}

	checks = append(checks, s.rulesCheck(cfg.RulesFile))
	checks = append(checks, s.modelCheck(cfg.Model, cfg.Behavior))
	checks = append(checks, s.historyCheck(ctx))
	if s.Cache != nil {
		info := s.Cache()
		details := fmt.Sprintf("%d/%d entries", info.Entries, info.Capacity)
		if info.Path != "" {
			details += " at " + info.Path
		}
		checks = append(checks, ok("Classification cache", details))
	}

	return domain.HealthReport{Checks: checks}, nil
}

func layerCheck(layer domain.ConfigLayer) domain.HealthCheck {
	name := fmt.Sprintf("Config layer (%s)", layer.Name)
	switch {
	case layer.Err != nil:
		return fail(name, fmt.Sprintf("%s skipped: %v", layer.Path, layer.Err))
	case !layer.Exists:
		return warn(name, fmt.Sprintf("%s not found", layer.Path))
	default:
		return ok(name, layer.Path)
	}
}

func (s *Service) rulesCheck(path string) domain.HealthCheck {
	if path == "" {
		return ok("User rules", "none configured, built-in tables only")
	}
	if s.Rules == nil {
		return warn("User rules", "rules checker not initialized")
	}
	count, err := s.Rules(path)
	if err != nil {
		return fail("User rules", err.Error())
	}
	return ok("User rules", fmt.Sprintf("%d rules from %s", count, path))
}

func (s *Service) modelCheck(model domain.ModelSettings, behavior domain.Behavior) domain.HealthCheck {
	if !model.Enabled() {
		if behavior.GetFailSafe() == domain.FailSafeBlock {
			return warn("AI classifier", "no model configured, unknown operations require approval")
		}
		return warn("AI classifier", "no model configured, unknown operations are treated as high impact")
	}
	if envVar := model.GetAuthEnvVar(); envVar != "" && s.getenv(envVar) == "" {
		return warn("AI classifier", fmt.Sprintf("%s missing for %s/%s", envVar, model.Provider, model.Name))
	}
	return ok("AI classifier", fmt.Sprintf("%s/%s, timeout %s", model.Provider, model.Name, behavior.GetAITimeout()))
}

func (s *Service) historyCheck(ctx context.Context) domain.HealthCheck {
	if s.Decisions == nil {
		return warn("History", "audit store not initialized")
	}
	stats, err := s.Decisions.Stats(ctx)
	if err != nil {
		return fail("History", err.Error())
	}
	details := fmt.Sprintf("%d decisions recorded", stats.Total)
	if s.HistoryBackend != "" {
		details = fmt.Sprintf("%s backend, %s", s.HistoryBackend, details)
	}
	if s.HistoryBackend == "jsonl" {
		return warn("History", details)
	}
	return ok("History", details)
}

func (s *Service) getenv(key string) string {
	if s.Getenv != nil {
		return s.Getenv(key)
	}
	return os.Getenv(key)
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
