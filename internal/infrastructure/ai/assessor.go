package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/infrastructure/cache"
	"github.com/doeshing/sentry-go/internal/ports"
)

// Assessor resolves unknown assessments with a model and escalates known
// ones from recent user intent. It never lowers a known level.
type Assessor struct {
	completer ports.Completer
	cache     *cache.ClassificationCache
	behavior  domain.Behavior
	logger    ports.Logger
}

// NewAssessor wires an assessor. completer may be nil when no model is
// configured; every unknown then goes through the fail-safe.
func NewAssessor(completer ports.Completer, classifications *cache.ClassificationCache, behavior domain.Behavior, logger ports.Logger) *Assessor {
	if classifications == nil {
		classifications = cache.New(behavior.GetCacheSize())
	}
	return &Assessor{
		completer: completer,
		cache:     classifications,
		behavior:  behavior,
		logger:    logger,
	}
}

// ClassifyUnknown asks the model for the level of an unmapped operation.
func (a *Assessor) ClassifyUnknown(ctx context.Context, assessment domain.Assessment, _ ports.Conversation) domain.Assessment {
	if !assessment.Unknown {
		return assessment
	}

	key := cache.Key(assessment.Source, assessment.Operation)
	if level, ok := a.cache.Get(key); ok {
		return assessment.Resolved(level, domain.ReasonAIClassified)
	}

	level, err := a.complete(ctx, ports.CompletionRequest{
		System: classifierSystemPrompt,
		User:   classifierUserPrompt(assessment),
	})
	if err != nil {
		return a.failSafe(assessment, err)
	}

	if err := a.cache.Put(key, level); err != nil {
		a.logger.Warn("classification cache write failed", map[string]interface{}{
			"path":  a.cache.Path(),
			"error": err.Error(),
		})
	}
	a.logger.Debug("model classified operation", map[string]interface{}{
		"source":    assessment.Source,
		"operation": truncate(assessment.Operation, domain.CompoundOperationDisplayLimit),
		"level":     string(level),
	})
	return assessment.Resolved(level, domain.ReasonAIClassified)
}

// EscalateWithHistory raises a known level when recent user messages point
// at a more sensitive target. Failures leave the assessment unchanged.
func (a *Assessor) EscalateWithHistory(ctx context.Context, assessment domain.Assessment, conv ports.Conversation) domain.Assessment {
	if assessment.Unknown || !a.behavior.HistoryEscalation || conv == nil || a.completer == nil {
		return assessment
	}

	messages, err := conv.RecentUserMessages(ctx, domain.HistoryMessageCount)
	if err != nil {
		a.logger.Debug("recent user messages unavailable", map[string]interface{}{"error": err.Error()})
		return assessment
	}
	history := recentIntent(messages)
	if history == "" {
		return assessment
	}

	level, err := a.complete(ctx, ports.CompletionRequest{
		System: escalatorSystemPrompt,
		User:   escalatorUserPrompt(assessment, history),
	})
	if err != nil {
		a.logger.Debug("history escalation skipped", map[string]interface{}{"error": err.Error()})
		return assessment
	}

	final := domain.MaxImpact(assessment.Level, level)
	if final == assessment.Level {
		return assessment
	}
	a.logger.Info("history escalated operation", map[string]interface{}{
		"source": assessment.Source,
		"from":   string(assessment.Level),
		"to":     string(final),
	})
	return assessment.WithLevel(final, domain.ReasonHistoryEscalated)
}

func (a *Assessor) complete(ctx context.Context, req ports.CompletionRequest) (domain.ImpactLevel, error) {
	if a.completer == nil {
		return "", fmt.Errorf("%w: no completer", domain.ErrModelUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, a.behavior.GetAITimeout())
	defer cancel()

	text, err := a.completer.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrModelUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrModelUnavailable, ctx.Err())
	}
	return ParseClassification(text)
}

func (a *Assessor) failSafe(assessment domain.Assessment, err error) domain.Assessment {
	a.logger.Warn("model classification failed", map[string]interface{}{
		"source":    assessment.Source,
		"error":     err.Error(),
		"fail_safe": string(a.behavior.GetFailSafe()),
	})
	if a.behavior.GetFailSafe() == domain.FailSafeBlock {
		return assessment
	}
	return assessment.Resolved(domain.ImpactHigh, domain.ReasonAIUnavailable)
}
