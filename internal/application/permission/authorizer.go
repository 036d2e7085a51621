package permission

import (
	"context"
	"fmt"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// Authorizer turns an assessment into a decision for the current level.
type Authorizer struct {
	Scheme domain.Scheme
	Logger ports.Logger
}

// Authorize allows assessments within the level's threshold. Anything else
// is put to the user when a UI is present, and blocked otherwise.
func (a Authorizer) Authorize(ctx context.Context, assessment domain.Assessment, current domain.PermissionLevel, ui ports.UI) domain.Decision {
	scheme := a.Scheme
	if !scheme.Valid() {
		scheme = domain.SchemeThreeLevel
	}
	if scheme.Bypasses(current) {
		return domain.Allow()
	}

	maxAllowed := scheme.MaxAllowed(current)
	if !assessment.Unknown && assessment.Level.Rank() <= maxAllowed.Rank() {
		return domain.Allow()
	}

	base := blockedReason(assessment)
	if ui == nil || !ui.HasUI() {
		return domain.Block(fmt.Sprintf("%s: %s", base, assessment.Operation))
	}

	choice, ok, err := ui.Select(ctx, ApprovalTitle(assessment), []string{OptionAllow, OptionCancel})
	if err != nil {
		if a.Logger != nil {
			a.Logger.Warn("approval prompt failed", map[string]interface{}{
				"operation": assessment.Operation,
				"error":     err.Error(),
			})
		}
		return domain.Block(base)
	}
	if ok && choice == OptionAllow {
		return domain.Allow()
	}
	return domain.Block(base)
}

func blockedReason(assessment domain.Assessment) string {
	if assessment.Unknown {
		return "Blocked unknown-risk operation"
	}
	return fmt.Sprintf("Blocked %s-risk operation", assessment.Level)
}
