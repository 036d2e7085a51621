package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/pkg/telemetry"
	"github.com/doeshing/sentry-go/internal/ports"
)

// Classifier assigns an assessment to tool calls and user commands,
// resolving unknown results where it can.
type Classifier interface {
	Classify(ctx context.Context, call domain.ToolCall, conv ports.Conversation) domain.Assessment
	ClassifyUserBash(ctx context.Context, command string, conv ports.Conversation) domain.Assessment
}

// Escalator may raise a known assessment using the conversation.
type Escalator interface {
	EscalateWithHistory(ctx context.Context, assessment domain.Assessment, conv ports.Conversation) domain.Assessment
}

// Handler is the host-facing entry point of the permission system.
// Classifier, Escalator and AIEnabled may be swapped with Reload while
// requests are in flight.
type Handler struct {
	mu sync.RWMutex

	Store      *LevelStore
	Classifier Classifier
	Escalator  Escalator
	Config     ports.ConfigStore
	Session    ports.SessionLog
	Decisions  ports.DecisionStore
	Events     ports.EventPublisher
	Logger     ports.Logger
	Telemetry  *telemetry.Instruments
	SessionID  string
	AIEnabled  bool
}

// Outcome is an authorization together with the assessment it was based on.
type Outcome struct {
	Assessment domain.Assessment `json:"assessment"`
	Decision   domain.Decision   `json:"decision"`
}

// OnToolCall authorizes an agent tool call.
func (h *Handler) OnToolCall(ctx context.Context, call domain.ToolCall, conv ports.Conversation) Outcome {
	ctx, span := h.Telemetry.StartSpan(ctx, "permission.tool_call", attribute.String("sentry.tool", call.ToolName))

	current := h.Store.Current()
	if h.Store.Scheme().Bypasses(current) {
		telemetry.EndSpan(span, nil)
		return Outcome{
			Assessment: domain.Assessment{Source: domain.AgentSource(call.ToolName), Operation: call.ToolName},
			Decision:   domain.Allow(),
		}
	}
	classifier, _, _ := h.pipeline()
	outcome, err := h.decide(ctx, current, conv, func(ctx context.Context) domain.Assessment {
		return classifier.Classify(ctx, call, conv)
	})
	telemetry.EndSpan(span, err)
	return outcome
}

// OnUserBash authorizes a command typed by the user. It returns nil when
// the command may run, and the synthetic failed result otherwise.
func (h *Handler) OnUserBash(ctx context.Context, event domain.BashEvent, conv ports.Conversation) (*domain.BashResult, Outcome) {
	ctx, span := h.Telemetry.StartSpan(ctx, "permission.user_bash")

	current := h.Store.Current()
	if h.Store.Scheme().Bypasses(current) {
		telemetry.EndSpan(span, nil)
		return nil, Outcome{
			Assessment: domain.Assessment{Source: domain.SourceUserBash, Operation: event.Command},
			Decision:   domain.Allow(),
		}
	}
	classifier, _, _ := h.pipeline()
	outcome, err := h.decide(ctx, current, conv, func(ctx context.Context) domain.Assessment {
		return classifier.ClassifyUserBash(ctx, event.Command, conv)
	})
	telemetry.EndSpan(span, err)
	if outcome.Decision.Allowed {
		return nil, outcome
	}
	return domain.BlockedBash(outcome.Decision.Reason), outcome
}

// decide runs the pipeline. The error reports a decision that was made but
// could not be recorded.
func (h *Handler) decide(ctx context.Context, current domain.PermissionLevel, conv ports.Conversation, classify func(context.Context) domain.Assessment) (Outcome, error) {
	started := time.Now()
	assessment := classify(ctx)
	if _, escalator, _ := h.pipeline(); escalator != nil {
		assessment = escalator.EscalateWithHistory(ctx, assessment, conv)
	}

	authorizer := Authorizer{Scheme: h.Store.Scheme(), Logger: h.Logger}
	decision := authorizer.Authorize(ctx, assessment, current, h.Store.UI())

	h.Telemetry.RecordDecision(ctx, time.Since(started),
		telemetry.AttrSource.String(assessment.Source),
		telemetry.AttrImpact.String(assessment.ImpactLabel()),
		telemetry.AttrUnknown.Bool(assessment.Unknown),
		telemetry.AttrPermission.String(string(current)),
		telemetry.AttrAllowed.Bool(decision.Allowed),
	)
	err := h.audit(ctx, assessment, current, decision)
	h.debug("authorized", map[string]interface{}{
		"source":    assessment.Source,
		"operation": assessment.Operation,
		"impact":    assessment.ImpactLabel(),
		"reason":    assessment.Reason,
		"allowed":   decision.Allowed,
	})
	return Outcome{Assessment: assessment, Decision: decision}, err
}

// Assess runs the classification stages for call without authorizing it.
func (h *Handler) Assess(ctx context.Context, call domain.ToolCall, conv ports.Conversation) domain.Assessment {
	classifier, escalator, _ := h.pipeline()
	assessment := classifier.Classify(ctx, call, conv)
	if escalator != nil {
		assessment = escalator.EscalateWithHistory(ctx, assessment, conv)
	}
	return assessment
}

// Reload swaps the classification stages.
func (h *Handler) Reload(classifier Classifier, escalator Escalator, aiEnabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Classifier = classifier
	h.Escalator = escalator
	h.AIEnabled = aiEnabled
}

func (h *Handler) pipeline() (Classifier, Escalator, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Classifier, h.Escalator, h.AIEnabled
}

func (h *Handler) audit(ctx context.Context, assessment domain.Assessment, current domain.PermissionLevel, decision domain.Decision) error {
	record := domain.DecisionRecord{
		ID:              ulid.Make().String(),
		SessionID:       h.SessionID,
		Timestamp:       time.Now().UTC(),
		Source:          assessment.Source,
		Operation:       assessment.Operation,
		Level:           assessment.Level,
		Unknown:         assessment.Unknown,
		Reason:          assessment.Reason,
		PermissionLevel: current,
		Allowed:         decision.Allowed,
		BlockReason:     decision.Reason,
	}
	var errs []error
	if h.Decisions != nil {
		if err := h.Decisions.Save(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("save decision: %w", err))
			if h.Logger != nil {
				h.Logger.Warn("saving decision failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	if h.Events != nil {
		if err := h.Events.Publish(ports.TopicDecided, record); err != nil {
			errs = append(errs, fmt.Errorf("publish decision: %w", err))
			if h.Logger != nil {
				h.Logger.Warn("publishing decision failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return errors.Join(errs...)
}

// HandlePermissionCommand implements /permission [level].
func (h *Handler) HandlePermissionCommand(ctx context.Context, args string) error {
	ui := h.Store.UI()
	scheme := h.Store.Scheme()
	value := strings.TrimSpace(args)

	if value == "" {
		if ui == nil || !ui.HasUI() {
			h.notify(ctx, ui, fmt.Sprintf("Permission level: %s", h.Store.Current().Upper()), ports.NotifyInfo)
			return nil
		}
		levels := scheme.Levels()
		options := make([]string, 0, len(levels))
		for _, level := range levels {
			options = append(options, LevelOption(level))
		}
		choice, ok, err := ui.Select(ctx, "Select permission level:", options)
		if err != nil {
			return fmt.Errorf("select permission level: %w", err)
		}
		if !ok {
			return nil
		}
		for _, level := range levels {
			if LevelOption(level) == choice {
				return h.Store.Set(ctx, level, SetOptions{})
			}
		}
		return nil
	}

	level, err := scheme.Parse(value)
	if err != nil {
		message := permissionUsage(scheme)
		if suggestion := closestLevel(scheme, value); suggestion != "" {
			message += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		h.notify(ctx, ui, message, ports.NotifyWarning)
		return err
	}
	return h.Store.Set(ctx, level, SetOptions{})
}

func permissionUsage(scheme domain.Scheme) string {
	names := make([]string, 0, 3)
	for _, level := range scheme.Levels() {
		names = append(names, string(level))
	}
	return fmt.Sprintf("Usage: /permission [%s]", strings.Join(names, "|"))
}

// closestLevel suggests a level within edit distance 2 of value.
func closestLevel(scheme domain.Scheme, value string) domain.PermissionLevel {
	value = strings.ToLower(value)
	best, bestDistance := domain.PermissionLevel(""), 3
	for _, level := range scheme.Levels() {
		if distance := levenshtein.ComputeDistance(value, string(level)); distance < bestDistance {
			best, bestDistance = level, distance
		}
	}
	return best
}

// ShortcutUsage is shown when /pi-sentry gets no key.
const ShortcutUsage = "Usage: /pi-sentry <key> [--reload]"

// HandleShortcutCommand implements /pi-sentry <key> [--reload]. It reports
// whether the host should reload now.
func (h *Handler) HandleShortcutCommand(ctx context.Context, args string) (reload bool, err error) {
	ui := h.Store.UI()
	fields := strings.Fields(args)
	if len(fields) == 0 {
		h.notify(ctx, ui, fmt.Sprintf("Current shortcut: %s", h.currentShortcut(ctx)), ports.NotifyInfo)
		h.notify(ctx, ui, ShortcutUsage, ports.NotifyInfo)
		return false, nil
	}

	var keys []string
	for _, field := range fields {
		if field == "--reload" {
			reload = true
			continue
		}
		keys = append(keys, field)
	}
	shortcut := strings.TrimSpace(strings.Join(keys, " "))
	if shortcut == "" {
		h.notify(ctx, ui, ShortcutUsage, ports.NotifyInfo)
		return false, nil
	}

	if h.Config == nil {
		return false, fmt.Errorf("%w: no config store", domain.ErrPersistence)
	}
	if err := h.Config.SaveShortcut(ctx, shortcut); err != nil {
		h.notify(ctx, ui, fmt.Sprintf("Failed to persist shortcut to %s", h.Config.GlobalPath()), ports.NotifyError)
		return false, err
	}
	if reload {
		h.notify(ctx, ui, fmt.Sprintf("Saved shortcut: %s. Reloading...", shortcut), ports.NotifyInfo)
		return true, nil
	}
	h.notify(ctx, ui, fmt.Sprintf("Saved shortcut: %s", shortcut), ports.NotifyInfo)
	h.notify(ctx, ui, "It will take effect after /reload (or restart).", ports.NotifyInfo)
	return false, nil
}

func (h *Handler) currentShortcut(ctx context.Context) string {
	if h.Config != nil {
		if cfg, err := h.Config.Load(ctx); err == nil {
			return cfg.GetCycleShortcut()
		}
	}
	if shortcut := h.Store.Shortcut(); shortcut != "" {
		return shortcut
	}
	return domain.DefaultCycleShortcut
}

// RecordUserMessage appends a user message to the session log, which is
// what history escalation reads.
func (h *Handler) RecordUserMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if h.Session == nil {
		return fmt.Errorf("%w: no session log", domain.ErrPersistence)
	}
	if err := h.Session.Append(ctx, domain.NewMessageEntry("user", text, time.Now().UTC())); err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// Cycle is the shortcut action.
func (h *Handler) Cycle(ctx context.Context) domain.PermissionLevel {
	return h.Store.Cycle(ctx)
}

// SessionStart restores the level and renders the status widget.
func (h *Handler) SessionStart(ctx context.Context, flag string) domain.PermissionLevel {
	return h.Store.Init(ctx, flag)
}

// SystemPromptSuffix is appended to the agent's system prompt before each
// turn.
func (h *Handler) SystemPromptSuffix() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Permission policy active. Current level: %s.", h.Store.Current().Upper())
	if _, _, aiEnabled := h.pipeline(); aiEnabled {
		b.WriteString(" Unknown bash/tool impacts are AI-classified from operation semantics and conversation intent.")
	} else {
		b.WriteString(" Unknown bash/tool risks require approval.")
	}
	if h.Store.Scheme() == domain.SchemeYOLO {
		b.WriteString(" YOLO level bypasses all checks.")
	}
	return b.String()
}

func (h *Handler) notify(ctx context.Context, ui ports.UI, message string, level ports.NotifyLevel) {
	if ui != nil {
		ui.Notify(ctx, message, level)
		return
	}
	if h.Logger != nil {
		h.Logger.Info(message, map[string]interface{}{"notify": string(level)})
	}
}

func (h *Handler) debug(msg string, fields map[string]interface{}) {
	if h.Logger != nil {
		h.Logger.Debug(msg, fields)
	}
}
