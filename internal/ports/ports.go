// Package ports defines the interfaces (ports) between the permission engine
// and its adapters.
//
// The engine never talks to a terminal, a database or a model API directly.
// It depends on the narrow capabilities declared here, and the
// infrastructure layer supplies implementations:
//   - UI capabilities (Notifier, Selector, StatusLine) for prompts and the widget
//   - Completer for model access
//   - SessionLog and ConfigStore for persistence
//   - DecisionStore and EventPublisher for auditing
package ports

import (
	"context"

	"github.com/doeshing/sentry-go/internal/domain"
)

// NotifyLevel is the severity of a user-visible notification.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// Notifier surfaces a short message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string, level NotifyLevel)
}

// Selector asks the user to pick one of the options. It returns the chosen
// option, or ok=false when the prompt was dismissed.
type Selector interface {
	Select(ctx context.Context, title string, options []string) (choice string, ok bool, err error)
}

// StatusLine renders the persistent status widget.
type StatusLine interface {
	SetStatus(ctx context.Context, text string)
}

// UI bundles the interactive capabilities of the host. HasUI reports
// whether a user is present to answer prompts.
type UI interface {
	Notifier
	Selector
	StatusLine
	HasUI() bool
}

// CompletionRequest is a single-turn model request.
type CompletionRequest struct {
	System string
	User   string
}

// Completer returns the concatenated text of a model completion.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Conversation gives read access to the current session's messages.
type Conversation interface {
	// RecentUserMessages returns up to n user-authored texts, most recent first.
	RecentUserMessages(ctx context.Context, n int) ([]string, error)
}

// SessionLog is the append-only session entry log.
type SessionLog interface {
	Conversation
	Append(ctx context.Context, entry domain.SessionEntry) error
	Entries(ctx context.Context) ([]domain.SessionEntry, error)
	Path() string
}

// ConfigStore loads the merged config and persists user-level keys.
type ConfigStore interface {
	Load(ctx context.Context) (domain.Config, error)
	SaveLevel(ctx context.Context, level domain.PermissionLevel) error
	SaveShortcut(ctx context.Context, shortcut string) error
	GlobalPath() string
}

// DecisionStore keeps the authorization audit trail.
type DecisionStore interface {
	Save(ctx context.Context, record domain.DecisionRecord) error
	Records(ctx context.Context, limit int) ([]domain.DecisionRecord, error)
	Stats(ctx context.Context) (domain.DecisionStats, error)
	Clear(ctx context.Context) error
}

// Event topics.
const (
	TopicLevelChanged = "permission.level_changed"
	TopicDecided      = "permission.decided"
)

// EventPublisher broadcasts engine events to interested transports.
type EventPublisher interface {
	Publish(topic string, payload interface{}) error
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
