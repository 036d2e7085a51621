// Package permission holds the permission level store, the authorization
// decision engine and the host-facing handler that ties the classification
// pipeline together.
package permission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// SetOptions controls the side effects of LevelStore.Set. Nil fields mean
// true.
type SetOptions struct {
	Persist *bool
	Notify  *bool
}

func (o SetOptions) persist() bool { return o.Persist == nil || *o.Persist }
func (o SetOptions) notify() bool  { return o.Notify == nil || *o.Notify }

// Quietly disables notification for Set.
func Quietly() SetOptions {
	off := false
	return SetOptions{Notify: &off}
}

// Transiently disables persistence for Set.
func Transiently() SetOptions {
	off := false
	return SetOptions{Persist: &off}
}

// StoreDeps are the collaborators of a LevelStore. Every field is optional.
type StoreDeps struct {
	Session ports.SessionLog
	Config  ports.ConfigStore
	UI      ports.UI
	Events  ports.EventPublisher
	Logger  ports.Logger
}

// LevelStore owns the session's current permission level.
type LevelStore struct {
	mu       sync.RWMutex
	current  domain.PermissionLevel
	scheme   domain.Scheme
	shortcut string
	ui       ports.UI

	// persistMu orders writes to the session log and config file, which
	// happen outside mu.
	persistMu sync.Mutex

	session ports.SessionLog
	config  ports.ConfigStore
	events  ports.EventPublisher
	logger  ports.Logger
	now     func() time.Time
}

// NewLevelStore creates a store at the default level.
func NewLevelStore(scheme domain.Scheme, shortcut string, deps StoreDeps) *LevelStore {
	if !scheme.Valid() {
		scheme = domain.SchemeThreeLevel
	}
	return &LevelStore{
		current:  domain.DefaultPermissionLevel,
		scheme:   scheme,
		shortcut: shortcut,
		ui:       deps.UI,
		session:  deps.Session,
		config:   deps.Config,
		events:   deps.Events,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Init restores the level: the newest session entry wins, then the config
// level, then flag overrides both. Init neither persists nor notifies.
func (s *LevelStore) Init(ctx context.Context, flag string) domain.PermissionLevel {
	level := domain.DefaultPermissionLevel
	if restored, ok := s.restore(ctx); ok {
		level = restored
	}
	if flag != "" {
		parsed, err := s.scheme.Parse(flag)
		if err != nil {
			s.warn("ignoring permission level flag", map[string]interface{}{"flag": flag, "error": err.Error()})
		} else {
			level = parsed
		}
	}

	s.mu.Lock()
	s.current = level
	ui := s.ui
	s.mu.Unlock()

	s.render(ctx, ui, level)
	return level
}

func (s *LevelStore) restore(ctx context.Context) (domain.PermissionLevel, bool) {
	if s.session != nil {
		entries, err := s.session.Entries(ctx)
		if err != nil {
			s.warn("reading session log failed", map[string]interface{}{"error": err.Error()})
		}
		for i := len(entries) - 1; i >= 0; i-- {
			if level, ok := entries[i].PermissionLevel(); ok && s.scheme.Contains(level) {
				return level, true
			}
		}
	}
	if s.config != nil {
		cfg, err := s.config.Load(ctx)
		if err != nil {
			s.warn("loading config failed", map[string]interface{}{"error": err.Error()})
			return "", false
		}
		if s.scheme.Contains(cfg.Level) {
			return cfg.Level, true
		}
	}
	return "", false
}

// Current returns the active level.
func (s *LevelStore) Current() domain.PermissionLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Scheme returns the level scheme in force.
func (s *LevelStore) Scheme() domain.Scheme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheme
}

// Shortcut returns the configured cycle key.
func (s *LevelStore) Shortcut() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shortcut
}

// UI returns the attached UI, which may be nil.
func (s *LevelStore) UI() ports.UI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

// SetUI swaps the UI used for notifications and the status line.
func (s *LevelStore) SetUI(ui ports.UI) {
	s.mu.Lock()
	s.ui = ui
	s.mu.Unlock()
}

// Reconfigure applies a reloaded scheme and shortcut. A current level that
// is not part of the new scheme falls back to the default.
func (s *LevelStore) Reconfigure(ctx context.Context, scheme domain.Scheme, shortcut string) {
	if !scheme.Valid() {
		scheme = domain.SchemeThreeLevel
	}
	s.mu.Lock()
	s.scheme = scheme
	s.shortcut = shortcut
	if !scheme.Contains(s.current) {
		s.current = domain.DefaultPermissionLevel
	}
	level, ui := s.current, s.ui
	s.mu.Unlock()
	s.render(ctx, ui, level)
}

// Set changes the level. Persistence failures are reported to the user but
// the in-memory change stands.
func (s *LevelStore) Set(ctx context.Context, level domain.PermissionLevel, opts SetOptions) error {
	s.mu.Lock()
	if !s.scheme.Contains(level) {
		scheme := s.scheme
		s.mu.Unlock()
		return fmt.Errorf("%w: %q is not part of the %s scheme", domain.ErrInvalidLevel, level, scheme)
	}
	change := s.swapLocked(level)
	s.mu.Unlock()

	s.apply(ctx, change, opts)
	return nil
}

// Cycle advances to the next level of the scheme without a notification.
// The next level is chosen and stored under one lock, so concurrent cycles
// each advance by one step.
func (s *LevelStore) Cycle(ctx context.Context) domain.PermissionLevel {
	s.mu.Lock()
	change := s.swapLocked(s.scheme.Next(s.current))
	s.mu.Unlock()

	s.apply(ctx, change, Quietly())
	return change.to
}

// levelChange is a transition made under mu, applied after it is released.
type levelChange struct {
	from, to domain.PermissionLevel
	scheme   domain.Scheme
	ui       ports.UI
}

func (s *LevelStore) swapLocked(level domain.PermissionLevel) levelChange {
	change := levelChange{from: s.current, to: level, scheme: s.scheme, ui: s.ui}
	s.current = level
	return change
}

func (s *LevelStore) apply(ctx context.Context, change levelChange, opts SetOptions) {
	ui := change.ui
	if change.from != change.to && opts.persist() {
		if err := s.persist(ctx, change.to); err != nil {
			s.logError("persisting permission level failed", err)
			if ui != nil {
				ui.Notify(ctx, fmt.Sprintf("Failed to persist permission level to %s", s.globalPath()), ports.NotifyError)
			}
		}
	}

	s.render(ctx, ui, change.to)
	if s.events != nil {
		event := domain.LevelChangedEvent{From: change.from, To: change.to, Scheme: change.scheme}
		if err := s.events.Publish(ports.TopicLevelChanged, event); err != nil {
			s.warn("publishing level change failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if opts.notify() && ui != nil {
		ui.Notify(ctx, fmt.Sprintf("Permission level: %s", change.to.Upper()), ports.NotifyInfo)
	}
}

// Render refreshes the status line without changing anything.
func (s *LevelStore) Render(ctx context.Context) {
	s.mu.RLock()
	level, ui := s.current, s.ui
	s.mu.RUnlock()
	s.render(ctx, ui, level)
}

func (s *LevelStore) persist(ctx context.Context, level domain.PermissionLevel) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	var errs []error
	if s.session != nil {
		if err := s.session.Append(ctx, domain.NewPermissionEntry(level, s.now())); err != nil {
			errs = append(errs, fmt.Errorf("session log: %w", err))
		}
	}
	if s.config != nil {
		if err := s.config.SaveLevel(ctx, level); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrPersistence, errs)
}

func (s *LevelStore) render(ctx context.Context, ui ports.UI, level domain.PermissionLevel) {
	if ui == nil || !ui.HasUI() {
		return
	}
	ui.SetStatus(ctx, WidgetText(level, s.Shortcut()))
}

func (s *LevelStore) globalPath() string {
	if s.config == nil {
		return "(no config store)"
	}
	return s.config.GlobalPath()
}

func (s *LevelStore) warn(msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, fields)
	}
}

func (s *LevelStore) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, err, nil)
	}
}
