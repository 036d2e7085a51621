package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/doeshing/sentry-go/internal/application/doctor"
	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/infrastructure/ai"
	"github.com/doeshing/sentry-go/internal/infrastructure/cache"
	"github.com/doeshing/sentry-go/internal/infrastructure/config"
	"github.com/doeshing/sentry-go/internal/infrastructure/events"
	"github.com/doeshing/sentry-go/internal/infrastructure/history"
	"github.com/doeshing/sentry-go/internal/infrastructure/security"
	"github.com/doeshing/sentry-go/internal/pkg/filesystem"
	"github.com/doeshing/sentry-go/internal/pkg/logger"
	"github.com/doeshing/sentry-go/internal/pkg/telemetry"
	"github.com/doeshing/sentry-go/internal/ports"
)

// Options are the process-wide settings taken from flags and environment.
type Options struct {
	Verbose        bool
	ConfigPath     string
	ProjectDir     string
	SessionID      string
	PermissionFlag string
	// Home overrides the sentry home directory.
	Home string
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Options      Options
	Logger       *logger.Logger
	ConfigLoader *config.FileLoader
	Paths        config.Paths
	Stores       history.Stores
	Cache        *cache.ClassificationCache
	Events       *events.Bus
	Store        *permission.LevelStore
	Handler      *permission.Handler
	Doctor       *doctor.Service

	mu        sync.RWMutex
	cfg       domain.Config
	rules     *security.RuleClassifier
	factory   *ai.Factory
	lastLevel domain.PermissionLevel
}

// BuildContainer constructs the dependency graph. Model and rules problems
// are logged and degrade to the built-in tables and the fail-safe.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	log := logger.FromEnv(opts.Verbose, nil)

	home := opts.Home
	if home == "" {
		home = filesystem.SentryHome()
	}
	paths := config.DefaultPaths(opts.ProjectDir)
	if opts.ConfigPath != "" {
		paths.Global = filesystem.ExpandHome(opts.ConfigPath)
	}
	if opts.SessionID == "" {
		opts.SessionID = history.DefaultSessionID
	}

	loader := config.NewFileLoader(paths, log)
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	stores := history.Open(home, opts.SessionID, log)

	classifications, err := cache.NewPersistent(cfg.Behavior.GetCacheSize(), filepath.Join(home, "cache", "classifications.json"))
	if err != nil {
		log.Warn("classification cache not persisted", map[string]interface{}{"error": err.Error()})
		classifications = cache.New(cfg.Behavior.GetCacheSize())
	}

	bus := events.NewBus()
	store := permission.NewLevelStore(cfg.Behavior.GetScheme(), cfg.GetCycleShortcut(), permission.StoreDeps{
		Session: stores.Session,
		Config:  loader,
		Events:  bus,
		Logger:  log,
	})

	c := &Container{
		Options:      opts,
		Logger:       log,
		ConfigLoader: loader,
		Paths:        paths,
		Stores:       stores,
		Cache:        classifications,
		Events:       bus,
		Store:        store,
		factory:      ai.NewFactory(),
		lastLevel:    cfg.Level,
	}

	classifier, assessor, aiEnabled := c.pipeline(ctx, cfg)
	c.cfg = cfg

	c.Handler = &permission.Handler{
		Store:      store,
		Classifier: classifier,
		Escalator:  assessor,
		AIEnabled:  aiEnabled,
		Config:     loader,
		Session:    stores.Session,
		Decisions:  stores.Decisions,
		Events:     bus,
		Logger:     log,
		Telemetry:  telemetry.New(),
		SessionID:  opts.SessionID,
	}

	c.Doctor = &doctor.Service{
		Config:         loader,
		Layers:         loader,
		Rules:          countRules,
		Decisions:      stores.Decisions,
		HistoryBackend: stores.Backend,
		Cache: func() doctor.CacheInfo {
			return doctor.CacheInfo{Entries: classifications.Len(), Capacity: classifications.Capacity(), Path: classifications.Path()}
		},
	}
	return c, nil
}

// pipeline builds the rule classifier, the assessor and the tool classifier
// for cfg.
func (c *Container) pipeline(ctx context.Context, cfg domain.Config) (*security.ToolClassifier, *ai.Assessor, bool) {
	userRules, err := security.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		c.Logger.Warn("user rules ignored", map[string]interface{}{"path": cfg.RulesFile, "error": err.Error()})
		userRules = security.RuleSet{}
	}
	rules := security.NewRuleClassifier(userRules)

	var completer ports.Completer
	if cfg.Model.Enabled() {
		completer, err = c.factory.ForModel(ctx, cfg.Model)
		if err != nil {
			c.Logger.Warn("model unavailable, unknown operations use the fail-safe", map[string]interface{}{
				"provider": string(cfg.Model.Provider),
				"model":    cfg.Model.Name,
				"error":    err.Error(),
			})
			completer = nil
		}
	}

	assessor := ai.NewAssessor(completer, c.Cache, cfg.Behavior, c.Logger)
	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()
	return security.NewToolClassifier(rules, assessor, cfg.Behavior), assessor, completer != nil
}

// Config returns the config the pipeline was last built from.
func (c *Container) Config() domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Rules returns the active rule classifier.
func (c *Container) Rules() *security.RuleClassifier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules
}

// Start restores the permission level for the session.
func (c *Container) Start(ctx context.Context) domain.PermissionLevel {
	return c.Handler.SessionStart(ctx, c.Options.PermissionFlag)
}

// Reload re-reads the config layers and swaps the pipeline. A level edited
// in a config file by hand is applied without being written back.
func (c *Container) Reload(ctx context.Context) error {
	cfg, err := c.ConfigLoader.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	classifier, assessor, aiEnabled := c.pipeline(ctx, cfg)
	c.Handler.Reload(classifier, assessor, aiEnabled)
	c.Store.Reconfigure(ctx, cfg.Behavior.GetScheme(), cfg.GetCycleShortcut())

	c.mu.Lock()
	external := cfg.Level != c.lastLevel && cfg.Level != c.Store.Current()
	c.cfg, c.lastLevel = cfg, cfg.Level
	c.mu.Unlock()

	if external {
		if err := c.Store.Set(ctx, cfg.Level, permission.Transiently()); err != nil {
			return err
		}
	}
	c.Logger.Info("config reloaded", map[string]interface{}{
		"scheme": string(cfg.Behavior.GetScheme()),
		"level":  string(c.Store.Current()),
	})
	return nil
}

// Watch reloads the container whenever a config layer changes, until ctx
// is done.
func (c *Container) Watch(ctx context.Context) error {
	watcher, err := config.NewWatcher(c.Paths, func() {
		if err := c.Reload(ctx); err != nil {
			c.Logger.Warn("config reload failed", map[string]interface{}{"error": err.Error()})
		}
	}, c.Logger)
	if err != nil {
		return err
	}
	go watcher.Run(ctx)
	return nil
}

// Close releases the history database.
func (c *Container) Close() error {
	if c.Events != nil {
		_ = c.Events.Close()
	}
	return c.Stores.Close()
}

// NewSessionID returns a fresh sortable session id.
func NewSessionID() string {
	return ulid.Make().String()
}

func countRules(path string) (int, error) {
	set, err := security.LoadRulesFile(path)
	if err != nil {
		return 0, err
	}
	return set.Len(), nil
}
