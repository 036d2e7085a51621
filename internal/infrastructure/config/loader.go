package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/doeshing/sentry-go/assets"
	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/pkg/filesystem"
	"github.com/doeshing/sentry-go/internal/ports"
)

// Paths locates the user-editable config layers. Legacy is the user file
// older releases wrote; it is read below the global file and never written.
type Paths struct {
	Legacy  string
	Global  string
	Project string
}

// DefaultPaths resolves the global file from SENTRY_CONFIG or the sentry
// home, and the project file under projectDir.
func DefaultPaths(projectDir string) Paths {
	home := filesystem.SentryHome()
	global := filepath.Join(home, "config.json")
	if custom := os.Getenv(domain.EnvConfig); custom != "" {
		global = filesystem.ExpandHome(custom)
	}
	paths := Paths{Legacy: filepath.Join(home, "legacy-config.json"), Global: global}
	if projectDir != "" {
		paths.Project = filepath.Join(projectDir, ".sentry", "config.json")
	}
	return paths
}

// FileLoader merges defaults, the embedded package file, the legacy file,
// the global file and the project file, per key, in that order.
type FileLoader struct {
	paths  Paths
	logger ports.Logger
	// writeMu orders writes to the global file.
	writeMu sync.Mutex
}

// NewFileLoader builds a loader over paths.
func NewFileLoader(paths Paths, logger ports.Logger) *FileLoader {
	return &FileLoader{paths: paths, logger: logger}
}

// Load implements ports.ConfigStore. Unreadable or invalid layers are
// skipped with a warning so a broken file never disables the engine.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	cfg := domain.DefaultConfig()
	for _, status := range l.apply(&cfg) {
		if status.Err != nil {
			l.logger.Warn("config layer skipped", map[string]interface{}{
				"layer": status.Name,
				"path":  status.Path,
				"error": status.Err.Error(),
			})
		}
	}
	if cfg.RulesFile == "" {
		if _, err := os.Stat(l.RulesPath()); err == nil {
			cfg.RulesFile = l.RulesPath()
		}
	}
	return normalize(cfg, l.logger), nil
}

// Layers reports every source without merging them.
func (l *FileLoader) Layers() []domain.ConfigLayer {
	cfg := domain.DefaultConfig()
	return l.apply(&cfg)
}

func (l *FileLoader) apply(cfg *domain.Config) []domain.ConfigLayer {
	statuses := make([]domain.ConfigLayer, 0, 4)

	embedded := domain.ConfigLayer{Name: "package", Path: "embedded:defaults/config.json", Exists: true}
	if parsed, err := decodeLayer(assets.DefaultConfigJSON); err != nil {
		embedded.Err = err
	} else {
		parsed.apply(cfg)
	}
	statuses = append(statuses, embedded)

	for _, file := range []struct{ name, path string }{
		{"global", l.paths.Global},
		{"project", l.paths.Project},
	} {
		if file.path == "" {
			continue
		}
		status := domain.ConfigLayer{Name: file.name, Path: file.path}
		data, err := os.ReadFile(file.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			status.Exists = true
			status.Err = err
		default:
			status.Exists = true
			if parsed, err := decodeLayer(data); err != nil {
				status.Err = err
			} else {
				parsed.apply(cfg)
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// normalize repairs values a layer set but the active scheme rejects.
func normalize(cfg domain.Config, logger ports.Logger) domain.Config {
	if !cfg.Behavior.GetScheme().Valid() {
		cfg.Behavior.Scheme = domain.SchemeThreeLevel
	}
	if !cfg.Behavior.GetScheme().Contains(cfg.Level) {
		logger.Warn("configured level not in scheme, using default", map[string]interface{}{
			"level":  string(cfg.Level),
			"scheme": string(cfg.Behavior.GetScheme()),
		})
		cfg.Level = domain.DefaultPermissionLevel
	}
	cfg.CycleShortcut = strings.TrimSpace(cfg.CycleShortcut)
	return cfg
}

// GlobalPath is where SaveLevel and SaveShortcut write.
func (l *FileLoader) GlobalPath() string {
	return l.paths.Global
}

// ProjectPath is the project layer, empty when no project is set.
func (l *FileLoader) ProjectPath() string {
	return l.paths.Project
}

// SaveLevel writes level into the global file, keeping its other keys.
func (l *FileLoader) SaveLevel(_ context.Context, level domain.PermissionLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidLevel, level)
	}
	return l.patchGlobal(map[string]interface{}{"level": string(level)})
}

// SaveShortcut writes the trimmed shortcut into the global file.
func (l *FileLoader) SaveShortcut(_ context.Context, shortcut string) error {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return errors.New("shortcut must not be empty")
	}
	return l.patchGlobal(map[string]interface{}{"cycle_shortcut": shortcut})
}

func (l *FileLoader) patchGlobal(patch map[string]interface{}) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	current := map[string]interface{}{}
	if data, err := os.ReadFile(l.paths.Global); err == nil {
		if err := json.Unmarshal(jsonc.ToJSON(data), &current); err != nil || current == nil {
			current = map[string]interface{}{}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: read %s: %w", domain.ErrPersistence, l.paths.Global, err)
	}
	for key, value := range patch {
		current[key] = value
	}
	if err := writeJSON(l.paths.Global, current); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// InitGlobal writes the package default config to the global path unless a
// file already exists there (or force is set).
func (l *FileLoader) InitGlobal(force bool) (bool, error) {
	if _, err := os.Stat(l.paths.Global); err == nil && !force {
		return false, nil
	}
	if err := filesystem.WriteFileAtomic(l.paths.Global, assets.DefaultConfigJSON, domain.SecureFilePermissions); err != nil {
		return false, err
	}
	return true, nil
}

// RulesPath is the rules file used when no layer sets rules_file: rules.yaml
// next to the global config.
func (l *FileLoader) RulesPath() string {
	return filepath.Join(filepath.Dir(l.paths.Global), "rules.yaml")
}

// InitRules writes the example rules file to RulesPath, with the same
// overwrite rules as InitGlobal.
func (l *FileLoader) InitRules(force bool) (bool, error) {
	path := l.RulesPath()
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	if err := filesystem.WriteFileAtomic(path, assets.ExampleRulesYAML, domain.SecureFilePermissions); err != nil {
		return false, err
	}
	return true, nil
}

// writeJSON writes tab-indented JSON with a trailing newline.
func writeJSON(path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "\t")
	if err != nil {
		return err
	}
	return filesystem.WriteFileAtomic(path, append(data, '\n'), domain.SecureFilePermissions)
}

var _ ports.ConfigStore = (*FileLoader)(nil)
