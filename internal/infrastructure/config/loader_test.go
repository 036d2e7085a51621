package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/pkg/logger"
)

func testPaths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		Global:  filepath.Join(dir, "home", "config.json"),
		Project: filepath.Join(dir, "project", ".sentry", "config.json"),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	loader := NewFileLoader(testPaths(t), logger.Nop())
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "shift+tab", cfg.CycleShortcut)
	assert.Equal(t, domain.PermissionLow, cfg.Level)
	assert.Equal(t, domain.SchemeThreeLevel, cfg.Behavior.Scheme)
	assert.Equal(t, domain.ImpactMedium, cfg.Behavior.WriteLevel)
	assert.Equal(t, domain.ImpactLow, cfg.Behavior.EditLevel)
	assert.Equal(t, domain.FailSafeHigh, cfg.Behavior.FailSafe)
	assert.True(t, cfg.Behavior.HistoryEscalation)
	assert.Equal(t, 20*time.Second, cfg.Behavior.GetAITimeout())
	assert.Equal(t, 500, cfg.Behavior.CacheSize)
	assert.Empty(t, cfg.Behavior.ProtectedPaths)
}

func TestLoad_MergesPerKey(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Global, `{
		// comments and trailing commas are fine
		"level": "medium",
		"cycle_shortcut": "ctrl+p",
		"behavior": {"write_level": "high", "ai_timeout": 5000},
	}`)
	writeFile(t, paths.Project, `{"level": "high", "behavior": {"history_escalation": false}}`)

	cfg, err := NewFileLoader(paths, logger.Nop()).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PermissionHigh, cfg.Level)
	assert.Equal(t, "ctrl+p", cfg.CycleShortcut)
	assert.Equal(t, domain.ImpactHigh, cfg.Behavior.WriteLevel)
	assert.Equal(t, domain.ImpactLow, cfg.Behavior.EditLevel)
	assert.Equal(t, 5*time.Second, cfg.Behavior.GetAITimeout())
	assert.False(t, cfg.Behavior.HistoryEscalation)
}

func TestLoad_LegacyShortcutKey(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Global, `{"cycle_shorcut": "alt+m"}`)
	cfg, err := NewFileLoader(paths, logger.Nop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alt+m", cfg.CycleShortcut)

	writeFile(t, paths.Global, `{"cycle_shorcut": "alt+m", "cycle_shortcut": "alt+n"}`)
	cfg, err = NewFileLoader(paths, logger.Nop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alt+n", cfg.CycleShortcut)
}

func TestLoad_InvalidLayerIsSkipped(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Global, `{"level": "medium"}`)
	writeFile(t, paths.Project, `{"level": "extreme", "cycle_shortcut": "ctrl+x"}`)

	loader := NewFileLoader(paths, logger.Nop())
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionMedium, cfg.Level)
	assert.Equal(t, "shift+tab", cfg.CycleShortcut)

	statuses := loader.Layers()
	require.Len(t, statuses, 3)
	assert.NoError(t, statuses[0].Err)
	assert.NoError(t, statuses[1].Err)
	assert.Error(t, statuses[2].Err)
}

func TestLoad_LevelOutsideSchemeFallsBack(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Global, `{"level": "yolo"}`)
	cfg, err := NewFileLoader(paths, logger.Nop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPermissionLevel, cfg.Level)

	writeFile(t, paths.Global, `{"level": "yolo", "behavior": {"scheme": "yolo"}}`)
	cfg, err = NewFileLoader(paths, logger.Nop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionYOLO, cfg.Level)
}

func TestSave_PatchesGlobalFile(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Global, `{"behavior": {"fail_safe": "block"}}`)
	loader := NewFileLoader(paths, logger.Nop())

	require.NoError(t, loader.SaveLevel(context.Background(), domain.PermissionMedium))
	require.NoError(t, loader.SaveShortcut(context.Background(), "  ctrl+shift+p "))

	data, err := os.ReadFile(paths.Global)
	require.NoError(t, err)
	assert.Equal(t, "{\n\t\"behavior\": {\n\t\t\"fail_safe\": \"block\"\n\t},\n\t\"cycle_shortcut\": \"ctrl+shift+p\",\n\t\"level\": \"medium\"\n}\n", string(data))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "medium", raw["level"])

	assert.True(t, errors.Is(loader.SaveLevel(context.Background(), "extreme"), domain.ErrInvalidLevel))
	assert.Error(t, loader.SaveShortcut(context.Background(), "   "))
}

func TestSave_UnwritableGlobalIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	writeFile(t, blocker, "x")
	loader := NewFileLoader(Paths{Global: filepath.Join(blocker, "config.json")}, logger.Nop())

	err := loader.SaveLevel(context.Background(), domain.PermissionHigh)
	assert.True(t, errors.Is(err, domain.ErrPersistence), "err = %v", err)
}

func TestInitGlobal(t *testing.T) {
	paths := testPaths(t)
	loader := NewFileLoader(paths, logger.Nop())

	created, err := loader.InitGlobal(false)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = loader.InitGlobal(false)
	require.NoError(t, err)
	assert.False(t, created)

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionLow, cfg.Level)
}

func TestLoad_LegacyLayerSitsBelowGlobal(t *testing.T) {
	paths := testPaths(t)
	paths.Legacy = filepath.Join(filepath.Dir(paths.Global), "legacy-config.json")
	writeFile(t, paths.Legacy, `{"level": "medium", "cycle_shorcut": "alt+l", "behavior": {"edit_level": "high"}}`)
	writeFile(t, paths.Global, `{"level": "high"}`)

	loader := NewFileLoader(paths, logger.Nop())
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionHigh, cfg.Level)
	assert.Equal(t, "alt+l", cfg.CycleShortcut)
	assert.Equal(t, domain.ImpactHigh, cfg.Behavior.EditLevel)

	statuses := loader.Layers()
	require.Len(t, statuses, 4)
	assert.Equal(t, []string{"package", "legacy", "global", "project"},
		[]string{statuses[0].Name, statuses[1].Name, statuses[2].Name, statuses[3].Name})
	assert.True(t, statuses[1].Exists)

	require.NoError(t, loader.SaveLevel(context.Background(), domain.PermissionLow))
	data, err := os.ReadFile(paths.Legacy)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"medium"`)
}

func TestInitRules(t *testing.T) {
	paths := testPaths(t)
	loader := NewFileLoader(paths, logger.Nop())

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cfg.RulesFile)

	created, err := loader.InitRules(false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, filepath.Join(filepath.Dir(paths.Global), "rules.yaml"), loader.RulesPath())

	writeFile(t, loader.RulesPath(), "rules: {}\n")
	created, err = loader.InitRules(false)
	require.NoError(t, err)
	assert.False(t, created)
	data, err := os.ReadFile(loader.RulesPath())
	require.NoError(t, err)
	assert.Equal(t, "rules: {}\n", string(data))

	created, err = loader.InitRules(true)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err = loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, loader.RulesPath(), cfg.RulesFile)

	writeFile(t, paths.Project, `{"rules_file": "/elsewhere/rules.yaml"}`)
	cfg, err = loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/rules.yaml", cfg.RulesFile)
}

func TestWatcherReportsChanges(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Global, `{}`)

	var reloads atomic.Int32
	watcher, err := NewWatcher(paths, func() { reloads.Add(1) }, logger.Nop())
	require.NoError(t, err)
	watcher.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	require.NoError(t, NewFileLoader(paths, logger.Nop()).SaveLevel(ctx, domain.PermissionHigh))
	assert.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
