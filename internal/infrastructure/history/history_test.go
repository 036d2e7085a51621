package history

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/pkg/logger"
	"github.com/doeshing/sentry-go/internal/ports"
)

type backend struct {
	name      string
	session   func(t *testing.T) ports.SessionLog
	decisions func(t *testing.T) ports.DecisionStore
}

func backends() []backend {
	return []backend{
		{
			name: "sqlite",
			session: func(t *testing.T) ports.SessionLog {
				store, err := OpenSQLite(filepath.Join(t.TempDir(), "sentry.db"))
				require.NoError(t, err)
				t.Cleanup(func() { store.Close() })
				return store.Session("s1")
			},
			decisions: func(t *testing.T) ports.DecisionStore {
				store, err := OpenSQLite(filepath.Join(t.TempDir(), "sentry.db"))
				require.NoError(t, err)
				t.Cleanup(func() { store.Close() })
				return store
			},
		},
		{
			name: "jsonl",
			session: func(t *testing.T) ports.SessionLog {
				return NewFileSessionLog(filepath.Join(t.TempDir(), "sessions", "s1.jsonl"))
			},
			decisions: func(t *testing.T) ports.DecisionStore {
				return NewFileDecisionStore(filepath.Join(t.TempDir(), "decisions.jsonl"))
			},
		},
	}
}

func TestSessionLog(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			log := b.session(t)

			require.NoError(t, log.Append(ctx, domain.NewMessageEntry("user", "first", base)))
			require.NoError(t, log.Append(ctx, domain.NewPermissionEntry(domain.PermissionMedium, base.Add(time.Second))))
			require.NoError(t, log.Append(ctx, domain.NewMessageEntry("assistant", "reply", base.Add(2*time.Second))))
			require.NoError(t, log.Append(ctx, domain.NewMessageEntry("user", "second", base.Add(3*time.Second))))
			require.NoError(t, log.Append(ctx, domain.NewMessageEntry("user", "third", base.Add(4*time.Second))))

			entries, err := log.Entries(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 5)
			level, ok := entries[1].PermissionLevel()
			assert.True(t, ok)
			assert.Equal(t, domain.PermissionMedium, level)
			assert.True(t, entries[0].Timestamp.Equal(base))

			recent, err := log.RecentUserMessages(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"third", "second"}, recent)

			all, err := log.RecentUserMessages(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"third", "second", "first"}, all)
		})
	}
}

func TestDecisionStore(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []domain.DecisionRecord{
		{ID: "01A", Timestamp: base, Source: "agent:bash", Operation: "ls", Level: domain.ImpactLow, Reason: "read-only listing", PermissionLevel: domain.PermissionLow, Allowed: true},
		{ID: "01B", Timestamp: base.Add(time.Minute), Source: "agent:bash", Operation: "rm -rf x", Level: domain.ImpactHigh, Reason: "destructive delete", PermissionLevel: domain.PermissionLow, BlockReason: "Blocked high-risk operation: rm -rf x"},
		{ID: "01C", Timestamp: base.Add(2 * time.Minute), Source: "agent:webfetch", Operation: "webfetch {}", Level: domain.ImpactMedium, Unknown: true, Reason: "unmapped tool", PermissionLevel: domain.PermissionHigh},
	}

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			store := b.decisions(t)
			for _, rec := range records {
				require.NoError(t, store.Save(ctx, rec))
			}

			latest, err := store.Records(ctx, 2)
			require.NoError(t, err)
			require.Len(t, latest, 2)
			assert.Equal(t, "01C", latest[0].ID)
			assert.Equal(t, "01B", latest[1].ID)
			assert.Equal(t, "Blocked high-risk operation: rm -rf x", latest[1].BlockReason)
			assert.True(t, latest[0].Unknown)

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, stats.Total)
			assert.Equal(t, 1, stats.Allowed)
			assert.Equal(t, 2, stats.Blocked)
			assert.Equal(t, 1, stats.Unknown)
			assert.Equal(t, 1, stats.ByLevel[domain.ImpactHigh])

			var buf bytes.Buffer
			n, err := Export(ctx, store, &buf)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
			assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

			require.NoError(t, store.Clear(ctx))
			empty, err := store.Records(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestOpenFallsBackToJSONL(t *testing.T) {
	dir := t.TempDir()
	stores := Open(dir, "", logger.Nop())
	defer stores.Close()
	assert.Equal(t, "sqlite", stores.Backend)

	// A directory where the database file should be makes sqlite fail.
	blocked := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "history", "sentry.db"), 0o755))
	fallback := Open(blocked, "team/a b", logger.Nop())
	assert.Equal(t, "jsonl", fallback.Backend)
	assert.Equal(t, filepath.Join(blocked, "sessions", "team_a_b.jsonl"), fallback.Session.Path())
}
