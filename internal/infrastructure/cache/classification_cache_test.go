package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/sentry-go/internal/domain"
)

func TestClassificationCache_EvictsOldestFirst(t *testing.T) {
	c := New(2)
	require.NoError(t, c.Put("a", domain.ImpactLow))
	require.NoError(t, c.Put("b", domain.ImpactMedium))
	require.NoError(t, c.Put("a", domain.ImpactHigh))
	require.NoError(t, c.Put("c", domain.ImpactLow))

	_, ok := c.Get("a")
	assert.False(t, ok, "a was inserted first and must be evicted even though it was updated")
	level, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, domain.ImpactMedium, level)
	assert.Equal(t, 2, c.Len())
}

func TestClassificationCache_DefaultCapacity(t *testing.T) {
	assert.Equal(t, 500, New(0).Capacity())
}

func TestClassificationCache_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "classifications.json")
	c, err := NewPersistent(3, path)
	require.NoError(t, err)
	require.NoError(t, c.Put(Key("agent:bash", "frob --all"), domain.ImpactHigh))
	require.NoError(t, c.Put(Key("agent:webfetch", "webfetch {}"), domain.ImpactLow))

	reloaded, err := NewPersistent(3, path)
	require.NoError(t, err)
	level, ok := reloaded.Get("agent:bash:frob --all")
	require.True(t, ok)
	assert.Equal(t, domain.ImpactHigh, level)
	assert.Equal(t, []string{"agent:bash:frob --all", "agent:webfetch:webfetch {}"}, keys(reloaded.Entries()))

	require.NoError(t, reloaded.Clear())
	assert.Zero(t, reloaded.Len())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestClassificationCache_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifications.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	c, err := NewPersistent(3, path)
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestClassificationCache_Bound(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("never exceeds capacity and evicts the first inserted key", prop.ForAll(
		func(capacity int) bool {
			c := New(capacity)
			for i := 0; i <= capacity; i++ {
				_ = c.Put(fmt.Sprintf("k%d", i), domain.ImpactLow)
			}
			_, firstKept := c.Get("k0")
			_, lastKept := c.Get(fmt.Sprintf("k%d", capacity))
			return c.Len() == capacity && !firstKept && lastKept
		},
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}

func keys(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Key)
	}
	return out
}
