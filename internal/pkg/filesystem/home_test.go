package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home := UserHomeDir()
	assert.Equal(t, filepath.Join(home, "rules.yaml"), ExpandHome("~/rules.yaml"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/etc/sentry", ExpandHome("/etc/sentry"))
}

func TestSentryHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENTRY_HOME", dir)
	assert.Equal(t, dir, SentryHome())
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, WriteFileAtomic(path, []byte("{}\n"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("{\"level\": \"high\"}\n"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"level\": \"high\"}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
