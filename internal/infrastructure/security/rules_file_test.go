package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRulesFile_MissingFileIsEmpty(t *testing.T) {
	set, err := LoadRulesFile(filepath.Join(t.TempDir(), "rules.yaml"))
	require.NoError(t, err)
	assert.Zero(t, set.Len())

	set, err = LoadRulesFile("")
	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestLoadRulesFile_ReadsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  medium:
    - pattern: '^\s*terraform\s+init\b'
  low:
    - pattern: '^\s*just\s+--list\b'
      reason: recipe listing
`), 0o600))

	set, err := LoadRulesFile(path)
	require.NoError(t, err)
	require.Len(t, set.Medium, 1)
	require.Len(t, set.Low, 1)
	assert.Equal(t, "user rule", set.Medium[0].Reason)
	assert.Equal(t, "rules.yaml", set.Low[0].Source)
	assert.True(t, set.Low[0].Matches("JUST --list"))
}

func TestParseRules_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "rules: [",
		"bad pattern":  "rules:\n  high:\n    - pattern: '(['\n",
		"bad unless":   "rules:\n  high:\n    - pattern: 'x'\n      unless: '(['\n",
		"bad when":     "rules:\n  low:\n    - when: 'command +'\n",
		"no predicate": "rules:\n  low:\n    - reason: nothing\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc), "test")
			assert.Error(t, err)
		})
	}
}

func TestRule_WhenOnly(t *testing.T) {
	set, err := ParseRules([]byte("rules:\n  high:\n    - when: 'size(words) > 20'\n      reason: suspiciously long\n"), "test")
	require.NoError(t, err)
	require.Len(t, set.High, 1)
	assert.False(t, set.High[0].Matches("ls"))
	assert.True(t, set.High[0].Matches("a b c d e f g h i j k l m n o p q r s t u v"))
}
