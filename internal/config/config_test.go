package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("JUNITMIG_TEST_DIR", "/tmp/ledger")
	tests := []struct {
		in   string
		want string
	}{
		{"dir: ${JUNITMIG_TEST_DIR}", "dir: /tmp/ledger"},
		{"dir: $JUNITMIG_TEST_DIR", "dir: /tmp/ledger"},
		{"dir: ${JUNITMIG_TEST_UNSET:-fallback}", "dir: fallback"},
		{"dir: $JUNITMIG_TEST_UNSET", "dir: $JUNITMIG_TEST_UNSET"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in))
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("JUNITMIG_TEST_PORT", "9090")
	path := filepath.Join(t.TempDir(), "migrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: ${JUNITMIG_TEST_PORT}
  log_level: debug
migration:
  cleanups: [junit.assert, junit.test]
  output: edits
ledger:
  enabled: true
source:
  repositories:
    - name: core
      path: /src/core
      exclude: ["**/generated/**"]
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, []string{"junit.assert", "junit.test"}, cfg.Migration.Cleanups)
	assert.Equal(t, OutputEdits, cfg.Migration.Output)

	ledger := cfg.Ledger.GetDefaults()
	assert.True(t, ledger.Enabled)
	assert.Equal(t, ".junitmig", ledger.StorageDir)
	assert.Equal(t, 0.001, ledger.FalsePositiveRate)

	repo, err := cfg.GetRepository("core")
	require.NoError(t, err)
	assert.Equal(t, "/src/core", repo.Path)
	_, err = cfg.GetRepository("missing")
	assert.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	m := cfg.Migration.GetDefaults()
	assert.Equal(t, OutputText, m.Output)
	assert.Equal(t, int64(4<<20), m.MaxFileBytes)
}

func TestParseConfig_Invalid(t *testing.T) {
	for _, data := range []string{
		"migration:\n  output: patch\n",
		"ledger:\n  false_positive_rate: 1.5\n",
		"source:\n  repositories:\n    - name: a\n",
		"source:\n  repositories:\n    - {name: a, path: x}\n    - {name: a, path: y}\n",
	} {
		_, err := ParseConfig([]byte(data))
		assert.Error(t, err, data)
	}
}
