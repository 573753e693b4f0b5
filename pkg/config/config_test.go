package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.False(t, cfg.Storage.InMemory)
	assert.Equal(t, 5, cfg.Traversal.MaxDepth)
	assert.Equal(t, 0.5, cfg.Cluster.ExpandStrength)
	assert.Equal(t, 20, cfg.Cluster.MaxClusterSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "yggdrasil.yaml")
	content := `
storage:
  data_dir: /var/lib/yggdrasil
  sync_writes: true
traversal:
  max_depth: 8
cluster:
  expand_strength: 0.7
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/yggdrasil", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.SyncWrites)
	assert.Equal(t, 8, cfg.Traversal.MaxDepth)
	assert.Equal(t, 0.7, cfg.Cluster.ExpandStrength)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// Untouched sections keep defaults.
	assert.Equal(t, 3, cfg.Cluster.MinSize)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("YGGDRASIL_DATA_DIR", "/tmp/env-data")
	t.Setenv("YGGDRASIL_IN_MEMORY", "true")
	t.Setenv("YGGDRASIL_MAX_DEPTH", "7")
	t.Setenv("YGGDRASIL_CLUSTER_EXPAND_STRENGTH", "0.6")
	t.Setenv("YGGDRASIL_LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env-data", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 7, cfg.Traversal.MaxDepth)
	assert.Equal(t, 0.6, cfg.Cluster.ExpandStrength)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "yggdrasil.yaml")
	require.NoError(t, os.WriteFile(path, []byte("traversal:\n  max_depth: 8\n"), 0o644))

	t.Setenv("YGGDRASIL_MAX_DEPTH", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Traversal.MaxDepth, "environment beats file")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"zero max depth", func(c *Config) { c.Traversal.MaxDepth = 0 }},
		{"edge strength above one", func(c *Config) { c.Traversal.MinEdgeStrength = 1.5 }},
		{"zero discover hops", func(c *Config) { c.Traversal.DiscoverMaxHops = 0 }},
		{"zero cluster min size", func(c *Config) { c.Cluster.MinSize = 0 }},
		{"expand strength above one", func(c *Config) { c.Cluster.ExpandStrength = 1.1 }},
		{"max size below min size", func(c *Config) { c.Cluster.MaxClusterSize = 1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("in-memory needs no data dir", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.DataDir = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}
