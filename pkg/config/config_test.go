package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"lsmstore/pkg/dberrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, int64(56<<20), cfg.Memtable.FlushThresholdBytes)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logger:
  level: debug
  json: true
db:
  dir: /var/lib/lsm
  memtable:
    flush_threshold: 4096
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Logger.JSON)
	assert.Equal(t, "/var/lib/lsm", cfg.Dir)
	assert.Equal(t, int64(4096), cfg.Memtable.FlushThresholdBytes)

	level, err := cfg.Logger.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_PartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db:\n  dir: elsewhere\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", cfg.Dir)
	assert.Equal(t, int64(DefaultFlushThreshold), cfg.Memtable.FlushThresholdBytes)
	assert.Equal(t, "INFO", cfg.Logger.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty dir", func(c *Config) { c.Dir = "" }},
		{"zero threshold", func(c *Config) { c.Memtable.FlushThresholdBytes = 0 }},
		{"negative threshold", func(c *Config) { c.Memtable.FlushThresholdBytes = -1 }},
		{"bad level", func(c *Config) { c.Logger.Level = "verbose" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), dberrors.ErrInvalidArgument)
		})
	}

	assert.NoError(t, Default().Validate())
}
