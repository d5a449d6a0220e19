package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, "http", cfg.Transport.Mode)
	require.Equal(t, 10, cfg.Assignment.BatchSize)
	require.Equal(t, 300*time.Second, cfg.Assignment.LockTimeout)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
db:
  driver: memory
  path: state.json
assignment:
  batch_size: 5
  lock_timeout: 2m
catalog:
  path: records.jsonl
`), 0o644))

	t.Setenv("ANNOTASK_CONFIG_PATH", path)
	t.Setenv("ANNOTASK_SERVER_PORT", "9100")
	t.Setenv("ANNOTASK_BATCH_SIZE", "7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "memory", cfg.DB.Driver)
	require.Equal(t, "state.json", cfg.DB.Path)
	require.Equal(t, 7, cfg.Assignment.BatchSize)
	require.Equal(t, 2*time.Minute, cfg.Assignment.LockTimeout)
	require.Equal(t, "records.jsonl", cfg.Catalog.Path)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("port", func(t *testing.T) {
		t.Setenv("ANNOTASK_SERVER_PORT", "abc")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("batch size", func(t *testing.T) {
		t.Setenv("ANNOTASK_BATCH_SIZE", "0")
		_, err := Load()
		require.ErrorContains(t, err, "batch_size")
	})
	t.Run("lock timeout", func(t *testing.T) {
		t.Setenv("ANNOTASK_LOCK_TIMEOUT", "soon")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("driver", func(t *testing.T) {
		t.Setenv("ANNOTASK_DB_DRIVER", "postgres")
		_, err := Load()
		require.ErrorContains(t, err, "db driver")
	})
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("ANNOTASK_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		require.ErrorContains(t, err, "read config file")
	})
}
