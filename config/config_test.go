package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("reads yaml and applies defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "config.yaml", `
database:
  driver: sqlite
  sqlite_path: /tmp/apply.db
supervisor:
  worker_count: 2
automation:
  match_threshold: 0.9
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "/tmp/apply.db", cfg.Database.SQLitePath)
		assert.Equal(t, 2, cfg.Supervisor.WorkerCount)
		assert.InDelta(t, 0.9, cfg.Automation.MatchThreshold, 1e-9)
		assert.Equal(t, "fail", cfg.Supervisor.ReconcilePolicy)
		assert.Equal(t, 5, cfg.Queue.PollIntervalSeconds)
		assert.True(t, cfg.Automation.AutoAttachCoverLetter)
		assert.Equal(t, path, cfg.Path)
	})

	t.Run("prefers config.local.yaml", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "config.yaml", "supervisor:\n  worker_count: 2\n")
		local := writeConfig(t, dir, "config.local.yaml", "supervisor:\n  worker_count: 7\n")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Supervisor.WorkerCount)
		assert.Equal(t, local, cfg.Path)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestInitLogger(t *testing.T) {
	t.Run("console debug", func(t *testing.T) {
		require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
		assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
	})
}
