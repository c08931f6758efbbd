package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 7*24*time.Hour, cfg.PurgeGracePeriod)
}

func TestNewConfigFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := []byte("server_port: 4100\nscheduler:\n  batch_size: 25\n  interval: 30s\n")
	require.NoError(t, os.WriteFile(path, contents, 0600))

	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.ServerPort)
	assert.Equal(t, 25, cfg.Scheduler.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
}

func TestNewEnvOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("MEDIASYNC_WEBHOOK_SECRET", "supersecret")
	t.Setenv("MEDIASYNC_SCHEDULER__MAX_RETRIES", "7")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "supersecret", cfg.WebhookSecret)
	assert.Equal(t, 7, cfg.Scheduler.MaxRetries)
}
