package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/meshview/config"
	"github.com/c360/meshview/errors"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 300, cfg.FreshnessWindowSeconds)
	assert.Equal(t, 5*time.Minute, cfg.FreshnessWindow())
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
	assert.Equal(t, 100, cfg.MessageRingSize)
	assert.Equal(t, 50, cfg.SnapshotMessages)
	assert.Equal(t, 256, cfg.SubscriberQueueSize)
	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database": "/var/lib/meshview/mesh.db",
		"nats": {"url": "nats://broker:4222", "subject": "mesh.raw"},
		"websocket": {"port": 9000, "path": "/live"},
		"cleanup_interval": "30m",
		"message_ring_size": 200,
		"snapshot_messages": 25,
		"subscriber_queue_size": 64,
		"send_timeout": "2s",
		"local_node_id": "!deadbeef",
		"log_level": "debug"
	}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/meshview/mesh.db", cfg.Database)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "mesh.raw", cfg.NATS.Subject)
	assert.Equal(t, 9000, cfg.WebSocket.Port)
	assert.Equal(t, 30*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 200, cfg.MessageRingSize)
	assert.Equal(t, 25, cfg.SnapshotMessages)
	assert.Equal(t, 64, cfg.SubscriberQueueSize)
	assert.Equal(t, 2*time.Second, cfg.SendTimeout)
	assert.Equal(t, "!deadbeef", cfg.LocalNodeID)
	// Untouched fields keep their defaults.
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MESHVIEW_NATS_URL", "nats://env:4222")
	t.Setenv("MESHVIEW_WS_PORT", "7777")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, 7777, cfg.WebSocket.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty database", func(c *config.Config) { c.Database = "" }},
		{"empty nats url", func(c *config.Config) { c.NATS.URL = "" }},
		{"port out of range", func(c *config.Config) { c.WebSocket.Port = 70000 }},
		{"zero freshness", func(c *config.Config) { c.FreshnessWindowSeconds = 0 }},
		{"zero message ring", func(c *config.Config) { c.MessageRingSize = 0 }},
		{"negative snapshot messages", func(c *config.Config) { c.SnapshotMessages = -1 }},
		{"zero subscriber queue", func(c *config.Config) { c.SubscriberQueueSize = 0 }},
		{"zero send timeout", func(c *config.Config) { c.SendTimeout = 0 }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
