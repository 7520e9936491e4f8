// Package config loads and validates the meshview runtime configuration.
// Configuration comes from an optional JSON file with environment
// overrides layered on top, so a container deployment needs no file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/c360/meshview/errors"
)

// Config is the full runtime configuration.
type Config struct {
	// Database is the SQLite database path.
	Database string `json:"database"`

	// NATS ingest settings.
	NATS NATSConfig `json:"nats"`

	// WebSocket output settings.
	WebSocket WebSocketConfig `json:"websocket"`

	// Metrics endpoint settings.
	Metrics MetricsConfig `json:"metrics"`

	// FreshnessWindowSeconds bounds node liveness.
	FreshnessWindowSeconds int `json:"freshness_window_seconds"`

	// MessageRingSize bounds the live text-message history.
	MessageRingSize int `json:"message_ring_size"`

	// SnapshotMessages is how many recent messages a new subscriber's
	// snapshot carries.
	SnapshotMessages int `json:"snapshot_messages"`

	// SubscriberQueueSize is the per-subscriber delivery queue depth.
	SubscriberQueueSize int `json:"subscriber_queue_size"`

	// SendTimeout bounds one delivery to a subscriber.
	SendTimeout time.Duration `json:"-"`

	// SendTimeoutRaw is the JSON form of SendTimeout ("5s", "500ms").
	SendTimeoutRaw string `json:"send_timeout"`

	// LocalNodeID names the radio this process is attached to, when known
	// ahead of the bridge reporting it. Own traffic never forms a link.
	LocalNodeID string `json:"local_node_id"`

	// RetentionDays bounds durable history; Cleanup deletes older rows.
	RetentionDays int `json:"retention_days"`

	// CleanupInterval is how often retention cleanup runs. Zero disables it.
	CleanupInterval time.Duration `json:"-"`

	// CleanupIntervalRaw is the JSON form of CleanupInterval ("1h", "30m").
	CleanupIntervalRaw string `json:"cleanup_interval"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

// NATSConfig configures the ingest connection.
type NATSConfig struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
	Name    string `json:"name"`
}

// WebSocketConfig configures the subscriber endpoint.
type WebSocketConfig struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Database: "meshview.db",
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "mesh.events",
			Name:    "meshview",
		},
		WebSocket: WebSocketConfig{
			Port: 8765,
			Path: "/ws",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		FreshnessWindowSeconds: 300,
		MessageRingSize:        100,
		SnapshotMessages:       50,
		SubscriberQueueSize:    256,
		SendTimeout:            5 * time.Second,
		RetentionDays:          30,
		CleanupInterval:        time.Hour,
		LogLevel:               "info",
	}
}

// Load builds the configuration: defaults, then the JSON file at path if
// given, then MESHVIEW_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
		}
	}

	if cfg.CleanupIntervalRaw != "" {
		d, err := time.ParseDuration(cfg.CleanupIntervalRaw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse cleanup_interval")
		}
		cfg.CleanupInterval = d
	}
	if cfg.SendTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.SendTimeoutRaw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse send_timeout")
		}
		cfg.SendTimeout = d
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers MESHVIEW_* environment variables over the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("MESHVIEW_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("MESHVIEW_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("MESHVIEW_NATS_SUBJECT"); v != "" {
		c.NATS.Subject = v
	}
	if v := os.Getenv("MESHVIEW_WS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.WebSocket.Port = port
		}
	}
	if v := os.Getenv("MESHVIEW_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Metrics.Port = port
		}
	}
	if v := os.Getenv("MESHVIEW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MESHVIEW_LOCAL_NODE_ID"); v != "" {
		c.LocalNodeID = v
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "database path is required")
	}
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats url is required")
	}
	if c.NATS.Subject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats subject is required")
	}
	if c.WebSocket.Port <= 0 || c.WebSocket.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("websocket port %d out of range", c.WebSocket.Port))
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("metrics port %d out of range", c.Metrics.Port))
	}
	if c.FreshnessWindowSeconds <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"freshness window must be positive")
	}
	if c.MessageRingSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"message ring size must be positive")
	}
	if c.SnapshotMessages <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"snapshot message count must be positive")
	}
	if c.SubscriberQueueSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"subscriber queue size must be positive")
	}
	if c.SendTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"send timeout must be positive")
	}
	if c.RetentionDays <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"retention days must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log level %q", c.LogLevel))
	}
	return nil
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// FreshnessWindow returns the liveness window as a duration.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessWindowSeconds) * time.Second
}
