package fanout

import (
	"log/slog"
	"time"

	"github.com/c360/meshview/metric"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithSnapshot sets the snapshot source delivered to new subscribers.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(h *Hub) { h.snapshot = fn }
}

// WithQueueSize bounds each subscriber's delivery queue.
func WithQueueSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.queueSize = size
		}
	}
}

// WithSendTimeout bounds a single delivery attempt. A subscriber that
// cannot accept a notification within the timeout is removed.
func WithSendTimeout(timeout time.Duration) Option {
	return func(h *Hub) {
		if timeout > 0 {
			h.sendTimeout = timeout
		}
	}
}

// WithMetrics enables Prometheus metrics on the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(h *Hub) { h.metrics = newHubMetrics(registry) }
}
