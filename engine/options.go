package engine

import (
	"log/slog"

	"github.com/c360/meshview/metric"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithBroadcaster wires the engine to a hub for notifications it emits
// outside the Reconcile return path.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) { e.hub = b }
}

// WithMetrics enables Prometheus metrics on the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) { e.metrics = newEngineMetrics(registry) }
}
