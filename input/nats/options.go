package nats

import (
	"log/slog"

	"github.com/c360/meshview/metric"
	"github.com/c360/meshview/pkg/buffer"
)

// Option configures an Ingest.
type Option func(*Ingest)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingest) {
		if logger != nil {
			in.log = logger
		}
	}
}

// WithBroadcaster sets the destination for reconciliation notifications.
func WithBroadcaster(b Broadcaster) Option {
	return func(in *Ingest) {
		in.hub = b
	}
}

// WithBufferSize sets the inbound event buffer capacity.
func WithBufferSize(size int) Option {
	return func(in *Ingest) {
		if size > 0 {
			in.queue = buffer.NewCircular[envelope](size)
		}
	}
}

// WithMetrics enables Prometheus metrics on the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(in *Ingest) {
		in.metrics = newIngestMetrics(registry)
	}
}
