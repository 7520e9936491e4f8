package nats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/meshview/metric"
)

// ingestMetrics tracks stream consumption. A nil receiver disables
// recording.
type ingestMetrics struct {
	messagesReceived prometheus.Counter
	bytesReceived    prometheus.Counter
	decodeFailures   prometheus.Counter
	normFailures     prometheus.Counter
	reconFailures    prometheus.Counter
	eventsReconciled prometheus.Counter
	eventsDropped    prometheus.Counter
	lastActivity     prometheus.Gauge
}

func newIngestMetrics(registry *metric.MetricsRegistry) *ingestMetrics {
	if registry == nil {
		return nil
	}

	m := &ingestMetrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Bridge records received from the stream",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "decode_failures_total",
			Help:      "Records that were not valid envelopes",
		}),
		normFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "normalize_failures_total",
			Help:      "Records rejected by event validation",
		}),
		reconFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "reconcile_failures_total",
			Help:      "Events whose reconciliation returned an error",
		}),
		eventsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "events_reconciled_total",
			Help:      "Events applied to live and persistent state",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "events_dropped_total",
			Help:      "Events dropped because the inbound buffer was full",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "ingest",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received record",
		}),
	}

	_ = registry.Register("ingest", "messages_received_total", m.messagesReceived)
	_ = registry.Register("ingest", "bytes_received_total", m.bytesReceived)
	_ = registry.Register("ingest", "decode_failures_total", m.decodeFailures)
	_ = registry.Register("ingest", "normalize_failures_total", m.normFailures)
	_ = registry.Register("ingest", "reconcile_failures_total", m.reconFailures)
	_ = registry.Register("ingest", "events_reconciled_total", m.eventsReconciled)
	_ = registry.Register("ingest", "events_dropped_total", m.eventsDropped)
	_ = registry.Register("ingest", "last_activity_timestamp", m.lastActivity)
	return m
}

func (m *ingestMetrics) received(bytes int) {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
	m.bytesReceived.Add(float64(bytes))
	m.lastActivity.Set(float64(time.Now().Unix()))
}

func (m *ingestMetrics) decodeFailure() {
	if m == nil {
		return
	}
	m.decodeFailures.Inc()
}

func (m *ingestMetrics) normalizeFailure() {
	if m == nil {
		return
	}
	m.normFailures.Inc()
}

func (m *ingestMetrics) reconcileFailure() {
	if m == nil {
		return
	}
	m.reconFailures.Inc()
}

func (m *ingestMetrics) reconciled() {
	if m == nil {
		return
	}
	m.eventsReconciled.Inc()
}

func (m *ingestMetrics) dropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
