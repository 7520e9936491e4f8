package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/meshview/metric"
)

// engineMetrics tracks reconciliation throughput and latency. A nil
// receiver disables recording.
type engineMetrics struct {
	eventsTotal   *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	slowEvents    prometheus.Counter
}

func newEngineMetrics(registry *metric.MetricsRegistry) *engineMetrics {
	if registry == nil {
		return nil
	}

	m := &engineMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Events reconciled, by kind",
		}, []string{"kind"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "failures_total",
			Help:      "Events that failed reconciliation, by kind",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "reconcile_duration_seconds",
			Help:      "Per-event reconciliation latency",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"kind"}),
		slowEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "engine",
			Name:      "slow_events_total",
			Help:      "Events that exceeded the processing budget",
		}),
	}

	_ = registry.Register("engine", "events_total", m.eventsTotal)
	_ = registry.Register("engine", "failures_total", m.failuresTotal)
	_ = registry.Register("engine", "reconcile_duration_seconds", m.duration)
	_ = registry.Register("engine", "slow_events_total", m.slowEvents)
	return m
}

func (m *engineMetrics) observe(kind string, elapsed time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
	if !ok {
		m.failuresTotal.WithLabelValues(kind).Inc()
	}
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if elapsed > processingBudget {
		m.slowEvents.Inc()
	}
}
