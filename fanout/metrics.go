package fanout

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/meshview/metric"
)

// hubMetrics tracks fan-out behavior. A nil receiver disables recording,
// so the hub never branches on whether metrics are configured.
type hubMetrics struct {
	broadcastsTotal prometheus.Counter
	deliveredTotal  prometheus.Counter
	droppedTotal    prometheus.Counter
	sendFailures    prometheus.Counter
	subscribers     prometheus.Gauge
}

func newHubMetrics(registry *metric.MetricsRegistry) *hubMetrics {
	if registry == nil {
		return nil
	}

	m := &hubMetrics{
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "fanout",
			Name:      "broadcasts_total",
			Help:      "Notifications broadcast to the subscriber set",
		}),
		deliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "Notifications successfully delivered to a subscriber",
		}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "fanout",
			Name:      "dropped_total",
			Help:      "Notifications dropped from full subscriber queues",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "fanout",
			Name:      "send_failures_total",
			Help:      "Failed or timed-out subscriber sends",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "fanout",
			Name:      "subscribers",
			Help:      "Currently registered subscribers",
		}),
	}

	_ = registry.Register("fanout", "broadcasts_total", m.broadcastsTotal)
	_ = registry.Register("fanout", "deliveries_total", m.deliveredTotal)
	_ = registry.Register("fanout", "dropped_total", m.droppedTotal)
	_ = registry.Register("fanout", "send_failures_total", m.sendFailures)
	_ = registry.Register("fanout", "subscribers", m.subscribers)
	return m
}

func (m *hubMetrics) broadcast() {
	if m != nil {
		m.broadcastsTotal.Inc()
	}
}

func (m *hubMetrics) delivered() {
	if m != nil {
		m.deliveredTotal.Inc()
	}
}

func (m *hubMetrics) dropped(n int64) {
	if m != nil {
		m.droppedTotal.Add(float64(n))
	}
}

func (m *hubMetrics) sendFailure() {
	if m != nil {
		m.sendFailures.Inc()
	}
}

func (m *hubMetrics) subscriberCount(n int) {
	if m != nil {
		m.subscribers.Set(float64(n))
	}
}
