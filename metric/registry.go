// Package metric provides the Prometheus registry and HTTP endpoint for
// pipeline observability. Components accept a nil registry to run with
// metrics disabled, which keeps tests quiet.
package metric

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/meshview/errors"
)

// Namespace prefixes every metric the pipeline exports.
const Namespace = "meshview"

// MetricsRegistry manages metric registration and lifecycle.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.Mutex
}

// NewMetricsRegistry creates a registry with Go runtime and process
// collectors pre-registered.
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register registers a collector under component.name so it can be
// unregistered when the component stops.
func (r *MetricsRegistry) Register(component, name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered", key),
			"MetricsRegistry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		return errors.WrapFatal(err, "MetricsRegistry", "Register",
			fmt.Sprintf("register %s with prometheus", key))
	}

	r.registeredMetrics[key] = c
	return nil
}

// MustRegister registers collectors and panics on conflict. Intended for
// startup paths where a duplicate is a programming error.
func (r *MetricsRegistry) MustRegister(component string, cs ...prometheus.Collector) {
	for i, c := range cs {
		if err := r.Register(component, fmt.Sprintf("collector_%d", i), c); err != nil {
			panic(err)
		}
	}
}

// Unregister removes a component's metric.
func (r *MetricsRegistry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	c, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}
	delete(r.registeredMetrics, key)
	return r.prometheusRegistry.Unregister(c)
}
