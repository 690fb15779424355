// Package metrics counts controller dispatches for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arthur-debert/nanocrud/types"
)

const namespace = "nanocrud"

// Outcome labels
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics owns a registry and the dispatch collectors registered on it
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates collectors on a fresh registry. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Count of dispatched operations by route, operation and outcome.",
			},
			[]string{"route", "operation", "outcome", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time spent dispatching an operation, record store included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "operation"},
		),
	}

	m.registry.MustRegister(m.operations, m.duration)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Observe records one dispatch
func (m *Metrics) Observe(route string, op types.Operation, env types.Envelope, err error, elapsed time.Duration) {
	outcome := OutcomeOK
	code := ""
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case !env.OK():
		outcome = OutcomeRejected
		if env.Code != 0 {
			code = strconv.Itoa(env.Code)
		}
	}
	m.operations.WithLabelValues(route, op.String(), outcome, code).Inc()
	m.duration.WithLabelValues(route, op.String()).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
