// Package metrics provides Prometheus metrics for the tracker and its transports.
//
// All Record/Set methods are safe on a nil *Metrics so components can run
// without a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for raido.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	TransitionsTotal *prometheus.CounterVec
	LoggedSeconds    *prometheus.CounterVec
	SweepFailures    prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	OrphanedSessions prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "raido_active_sessions",
				Help: "Number of work sessions currently active.",
			},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raido_session_transitions_total",
				Help: "Work session operations by operation and result category.",
			},
			[]string{"op", "result"},
		),
		LoggedSeconds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raido_logged_seconds_total",
				Help: "Seconds recorded to the time log by operation.",
			},
			[]string{"op"},
		),
		SweepFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raido_auto_checkpoint_failures_total",
				Help: "Auto-checkpoints that failed during a sweep.",
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raido_http_request_duration_seconds",
				Help:    "REST request duration by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
		OrphanedSessions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raido_orphaned_sessions_total",
				Help: "Sessions whose todo disappeared from an externally edited document.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.ActiveSessions)
	reg.MustRegister(m.TransitionsTotal)
	reg.MustRegister(m.LoggedSeconds)
	reg.MustRegister(m.SweepFailures)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.OrphanedSessions)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTransition counts one lifecycle operation with its result category.
func (m *Metrics) RecordTransition(op, result string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(op, result).Inc()
}

// AddLogged adds seconds recorded to the time log by op.
func (m *Metrics) AddLogged(op string, seconds float64) {
	if m == nil || seconds <= 0 {
		return
	}
	m.LoggedSeconds.WithLabelValues(op).Add(seconds)
}

// SetActiveSessions sets the active session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordSweepFailure increments the auto-checkpoint failure counter.
func (m *Metrics) RecordSweepFailure() {
	if m == nil {
		return
	}
	m.SweepFailures.Inc()
}

// RecordOrphan increments the orphaned session counter.
func (m *Metrics) RecordOrphan() {
	if m == nil {
		return
	}
	m.OrphanedSessions.Inc()
}

// ObserveRequest records a REST request duration.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, status).Observe(seconds)
}
