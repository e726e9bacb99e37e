// Package telemetry exposes prometheus metrics for the backend client,
// analysis runs, layout passes, session states and the local UI server.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "community_explorer"

// Registry holds every collector of the process
type Registry struct {
	registry *prometheus.Registry

	BackendCallsTotal   *prometheus.CounterVec
	BackendCallDuration *prometheus.HistogramVec

	AnalysisRunsTotal *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec

	LayoutPassesTotal *prometheus.CounterVec
	LayoutSteps       prometheus.Histogram

	SessionState *prometheus.GaugeVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with all collectors registered
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r.initBackendMetrics()
	r.initSessionMetrics()
	r.initHTTPMetrics()
	return r
}

func (r *Registry) initBackendMetrics() {
	r.BackendCallsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Total number of calls to the detection backend",
		},
		[]string{"endpoint", "outcome"}, // ok, remote_error, transport_error, rejected
	)

	r.BackendCallDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Latency of backend calls in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
}

func (r *Registry) initSessionMetrics() {
	r.AnalysisRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Total number of community detection runs",
		},
		[]string{"algorithm", "outcome"}, // ok, empty, error
	)

	r.AnalysisDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of community detection runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"algorithm"},
	)

	r.LayoutPassesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_passes_total",
			Help:      "Total number of layout passes by outcome",
		},
		[]string{"outcome"}, // done, superseded, empty
	)

	r.LayoutSteps = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_steps",
			Help:      "Optimizer updates performed per layout pass",
			Buckets:   []float64{1, 10, 25, 50, 100, 250, 500},
		},
	)

	r.SessionState = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (1 for the current state, 0 otherwise)",
		},
		[]string{"state"},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of requests served by the local UI server",
		},
		[]string{"method", "route", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of local UI server requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// ObserveBackendCall records one backend call
func (r *Registry) ObserveBackendCall(endpoint, outcome string, seconds float64) {
	r.BackendCallsTotal.WithLabelValues(endpoint, outcome).Inc()
	r.BackendCallDuration.WithLabelValues(endpoint).Observe(seconds)
}

// ObserveAnalysis records one detection run
func (r *Registry) ObserveAnalysis(algorithm, outcome string, seconds float64) {
	r.AnalysisRunsTotal.WithLabelValues(algorithm, outcome).Inc()
	r.AnalysisDuration.WithLabelValues(algorithm).Observe(seconds)
}

// ObserveLayout records one layout pass
func (r *Registry) ObserveLayout(outcome string, steps int) {
	r.LayoutPassesTotal.WithLabelValues(outcome).Inc()
	r.LayoutSteps.Observe(float64(steps))
}

// ObserveState marks state as the current session state
func (r *Registry) ObserveState(states []string, current string) {
	for _, s := range states {
		r.SessionState.WithLabelValues(s).Set(0)
	}
	r.SessionState.WithLabelValues(current).Set(1)
}

// RecordHTTPRequest records a request served by the local UI server
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry for tests and custom exporters
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
