// Package metrics holds the Prometheus collectors of the analysis service.
//
// All Observe* methods are safe on a nil *Metrics, so components can be
// constructed without instrumentation in tests and in the CLI.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lexanalyzer"

type Metrics struct {
	AnalysisRuns       *prometheus.CounterVec
	AnalysisDuration   *prometheus.HistogramVec
	AnalysisClauses    prometheus.Counter
	CompletionsTotal   *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	RetrievalRequests  *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New registers every collector on reg. Passing the same registry twice panics.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnalysisRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Contract analysis runs by terminal status",
		}, []string{"status"}),
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of analysis runs",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		AnalysisClauses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "clauses_total",
			Help:      "Clauses extracted across all runs",
		}),
		CompletionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "completions_total",
			Help:      "Completion requests by provider and outcome",
		}, []string{"provider", "status"}),
		CompletionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Completion latency",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		RetrievalRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Index and search operations by outcome",
		}, []string{"operation", "status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "path", "status"}),
		registry: reg,
	}
}

// NewDefault builds a registry with Go runtime and process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (m *Metrics) ObserveRun(status string, d time.Duration, clauses int) {
	if m == nil {
		return
	}
	m.AnalysisRuns.WithLabelValues(status).Inc()
	m.AnalysisDuration.WithLabelValues(status).Observe(d.Seconds())
	m.AnalysisClauses.Add(float64(clauses))
}

func (m *Metrics) ObserveCompletion(provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(provider, status).Inc()
	m.CompletionDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveRetrieval(operation, status string) {
	if m == nil {
		return
	}
	m.RetrievalRequests.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) ObserveHTTP(method, path string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
