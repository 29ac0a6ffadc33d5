package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("completed", 2*time.Second, 3)
	m.ObserveRun("completed", time.Second, 2)
	m.ObserveRun("error", time.Second, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysisRuns.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysisRuns.WithLabelValues("error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.AnalysisClauses))
}

func TestObserveCompletionAndRetrieval(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCompletion("groq", "success", 300*time.Millisecond)
	m.ObserveCompletion("groq", "error", time.Millisecond)
	m.ObserveRetrieval("search", "success")
	m.ObserveHTTP("POST", "/api/v1/analyze", 500)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("groq", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalRequests.WithLabelValues("search", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/analyze", "500")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("completed", time.Second, 1)
		m.ObserveCompletion("ollama", "success", time.Second)
		m.ObserveRetrieval("index", "error")
		m.ObserveHTTP("GET", "/health", 200)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRun("completed", time.Second, 1)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lexanalyzer_analysis_runs_total")
}
