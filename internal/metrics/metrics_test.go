package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordTransition("start", "ok")
	m.RecordTransition("start", "ok")
	m.RecordTransition("complete", "multi_day_confirmation_required")
	m.AddLogged("pause", 90)
	m.AddLogged("pause", -5)
	m.SetActiveSessions(3)
	m.RecordSweepFailure()
	m.RecordOrphan()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("complete", "multi_day_confirmation_required")))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.LoggedSeconds.WithLabelValues("pause")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrphanedSessions))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("start", "ok")
		m.AddLogged("pause", 1)
		m.SetActiveSessions(1)
		m.RecordSweepFailure()
		m.RecordOrphan()
		m.ObserveRequest("/api/todos", "200", 0.1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordTransition("cancel", "ok")
	m.ObserveRequest("/api/sessions", "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `raido_session_transitions_total{op="cancel",result="ok"} 1`)
	assert.Contains(t, string(body), "raido_http_request_duration_seconds")
}
