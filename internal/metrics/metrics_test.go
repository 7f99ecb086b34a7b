package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"izin-talep/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()
	m.LeaveTransition("APPROVED")
	m.LeaveTransition("APPROVED")
	m.PersistenceError("save")
	m.GuardDecision("deny")

	expected := `
# HELP izin_leave_transitions_total Committed leave request state changes by resulting status.
# TYPE izin_leave_transitions_total counter
izin_leave_transitions_total{status="APPROVED"} 2
`
	err := testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "izin_leave_transitions_total")
	assert.NoError(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.LeaveTransition("PENDING")
		m.PersistenceError("load")
		m.GuardDecision("allow")
		m.HTTPRequest("GET", "/health", "200")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.GuardDecision("allow")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `izin_guard_decisions_total{outcome="allow"} 1`)
}
