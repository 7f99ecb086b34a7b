package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	leaveTransitions  *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
	guardDecisions    *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		leaveTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izin_leave_transitions_total",
			Help: "Committed leave request state changes by resulting status.",
		}, []string{"status"}),
		persistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izin_persistence_errors_total",
			Help: "Failed persistence adapter calls by operation.",
		}, []string{"op"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izin_guard_decisions_total",
			Help: "Authorization guard outcomes.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izin_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.leaveTransitions,
		m.persistenceErrors,
		m.guardDecisions,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) LeaveTransition(status string) {
	if m == nil {
		return
	}
	m.leaveTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) PersistenceError(op string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) GuardDecision(outcome string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HTTPRequest(method, route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
}

// Gatherer exposes the registry to tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
