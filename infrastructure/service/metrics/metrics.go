package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "brandpilot"

// PrometheusMetrics records pipeline counters on one registry
type PrometheusMetrics struct {
	decisions    *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	rollbacks    *prometheus.CounterVec
	engineCalls  *prometheus.CounterVec
	budgetUsage  *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheusMetrics registers every collector on reg. Pass
// prometheus.DefaultRegisterer in the server and a fresh registry in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approvals",
			Name:      "decided_total",
			Help:      "Approval decisions by decision and risk level.",
		}, []string{"decision", "risk"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "outcomes_total",
			Help:      "Governed action outcomes.",
		}, []string{"action", "outcome"}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deployments",
			Name:      "rollbacks_total",
			Help:      "Rollback attempts by result.",
		}, []string{"result"}),
		engineCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "Content engine calls by engine and result.",
		}, []string{"engine", "result"}),
		budgetUsage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "usage_ratio",
			Help:      "Rolling weekly spend divided by weekly budget.",
		}, []string{"domain"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *PrometheusMetrics) ObserveDecision(decision, risk string) {
	m.decisions.WithLabelValues(decision, risk).Inc()
}

func (m *PrometheusMetrics) ObserveOutcome(action, outcome string) {
	m.outcomes.WithLabelValues(action, outcome).Inc()
}

func (m *PrometheusMetrics) ObserveRollback(result string) {
	m.rollbacks.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) ObserveEngineCall(engine, result string) {
	m.engineCalls.WithLabelValues(engine, result).Inc()
}

func (m *PrometheusMetrics) SetBudgetUsage(domainID string, ratio float64) {
	m.budgetUsage.WithLabelValues(domainID).Set(ratio)
}

// RecordHTTPRequest is called by the metrics middleware
func (m *PrometheusMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}
