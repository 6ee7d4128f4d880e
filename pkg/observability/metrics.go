package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the control plane
type Metrics struct {
	// Authorization gateway metrics
	AuthDecisionsTotal *prometheus.CounterVec
	AuthCheckDuration  *prometheus.HistogramVec
	TokensIssuedTotal  prometheus.Counter
	TokenIssueErrors   prometheus.Counter

	// Registry webhook metrics
	WebhookEventsTotal *prometheus.CounterVec

	// Reconciliation worker metrics
	BusMessagesTotal     *prometheus.CounterVec
	BusRedeliveriesTotal *prometheus.CounterVec
	HandlerDuration      *prometheus.HistogramVec

	// Orchestration API metrics
	CommanderCallsTotal   *prometheus.CounterVec
	CommanderCallDuration *prometheus.HistogramVec

	// Deployment lookup metrics
	LookupCacheHitsTotal   prometheus.Counter
	LookupCacheMissesTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_auth_decisions_total",
				Help: "Authorization gateway decisions by outcome",
			},
			[]string{"outcome"}, // allowed, denied, unauthenticated
		),
		AuthCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_auth_check_duration_seconds",
				Help:    "Authorization check latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_tokens_issued_total",
				Help: "Scoped tokens minted by the gateway",
			},
		),
		TokenIssueErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_token_issue_errors_total",
				Help: "Failed token signing operations",
			},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_registry_webhook_events_total",
				Help: "Registry webhook events by validation result",
			},
			[]string{"result"}, // accepted, rejected, malformed
		),
		BusMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_bus_messages_total",
				Help: "Bus messages handled by subject and outcome",
			},
			[]string{"subject", "outcome"}, // acked, unacked, malformed
		),
		BusRedeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_bus_redeliveries_total",
				Help: "Messages delivered more than once",
			},
			[]string{"subject"},
		),
		HandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_handler_duration_seconds",
				Help:    "Reconciliation handler execution time",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"subject"},
		),
		CommanderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_commander_calls_total",
				Help: "Orchestration API calls by status",
			},
			[]string{"status"}, // success, error
		),
		CommanderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_commander_call_duration_seconds",
				Help:    "Orchestration API call latency",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"status"},
		),
		LookupCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_lookup_cache_hits_total",
				Help: "Deployment lookup cache hits",
			},
		),
		LookupCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_lookup_cache_misses_total",
				Help: "Deployment lookup cache misses",
			},
		),
	}

	registry.MustRegister(
		m.AuthDecisionsTotal,
		m.AuthCheckDuration,
		m.TokensIssuedTotal,
		m.TokenIssueErrors,
		m.WebhookEventsTotal,
		m.BusMessagesTotal,
		m.BusRedeliveriesTotal,
		m.HandlerDuration,
		m.CommanderCallsTotal,
		m.CommanderCallDuration,
		m.LookupCacheHitsTotal,
		m.LookupCacheMissesTotal,
	)

	return m
}

// ObserveAuthDecision records a gateway decision and its latency
func (m *Metrics) ObserveAuthDecision(outcome string, duration time.Duration) {
	m.AuthDecisionsTotal.WithLabelValues(outcome).Inc()
	m.AuthCheckDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveCommanderCall records an orchestration API call
func (m *Metrics) ObserveCommanderCall(status string, duration time.Duration) {
	m.CommanderCallsTotal.WithLabelValues(status).Inc()
	m.CommanderCallDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// MetricsHandler returns an HTTP handler for the /metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
