package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "doctor_direct_ai"

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	ProviderRequests    *prometheus.CounterVec
	ProviderLatency     *prometheus.HistogramVec
	ProviderRetries     *prometheus.CounterVec
	CallOutcomes        *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	AuditDropped        prometheus.Counter
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider attempts by outcome",
		}, []string{"provider", "outcome"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Provider attempt latency including retries",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),

		ProviderRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retries issued per provider",
		}, []string{"provider"}),

		CallOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Orchestrated calls by operation and result",
		}, []string{"operation", "result"}),

		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the caller-side rate limiter",
		}, []string{"operation"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"result"}),

		AuditDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit records dropped because the queue was full",
		}),
	}
}

// ObserveAttempt records one provider attempt
func (m *Metrics) ObserveAttempt(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveRetry records one retry against provider
func (m *Metrics) ObserveRetry(provider string) {
	if m == nil {
		return
	}
	m.ProviderRetries.WithLabelValues(provider).Inc()
}

// ObserveCall records the final result of an orchestrated call
func (m *Metrics) ObserveCall(operation, result string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "direct"
	}
	m.CallOutcomes.WithLabelValues(operation, result).Inc()
}

// ObserveRateLimited records a rejected request
func (m *Metrics) ObserveRateLimited(operation string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.WithLabelValues(operation).Inc()
}

// ObserveCache records a cache lookup result ("hit", "miss" or "error")
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveAuditDropped records a dropped audit record
func (m *Metrics) ObserveAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}
