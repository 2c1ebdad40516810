// Package metrics exposes the service's Prometheus instruments. All recording
// methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "psychograph"

type Metrics struct {
	GatewayCalls       *prometheus.CounterVec
	GatewayLatency     *prometheus.HistogramVec
	GatewayAttempts    *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	CreditsConsumed    *prometheus.CounterVec
	CreditRejections   prometheus.Counter
	Escalations        *prometheus.CounterVec
	LayerDegradations  *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	AuditWriteFailures prometheus.Counter
	AuditPurged        prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	HTTPRateLimited    prometheus.Counter
}

// New registers every instrument on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GatewayCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "LLM gateway calls by operation and result code",
		}, []string{"operation", "code"}),

		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "LLM gateway call latency including retries",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation"}),

		GatewayAttempts: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_attempts",
			Help:      "Provider attempts per gateway call",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}, []string{"operation"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"operation"}),

		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"operation", "to"}),

		CreditsConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_consumed_total",
			Help:      "Credits consumed, split by overage",
		}, []string{"overage"}),

		CreditRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_rejections_total",
			Help:      "Consume attempts rejected for insufficient credits",
		}),

		Escalations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_decisions_total",
			Help:      "Escalation decisions by reason",
		}, []string{"reason", "escalated"}),

		LayerDegradations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_degradations_total",
			Help:      "Inference cycles that fell back because a layer was unavailable",
		}, []string{"layer", "cause"}),

		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_cycle_duration_seconds",
			Help:      "End-to-end inference cycle latency",
			Buckets:   prometheus.DefBuckets,
		}),

		AuditWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit records that could not be persisted",
		}),

		AuditPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_purged_total",
			Help:      "Audit records deleted by retention",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status",
		}, []string{"method", "status"}),

		HTTPRateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "HTTP requests rejected by the per-client limiter",
		}),
	}
}

func (m *Metrics) ObserveGatewayCall(operation, code string, attempts int, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(operation, code).Inc()
	m.GatewayLatency.WithLabelValues(operation).Observe(d.Seconds())
	if attempts > 0 {
		m.GatewayAttempts.WithLabelValues(operation).Observe(float64(attempts))
	}
}

// BreakerStateValue maps a breaker state name onto the gauge encoding.
func BreakerStateValue(state string) float64 {
	switch state {
	case "HALF_OPEN":
		return 1
	case "OPEN":
		return 2
	}
	return 0
}

func (m *Metrics) ObserveBreakerTransition(operation, to string) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(operation).Set(BreakerStateValue(to))
	m.BreakerTransitions.WithLabelValues(operation, to).Inc()
}

func (m *Metrics) ObserveCreditsConsumed(cost int64, overage bool) {
	if m == nil {
		return
	}
	m.CreditsConsumed.WithLabelValues(strconv.FormatBool(overage)).Add(float64(cost))
}

func (m *Metrics) ObserveCreditRejection() {
	if m == nil {
		return
	}
	m.CreditRejections.Inc()
}

func (m *Metrics) ObserveEscalation(reason string, escalated bool) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(reason, strconv.FormatBool(escalated)).Inc()
}

func (m *Metrics) ObserveDegradation(layer, cause string) {
	if m == nil {
		return
	}
	m.LayerDegradations.WithLabelValues(layer, cause).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveAuditWriteFailure() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

func (m *Metrics) ObserveAuditPurged(n int64) {
	if m == nil {
		return
	}
	m.AuditPurged.Add(float64(n))
}

func (m *Metrics) ObserveHTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveHTTPRateLimited() {
	if m == nil {
		return
	}
	m.HTTPRateLimited.Inc()
}
