package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestMetrics_GatewayCalls(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveGatewayCall("analysis", "OK", 1, 10*time.Millisecond)
	m.ObserveGatewayCall("analysis", "OK", 2, 10*time.Millisecond)
	m.ObserveGatewayCall("analysis", "CIRCUIT_OPEN", 0, 0)

	assert.Equal(t, 2.0, value(t, m.GatewayCalls.WithLabelValues("analysis", "OK")))
	assert.Equal(t, 1.0, value(t, m.GatewayCalls.WithLabelValues("analysis", "CIRCUIT_OPEN")))
}

func TestMetrics_BreakerTransition(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBreakerTransition("analysis", "OPEN")
	assert.Equal(t, 2.0, value(t, m.BreakerState.WithLabelValues("analysis")))

	m.ObserveBreakerTransition("analysis", "HALF_OPEN")
	assert.Equal(t, 1.0, value(t, m.BreakerState.WithLabelValues("analysis")))

	m.ObserveBreakerTransition("analysis", "CLOSED")
	assert.Equal(t, 0.0, value(t, m.BreakerState.WithLabelValues("analysis")))
}

func TestMetrics_CreditsConsumed(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCreditsConsumed(10, false)
	m.ObserveCreditsConsumed(5, true)
	m.ObserveCreditsConsumed(3, false)

	assert.Equal(t, 13.0, value(t, m.CreditsConsumed.WithLabelValues("false")))
	assert.Equal(t, 5.0, value(t, m.CreditsConsumed.WithLabelValues("true")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGatewayCall("op", "OK", 1, time.Second)
		m.ObserveBreakerTransition("op", "OPEN")
		m.ObserveCreditsConsumed(1, false)
		m.ObserveCreditRejection()
		m.ObserveEscalation("routine", false)
		m.ObserveDegradation("ml", "error")
		m.ObserveCycle(time.Second)
		m.ObserveAuditWriteFailure()
		m.ObserveAuditPurged(3)
		m.ObserveHTTPRequest("GET", 200)
		m.ObserveHTTPRateLimited()
	})
}
