package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/Harshitk-cp/psychograph/internal/metrics"
)

// MetricsCollector counts requests for the JSON runtime snapshot and the
// Prometheus registry.
type MetricsCollector struct {
	requestCount *atomic.Int64
	errorCount   *atomic.Int64
	metrics      *metrics.Metrics
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(requestCount, errorCount *atomic.Int64, m *metrics.Metrics) *MetricsCollector {
	return &MetricsCollector{
		requestCount: requestCount,
		errorCount:   errorCount,
		metrics:      m,
	}
}

// Middleware returns middleware that counts requests and errors.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)

		// Wrap response writer to capture status
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		// Count errors (4xx and 5xx)
		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
		mc.metrics.ObserveHTTPRequest(r.Method, rw.statusCode)
	})
}
