package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/metrics"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
)

const (
	httpOperation = "http"
	maxTrackedIPs = 10000
	pruneInterval = 10 * time.Minute
)

// IPBuckets builds the per-IP bucket registry for the HTTP API from a
// requests-per-second rate and a burst size.
func IPBuckets(rps float64, burst int) *resilience.TokenBuckets {
	return resilience.NewTokenBuckets(resilience.BucketConfig{
		Capacity:        burst,
		RefillPerMinute: rps * 60,
	}, nil)
}

// RateLimit returns middleware that limits requests per IP address. Rejected
// requests get 429 with a Retry-After header.
func RateLimit(buckets *resilience.TokenBuckets, m *metrics.Metrics) func(http.Handler) http.Handler {
	// Background cleanup every 10 minutes
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for range ticker.C {
			buckets.Prune(maxTrackedIPs)
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Use X-Real-IP if set (from chi's RealIP middleware), otherwise RemoteAddr
			ip := r.Header.Get("X-Real-IP")
			if ip == "" {
				ip = r.RemoteAddr
			}

			if ok, wait := buckets.Take(ip, httpOperation); !ok {
				m.ObserveHTTPRateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(resilience.RetryAfterSeconds(wait)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
