package resilience

import (
	"context"
	"errors"
)

var (
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	ErrAttemptTimeout = errors.New("attempt timed out")
)

// Retryable is implemented by errors that know whether another attempt can
// succeed, e.g. provider errors carrying an HTTP status.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is a timeout or a transient upstream error.
// Caller cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
