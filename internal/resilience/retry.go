package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// RetryPolicy retries an operation with exponential backoff and jitter. Each
// attempt runs under its own timeout.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsRetryable.
	Retryable func(error) bool
	// Jitter returns a random extra delay in [0, max). Defaults to math/rand.
	Jitter func(max time.Duration) time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Outcome describes a completed Execute call.
type Outcome struct {
	Attempts int
	LastErr  error
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	if p.Jitter == nil {
		p.Jitter = randomJitter
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// Backoff returns the delay before retry number attempt (0-based), without
// jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The returned error is the last one observed.
func (p RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) error) (Outcome, error) {
	_, out, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return out, err
}

// Run is Execute for operations that produce a value. A value from an
// attempt that timed out is discarded.
func Run[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, Outcome, error) {
	p = p.withDefaults()

	var (
		out  Outcome
		zero T
	)
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		out.Attempts = attempt + 1
		v, err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			out.LastErr = nil
			return v, out, nil
		}
		out.LastErr = err

		if ctx.Err() != nil {
			return zero, out, ctx.Err()
		}
		if !p.Retryable(err) || attempt == p.MaxAttempts-1 {
			return zero, out, err
		}

		delay := p.Backoff(attempt) + p.Jitter(p.BaseDelay)
		if serr := p.Sleep(ctx, delay); serr != nil {
			return zero, out, serr
		}
	}
	return zero, out, out.LastErr
}

type attemptResult[T any] struct {
	val T
	err error
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		v, err := op(actx)
		done <- attemptResult[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && actx.Err() == context.DeadlineExceeded {
			return zero, ErrAttemptTimeout
		}
		return r.val, r.err
	case <-actx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrAttemptTimeout
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
