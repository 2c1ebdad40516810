package resilience

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBucketCapacity        = 10
	defaultBucketRefillPerMinute = 60
)

type BucketConfig struct {
	Capacity        int
	RefillPerMinute float64
}

func (c BucketConfig) normalized() BucketConfig {
	if c.Capacity <= 0 {
		c.Capacity = defaultBucketCapacity
	}
	if c.RefillPerMinute <= 0 {
		c.RefillPerMinute = defaultBucketRefillPerMinute
	}
	return c
}

func (c BucketConfig) perSecond() float64 {
	return c.RefillPerMinute / 60
}

type bucketKey struct {
	principal string
	operation string
}

type bucket struct {
	limiter *rate.Limiter
	cfg     BucketConfig
}

// TokenBuckets holds one lazily refilled bucket per (principal, operation).
// Refill is computed from elapsed time on access; no timers run.
type TokenBuckets struct {
	mu        sync.RWMutex
	buckets   map[bucketKey]*bucket
	defaults  BucketConfig
	overrides map[string]BucketConfig
	clock     Clock
}

func NewTokenBuckets(defaults BucketConfig, clock Clock) *TokenBuckets {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenBuckets{
		buckets:   make(map[bucketKey]*bucket),
		defaults:  defaults.normalized(),
		overrides: make(map[string]BucketConfig),
		clock:     clock,
	}
}

// Configure sets the bucket shape for an operation. Buckets already created
// for the operation keep their previous shape.
func (b *TokenBuckets) Configure(operation string, cfg BucketConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[operation] = cfg.normalized()
}

func (b *TokenBuckets) configFor(operation string) BucketConfig {
	if cfg, ok := b.overrides[operation]; ok {
		return cfg
	}
	return b.defaults
}

func (b *TokenBuckets) get(principal, operation string) *bucket {
	key := bucketKey{principal: principal, operation: operation}

	b.mu.RLock()
	bk, ok := b.buckets[key]
	b.mu.RUnlock()
	if ok {
		return bk
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if bk, ok = b.buckets[key]; ok {
		return bk
	}

	cfg := b.configFor(operation)
	bk = &bucket{
		limiter: rate.NewLimiter(rate.Limit(cfg.perSecond()), cfg.Capacity),
		cfg:     cfg,
	}
	b.buckets[key] = bk
	return bk
}

// Take consumes one token. When the bucket is empty it returns false and the
// time until one token will have accrued.
func (b *TokenBuckets) Take(principal, operation string) (bool, time.Duration) {
	bk := b.get(principal, operation)
	now := b.clock.Now()
	if bk.limiter.AllowN(now, 1) {
		return true, 0
	}
	return false, retryAfter(bk.limiter.TokensAt(now), bk.cfg)
}

// Tokens returns the current token count without consuming.
func (b *TokenBuckets) Tokens(principal, operation string) float64 {
	bk := b.get(principal, operation)
	return bk.limiter.TokensAt(b.clock.Now())
}

func (b *TokenBuckets) Capacity(operation string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.configFor(operation).Capacity
}

// Prune drops every bucket once more than maxKeys are tracked. Dropped
// principals come back with a full bucket.
func (b *TokenBuckets) Prune(maxKeys int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buckets) > maxKeys {
		b.buckets = make(map[bucketKey]*bucket)
	}
}

func (b *TokenBuckets) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buckets)
}

func retryAfter(tokens float64, cfg BucketConfig) time.Duration {
	missing := 1 - tokens
	if missing <= 0 {
		return 0
	}
	seconds := missing / cfg.perSecond()
	return time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
}

// RetryAfterSeconds rounds d up to whole seconds for Retry-After headers.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
