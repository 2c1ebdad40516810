package resilience

import (
	"sort"
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	defaultFailureThreshold = 5
	defaultFailureWindow    = 5 * time.Minute
	defaultRecoveryTimeout  = 60 * time.Second
)

type BreakerConfig struct {
	FailureThreshold int
	Window           time.Duration
	RecoveryTimeout  time.Duration
}

func (c BreakerConfig) normalized() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.Window <= 0 {
		c.Window = defaultFailureWindow
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = defaultRecoveryTimeout
	}
	return c
}

// StateChangeFunc is invoked outside the breaker lock on every transition.
type StateChangeFunc func(name string, from, to State)

// BreakerSnapshot is a point-in-time view of a breaker.
type BreakerSnapshot struct {
	Name          string     `json:"name"`
	State         State      `json:"state"`
	FailureCount  int        `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

// CircuitBreaker guards one operation. Failures are counted over a rolling
// window; once the threshold is reached calls are rejected until the recovery
// timeout passes, after which a single trial call decides whether to close.
type CircuitBreaker struct {
	name     string
	cfg      BreakerConfig
	clock    Clock
	onChange StateChangeFunc

	mu            sync.Mutex
	state         State
	failures      []time.Time
	lastFailureAt time.Time
	nextAttemptAt time.Time
	trialInFlight bool
}

func NewCircuitBreaker(name string, cfg BreakerConfig, clock Clock, onChange StateChangeFunc) *CircuitBreaker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CircuitBreaker{
		name:     name,
		cfg:      cfg.normalized(),
		clock:    clock,
		onChange: onChange,
		state:    StateClosed,
	}
}

func (b *CircuitBreaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen while
// open, and while a half-open trial is already in flight.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	now := b.clock.Now()
	var from State

	switch b.state {
	case StateOpen:
		if now.Before(b.nextAttemptAt) {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		from = b.state
		b.state = StateHalfOpen
		b.trialInFlight = true
	case StateHalfOpen:
		if b.trialInFlight {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.trialInFlight = true
	}
	b.mu.Unlock()

	if from != "" {
		b.notify(from, StateHalfOpen)
	}
	return nil
}

// OnSuccess records a successful call.
func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	from := b.state
	b.failures = b.failures[:0]
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.trialInFlight = false
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

// OnFailure records a failed call. A failed half-open trial reopens the
// breaker immediately.
func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	now := b.clock.Now()
	from := b.state
	b.lastFailureAt = now

	switch b.state {
	case StateHalfOpen:
		b.failures = append(b.failures, now)
		b.open(now)
	case StateClosed:
		b.pruneLocked(now)
		b.failures = append(b.failures, now)
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.open(now)
		}
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

// Release frees a half-open trial slot taken by Allow when the call was
// abandoned before reaching the upstream.
func (b *CircuitBreaker) Release() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
	b.mu.Unlock()
}

func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		b.pruneLocked(b.clock.Now())
	}
	snap := BreakerSnapshot{
		Name:         b.name,
		State:        b.state,
		FailureCount: len(b.failures),
	}
	if !b.lastFailureAt.IsZero() {
		t := b.lastFailureAt
		snap.LastFailureAt = &t
	}
	if b.state != StateClosed {
		t := b.nextAttemptAt
		snap.NextAttemptAt = &t
	}
	return snap
}

func (b *CircuitBreaker) open(now time.Time) {
	b.state = StateOpen
	b.nextAttemptAt = now.Add(b.cfg.RecoveryTimeout)
	b.trialInFlight = false
}

func (b *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

func (b *CircuitBreaker) notify(from, to State) {
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// BreakerRegistry creates breakers on first use, one per operation name.
type BreakerRegistry struct {
	mu        sync.RWMutex
	breakers  map[string]*CircuitBreaker
	defaults  BreakerConfig
	overrides map[string]BreakerConfig
	clock     Clock
	onChange  StateChangeFunc
}

func NewBreakerRegistry(defaults BreakerConfig, clock Clock, onChange StateChangeFunc) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:  make(map[string]*CircuitBreaker),
		defaults:  defaults.normalized(),
		overrides: make(map[string]BreakerConfig),
		clock:     clock,
		onChange:  onChange,
	}
}

// Configure overrides the config for an operation whose breaker has not been
// created yet.
func (r *BreakerRegistry) Configure(name string, cfg BreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = cfg.normalized()
}

func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok = r.breakers[name]; ok {
		return b
	}
	cfg, ok := r.overrides[name]
	if !ok {
		cfg = r.defaults
	}
	b = NewCircuitBreaker(name, cfg, r.clock, r.onChange)
	r.breakers[name] = b
	return b
}

// Snapshots returns every known breaker sorted by name.
func (r *BreakerRegistry) Snapshots() []BreakerSnapshot {
	r.mu.RLock()
	list := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.RUnlock()

	out := make([]BreakerSnapshot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
