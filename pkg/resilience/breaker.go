package resilience

import (
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a single probe request to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker implements a circuit breaker protecting a single shared endpoint.
// It is global to that endpoint, not per tenant. Safe for concurrent use.
//
// Transitions: CLOSED opens once failures reach the error threshold; OPEN
// fails fast until the reset timeout elapses, at which point the next call
// becomes the single HALF_OPEN probe; one probe success closes the breaker,
// a probe failure reopens it with a fresh timeout.
type Breaker struct {
	mu sync.Mutex

	errorThreshold int
	resetTimeout   time.Duration
	onStateChange  func(from, to State)

	state         State
	failures      int
	lastFailureAt time.Time
	nextAttemptAt time.Time
	probing       bool
}

// BreakerOption configures the breaker.
type BreakerOption func(*Breaker)

// WithStateChangeHook registers a callback invoked on every state
// transition, used for logging and trip metrics.
func WithStateChangeHook(fn func(from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// NewBreaker creates a circuit breaker. Non-positive parameters fall back to
// five failures and a 30 second reset timeout.
func NewBreaker(errorThreshold int, resetTimeout time.Duration, opts ...BreakerOption) *Breaker {
	if errorThreshold <= 0 {
		errorThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	b := &Breaker{
		errorThreshold: errorThreshold,
		resetTimeout:   resetTimeout,
		state:          StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a request may proceed. In the open state the first
// call at or after the reset deadline transitions to half-open and becomes
// the probe; exactly one probe is ever in flight.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if !time.Now().Before(b.nextAttemptAt) {
			b.transition(StateHalfOpen)
			b.probing = true
			return true
		}
		return false

	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful request. A single success in half-open
// closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		b.transition(StateClosed)
		b.failures = 0
		b.probing = false
	}
}

// RecordFailure records a failed request, opening the breaker when the
// threshold is reached or when the half-open probe fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = time.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.errorThreshold {
			b.transition(StateOpen)
			b.nextAttemptAt = time.Now().Add(b.resetTimeout)
		}

	case StateHalfOpen:
		b.transition(StateOpen)
		b.nextAttemptAt = time.Now().Add(b.resetTimeout)
		b.failures = b.errorThreshold
		b.probing = false
	}
}

// State returns the current state, accounting for the pending
// open-to-half-open transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !time.Now().Before(b.nextAttemptAt) {
		return StateHalfOpen
	}
	return b.state
}

// Reset returns the breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transition(StateClosed)
	b.failures = 0
	b.probing = false
	b.lastFailureAt = time.Time{}
	b.nextAttemptAt = time.Time{}
}

// transition must be called with the lock held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

// BreakerStats provides visibility into breaker state for monitoring.
type BreakerStats struct {
	State         string
	Failures      int
	LastFailureAt time.Time
	NextAttemptAt time.Time
}

// Stats returns a snapshot of the breaker.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerStats{
		State:         b.state.String(),
		Failures:      b.failures,
		LastFailureAt: b.lastFailureAt,
		NextAttemptAt: b.nextAttemptAt,
	}
}
