package retry

import (
	"fmt"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// CircuitOpenError is returned when a request is rejected because the
// breaker for its endpoint is open. Distinct from upstream errors so
// callers can tell "breaker open" apart from "upstream rejected".
type CircuitOpenError struct {
	Endpoint string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for endpoint %s", e.Endpoint)
}

// Breaker prevents repeated calls to a failing endpoint. It opens after
// FailureThreshold consecutive failures, rejects everything until the
// recovery timeout elapses, then admits requests in half-open state until
// one succeeds (back to closed) or fails (re-opens). Half-open admits all
// requests, not a single probe.
type Breaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration
	failures         int
	lastFailure      time.Time
	state            State

	now func() time.Time // injectable for tests
}

// NewBreaker creates a closed Breaker.
func NewBreaker(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// AllowRequest reports whether a request may proceed, transitioning an
// open breaker to half-open once the recovery timeout has elapsed.
func (b *Breaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) > b.recoveryTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	default: // closed or half-open
		return true
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
}

// RecordFailure counts a failure and opens the breaker at the threshold.
// In half-open state the accumulated count is already at the threshold, so
// a single failure re-opens.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry holds one Breaker per logical endpoint, created lazily on
// first use. Construct one per process and inject it; nothing here is a
// package-level global, so tests get isolated instances.
type Registry struct {
	mu               sync.Mutex
	breakers         map[string]*Breaker
	failureThreshold int
	recoveryTimeout  time.Duration
}

// NewRegistry creates an empty breaker registry.
func NewRegistry(failureThreshold int, recoveryTimeout time.Duration) *Registry {
	return &Registry{
		breakers:         make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// Breaker returns the breaker for an endpoint, creating it if needed.
func (r *Registry) Breaker(endpoint string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[endpoint]
	if !ok {
		b = NewBreaker(r.failureThreshold, r.recoveryTimeout)
		r.breakers[endpoint] = b
	}
	return b
}
