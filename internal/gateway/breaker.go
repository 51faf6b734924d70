package gateway

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker guards one upstream. Consecutive failures trip it open;
// after the cooldown a single probe request is let through, and its result
// decides whether the circuit closes again.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	failures         int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
	probeInFlight    bool

	now func() time.Time
}

func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// Allow reports whether a request may proceed. In half-open state only one
// probe is admitted at a time.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = breakerHalfOpen
		cb.probeInFlight = true
		return true
	case breakerHalfOpen:
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess closes the circuit and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = breakerClosed
	cb.failures = 0
	cb.probeInFlight = false
}

// RecordFailure counts a failure. A half-open probe failure reopens the
// circuit immediately; in closed state the threshold applies.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerHalfOpen:
		cb.state = breakerOpen
		cb.openedAt = cb.now()
		cb.probeInFlight = false
	case breakerClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = breakerOpen
			cb.openedAt = cb.now()
		}
	case breakerOpen:
		// already open, nothing to count
	}
}
