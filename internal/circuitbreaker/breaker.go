package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

// OpenError is returned by Allow while the circuit is open.
type OpenError struct {
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open, retry after %ds", int(e.RetryAfter.Seconds()))
}

// Implements the circuit breaker pattern around a single upstream route.
//
// The breaker counts consecutive failures; at the threshold it opens for
// openDuration. The first Allow after the open window expires enters
// half-open: the failure counter is set to threshold-2, leaving it close
// enough to the threshold that failed trial traffic reopens immediately,
// while two consecutive successes fully re-close the circuit.
type CircuitBreaker struct {
	mu              sync.Mutex
	failureCount    int
	successCount    int
	openUntil       time.Time
	halfOpen        bool
	lastStateChange time.Time

	// Configuration
	threshold       int           // Consecutive failures before opening
	openDuration    time.Duration // How long to stay open
	halfOpenSuccess int           // Successes needed in half-open to close

	now func() time.Time
}

type Config struct {
	Threshold    int           // Default: 5
	OpenDuration time.Duration // Default: 30 seconds
}

func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}

	return &CircuitBreaker{
		threshold:       cfg.Threshold,
		openDuration:    cfg.OpenDuration,
		halfOpenSuccess: 2,
		lastStateChange: time.Now(),
		now:             time.Now,
	}
}

// Allow reports whether a call may proceed. While the circuit is open it
// returns an OpenError carrying the time remaining until the window
// expires. The first Allow after expiry transitions to half-open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.openUntil.IsZero() {
		return nil
	}

	now := cb.now()
	if now.After(cb.openUntil) {
		cb.openUntil = time.Time{}
		cb.failureCount = cb.threshold - 2
		cb.successCount = 0
		cb.halfOpen = true
		cb.lastStateChange = now
		return nil
	}

	return &OpenError{RetryAfter: cb.openUntil.Sub(now)}
}

// RecordSuccess registers a successful call. In closed state the failure
// counter resets to zero; in half-open the circuit fully re-closes only
// after halfOpenSuccess consecutive successes.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.halfOpen {
		cb.successCount++
		if cb.successCount >= cb.halfOpenSuccess {
			cb.failureCount = 0
			cb.successCount = 0
			cb.halfOpen = false
			cb.lastStateChange = cb.now()
		}
		return
	}

	cb.failureCount = 0
}

// RecordFailure increments the consecutive failure counter and opens the
// circuit once the threshold is reached. Any failure during half-open
// reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	if cb.halfOpen || cb.failureCount >= cb.threshold {
		cb.openUntil = cb.now().Add(cb.openDuration)
		cb.successCount = 0
		cb.halfOpen = false
		cb.lastStateChange = cb.now()
	}
}

// Returns the current state. Open is derived from the expiry timestamp so
// a breaker whose window has elapsed still reports open until the next
// Allow performs the half-open transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	if !cb.openUntil.IsZero() {
		return StateOpen
	}
	if cb.halfOpen {
		return StateHalfOpen
	}
	return StateClosed
}

// Returns the consecutive failure counter.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.successCount = 0
	cb.openUntil = time.Time{}
	cb.halfOpen = false
	cb.lastStateChange = cb.now()
}

// Returns current circuit breaker metrics
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Metrics{
		State:           cb.stateLocked(),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		OpenUntil:       cb.openUntil,
		LastStateChange: cb.lastStateChange,
	}
}

// Holds circuit breaker metrics
type Metrics struct {
	State           State
	FailureCount    int
	SuccessCount    int
	OpenUntil       time.Time
	LastStateChange time.Time
}
