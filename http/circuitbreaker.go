package http

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the state of one host's circuit.
type CircuitState int

const (
	// CircuitClosed lets every request through.
	CircuitClosed CircuitState = iota
	// CircuitOpen fails requests fast until the recovery timeout passes.
	CircuitOpen
	// CircuitHalfOpen lets a limited number of trial requests through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Circuit breaker defaults.
const (
	DefaultFailureThreshold    = 5
	DefaultRecoveryTimeout     = 30 * time.Second
	DefaultHalfOpenMaxRequests = 1
)

// ErrCircuitOpen is returned when the circuit for a host is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration
	// HalfOpenMaxRequests is the number of trial requests allowed while half-open.
	HalfOpenMaxRequests int
	// IsTransientError decides whether a failure counts against the circuit.
	// If nil, every failure counts.
	IsTransientError func(error) bool
	// OnStateChange, if set, is called after a host's circuit changes state.
	// It runs with the breaker's lock held and must not call back into it.
	OnStateChange func(host string, from, to CircuitState)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultCircuitBreakerConfig returns the defaults with IsTransientHTTPError
// as the failure filter.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		RecoveryTimeout:     DefaultRecoveryTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
		IsTransientError:    IsTransientHTTPError,
	}
}

type circuit struct {
	state    CircuitState
	failures int
	since    time.Time
	trials   int
}

// CircuitBreaker tracks consecutive failures per host. A nil *CircuitBreaker
// allows everything.
type CircuitBreaker struct {
	mu       sync.Mutex
	config   CircuitBreakerConfig
	circuits map[string]*circuit
}

// NewCircuitBreaker creates a circuit breaker, filling zero fields with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		config:   cfg,
		circuits: make(map[string]*circuit),
	}
}

// Allow returns nil if a request to host may proceed, or ErrCircuitOpen.
func (cb *CircuitBreaker) Allow(host string) error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	switch c.state {
	case CircuitOpen:
		if !cb.recovered(c) {
			return ErrCircuitOpen
		}
		cb.transition(host, c, CircuitHalfOpen)
		c.trials = 1
	case CircuitHalfOpen:
		if c.trials >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		c.trials++
	}
	return nil
}

// RecordSuccess clears host's failure count and closes a half-open circuit.
func (cb *CircuitBreaker) RecordSuccess(host string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	c.failures = 0
	if c.state == CircuitHalfOpen {
		cb.transition(host, c, CircuitClosed)
	}
}

// RecordFailure counts a transient failure against host. Failures rejected by
// IsTransientError leave the circuit untouched.
func (cb *CircuitBreaker) RecordFailure(host string, err error) {
	if cb == nil {
		return
	}
	if cb.config.IsTransientError != nil && !cb.config.IsTransientError(err) {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	c.failures++
	switch {
	case c.state == CircuitHalfOpen:
		cb.transition(host, c, CircuitOpen)
	case c.state == CircuitClosed && c.failures >= cb.config.FailureThreshold:
		cb.transition(host, c, CircuitOpen)
	}
}

// State returns host's state. An open circuit whose recovery timeout has
// passed is reported as half-open.
func (cb *CircuitBreaker) State(host string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[host]
	if !ok {
		return CircuitClosed
	}
	if c.state == CircuitOpen && cb.recovered(c) {
		return CircuitHalfOpen
	}
	return c.state
}

// OpenHosts lists the hosts whose circuit is not closed.
func (cb *CircuitBreaker) OpenHosts() []string {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var hosts []string
	for host, c := range cb.circuits {
		if c.state != CircuitClosed {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// Reset forgets host's circuit.
func (cb *CircuitBreaker) Reset(host string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.circuits, host)
}

// The helpers below must be called with cb.mu held.

func (cb *CircuitBreaker) get(host string) *circuit {
	c, ok := cb.circuits[host]
	if !ok {
		c = &circuit{state: CircuitClosed, since: cb.config.Now()}
		cb.circuits[host] = c
	}
	return c
}

func (cb *CircuitBreaker) recovered(c *circuit) bool {
	return cb.config.Now().Sub(c.since) >= cb.config.RecoveryTimeout
}

func (cb *CircuitBreaker) transition(host string, c *circuit, to CircuitState) {
	from := c.state
	c.state = to
	c.since = cb.config.Now()
	if to != CircuitHalfOpen {
		c.trials = 0
	}
	if cb.config.OnStateChange != nil && from != to {
		cb.config.OnStateChange(host, from, to)
	}
}

// IsTransientHTTPError reports whether err should count against a circuit.
// Only 4xx responses other than 429 are treated as permanent.
func IsTransientHTTPError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return IsServerError(httpErr.StatusCode) || httpErr.StatusCode == 429
	}

	return true
}
