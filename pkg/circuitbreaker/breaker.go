package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the position of the breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config holds the breaker thresholds
type Config struct {
	Enabled   bool
	Threshold int
	// Window is how long failures count towards the threshold
	Window       time.Duration
	ResetTimeout time.Duration
}

// Snapshot is a point in time view of the breaker
type Snapshot struct {
	State        State     `json:"-"`
	StateName    string    `json:"state"`
	Enabled      bool      `json:"enabled"`
	FailureCount int       `json:"failureCount"`
	Threshold    int       `json:"threshold"`
	LastFailure  time.Time `json:"lastFailure"`
	TripTime     time.Time `json:"tripTime"`
}

// CircuitBreaker implements the circuit breaker pattern.
// After ResetTimeout an open breaker lets a single probe through; its outcome closes or reopens it.
type CircuitBreaker struct {
	cfg           Config
	state         State
	failureCount  int
	lastFailure   time.Time
	tripTime      time.Time
	probing       bool
	now           func() time.Time
	onStateChange func(from, to State)
	mu            sync.Mutex
}

// Option configures a CircuitBreaker
type Option func(*CircuitBreaker)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithStateChange registers a callback invoked on every state transition
func WithStateChange(fn func(from, to State)) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg Config, opts ...Option) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	cb := &CircuitBreaker{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a call may proceed, returning ErrCircuitOpen when it may not
func (cb *CircuitBreaker) Allow() error {
	if !cb.cfg.Enabled {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.tripTime) < cb.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

// RecordSuccess closes the breaker and clears the failure count
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.cfg.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.probing = false
	cb.setState(StateClosed)
}

// RecordFailure records a failure and trips the circuit if threshold is reached.
// It returns true when the breaker is open afterwards.
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.cfg.Enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	if cb.state == StateHalfOpen {
		cb.trip(now)
		return true
	}
	if cb.state == StateOpen {
		return true
	}

	// Reset failure count if outside window
	if !cb.lastFailure.IsZero() && now.Sub(cb.lastFailure) > cb.cfg.Window {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.cfg.Threshold {
		cb.trip(now)
		return true
	}
	return false
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.tripTime = now
	cb.lastFailure = now
	cb.probing = false
	cb.setState(StateOpen)
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// IsOpen returns true if calls are currently being rejected
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.cfg.Enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state == StateOpen && cb.now().Sub(cb.tripTime) < cb.cfg.ResetTimeout
}

// Reset manually closes the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.probing = false
	cb.setState(StateClosed)
}

// Snapshot returns the current state of the circuit breaker
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		State:        cb.state,
		StateName:    cb.state.String(),
		Enabled:      cb.cfg.Enabled,
		FailureCount: cb.failureCount,
		Threshold:    cb.cfg.Threshold,
		LastFailure:  cb.lastFailure,
		TripTime:     cb.tripTime,
	}
}
