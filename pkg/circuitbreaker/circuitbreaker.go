package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Execute while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half-open"
)

// permanentError marks a failure of the request itself, not of the
// downstream service. It does not count towards opening the breaker.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Execute returns it without recording a failure.
// The dependency answered, so it counts as healthy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Settings struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int
	// Timeout is how long the breaker stays open before letting a trial call through.
	Timeout time.Duration
}

type CircuitBreaker struct {
	name         string
	maxFailures  int
	timeout      time.Duration
	failures     int
	lastFailure  time.Time
	state        string
	trialRunning bool
	mu           sync.Mutex
	now          func() time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:        settings.Name,
		maxFailures: settings.MaxFailures,
		timeout:     settings.Timeout,
		state:       stateClosed,
		now:         time.Now,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn unless the breaker is open. Once the timeout has passed a
// single trial call is let through; concurrent callers keep getting ErrOpen
// until that call finishes.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case stateOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.state = stateHalfOpen
		cb.trialRunning = true
	case stateHalfOpen:
		if cb.trialRunning {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.trialRunning = true
	}
	cb.mu.Unlock()

	// a panicking trial call must not leave the breaker stuck half-open
	finished := false
	defer func() {
		if !finished {
			cb.mu.Lock()
			cb.trialRunning = false
			cb.mu.Unlock()
		}
	}()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	finished = true
	cb.trialRunning = false

	if err != nil && !IsPermanent(err) {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == stateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = stateOpen
		}
		return err
	}

	cb.state = stateClosed
	cb.failures = 0
	return err
}
