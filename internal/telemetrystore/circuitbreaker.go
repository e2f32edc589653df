package telemetrystore

import (
	"errors"
	"sync"
	"time"
)

// breakerState mirrors the teacher's resilience.State three-state circuit
// breaker (infrastructure/resilience/circuit_breaker.go), adapted here so a
// sustained telemetry backend outage stops issuing doomed HTTP calls
// instead of retrying every sample into a dead endpoint.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

var errCircuitOpen = errors.New("telemetry store circuit open")

type circuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	openTimeout  time.Duration
	halfOpenMax  int
	state        breakerState
	failures     int
	successes    int
	halfOpenReqs int
	lastFailure  time.Time
}

func newCircuitBreaker(maxFailures int, openTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		maxFailures: maxFailures,
		openTimeout: openTimeout,
		halfOpenMax: 3,
		state:       stateClosed,
	}
}

func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		if time.Since(cb.lastFailure) > cb.openTimeout {
			cb.state = stateHalfOpen
			cb.halfOpenReqs = 1
			return nil
		}
		return errCircuitOpen
	case stateHalfOpen:
		if cb.halfOpenReqs >= cb.halfOpenMax {
			return errCircuitOpen
		}
		cb.halfOpenReqs++
	}
	return nil
}

func (cb *circuitBreaker) report(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		switch cb.state {
		case stateHalfOpen:
			cb.successes++
			if cb.successes >= cb.halfOpenMax {
				cb.setState(stateClosed)
			}
		case stateClosed:
			cb.failures = 0
		}
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()
	switch cb.state {
	case stateHalfOpen:
		cb.setState(stateOpen)
	case stateClosed:
		if cb.failures >= cb.maxFailures {
			cb.setState(stateOpen)
		}
	}
}

func (cb *circuitBreaker) setState(s breakerState) {
	cb.state = s
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenReqs = 0
}

func (cb *circuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
