// Package circuitbreaker tracks delivery failures per destination and
// sheds traffic to destinations that keep failing, so one dead webhook
// endpoint cannot slow every due-scan cycle down to its timeout.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type destState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker keeps an independent breaker per destination key.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*destState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*destState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithClock replaces the time source. For tests.
func (cb *CircuitBreaker) WithClock(clock func() time.Time) *CircuitBreaker {
	cb.clock = clock
	return cb
}

// Allow reports whether a delivery to the destination may proceed.
// After the cooldown a single probe is let through in half-open state.
func (cb *CircuitBreaker) Allow(dest string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[dest]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(dest string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[dest]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(dest string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[dest]
	if !ok {
		s = &destState{}
		cb.states[dest] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}
