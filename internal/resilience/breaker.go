// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"context"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Breaker is a three-state circuit breaker. After failureThreshold
// consecutive failures it opens and fails calls fast with ErrCircuitOpen.
// Once recoveryTime has elapsed since the last failure the next call probes
// in half-open state: successThreshold successes close the circuit, any
// failure reopens it.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTime     time.Duration
	successThreshold int

	state       State
	failures    int
	successes   int
	lastFailure time.Time

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewBreaker constructs a closed Breaker. Non-positive thresholds fall back
// to 5 failures, 30s recovery, and 1 half-open success.
func NewBreaker(failureThreshold int, recoveryTime time.Duration, successThreshold int) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTime <= 0 {
		recoveryTime = 30 * time.Second
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTime:     recoveryTime,
		successThreshold: successThreshold,
		state:            StateClosed,
		now:              time.Now,
	}
}

// State returns the current state, accounting for recovery-time expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.recoveryTime {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs op unless the circuit is open and still within recovery time,
// in which case it fails fast with ErrCircuitOpen without invoking op.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := op(ctx)
	b.record(err)
	return err
}

// allow decides whether a call may proceed, moving open → half-open when the
// recovery time has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) < b.recoveryTime {
		return ErrCircuitOpen
	}
	b.state = StateHalfOpen
	b.successes = 0
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
		return
	}

	b.failures = 0
	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.successes = 0
		}
	default:
		b.state = StateClosed
	}
}
