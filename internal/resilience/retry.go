// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy controls the retry loop.
type Policy struct {
	// MaxRetries is the number of attempts after the first (default 3).
	MaxRetries int

	// BaseDelay is the delay before the first retry (default 1s).
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay (default 30s).
	MaxDelay time.Duration

	// Exponential doubles the delay each attempt and adds up to 10% jitter.
	// When false every delay is BaseDelay.
	Exponential bool

	// Retryable decides whether a failure is worth another attempt.
	// Nil means Retryable (the package default classification).
	Retryable func(error) bool

	// OnRetry, if set, is called before each retry sleep with the attempt
	// number (1-based) and the error that triggered it.
	OnRetry func(attempt int, err error)
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Retryable == nil {
		p.Retryable = Retryable
	}
	return p
}

// Outcome summarises a completed retry loop.
type Outcome struct {
	Attempts      int
	TotalDuration time.Duration
	Errors        []error
}

// jitterFrac is the maximum jitter added to an exponential backoff delay.
// Tests may zero it for determinism.
var jitterFrac = 0.1

// WithRetry runs op until it succeeds, the retryable predicate rejects the
// failure, or MaxRetries is exhausted. On exhaustion the returned error is an
// *ExhaustedError carrying every captured error and the elapsed time. A
// non-retryable failure is returned as-is alongside the outcome so far.
func WithRetry(ctx context.Context, op func(context.Context) error, p Policy) (Outcome, error) {
	p = p.withDefaults()
	start := time.Now()
	var out Outcome

	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		err := op(ctx)
		if err == nil {
			out.TotalDuration = time.Since(start)
			return out, nil
		}
		out.Errors = append(out.Errors, err)

		if !p.Retryable(err) || attempt > p.MaxRetries {
			out.TotalDuration = time.Since(start)
			if attempt > p.MaxRetries {
				return out, &ExhaustedError{
					Attempts: out.Attempts,
					Elapsed:  out.TotalDuration,
					Errs:     out.Errors,
				}
			}
			return out, err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			out.TotalDuration = time.Since(start)
			return out, ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
}

// delay computes the backoff before retry number attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	if !p.Exponential {
		return p.BaseDelay
	}
	d := time.Duration(math.Pow(2, float64(attempt-1))) * p.BaseDelay
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if jitterFrac > 0 {
		d += time.Duration(rand.Float64() * jitterFrac * float64(d))
	}
	return d
}

// WithTimeout races op against a timer. If the timer wins the call fails with
// a *TimeoutError, but the goroutine running op is left to finish on its own:
// a timed-out call may still complete its side effects (and may still be
// billed by the provider).
func WithTimeout(ctx context.Context, op func(context.Context) error, d time.Duration) error {
	done := make(chan error, 1)
	start := time.Now()

	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return &TimeoutError{Elapsed: time.Since(start)}
	}
}
