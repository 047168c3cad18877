// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resilience provides retry, timeout, and circuit breaker primitives
// shared by the search and pipeline services.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrCircuitOpen is returned by Breaker.Execute while the circuit is open and
// the recovery time has not yet elapsed. The wrapped operation is not invoked.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// TimeoutError reports that an operation exceeded its time budget. The
// underlying operation is not forcibly cancelled; its side effects may still
// complete, so callers must treat this as an unknown outcome.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %v", e.Elapsed)
}

// ExhaustedError reports that all retry attempts failed. It carries every
// captured error; the last one is wrapped for errors.Is/As.
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Errs     []error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts in %v: %v",
		e.Attempts, e.Elapsed, e.last())
}

func (e *ExhaustedError) Unwrap() error { return e.last() }

func (e *ExhaustedError) last() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[len(e.Errs)-1]
}

// StatusError carries an HTTP status code from an external provider so the
// retryable classification can inspect it.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d", e.Code)
}

// retryableStatuses is the set of HTTP status codes worth retrying.
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// retryableFragments are error message patterns from providers that signal a
// transient condition.
var retryableFragments = []string{
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"service unavailable",
	"overloaded",
}

// Retryable reports whether an error is worth retrying: network/transport
// errors, retryable HTTP status codes, and transient provider messages.
// Timeouts from WithTimeout and open circuits are not retryable here.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatuses[se.Code]
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
