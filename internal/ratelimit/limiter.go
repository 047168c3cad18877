// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit bounds how many search calls an identifier may issue per
// minute and per hour, with a small burst allowance on the minute bound.
//
// Windows are bucketed by calendar minute and calendar hour rather than true
// sliding windows, so a burst straddling a boundary can momentarily exceed
// the intended rate. This approximation is deliberate; see DESIGN.md.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/coinbrief/pkg/types"
)

const (
	minuteFmt = "2006-01-02T15:04"
	hourFmt   = "2006-01-02T15"

	// retention is the horizon after which idle per-identifier state is
	// swept. Generous relative to the window sizes to bound memory only.
	retention = 2 * time.Hour

	sweepEvery = 10 * time.Minute
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed bool

	// Remaining is the number of steady-state minute-window calls left.
	Remaining int

	// ResetTime is when the binding window rolls over.
	ResetTime time.Time

	// RetryAfter is the caller backoff hint on denial: 60s for a
	// minute-limit denial, 3600s for an hour-limit denial.
	RetryAfter time.Duration
}

// DeniedError reports a rate limit denial with its backoff hint.
type DeniedError struct {
	Identifier string
	RetryAfter time.Duration
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q, retry after %v", e.Identifier, e.RetryAfter)
}

// window counts requests inside one calendar bucket.
type window struct {
	bucket   string
	count    int
	lastSeen time.Time
}

// Limiter tracks per-identifier request counts. Safe for concurrent use; a
// check and its consumption are atomic under one lock.
type Limiter struct {
	mu        sync.Mutex
	cfg       types.RateLimitConfig
	minutes   map[string]*window
	hours     map[string]*window
	burst     map[string]*rate.Limiter
	lastSweep time.Time

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewLimiter constructs a Limiter with defaults of 10/minute, 100/hour, and
// 3 burst tokens.
func NewLimiter(cfg types.RateLimitConfig) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 10
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = 100
	}
	if cfg.BurstTokens < 0 {
		cfg.BurstTokens = 0
	} else if cfg.BurstTokens == 0 {
		cfg.BurstTokens = 3
	}
	return &Limiter{
		cfg:     cfg,
		minutes: make(map[string]*window),
		hours:   make(map[string]*window),
		burst:   make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

// CheckAndConsume decides whether the identifier may make cost more calls
// right now and, if so, consumes them from both windows. An hour-bound
// overflow is always denied; a minute-bound overflow may be absorbed by the
// identifier's burst pool, which replenishes one token per minute up to its
// cap.
func (l *Limiter) CheckAndConsume(identifier string, cost int) Decision {
	if cost <= 0 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	min := l.bucket(l.minutes, identifier, now, minuteFmt)
	hr := l.bucket(l.hours, identifier, now, hourFmt)

	minuteReset := now.Truncate(time.Minute).Add(time.Minute)
	hourReset := now.Truncate(time.Hour).Add(time.Hour)

	// Hour bound is a hard cap with no burst override.
	if hr.count+cost > l.cfg.PerHour {
		return Decision{
			Remaining:  remaining(l.cfg.PerMinute, min.count),
			ResetTime:  hourReset,
			RetryAfter: time.Hour,
		}
	}

	if min.count+cost > l.cfg.PerMinute {
		// Overflow may be absorbed by burst tokens.
		if !l.burstFor(identifier).AllowN(now, cost) {
			return Decision{
				Remaining:  remaining(l.cfg.PerMinute, min.count),
				ResetTime:  minuteReset,
				RetryAfter: time.Minute,
			}
		}
	}

	min.count += cost
	hr.count += cost
	return Decision{
		Allowed:   true,
		Remaining: remaining(l.cfg.PerMinute, min.count),
		ResetTime: minuteReset,
	}
}

// Check wraps CheckAndConsume with a structured error on denial.
func (l *Limiter) Check(identifier string, cost int) (Decision, error) {
	d := l.CheckAndConsume(identifier, cost)
	if !d.Allowed {
		return d, &DeniedError{Identifier: identifier, RetryAfter: d.RetryAfter}
	}
	return d, nil
}

// bucket returns the identifier's window for the current calendar bucket,
// resetting the count when the bucket has rolled over.
func (l *Limiter) bucket(m map[string]*window, identifier string, now time.Time, format string) *window {
	label := now.UTC().Format(format)
	w, ok := m[identifier]
	if !ok {
		w = &window{}
		m[identifier] = w
	}
	if w.bucket != label {
		w.bucket = label
		w.count = 0
	}
	w.lastSeen = now
	return w
}

// burstFor returns the identifier's burst pool, created full on first use.
func (l *Limiter) burstFor(identifier string) *rate.Limiter {
	b, ok := l.burst[identifier]
	if !ok {
		b = rate.NewLimiter(rate.Every(time.Minute), l.cfg.BurstTokens)
		l.burst[identifier] = b
	}
	return b
}

// maybeSweep discards state for identifiers idle past the retention horizon.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepEvery {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-retention)
	for id, w := range l.minutes {
		if w.lastSeen.Before(cutoff) {
			delete(l.minutes, id)
			delete(l.burst, id)
		}
	}
	for id, w := range l.hours {
		if w.lastSeen.Before(cutoff) {
			delete(l.hours, id)
		}
	}
}

func remaining(limit, used int) int {
	if r := limit - used; r > 0 {
		return r
	}
	return 0
}
