// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package budget tracks per-day search spend against a daily limit.
package budget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/coinbrief/internal/ledger"
	"github.com/pdiddy/coinbrief/pkg/types"
)

const dayFmt = "2006-01-02"

// ExceededError reports that an operation would push today's spend over the
// daily limit.
type ExceededError struct {
	Spent     float64
	Requested float64
	Limit     float64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("daily budget exceeded: spent $%.2f, requested $%.2f, limit $%.2f",
		e.Spent, e.Requested, e.Limit)
}

// Tracker is the process-wide spend ledger. The budget resets per UTC
// calendar day. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	cfg     types.BudgetConfig
	entries map[string][]types.CostEntry // day key → entries
	store   *ledger.Store                // optional, best-effort

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewTracker constructs a Tracker. A nil store disables persistence. When a
// store is supplied, spend history within the retention window is reloaded so
// today's budget survives a process restart.
func NewTracker(cfg types.BudgetConfig, store *ledger.Store) *Tracker {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 10
	}
	if cfg.CostPerQuery <= 0 {
		cfg.CostPerQuery = 0.01
	}
	if cfg.WarnFraction <= 0 || cfg.WarnFraction >= 1 {
		cfg.WarnFraction = 0.8
	}
	if cfg.RetentionDays < 30 {
		cfg.RetentionDays = 30
	}

	t := &Tracker{
		cfg:     cfg,
		entries: make(map[string][]types.CostEntry),
		store:   store,
		now:     time.Now,
	}
	t.reload()
	return t
}

// reload restores retained spend history from the ledger.
func (t *Tracker) reload() {
	if t.store == nil {
		return
	}
	horizon := t.now().UTC().AddDate(0, 0, -t.cfg.RetentionDays).Format(dayFmt)
	_ = t.store.PruneCosts(context.Background(), horizon)
	rows, err := t.store.CostsSince(context.Background(), horizon)
	if err != nil {
		return
	}
	for _, r := range rows {
		t.entries[r.Day] = append(t.entries[r.Day], types.CostEntry{
			Timestamp: r.Timestamp,
			Cost:      r.Cost,
			Queries:   r.Queries,
			Operation: r.Operation,
		})
	}
}

func (t *Tracker) today() string {
	return t.now().UTC().Format(dayFmt)
}

// EstimateCost returns the flat-rate cost of n queries.
func (t *Tracker) EstimateCost(n int) float64 {
	return float64(n) * t.cfg.CostPerQuery
}

// CanAfford reports whether n more queries fit in today's remaining budget.
// Callers must check before committing to a paid operation.
func (t *Tracker) CanAfford(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spentLocked(t.today())+t.EstimateCost(n) <= t.cfg.DailyLimit
}

// Check is CanAfford with a structured error. It returns an *ExceededError
// describing the shortfall when the operation does not fit.
func (t *Tracker) Check(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	spent := t.spentLocked(t.today())
	requested := t.EstimateCost(n)
	if spent+requested > t.cfg.DailyLimit {
		return &ExceededError{Spent: spent, Requested: requested, Limit: t.cfg.DailyLimit}
	}
	return nil
}

// RecordCost appends n queries' worth of spend to today's ledger and returns
// the recorded cost. It is the only mutator and must be called exactly once
// per completed paid operation.
func (t *Tracker) RecordCost(n int, operation string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	day := now.Format(dayFmt)
	entry := types.CostEntry{
		Timestamp: now,
		Cost:      t.EstimateCost(n),
		Queries:   n,
		Operation: operation,
	}
	t.entries[day] = append(t.entries[day], entry)
	t.pruneLocked(now)

	if t.store != nil {
		// Best-effort: an unwritable ledger must not fail the operation.
		_ = t.store.RecordCost(context.Background(), ledger.CostRow{
			Day:       day,
			Timestamp: now,
			Operation: operation,
			Queries:   n,
			Cost:      entry.Cost,
		})
	}
	return entry.Cost
}

// SpentToday returns today's total recorded spend.
func (t *Tracker) SpentToday() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spentLocked(t.today())
}

// Remaining returns today's unspent budget, floored at zero.
func (t *Tracker) Remaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	rem := t.cfg.DailyLimit - t.spentLocked(t.today())
	if rem < 0 {
		return 0
	}
	return rem
}

// NearLimit reports whether today's spend has crossed the warning fraction of
// the daily limit. Advisory only.
func (t *Tracker) NearLimit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spentLocked(t.today()) >= t.cfg.WarnFraction*t.cfg.DailyLimit
}

// DayTotal is one day's aggregated spend.
type DayTotal struct {
	Day     string  `json:"day" yaml:"day"`
	Cost    float64 `json:"cost" yaml:"cost"`
	Queries int     `json:"queries" yaml:"queries"`
}

// Trend returns daily totals for the last n days that have any spend, oldest
// first.
func (t *Tracker) Trend(days int) []DayTotal {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().UTC().AddDate(0, 0, -days).Format(dayFmt)
	var out []DayTotal
	for day, entries := range t.entries {
		if day < cutoff {
			continue
		}
		total := DayTotal{Day: day}
		for _, e := range entries {
			total.Cost += e.Cost
			total.Queries += e.Queries
		}
		out = append(out, total)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func (t *Tracker) spentLocked(day string) float64 {
	var sum float64
	for _, e := range t.entries[day] {
		sum += e.Cost
	}
	return sum
}

// pruneLocked drops days older than the retention window, in memory and in
// the ledger.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.AddDate(0, 0, -t.cfg.RetentionDays).Format(dayFmt)
	pruned := false
	for day := range t.entries {
		if day < cutoff {
			delete(t.entries, day)
			pruned = true
		}
	}
	if pruned && t.store != nil {
		_ = t.store.PruneCosts(context.Background(), cutoff)
	}
}
