// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analytics keeps a rolling log of per-search outcome records and
// derives aggregate snapshots from them.
package analytics

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/coinbrief/internal/ledger"
	"github.com/pdiddy/coinbrief/pkg/types"
)

// Metric is one search attempt's outcome.
type Metric struct {
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Query     string        `json:"query" yaml:"query"`
	Success   bool          `json:"success" yaml:"success"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Cost      float64       `json:"cost" yaml:"cost"`
	Cached    bool          `json:"cached" yaml:"cached"`
	Relevance float64       `json:"relevance" yaml:"relevance"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// QueryCount is one entry of the top-queries ranking.
type QueryCount struct {
	Query string `json:"query" yaml:"query"`
	Count int    `json:"count" yaml:"count"`
}

// Snapshot is a pure aggregation over the in-window record set.
type Snapshot struct {
	TotalQueries int                `json:"total_queries" yaml:"total_queries"`
	SuccessRate  float64            `json:"success_rate" yaml:"success_rate"`
	ErrorRate    float64            `json:"error_rate" yaml:"error_rate"`
	CacheHitRate float64            `json:"cache_hit_rate" yaml:"cache_hit_rate"`
	AvgDuration  time.Duration      `json:"avg_duration" yaml:"avg_duration"`
	AvgCost      float64            `json:"avg_cost" yaml:"avg_cost"`
	TotalCost    float64            `json:"total_cost" yaml:"total_cost"`
	TopQueries   []QueryCount       `json:"top_queries,omitempty" yaml:"top_queries,omitempty"`
	ErrorCounts  map[string]int     `json:"error_counts,omitempty" yaml:"error_counts,omitempty"`
	DailyCost    map[string]float64 `json:"daily_cost,omitempty" yaml:"daily_cost,omitempty"`
}

// Log is the process-wide analytics record store. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	cfg     types.AnalyticsConfig
	records []Metric
	store   *ledger.Store // optional, best-effort

	// now and sample are overridable in tests.
	now    func() time.Time
	sample func() float64
}

// NewLog constructs a Log. A nil store disables persistence; with a store,
// retained metric history is reloaded so snapshots survive a restart.
func NewLog(cfg types.AnalyticsConfig, store *ledger.Store) *Log {
	if cfg.SampleRate <= 0 || cfg.SampleRate > 1 {
		cfg.SampleRate = 1.0
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.HighCostThreshold <= 0 {
		cfg.HighCostThreshold = 0.05
	}
	l := &Log{
		cfg:    cfg,
		store:  store,
		now:    time.Now,
		sample: rand.Float64,
	}
	l.reload()
	return l
}

// reload restores retained metric history from the ledger so snapshots
// survive a process restart. Rows past the retention horizon are pruned from
// the store on the way in.
func (l *Log) reload() {
	if l.store == nil {
		return
	}
	ctx := context.Background()
	horizon := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	_ = l.store.PruneMetrics(ctx, horizon)
	rows, err := l.store.MetricsSince(ctx, horizon)
	if err != nil {
		return
	}
	for _, r := range rows {
		l.records = append(l.records, Metric{
			Timestamp: r.Timestamp,
			Query:     r.Query,
			Success:   r.Success,
			Duration:  r.Duration,
			Cost:      r.Cost,
			Cached:    r.Cached,
			Relevance: r.Relevance,
			Error:     r.Error,
		})
	}
}

// Record appends a metric. Successful cheap records are sampled at the
// configured rate; failed and high-cost records always land since they are
// the diagnostically important ones.
func (l *Log) Record(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = l.now()
	}

	important := !m.Success || m.Cost >= l.cfg.HighCostThreshold
	if !important && l.cfg.SampleRate < 1 && l.sample() >= l.cfg.SampleRate {
		return
	}

	l.mu.Lock()
	l.records = append(l.records, m)
	l.pruneLocked()
	l.mu.Unlock()

	if l.store != nil {
		// Best-effort: an unwritable ledger must not fail the search path.
		_ = l.store.RecordMetric(context.Background(), ledger.MetricRow{
			Timestamp: m.Timestamp,
			Query:     m.Query,
			Success:   m.Success,
			Duration:  m.Duration,
			Cost:      m.Cost,
			Cached:    m.Cached,
			Relevance: m.Relevance,
			Error:     m.Error,
		})
	}
}

// pruneLocked drops records older than the retention horizon.
func (l *Log) pruneLocked() {
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	firstLive := 0
	for firstLive < len(l.records) && l.records[firstLive].Timestamp.Before(cutoff) {
		firstLive++
	}
	if firstLive > 0 {
		l.records = append([]Metric(nil), l.records[firstLive:]...)
		if l.store != nil {
			// Best-effort: keep the persisted window in step with memory.
			_ = l.store.PruneMetrics(context.Background(), cutoff)
		}
	}
}

// SnapshotSince aggregates all records at or after since. Zero since means
// the whole retained window. The aggregation does not mutate the log.
func (l *Log) SnapshotSince(since time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		snap      Snapshot
		successes int
		cacheHits int
		totalDur  time.Duration
		queries   = make(map[string]int)
	)
	snap.ErrorCounts = make(map[string]int)
	snap.DailyCost = make(map[string]float64)

	for _, m := range l.records {
		if !since.IsZero() && m.Timestamp.Before(since) {
			continue
		}
		snap.TotalQueries++
		if m.Success {
			successes++
		} else if m.Error != "" {
			snap.ErrorCounts[m.Error]++
		}
		if m.Cached {
			cacheHits++
		}
		totalDur += m.Duration
		snap.TotalCost += m.Cost
		queries[m.Query]++
		day := m.Timestamp.UTC().Format("2006-01-02")
		snap.DailyCost[day] += m.Cost
	}

	if snap.TotalQueries == 0 {
		return snap
	}

	n := float64(snap.TotalQueries)
	snap.SuccessRate = float64(successes) / n
	snap.ErrorRate = 1 - snap.SuccessRate
	snap.CacheHitRate = float64(cacheHits) / n
	snap.AvgDuration = totalDur / time.Duration(snap.TotalQueries)
	snap.AvgCost = snap.TotalCost / n
	snap.TopQueries = topQueries(queries, 10)
	return snap
}

// topQueries ranks queries by count, ties broken alphabetically.
func topQueries(counts map[string]int, limit int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, n := range counts {
		out = append(out, QueryCount{Query: q, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
