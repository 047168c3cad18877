// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "coinbrief.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCostRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []CostRow{
		{Day: "2026-02-01", Timestamp: now.AddDate(0, -1, 0), Operation: "search", Queries: 2, Cost: 0.02},
		{Day: "2026-03-01", Timestamp: now, Operation: "search", Queries: 1, Cost: 0.01},
		{Day: "2026-03-01", Timestamp: now.Add(time.Minute), Operation: "enhanced_search", Queries: 16, Cost: 0.16},
	}
	for _, r := range rows {
		if err := s.RecordCost(ctx, r); err != nil {
			t.Fatalf("RecordCost: %v", err)
		}
	}

	got, err := s.CostsSince(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("CostsSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Operation != "enhanced_search" || got[1].Queries != 16 {
		t.Errorf("row = %+v, want enhanced_search with 16 queries", got[1])
	}

	if err := s.PruneCosts(ctx, "2026-03-01"); err != nil {
		t.Fatalf("PruneCosts: %v", err)
	}
	all, err := s.CostsSince(ctx, "2026-01-01")
	if err != nil {
		t.Fatalf("CostsSince after prune: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("after prune len = %d, want 2", len(all))
	}
}

func TestMetricRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []MetricRow{
		{Timestamp: now.Add(-48 * time.Hour), Query: "old", Success: true, Duration: 200 * time.Millisecond, Cost: 0.01},
		{Timestamp: now, Query: "solana tokenomics", Success: false, Duration: 1500 * time.Millisecond, Error: "provider returned HTTP 503"},
		{Timestamp: now.Add(time.Second), Query: "solana team", Success: true, Duration: 300 * time.Millisecond, Cached: true, Relevance: 0.8},
	}
	for _, r := range rows {
		if err := s.RecordMetric(ctx, r); err != nil {
			t.Fatalf("RecordMetric: %v", err)
		}
	}

	got, err := s.MetricsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("MetricsSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Success || got[0].Error == "" {
		t.Errorf("failed record not preserved: %+v", got[0])
	}
	if !got[1].Cached || got[1].Relevance != 0.8 {
		t.Errorf("cached record not preserved: %+v", got[1])
	}
	if got[1].Duration != 300*time.Millisecond {
		t.Errorf("duration = %v, want 300ms", got[1].Duration)
	}

	if err := s.PruneMetrics(ctx, now); err != nil {
		t.Fatalf("PruneMetrics: %v", err)
	}
	all, err := s.MetricsSince(ctx, time.Time{})
	if err != nil {
		t.Fatalf("MetricsSince after prune: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("after prune len = %d, want 2", len(all))
	}
}
