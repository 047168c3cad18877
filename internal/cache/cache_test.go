// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/pdiddy/coinbrief/pkg/types"
)

func testCache(maxEntries int) (*Cache, *time.Time) {
	c := New(types.CacheConfig{TTL: time.Hour, MaxEntries: maxEntries})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := testCache(10)

	if _, ok := c.Get("k"); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Set("k", "v", 0)
	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get = (%v, %v), want (v, true)", v, ok)
	}
	if !c.Has("k") {
		t.Error("Has = false for live entry")
	}
}

func TestExpiryIsLazyOnRead(t *testing.T) {
	c, now := testCache(10)
	c.Set("k", "v", 10*time.Minute)

	*now = now.Add(11 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned a hit")
	}
	if c.Has("k") {
		t.Error("Has = true for expired entry")
	}

	st := c.Stats()
	if st.Entries != 0 {
		t.Errorf("Entries = %d, want 0 after lazy removal", st.Entries)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	c, now := testCache(10)
	c.Set("a", 1, 10*time.Minute)
	c.Set("b", 2, 2*time.Hour)

	*now = now.Add(time.Hour)
	c.Sweep()

	st := c.Stats()
	if st.Entries != 1 {
		t.Fatalf("Entries = %d, want 1 after sweep", st.Entries)
	}
	if !c.Has("b") {
		t.Error("long-lived entry swept")
	}
}

func TestEvictionPrefersColdOldEntries(t *testing.T) {
	c, now := testCache(3)
	c.Set("old-cold", 1, 0)
	*now = now.Add(time.Minute)
	c.Set("warm", 2, 0)
	c.Set("fresh", 3, 0)

	// Make "warm" popular so its score beats "old-cold".
	c.Get("warm")
	c.Get("warm")

	c.Set("new", 4, 0)

	if c.Has("old-cold") {
		t.Error("lowest-scored entry survived eviction")
	}
	for _, key := range []string{"warm", "fresh", "new"} {
		if !c.Has(key) {
			t.Errorf("entry %q evicted, want kept", key)
		}
	}
	if st := c.Stats(); st.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", st.Evictions)
	}
}

func TestStatsHitRate(t *testing.T) {
	c, _ := testCache(10)
	c.Set("k", "v", 0)
	c.Get("k")
	c.Get("k")
	c.Get("missing")
	c.Get("missing2")

	st := c.Stats()
	if st.Hits != 2 || st.Misses != 2 {
		t.Fatalf("hits/misses = %d/%d, want 2/2", st.Hits, st.Misses)
	}
	if st.HitRate != 0.5 {
		t.Errorf("HitRate = %f, want 0.5", st.HitRate)
	}
	if st.SizeBytes <= 0 {
		t.Error("SizeBytes should be positive for a non-empty cache")
	}
}

func TestSearchKeyNormalization(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Solana  Tokenomics", "solana tokenomics", true},
		{"  solana tokenomics  ", "solana\ttokenomics", true},
		{"solana tokenomics", "solana team", false},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			got := SearchKey(tt.a, 5) == SearchKey(tt.b, 5)
			if got != tt.same {
				t.Errorf("SearchKey(%q) == SearchKey(%q) = %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}

	if SearchKey("solana", 5) == SearchKey("solana", 10) {
		t.Error("different result counts must produce different keys")
	}
}

func TestSearchResultsRoundTrip(t *testing.T) {
	c, _ := testCache(10)
	sources := []types.SearchSource{
		{Title: "Solana Docs", URL: "https://docs.solana.com", Content: "Proof of history..."},
	}

	if _, ok := c.GetSearchResults("solana docs", 5); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.SetSearchResults("solana docs", 5, sources)
	got, ok := c.GetSearchResults("Solana  Docs", 5)
	if !ok {
		t.Fatal("miss after SetSearchResults, normalization should match")
	}
	if len(got) != 1 || got[0].URL != "https://docs.solana.com" {
		t.Errorf("got = %+v", got)
	}
}
