// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides a bounded TTL cache for search results, keyed by
// normalized query text.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// entry is one cached value with its accounting.
type entry struct {
	data      any
	timestamp time.Time
	ttl       time.Duration
	hits      int
	size      int
}

// expired reports whether the entry is logically absent at now.
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) > e.ttl
}

// Stats summarises cache effectiveness.
type Stats struct {
	Entries   int     `json:"entries" yaml:"entries"`
	Hits      int     `json:"hits" yaml:"hits"`
	Misses    int     `json:"misses" yaml:"misses"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
	SizeBytes int     `json:"size_bytes" yaml:"size_bytes"`
	Evictions int     `json:"evictions" yaml:"evictions"`
}

// Cache is a bounded TTL key/value store with eviction of the lowest
// (hits, age) scored entry once capacity is exceeded. Expired entries are
// dropped lazily on read and by a background sweep. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	cfg     types.CacheConfig
	entries map[string]*entry

	hits      int
	misses    int
	evictions int

	stop chan struct{}

	// now is the clock, overridable in tests.
	now func() time.Time
}

// New constructs a Cache with defaults of 1h TTL, 500 entries, and a 5m sweep.
func New(cfg types.CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 500
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Start launches the background expiry sweep. Stop terminates it.
func (c *Cache) Start() {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Stop terminates the background sweep if running.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Get returns the cached value for key, or false on a miss. An expired entry
// counts as a miss and is removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.hits++
	c.hits++
	return e.data, true
}

// Has reports whether an unexpired entry exists without touching hit counts.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && !e.expired(c.now())
}

// Set stores value under key. A non-positive ttl uses the configured default.
// When the store is full the lowest (hits, age) scored entry is evicted first.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked()
	}
	c.entries[key] = &entry{
		data:      value,
		timestamp: c.now(),
		ttl:       ttl,
		size:      estimateSize(value),
	}
}

// evictLocked removes the entry with the lowest composite score of hits and
// age, preferring to drop rarely-hit old entries.
func (c *Cache) evictLocked() {
	now := c.now()
	var worstKey string
	worstScore := 0.0
	first := true

	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			c.evictions++
			return
		}
		ageFrac := now.Sub(e.timestamp).Seconds() / e.ttl.Seconds()
		score := float64(e.hits) - ageFrac
		if first || score < worstScore {
			worstKey = key
			worstScore = score
			first = false
		}
	}
	if worstKey != "" {
		delete(c.entries, worstKey)
		c.evictions++
	}
}

// Sweep removes all expired entries independent of read traffic.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Stats returns the cumulative hit/miss counters and size accounting.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	for _, e := range c.entries {
		s.SizeBytes += e.size
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// SearchKey derives the cache key for a search query: a hash of the
// normalized query text with a result-count suffix so different result sizes
// do not collide.
func SearchKey(query string, maxResults int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("search:%x:%d", sum[:8], maxResults)
}

// GetSearchResults returns cached sources for the query, or false on a miss.
func (c *Cache) GetSearchResults(query string, maxResults int) ([]types.SearchSource, bool) {
	v, ok := c.Get(SearchKey(query, maxResults))
	if !ok {
		return nil, false
	}
	sources, ok := v.([]types.SearchSource)
	return sources, ok
}

// SetSearchResults caches sources for the query under the default TTL.
func (c *Cache) SetSearchResults(query string, maxResults int, sources []types.SearchSource) {
	c.Set(SearchKey(query, maxResults), sources, 0)
}

// estimateSize approximates the serialized byte size of a value for memory
// reporting. Values that cannot be marshaled count as zero.
func estimateSize(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
