// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SearchSource is a cleaned web search result. Content has HTML stripped and
// whitespace collapsed. The (URL, lowercased title) pair is the deduplication
// fingerprint.
type SearchSource struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Content string `json:"content" yaml:"content"`
}

// SearchMetadata describes a single resolved search call.
type SearchMetadata struct {
	// Query is the query text as issued.
	Query string `json:"query" yaml:"query"`

	// Cached reports whether the result came from the cache (zero cost).
	Cached bool `json:"cached" yaml:"cached"`

	// Cost is the spend recorded for this call in dollars.
	Cost float64 `json:"cost" yaml:"cost"`

	// Duration is the wall-clock time of the call.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Quality is the weighted source quality score in [0,1].
	Quality float64 `json:"quality" yaml:"quality"`
}

// CostEntry is one line of the daily spend ledger.
type CostEntry struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Cost      float64   `json:"cost" yaml:"cost"`
	Queries   int       `json:"queries" yaml:"queries"`
	Operation string    `json:"operation" yaml:"operation"`
}

// Project identifies the crypto project a report is generated for.
type Project struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Website  string `json:"website,omitempty" yaml:"website,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}
