// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures and configuration for the
// coinbrief report engine.
package types

import "time"

// HTTPConfig holds shared HTTP settings used by services that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "coinbrief/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for services that call a Generative AI API.
type AIConfig struct {
	// Model is the default AI model identifier (e.g. "claude-haiku-4-5").
	Model string `json:"model" yaml:"model"`

	// ReasoningModel is the higher-capability model used for synthesis-heavy
	// stages in deep mode (e.g. "claude-sonnet-4-5").
	ReasoningModel string `json:"reasoning_model" yaml:"reasoning_model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SearchConfig holds settings for the web search service.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the search provider API key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// SearchDepth selects the provider's depth parameter: basic or advanced.
	SearchDepth string `json:"search_depth" yaml:"search_depth"`

	// MaxResults is the maximum number of sources to return per query (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MinContentLength drops sources whose cleaned content is shorter (default 80).
	MinContentLength int `json:"min_content_length" yaml:"min_content_length"`

	// MaxContentLength drops sources whose cleaned content is longer (default 8000).
	MaxContentLength int `json:"max_content_length" yaml:"max_content_length"`

	// RequestTimeout bounds a single provider call end to end (default 30s).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// InterQueryDelay is the pause between consecutive queries inside an
	// enhanced search stage (default 200ms).
	InterQueryDelay time.Duration `json:"inter_query_delay" yaml:"inter_query_delay"`
}

// BudgetConfig holds settings for the daily spend tracker.
type BudgetConfig struct {
	// DailyLimit is the maximum spend per UTC calendar day in dollars (default 10).
	DailyLimit float64 `json:"daily_limit" yaml:"daily_limit"`

	// CostPerQuery is the flat per-query search cost in dollars (default 0.01).
	CostPerQuery float64 `json:"cost_per_query" yaml:"cost_per_query"`

	// WarnFraction is the budget fraction at which NearLimit fires (default 0.8).
	WarnFraction float64 `json:"warn_fraction" yaml:"warn_fraction"`

	// RetentionDays is how long spend history is kept (default 30).
	RetentionDays int `json:"retention_days" yaml:"retention_days"`
}

// RateLimitConfig holds settings for the per-identifier rate limiter.
type RateLimitConfig struct {
	// PerMinute is the steady-state calls allowed per calendar minute (default 10).
	PerMinute int `json:"per_minute" yaml:"per_minute"`

	// PerHour is the hard cap per calendar hour (default 100).
	PerHour int `json:"per_hour" yaml:"per_hour"`

	// BurstTokens is the per-identifier burst pool size that can absorb
	// momentary overflow of the minute bound (default 3).
	BurstTokens int `json:"burst_tokens" yaml:"burst_tokens"`
}

// CacheConfig holds settings for the search result cache.
type CacheConfig struct {
	// TTL is the default entry lifetime (default 1h).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// MaxEntries bounds the number of live entries (default 500).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// SweepInterval is the period of the background expiry sweep (default 5m).
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

// AnalyticsConfig holds settings for the search analytics log.
type AnalyticsConfig struct {
	// SampleRate is the fraction of successful records kept (default 1.0).
	// Failed and high-cost records are always kept.
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`

	// RetentionDays is how long records are kept (default 30).
	RetentionDays int `json:"retention_days" yaml:"retention_days"`

	// HighCostThreshold marks a record as always-sampled (default 0.05).
	HighCostThreshold float64 `json:"high_cost_threshold" yaml:"high_cost_threshold"`
}

// ResilienceConfig holds settings for the shared circuit breaker.
type ResilienceConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker (default 5).
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTime is how long the breaker stays open before probing (default 30s).
	RecoveryTime time.Duration `json:"recovery_time" yaml:"recovery_time"`

	// SuccessThreshold is the half-open successes required to close (default 1).
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
}

// QualityConfig holds settings for report quality evaluation.
type QualityConfig struct {
	// MaxRetries bounds the quality retry loop (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MinWordsDeep is the word-count floor for deep-dive reports (default 2000).
	MinWordsDeep int `json:"min_words_deep" yaml:"min_words_deep"`

	// MinWordsLite is the word-count floor for lite reports (default 800).
	MinWordsLite int `json:"min_words_lite" yaml:"min_words_lite"`
}

// EngineConfig groups all service configurations for the report engine.
type EngineConfig struct {
	Search     SearchConfig     `json:"search" yaml:"search"`
	Budget     BudgetConfig     `json:"budget" yaml:"budget"`
	RateLimit  RateLimitConfig  `json:"rate_limit" yaml:"rate_limit"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Analytics  AnalyticsConfig  `json:"analytics" yaml:"analytics"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Pipeline   AIConfig         `json:"pipeline" yaml:"pipeline"`
	Quality    QualityConfig    `json:"quality" yaml:"quality"`

	// LedgerPath is the SQLite file for best-effort persistence of the cost
	// ledger and analytics log. Empty disables persistence.
	LedgerPath string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty"`
}
