// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/coinbrief/internal/analytics"
	"github.com/pdiddy/coinbrief/internal/budget"
	"github.com/pdiddy/coinbrief/internal/cache"
	"github.com/pdiddy/coinbrief/internal/ledger"
	"github.com/pdiddy/coinbrief/internal/pipeline"
	"github.com/pdiddy/coinbrief/internal/ratelimit"
	"github.com/pdiddy/coinbrief/internal/report"
	"github.com/pdiddy/coinbrief/internal/resilience"
	"github.com/pdiddy/coinbrief/internal/search"
	"github.com/pdiddy/coinbrief/pkg/types"
)

// engine bundles the wired services behind the CLI commands.
type engine struct {
	cfg       types.EngineConfig
	ledger    *ledger.Store
	budget    *budget.Tracker
	limiter   *ratelimit.Limiter
	cache     *cache.Cache
	analytics *analytics.Log
	search    *search.Service
	runner    *pipeline.Runner
	generator *report.Generator
}

// loadConfig builds the engine configuration from viper, with API keys
// falling back to the .secrets/ directory.
func loadConfig() types.EngineConfig {
	v := viper.GetViper()
	cfg := types.EngineConfig{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   durationDefault(v, "search.timeout", 30*time.Second),
				UserAgent: "coinbrief/" + version,
			},
			APIKey:           secretDefault("tavily-api-key", v.GetString("search.api_key")),
			SearchDepth:      stringDefault(v, "search.search_depth", "basic"),
			MaxResults:       intDefault(v, "search.max_results", 5),
			MinContentLength: intDefault(v, "search.min_content_length", 80),
			MaxContentLength: intDefault(v, "search.max_content_length", 8000),
			RequestTimeout:   durationDefault(v, "search.request_timeout", 30*time.Second),
			InterQueryDelay:  durationDefault(v, "search.inter_query_delay", 200*time.Millisecond),
		},
		Budget: types.BudgetConfig{
			DailyLimit:    floatDefault(v, "budget.daily_limit", 10),
			CostPerQuery:  floatDefault(v, "budget.cost_per_query", 0.01),
			WarnFraction:  floatDefault(v, "budget.warn_fraction", 0.8),
			RetentionDays: intDefault(v, "budget.retention_days", 30),
		},
		RateLimit: types.RateLimitConfig{
			PerMinute:   intDefault(v, "rate_limit.per_minute", 10),
			PerHour:     intDefault(v, "rate_limit.per_hour", 100),
			BurstTokens: intDefault(v, "rate_limit.burst_tokens", 5),
		},
		Cache: types.CacheConfig{
			TTL:           durationDefault(v, "cache.ttl", time.Hour),
			MaxEntries:    intDefault(v, "cache.max_entries", 1000),
			SweepInterval: durationDefault(v, "cache.sweep_interval", 10*time.Minute),
		},
		Analytics: types.AnalyticsConfig{
			SampleRate:        floatDefault(v, "analytics.sample_rate", 1),
			RetentionDays:     intDefault(v, "analytics.retention_days", 30),
			HighCostThreshold: floatDefault(v, "analytics.high_cost_threshold", 0.05),
		},
		Resilience: types.ResilienceConfig{
			FailureThreshold: intDefault(v, "resilience.failure_threshold", 5),
			RecoveryTime:     durationDefault(v, "resilience.recovery_time", 30*time.Second),
			SuccessThreshold: intDefault(v, "resilience.success_threshold", 2),
		},
		Pipeline: types.AIConfig{
			Model:          stringDefault(v, "pipeline.model", "claude-haiku-4-5"),
			ReasoningModel: stringDefault(v, "pipeline.reasoning_model", "claude-sonnet-4-5"),
			APIKey:         secretDefault("anthropic-api-key", v.GetString("pipeline.api_key")),
			MaxRetries:     intDefault(v, "pipeline.max_retries", 3),
		},
		Quality: types.QualityConfig{
			MaxRetries:   intDefault(v, "quality.max_retries", 3),
			MinWordsDeep: intDefault(v, "quality.min_words_deep", 2000),
			MinWordsLite: intDefault(v, "quality.min_words_lite", 800),
		},
		LedgerPath: stringDefault(v, "ledger_path", "coinbrief.db"),
	}
	return cfg
}

// newEngine wires every service. The ledger is best-effort: a failure to
// open it degrades to in-memory operation with a warning.
func newEngine() (*engine, error) {
	cfg := loadConfig()

	var store *ledger.Store
	if cfg.LedgerPath != "" {
		var err error
		store, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: ledger unavailable, running in-memory: %v\n", err)
			store = nil
		}
	}

	e := &engine{
		cfg:       cfg,
		ledger:    store,
		budget:    budget.NewTracker(cfg.Budget, store),
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		cache:     cache.New(cfg.Cache),
		analytics: analytics.NewLog(cfg.Analytics, store),
	}

	breaker := resilience.NewBreaker(cfg.Resilience.FailureThreshold, cfg.Resilience.RecoveryTime, cfg.Resilience.SuccessThreshold)
	provider := &search.Tavily{
		Client: &http.Client{Timeout: cfg.Search.Timeout},
		APIKey: cfg.Search.APIKey,
	}
	e.search = search.NewService(provider, cfg.Search, e.budget, e.limiter, e.cache, e.analytics, breaker)
	e.runner = pipeline.NewRunner(&pipeline.AnthropicBackend{APIKey: cfg.Pipeline.APIKey}, cfg.Pipeline, os.Stderr)
	e.generator = report.NewGenerator(e.search, e.runner, cfg.Quality, os.Stderr)
	return e, nil
}

// close releases the engine's resources.
func (e *engine) close() {
	if e.ledger != nil {
		e.ledger.Close()
	}
}

func stringDefault(v *viper.Viper, key, def string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return def
}

func intDefault(v *viper.Viper, key string, def int) int {
	if n := v.GetInt(key); n != 0 {
		return n
	}
	return def
}

func floatDefault(v *viper.Viper, key string, def float64) float64 {
	if f := v.GetFloat64(key); f != 0 {
		return f
	}
	return def
}

func durationDefault(v *viper.Viper, key string, def time.Duration) time.Duration {
	if d := v.GetDuration(key); d != 0 {
		return d
	}
	return def
}
