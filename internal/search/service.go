// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/coinbrief/internal/analytics"
	"github.com/pdiddy/coinbrief/internal/budget"
	"github.com/pdiddy/coinbrief/internal/cache"
	"github.com/pdiddy/coinbrief/internal/ratelimit"
	"github.com/pdiddy/coinbrief/internal/resilience"
	"github.com/pdiddy/coinbrief/pkg/types"
)

// Service orchestrates a query end to end: cache lookup, rate limit and
// budget checks, the resilient provider call, post-processing, and
// accounting.
type Service struct {
	provider Provider
	budget   *budget.Tracker
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	log      *analytics.Log
	breaker  *resilience.Breaker
	cfg      types.SearchConfig
}

// NewService wires the search orchestrator to its collaborators. All
// collaborators are shared, process-wide services owned by the caller.
func NewService(provider Provider, cfg types.SearchConfig, b *budget.Tracker, l *ratelimit.Limiter, c *cache.Cache, log *analytics.Log, br *resilience.Breaker) *Service {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = 80
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 8000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.InterQueryDelay < 0 {
		cfg.InterQueryDelay = 0
	} else if cfg.InterQueryDelay == 0 {
		cfg.InterQueryDelay = 200 * time.Millisecond
	}
	return &Service{
		provider: provider,
		budget:   b,
		limiter:  l,
		cache:    c,
		log:      log,
		breaker:  br,
		cfg:      cfg,
	}
}

// Options tune a single search call.
type Options struct {
	// Identifier is the rate limit identity (default "default").
	Identifier string

	// MaxResults overrides the configured per-query result count.
	MaxResults int

	// BypassRateLimit skips the rate limiter (internal batch callers that
	// throttle themselves).
	BypassRateLimit bool

	// ForceRefresh skips the cache read (the write still happens).
	ForceRefresh bool
}

func (o Options) withDefaults(cfg types.SearchConfig) Options {
	if o.Identifier == "" {
		o.Identifier = "default"
	}
	if o.MaxResults <= 0 {
		o.MaxResults = cfg.MaxResults
	}
	return o
}

// Result is one resolved query.
type Result struct {
	Sources  []types.SearchSource
	Metadata types.SearchMetadata
}

// SearchOne resolves a single query. Failure surfaces keep their type:
// *budget.ExceededError, *ratelimit.DeniedError, resilience.ErrCircuitOpen,
// *resilience.TimeoutError, *resilience.ExhaustedError.
func (s *Service) SearchOne(ctx context.Context, query string, opts Options) (Result, error) {
	opts = opts.withDefaults(s.cfg)
	start := time.Now()

	if err := s.budget.Check(1); err != nil {
		return Result{}, fmt.Errorf("search %q: %w", query, err)
	}

	if !opts.BypassRateLimit {
		if _, err := s.limiter.Check(opts.Identifier, 1); err != nil {
			return Result{}, fmt.Errorf("search %q: %w", query, err)
		}
	}

	if !opts.ForceRefresh {
		if sources, ok := s.cache.GetSearchResults(query, opts.MaxResults); ok {
			meta := types.SearchMetadata{
				Query:    query,
				Cached:   true,
				Duration: time.Since(start),
				Quality:  qualityScore(sources, s.cfg.MaxContentLength),
			}
			s.log.Record(analytics.Metric{
				Query:     query,
				Success:   true,
				Duration:  meta.Duration,
				Cached:    true,
				Relevance: meta.Quality,
			})
			return Result{Sources: sources, Metadata: meta}, nil
		}
	}

	sources, err := s.resilientCall(ctx, query, opts.MaxResults)
	if err != nil {
		s.log.Record(analytics.Metric{
			Query:    query,
			Success:  false,
			Duration: time.Since(start),
			Error:    err.Error(),
		})
		return Result{}, fmt.Errorf("search %q: %w", query, err)
	}

	sources, _ = deduplicate(sources)
	sources = filterSources(sources, s.cfg.MinContentLength, s.cfg.MaxContentLength)

	s.cache.SetSearchResults(query, opts.MaxResults, sources)
	cost := s.budget.RecordCost(1, "search")

	meta := types.SearchMetadata{
		Query:    query,
		Cost:     cost,
		Duration: time.Since(start),
		Quality:  qualityScore(sources, s.cfg.MaxContentLength),
	}
	s.log.Record(analytics.Metric{
		Query:     query,
		Success:   true,
		Duration:  meta.Duration,
		Cost:      cost,
		Relevance: meta.Quality,
	})
	return Result{Sources: sources, Metadata: meta}, nil
}

// resilientCall executes the provider call inside the shared circuit breaker,
// a per-call timeout, and the retry loop, in that nesting order.
func (s *Service) resilientCall(ctx context.Context, query string, maxResults int) ([]types.SearchSource, error) {
	cfg := s.cfg
	cfg.MaxResults = maxResults

	var sources []types.SearchSource
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, func(ctx context.Context) error {
			_, err := resilience.WithRetry(ctx, func(ctx context.Context) error {
				got, err := s.provider.Search(ctx, query, cfg)
				if err != nil {
					return err
				}
				sources = got
				return nil
			}, resilience.Policy{
				MaxRetries:  3,
				BaseDelay:   retryBaseDelay,
				Exponential: true,
			})
			return err
		}, cfg.RequestTimeout)
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// retryBaseDelay controls the base backoff of the provider retry loop. Tests
// override this to avoid real sleeps.
var retryBaseDelay = time.Second

// BatchResult aggregates a multi-query search.
type BatchResult struct {
	Results   []Result
	Errors    []string
	TotalCost float64
	Duration  time.Duration
}

// SearchBatch resolves queries concurrently. A failed query degrades to an
// empty result and an entry in Errors; one bad query never aborts the batch.
func (s *Service) SearchBatch(ctx context.Context, queries []string, opts Options) BatchResult {
	start := time.Now()
	results := make([]Result, len(queries))
	errs := make([]string, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			r, err := s.SearchOne(ctx, q, opts)
			if err != nil {
				errs[i] = err.Error()
				r = Result{Metadata: types.SearchMetadata{Query: q}}
			}
			results[i] = r
		}(i, q)
	}
	wg.Wait()

	out := BatchResult{Results: results, Duration: time.Since(start)}
	for i := range results {
		out.TotalCost += results[i].Metadata.Cost
		if errs[i] != "" {
			out.Errors = append(out.Errors, errs[i])
		}
	}
	return out
}
