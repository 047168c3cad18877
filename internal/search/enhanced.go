// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// stageNames partitions an enhanced search into its four research phases, in
// execution order.
var stageNames = []string{"broad_discovery", "gap_filling", "validation", "recency"}

// StageReport summarises one enhanced-search stage.
type StageReport struct {
	Name    string
	Queries int
	Errors  []string
}

// EnhancedResult is the outcome of a staged large-batch search.
type EnhancedResult struct {
	Sources      []types.SearchSource
	Stages       []StageReport
	TotalCost    float64
	CacheHitRate float64
	DupsRemoved  int
	Duration     time.Duration
}

// SearchEnhanced partitions queries into four stages of roughly equal size
// and executes them in order, queries strictly in sequence within a stage
// with a small delay between calls to respect external rate limits beyond
// the local limiter. Individual query failures degrade to empty results and
// per-stage error strings; results are deduplicated and filtered once
// globally at the end. Progress is written to w.
func (s *Service) SearchEnhanced(ctx context.Context, queries []string, opts Options, w io.Writer) (EnhancedResult, error) {
	opts = opts.withDefaults(s.cfg)
	start := time.Now()

	var (
		out       EnhancedResult
		all       []types.SearchSource
		cacheHits int
		attempted int
	)

	for si, stageQueries := range partition(queries, len(stageNames)) {
		report := StageReport{Name: stageNames[si], Queries: len(stageQueries)}
		fmt.Fprintf(w, "stage %s: %d queries\n", report.Name, len(stageQueries))

		for qi, q := range stageQueries {
			if qi > 0 {
				if err := sleepCtx(ctx, s.cfg.InterQueryDelay); err != nil {
					return out, err
				}
			}

			r, err := s.SearchOne(ctx, q, opts)
			attempted++
			if err != nil {
				report.Errors = append(report.Errors, err.Error())
				fmt.Fprintf(w, "warning: query %q failed: %v\n", q, err)
				continue
			}
			if r.Metadata.Cached {
				cacheHits++
			}
			out.TotalCost += r.Metadata.Cost
			all = append(all, r.Sources...)
		}

		out.Stages = append(out.Stages, report)
	}

	deduped, removed := deduplicate(all)
	out.Sources = filterSources(deduped, s.cfg.MinContentLength, s.cfg.MaxContentLength)
	out.DupsRemoved = removed
	if attempted > 0 {
		out.CacheHitRate = float64(cacheHits) / float64(attempted)
	}
	out.Duration = time.Since(start)

	fmt.Fprintf(w, "%d sources (%d duplicates removed), cache hit rate %.0f%%\n",
		len(out.Sources), removed, out.CacheHitRate*100)
	return out, nil
}

// partition splits queries into n contiguous chunks of roughly equal size.
// Leading chunks take the remainder.
func partition(queries []string, n int) [][]string {
	chunks := make([][]string, n)
	base := len(queries) / n
	extra := len(queries) % n
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks[i] = queries[idx : idx+size]
		idx += size
	}
	return chunks
}

// sleepCtx pauses for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
