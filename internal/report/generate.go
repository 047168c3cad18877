// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/coinbrief/internal/pipeline"
	"github.com/pdiddy/coinbrief/internal/search"
	"github.com/pdiddy/coinbrief/pkg/types"
)

// Searcher is the retrieval surface the generator depends on.
type Searcher interface {
	SearchEnhanced(ctx context.Context, queries []string, opts search.Options, w io.Writer) (search.EnhancedResult, error)
}

// Runner is the pipeline surface the generator depends on.
type Runner interface {
	Run(ctx context.Context, project types.Project, mode types.Mode, sources string) (pipeline.RunResult, error)
	RegenerateFinal(ctx context.Context, project types.Project, mode types.Mode, prior map[pipeline.Stage]string, sources, guidance string) (pipeline.StageResult, error)
}

// maxSourceChars bounds the source context handed to the pipeline.
const maxSourceChars = 60000

// maxRetrySourceChars bounds the source slice re-injected into regeneration
// prompts, keeping quality retries well under the initial context size.
const maxRetrySourceChars = maxSourceChars / 4

// Generator orchestrates search, the staged pipeline, and quality evaluation
// into a single report run.
type Generator struct {
	searcher Searcher
	runner   Runner
	quality  types.QualityConfig
	log      io.Writer
}

// NewGenerator returns a Generator. log receives progress lines; pass
// io.Discard to silence them.
func NewGenerator(s Searcher, r Runner, quality types.QualityConfig, log io.Writer) *Generator {
	if log == nil {
		log = io.Discard
	}
	if quality.MaxRetries <= 0 {
		quality.MaxRetries = 3
	}
	return &Generator{searcher: s, runner: r, quality: quality, log: log}
}

// Generate produces a research report for the project. It degrades rather
// than fails: an empty search result still runs the pipeline (flagged via
// NoSources), and a report that never reaches acceptable quality within the
// retry budget is returned with warnings instead of an error. Only pipeline
// failures and context cancellation abort.
func (g *Generator) Generate(ctx context.Context, project types.Project, mode types.Mode, opts search.Options) (*types.ResearchReport, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown report mode %q", mode)
	}
	requestID := uuid.NewString()
	fmt.Fprintf(g.log, "report %s: generating %s report for %s\n", requestID, mode, project.Name)

	queries := search.GenerateQueries(project, mode)
	enh, err := g.searcher.SearchEnhanced(ctx, queries, opts, g.log)
	if err != nil {
		return nil, fmt.Errorf("gathering sources: %w", err)
	}

	sourcesText := formatSources(enh.Sources)
	run, err := g.runner.Run(ctx, project, mode, sourcesText)
	if err != nil {
		return nil, err
	}

	final := run.FinalReport
	sections, body := ExtractSections(final)
	ev := Evaluate(body, mode, g.quality)

	retries := 0
	prior := run.Outputs()
	retrySources := truncate(sourcesText, maxRetrySourceChars)
	for !ev.Acceptable && retries < g.quality.MaxRetries {
		retries++
		guidance := strings.Join(ev.Issues, "\n")
		fmt.Fprintf(g.log, "report %s: quality score %d, regenerating (attempt %d)\n", requestID, ev.Score, retries)

		sr, rerr := g.runner.RegenerateFinal(ctx, project, mode, prior, retrySources, guidance)
		if rerr != nil {
			fmt.Fprintf(g.log, "report %s: regeneration failed: %v\n", requestID, rerr)
			break
		}
		run.Stages = append(run.Stages, sr)
		run.Metrics.TotalTokens += sr.TokensUsed
		run.Metrics.TotalDuration += sr.Duration
		prior[pipeline.StageFinalReport] = sr.Output

		sections, body = ExtractSections(sr.Output)
		ev = Evaluate(body, mode, g.quality)
	}

	rep := &types.ResearchReport{
		Report:       body,
		Sources:      enh.Sources,
		RequestID:    requestID,
		Mode:         mode,
		JSONSections: keyedSections(sections),
		Metadata: types.ReportMetadata{
			Grade:              run.Metrics.Grade,
			TotalTokens:        run.Metrics.TotalTokens,
			TotalDuration:      run.Metrics.TotalDuration,
			Bottlenecks:        run.Metrics.Bottlenecks,
			GatePassRate:       run.Metrics.GatePassRate,
			QualityRetries:     retries,
			SearchCost:         enh.TotalCost,
			SearchCacheHitRate: enh.CacheHitRate,
		},
	}

	if len(enh.Sources) == 0 {
		rep.Metadata.NoSources = true
		rep.Metadata.StrictModeWarnings = append(rep.Metadata.StrictModeWarnings,
			"search returned no usable sources; report is based on model knowledge alone")
	}
	if !ev.Acceptable {
		rep.Metadata.StrictModeWarnings = append(rep.Metadata.StrictModeWarnings, ev.Issues...)
	}
	if sections == nil {
		rep.Metadata.StrictModeWarnings = append(rep.Metadata.StrictModeWarnings,
			"structured section summaries could not be parsed from the model output")
	}

	rep.ConfidenceScore = confidence(ev, run.Metrics.GatePassRate, len(enh.Sources))
	rep.Metadata.ConfidenceReason = confidenceReason(ev, rep.Metadata)

	fmt.Fprintf(g.log, "report %s: done, quality %d/100, confidence %.2f, grade %s\n",
		requestID, ev.Score, rep.ConfidenceScore, rep.Metadata.Grade)
	return rep, nil
}

// keyedSections re-keys parsed section summaries onto the canonical section
// names, tolerating case differences from the model. Unknown keys are kept
// as-is.
func keyedSections(sections map[string]string) map[string]string {
	if sections == nil {
		return nil
	}
	canonical := make(map[string]string, len(types.RequiredSections))
	for _, name := range types.RequiredSections {
		canonical[strings.ToLower(name)] = name
	}
	out := make(map[string]string, len(sections))
	for k, v := range sections {
		if name, ok := canonical[strings.ToLower(strings.TrimSpace(k))]; ok {
			out[name] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// formatSources renders sources as a numbered list for the pipeline prompt,
// truncated to a total character bound.
func formatSources(sources []types.SearchSource) string {
	var b strings.Builder
	for i, s := range sources {
		if b.Len() >= maxSourceChars {
			fmt.Fprintf(&b, "\n(%d further sources omitted)\n", len(sources)-i)
			break
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", i+1, s.Title, s.URL, s.Content)
	}
	return b.String()
}

// truncate cuts s to at most n characters, noting the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n(truncated)\n"
}

// confidence blends report quality, gate pass rate, and source breadth into
// a [0, 1] score.
func confidence(ev Evaluation, gatePassRate float64, sourceCount int) float64 {
	breadth := float64(sourceCount) / 10
	if breadth > 1 {
		breadth = 1
	}
	return 0.5*float64(ev.Score)/100 + 0.3*gatePassRate + 0.2*breadth
}

func confidenceReason(ev Evaluation, meta types.ReportMetadata) string {
	switch {
	case meta.NoSources:
		return "no external sources were available; treat all claims as unverified"
	case !ev.Acceptable:
		return fmt.Sprintf("report quality stayed below threshold after %d regeneration attempts", meta.QualityRetries)
	case len(meta.StrictModeWarnings) > 0:
		return "report delivered with advisories; see warnings"
	default:
		return "all quality checks passed"
	}
}
