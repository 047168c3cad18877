// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/coinbrief/internal/pipeline"
	"github.com/pdiddy/coinbrief/internal/search"
	"github.com/pdiddy/coinbrief/pkg/types"
)

var testProject = types.Project{Name: "Solana", Symbol: "SOL"}

type mockSearcher struct {
	result  search.EnhancedResult
	err     error
	queries []string
}

func (m *mockSearcher) SearchEnhanced(_ context.Context, queries []string, _ search.Options, _ io.Writer) (search.EnhancedResult, error) {
	m.queries = queries
	return m.result, m.err
}

type mockRunner struct {
	finalReport string
	runErr      error
	sources     string

	// regenOutputs are consumed in order; the last repeats.
	regenOutputs  []string
	regenErr      error
	regenGuidance []string
	regenSources  []string
}

func (m *mockRunner) Run(_ context.Context, _ types.Project, _ types.Mode, sources string) (pipeline.RunResult, error) {
	m.sources = sources
	if m.runErr != nil {
		return pipeline.RunResult{}, m.runErr
	}
	return pipeline.RunResult{
		Stages: []pipeline.StageResult{
			{Stage: pipeline.StageSynthesis, Output: "the analysis", TokensUsed: 300, Duration: time.Second, Gate: pipeline.GateResult{Passed: true}},
			{Stage: pipeline.StageFinalReport, Output: m.finalReport, TokensUsed: 500, Duration: 2 * time.Second, Gate: pipeline.GateResult{Passed: true}},
		},
		FinalReport: m.finalReport,
		Metrics:     pipeline.Metrics{TotalTokens: 800, TotalDuration: 3 * time.Second, GatePassRate: 1, Grade: "A+"},
	}, nil
}

func (m *mockRunner) RegenerateFinal(_ context.Context, _ types.Project, _ types.Mode, _ map[pipeline.Stage]string, sources, guidance string) (pipeline.StageResult, error) {
	m.regenGuidance = append(m.regenGuidance, guidance)
	m.regenSources = append(m.regenSources, sources)
	if m.regenErr != nil {
		return pipeline.StageResult{}, m.regenErr
	}
	out := m.regenOutputs[0]
	if len(m.regenOutputs) > 1 {
		m.regenOutputs = m.regenOutputs[1:]
	}
	return pipeline.StageResult{Stage: pipeline.StageFinalReport, Output: out, TokensUsed: 500, Duration: time.Second, Gate: pipeline.GateResult{Passed: true}}, nil
}

func testSources() []types.SearchSource {
	out := make([]types.SearchSource, 10)
	for i := range out {
		out[i] = types.SearchSource{
			Title:   "Source",
			URL:     "https://example.com/" + strings.Repeat("a", i+1),
			Content: strings.Repeat("content ", 40),
		}
	}
	return out
}

// withJSONBlock appends a parseable section-summary block.
func withJSONBlock(body string) string {
	return body + "\n```json\n{\"Executive Summary\": \"summary\", \"tokenomics\": \"supply\"}\n```\n"
}

func newTestGenerator(s *mockSearcher, r *mockRunner) *Generator {
	return NewGenerator(s, r, types.QualityConfig{}, io.Discard)
}

func TestGenerateHappyPath(t *testing.T) {
	searcher := &mockSearcher{result: search.EnhancedResult{Sources: testSources(), TotalCost: 0.16, CacheHitRate: 0.25}}
	runner := &mockRunner{finalReport: withJSONBlock(goodReport(1000))}
	g := newTestGenerator(searcher, runner)

	rep, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if rep.RequestID == "" {
		t.Error("request ID not assigned")
	}
	if rep.Mode != types.ModeLite {
		t.Errorf("mode = %s", rep.Mode)
	}
	if strings.Contains(rep.Report, "```json") {
		t.Error("report body still contains the section block")
	}
	if rep.JSONSections["Executive Summary"] != "summary" {
		t.Errorf("JSONSections = %v", rep.JSONSections)
	}
	if rep.JSONSections["Tokenomics"] != "supply" {
		t.Error("lowercase section key was not re-keyed to its canonical name")
	}
	if rep.Metadata.QualityRetries != 0 {
		t.Errorf("QualityRetries = %d, want 0", rep.Metadata.QualityRetries)
	}
	if len(rep.Metadata.StrictModeWarnings) != 0 {
		t.Errorf("unexpected warnings: %v", rep.Metadata.StrictModeWarnings)
	}
	if rep.Metadata.SearchCost != 0.16 || rep.Metadata.SearchCacheHitRate != 0.25 {
		t.Error("search metadata not carried over")
	}
	if rep.ConfidenceScore < 0.99 {
		t.Errorf("confidence = %v, want ~1 for a perfect run", rep.ConfidenceScore)
	}
	if len(searcher.queries) != 8 {
		t.Errorf("lite run issued %d queries, want 8", len(searcher.queries))
	}
	if !strings.Contains(runner.sources, "[1] Source") {
		t.Error("pipeline did not receive formatted sources")
	}
}

func TestGenerateQualityRetrySucceeds(t *testing.T) {
	searcher := &mockSearcher{result: search.EnhancedResult{Sources: testSources()}}
	runner := &mockRunner{
		finalReport:  "far too short",
		regenOutputs: []string{withJSONBlock(goodReport(1000))},
	}
	g := newTestGenerator(searcher, runner)

	rep, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if rep.Metadata.QualityRetries != 1 {
		t.Errorf("QualityRetries = %d, want 1", rep.Metadata.QualityRetries)
	}
	if len(rep.Metadata.StrictModeWarnings) != 0 {
		t.Errorf("accepted retry should clear warnings: %v", rep.Metadata.StrictModeWarnings)
	}
	if len(runner.regenGuidance) != 1 || !strings.Contains(runner.regenGuidance[0], "words") {
		t.Errorf("regeneration guidance missing the word-count issue: %v", runner.regenGuidance)
	}
	if len(runner.regenSources) != 1 || !strings.Contains(runner.regenSources[0], "[1] Source") {
		t.Errorf("regeneration did not receive the source context: %v", runner.regenSources)
	}
	if !strings.Contains(rep.Report, "Executive Summary") {
		t.Error("final report was not replaced by the regenerated output")
	}
}

func TestGenerateRetrySourcesTruncated(t *testing.T) {
	sources := make([]types.SearchSource, 80)
	for i := range sources {
		sources[i] = types.SearchSource{
			Title:   "Source",
			URL:     "https://example.com/page",
			Content: strings.Repeat("detail ", 60),
		}
	}
	searcher := &mockSearcher{result: search.EnhancedResult{Sources: sources}}
	runner := &mockRunner{
		finalReport:  "far too short",
		regenOutputs: []string{withJSONBlock(goodReport(1000))},
	}
	g := newTestGenerator(searcher, runner)

	if _, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(runner.regenSources) != 1 {
		t.Fatalf("regenerations = %d, want 1", len(runner.regenSources))
	}
	got := runner.regenSources[0]
	if !strings.Contains(got, "[1] Source") {
		t.Error("retry sources missing the first source")
	}
	if !strings.Contains(got, "(truncated)") {
		t.Error("oversized retry sources were not truncated")
	}
	if len(got) > maxRetrySourceChars+len("\n(truncated)\n") {
		t.Errorf("retry sources are %d chars, cap is %d", len(got), maxRetrySourceChars)
	}
	if len(runner.sources) <= len(got) {
		t.Error("retry sources should be a truncated slice of the run's sources")
	}
}

func TestGenerateRetriesExhaustedStillReturnsReport(t *testing.T) {
	searcher := &mockSearcher{result: search.EnhancedResult{Sources: testSources()}}
	runner := &mockRunner{
		finalReport:  "far too short",
		regenOutputs: []string{"still too short"},
	}
	g := newTestGenerator(searcher, runner)

	rep, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{})
	if err != nil {
		t.Fatalf("a low-quality report should be delivered, not fail: %v", err)
	}
	if rep.Metadata.QualityRetries != 3 {
		t.Errorf("QualityRetries = %d, want 3", rep.Metadata.QualityRetries)
	}
	if len(rep.Metadata.StrictModeWarnings) == 0 {
		t.Error("unaccepted report should carry warnings")
	}
	if !strings.Contains(rep.Metadata.ConfidenceReason, "below threshold") {
		t.Errorf("ConfidenceReason = %q", rep.Metadata.ConfidenceReason)
	}
	if rep.Report != "still too short" {
		t.Errorf("report = %q, want the last regeneration attempt", rep.Report)
	}
}

// TestGenerateZeroSourcesLite simulates a provider outage: the pipeline runs
// on empty source context and produces a thin report that never clears the
// word floor. The call still delivers a report.
func TestGenerateZeroSourcesLite(t *testing.T) {
	thin := "## Executive Summary\nNothing could be verified."
	searcher := &mockSearcher{result: search.EnhancedResult{}}
	runner := &mockRunner{finalReport: thin, regenOutputs: []string{thin}}
	g := newTestGenerator(searcher, runner)

	rep, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{})
	if err != nil {
		t.Fatalf("zero sources should degrade, not fail: %v", err)
	}
	if !rep.Metadata.NoSources {
		t.Error("NoSources not set")
	}
	if rep.Metadata.QualityRetries != 3 {
		t.Errorf("QualityRetries = %d, want 3", rep.Metadata.QualityRetries)
	}
	wordWarning := false
	for _, w := range rep.Metadata.StrictModeWarnings {
		if strings.Contains(w, "needs at least") {
			wordWarning = true
		}
	}
	if !wordWarning {
		t.Errorf("warnings do not flag the word-count floor: %v", rep.Metadata.StrictModeWarnings)
	}
	if !strings.Contains(rep.Metadata.ConfidenceReason, "unverified") {
		t.Errorf("ConfidenceReason = %q", rep.Metadata.ConfidenceReason)
	}
	if rep.ConfidenceScore >= 0.9 {
		t.Errorf("confidence = %v, should be reduced without sources", rep.ConfidenceScore)
	}
}

func TestGenerateZeroSourcesAcceptableReport(t *testing.T) {
	searcher := &mockSearcher{result: search.EnhancedResult{}}
	runner := &mockRunner{finalReport: withJSONBlock(goodReport(1000))}
	g := newTestGenerator(searcher, runner)

	rep, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !rep.Metadata.NoSources || len(rep.Metadata.StrictModeWarnings) == 0 {
		t.Error("zero-source report should still carry the no-sources warning")
	}
}

func TestGenerateSearchErrorPropagates(t *testing.T) {
	searcher := &mockSearcher{err: context.Canceled}
	g := newTestGenerator(searcher, &mockRunner{})
	if _, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{}); err == nil {
		t.Fatal("expected search error to propagate")
	}
}

func TestGeneratePipelineErrorPropagates(t *testing.T) {
	searcher := &mockSearcher{result: search.EnhancedResult{Sources: testSources()}}
	runner := &mockRunner{runErr: &pipeline.StageError{Stage: pipeline.StageSynthesis, Err: errors.New("boom")}}
	g := newTestGenerator(searcher, runner)

	_, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{})
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *pipeline.StageError, got %v", err)
	}
}

func TestGenerateUnparseableSections(t *testing.T) {
	searcher := &mockSearcher{result: search.EnhancedResult{Sources: testSources()}}
	runner := &mockRunner{finalReport: goodReport(1000) + "\n```json\n{broken\n```"}
	g := newTestGenerator(searcher, runner)

	rep, err := g.Generate(context.Background(), testProject, types.ModeLite, search.Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if rep.JSONSections != nil {
		t.Errorf("JSONSections = %v, want nil", rep.JSONSections)
	}
	warned := false
	for _, w := range rep.Metadata.StrictModeWarnings {
		if strings.Contains(w, "section summaries") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("missing parse warning: %v", rep.Metadata.StrictModeWarnings)
	}
}

func TestGenerateInvalidMode(t *testing.T) {
	g := newTestGenerator(&mockSearcher{}, &mockRunner{})
	if _, err := g.Generate(context.Background(), testProject, types.Mode("bogus"), search.Options{}); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}
