// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/coinbrief/internal/resilience"
	"github.com/pdiddy/coinbrief/pkg/types"
)

// GateResult records the outcome of a stage's quality gate. Gates are
// informational: a failure is reported but never aborts the run.
type GateResult struct {
	Passed bool
	Reason string
}

// StageResult captures one completed stage.
type StageResult struct {
	Stage      Stage
	Output     string
	Model      string
	TokensUsed int
	Duration   time.Duration
	Gate       GateResult
}

// StageError reports a stage whose model call failed after retries. It aborts
// the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Metrics summarizes a finished run.
type Metrics struct {
	TotalTokens   int
	TotalDuration time.Duration
	GatePassRate  float64
	Bottlenecks   []string
	Grade         string
}

// RunResult is the output of a full pipeline run.
type RunResult struct {
	Stages  []StageResult
	Metrics Metrics

	// FinalReport and Validation are the outputs of their stages, lifted out
	// for convenience.
	FinalReport string
	Validation  string
}

// Outputs maps each completed stage to its output, in the shape
// RegenerateFinal expects.
func (r RunResult) Outputs() map[Stage]string {
	out := make(map[Stage]string, len(r.Stages))
	for _, s := range r.Stages {
		out[s.Stage] = s.Output
	}
	return out
}

// retryBaseDelay is the base backoff between model call attempts. Tests
// shorten it.
var retryBaseDelay = 2 * time.Second

// Runner drives the staged report pipeline against a Backend.
type Runner struct {
	backend Backend
	cfg     types.AIConfig
	log     io.Writer
}

// NewRunner returns a Runner. log receives progress lines; pass io.Discard to
// silence them.
func NewRunner(backend Backend, cfg types.AIConfig, log io.Writer) *Runner {
	if log == nil {
		log = io.Discard
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Runner{backend: backend, cfg: cfg, log: log}
}

// modelFor picks the model for a stage. Deep-dive mode upgrades reasoning
// stages to the reasoning model when one is configured.
func (r *Runner) modelFor(spec stageSpec, mode types.Mode) (model string, highEffort bool) {
	if mode == types.ModeDeepDive && spec.reasoning && r.cfg.ReasoningModel != "" {
		return r.cfg.ReasoningModel, true
	}
	return r.cfg.Model, false
}

// Run executes every stage for the mode in order. A model failure aborts with
// *StageError; gate failures are recorded and the run continues.
func (r *Runner) Run(ctx context.Context, project types.Project, mode types.Mode, sources string) (RunResult, error) {
	var res RunResult
	prior := make(map[Stage]string)

	for _, stage := range stagesFor(mode) {
		sr, err := r.runStage(ctx, stage, project, mode, sources, prior)
		if err != nil {
			return res, &StageError{Stage: stage, Err: err}
		}
		res.Stages = append(res.Stages, sr)
		prior[stage] = sr.Output
	}

	res.FinalReport = prior[StageFinalReport]
	res.Validation = prior[StageValidation]
	res.Metrics = computeMetrics(res.Stages)
	return res, nil
}

func (r *Runner) runStage(ctx context.Context, stage Stage, project types.Project, mode types.Mode, sources string, prior map[Stage]string) (StageResult, error) {
	spec := stageSpecs[stage]
	model, highEffort := r.modelFor(spec, mode)
	fmt.Fprintf(r.log, "stage %s: running with %s\n", stage, model)

	req := CompletionRequest{
		Model:        model,
		SystemPrompt: systemPrompt,
		UserPrompt:   stagePrompt(stage, project, mode, sources, prior),
		MaxTokens:    spec.tokenBudget,
		Temperature:  spec.temperature,
		HighEffort:   highEffort,
	}

	start := time.Now()
	var resp CompletionResponse
	_, err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = r.backend.Complete(ctx, req)
		return err
	}, resilience.Policy{
		MaxRetries:  r.cfg.MaxRetries,
		BaseDelay:   retryBaseDelay,
		Exponential: true,
		OnRetry: func(attempt int, err error) {
			fmt.Fprintf(r.log, "stage %s: attempt %d failed, retrying: %v\n", stage, attempt, err)
		},
	})
	elapsed := time.Since(start)
	if err != nil {
		return StageResult{}, err
	}

	sr := StageResult{
		Stage:      stage,
		Output:     resp.Content,
		Model:      model,
		TokensUsed: resp.TokensUsed,
		Duration:   elapsed,
		Gate:       GateResult{Passed: true},
	}
	if reason := spec.gate(resp.Content, mode); reason != "" {
		sr.Gate = GateResult{Passed: false, Reason: reason}
		fmt.Fprintf(r.log, "stage %s: gate failed: %s\n", stage, reason)
	}
	return sr, nil
}

// RegenerateFinal reruns only the final report stage, appending guidance to
// the prompt and re-injecting the given source excerpts. The quality retry
// loop uses it to address reviewer feedback without repeating the earlier
// stages.
func (r *Runner) RegenerateFinal(ctx context.Context, project types.Project, mode types.Mode, prior map[Stage]string, sources, guidance string) (StageResult, error) {
	spec := stageSpecs[StageFinalReport]
	model, highEffort := r.modelFor(spec, mode)
	fmt.Fprintf(r.log, "stage %s: regenerating with %s\n", StageFinalReport, model)

	prompt := stagePrompt(StageFinalReport, project, mode, sources, prior)
	if guidance != "" {
		prompt += "\nThe previous draft had these problems. Fix them:\n" + guidance + "\n"
	}

	req := CompletionRequest{
		Model:        model,
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    spec.tokenBudget,
		Temperature:  spec.temperature,
		HighEffort:   highEffort,
	}

	start := time.Now()
	var resp CompletionResponse
	_, err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = r.backend.Complete(ctx, req)
		return err
	}, resilience.Policy{
		MaxRetries:  r.cfg.MaxRetries,
		BaseDelay:   retryBaseDelay,
		Exponential: true,
	})
	elapsed := time.Since(start)
	if err != nil {
		return StageResult{}, &StageError{Stage: StageFinalReport, Err: err}
	}

	sr := StageResult{
		Stage:      StageFinalReport,
		Output:     resp.Content,
		Model:      model,
		TokensUsed: resp.TokensUsed,
		Duration:   elapsed,
		Gate:       GateResult{Passed: true},
	}
	if reason := spec.gate(resp.Content, mode); reason != "" {
		sr.Gate = GateResult{Passed: false, Reason: reason}
	}
	return sr, nil
}

// computeMetrics aggregates stage results. A stage is a bottleneck when its
// duration exceeds twice the mean.
func computeMetrics(stages []StageResult) Metrics {
	var m Metrics
	if len(stages) == 0 {
		return m
	}

	passed := 0
	for _, s := range stages {
		m.TotalTokens += s.TokensUsed
		m.TotalDuration += s.Duration
		if s.Gate.Passed {
			passed++
		}
	}
	m.GatePassRate = float64(passed) / float64(len(stages))

	mean := m.TotalDuration / time.Duration(len(stages))
	for _, s := range stages {
		if s.Duration > 2*mean {
			m.Bottlenecks = append(m.Bottlenecks, string(s.Stage))
		}
	}

	m.Grade = grade(m.GatePassRate, mean)
	return m
}

// grade scores a run from gate pass rate and average stage duration.
func grade(passRate float64, avg time.Duration) string {
	switch {
	case passRate == 1 && avg <= 10*time.Second:
		return "A+"
	case passRate >= 0.85 && avg <= 20*time.Second:
		return "A"
	case passRate >= 0.7:
		return "B"
	case passRate >= 0.5:
		return "C"
	default:
		return "D"
	}
}
