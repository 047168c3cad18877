// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"strings"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// Stage identifies one step of the report pipeline.
type Stage string

const (
	StageSourceGathering   Stage = "source_gathering"
	StageContentExtraction Stage = "content_extraction"
	StageSynthesis         Stage = "synthesis"
	StageSpeculation       Stage = "speculation"
	StageFinalReport       Stage = "final_report"
	StageValidation        Stage = "validation"
)

// stagesFor returns the ordered stage list for a mode. Lite mode skips the
// speculation stage.
func stagesFor(mode types.Mode) []Stage {
	if mode == types.ModeDeepDive {
		return []Stage{
			StageSourceGathering,
			StageContentExtraction,
			StageSynthesis,
			StageSpeculation,
			StageFinalReport,
			StageValidation,
		}
	}
	return []Stage{
		StageSourceGathering,
		StageContentExtraction,
		StageSynthesis,
		StageFinalReport,
		StageValidation,
	}
}

// gateFunc inspects a stage's output and returns a human-readable failure
// reason, or "" when the output passes.
type gateFunc func(output string, mode types.Mode) string

// stageSpec describes how a stage calls the model and how its output is
// sanity-checked.
type stageSpec struct {
	tokenBudget int
	temperature float64

	// reasoning selects the reasoning model (with high effort) in deep-dive
	// mode. Lite mode always uses the fast model.
	reasoning bool

	gate gateFunc
}

var stageSpecs = map[Stage]stageSpec{
	StageSourceGathering: {
		tokenBudget: 2000,
		temperature: 0.3,
		gate:        gateMinWords(50),
	},
	StageContentExtraction: {
		tokenBudget: 4000,
		temperature: 0.3,
		gate:        gateMinWords(150),
	},
	StageSynthesis: {
		tokenBudget: 6000,
		temperature: 0.5,
		reasoning:   true,
		gate:        gateMinWords(300),
	},
	StageSpeculation: {
		tokenBudget: 4000,
		temperature: 0.8,
		reasoning:   true,
		gate:        gateMinWords(200),
	},
	StageFinalReport: {
		tokenBudget: 16000,
		temperature: 0.5,
		reasoning:   true,
		gate:        gateFinalReport,
	},
	StageValidation: {
		tokenBudget: 2000,
		temperature: 0.2,
		gate:        gateMinWords(30),
	},
}

// gateMinWords passes output with at least n words.
func gateMinWords(n int) gateFunc {
	return func(output string, _ types.Mode) string {
		if words := len(strings.Fields(output)); words < n {
			return fmt.Sprintf("output has %d words, expected at least %d", words, n)
		}
		return ""
	}
}

// gateFinalReport checks that the finished report mentions most required
// sections and meets the mode's word floor.
func gateFinalReport(output string, mode types.Mode) string {
	floor := 800
	if mode == types.ModeDeepDive {
		floor = 2000
	}
	if words := len(strings.Fields(output)); words < floor {
		return fmt.Sprintf("report has %d words, expected at least %d", words, floor)
	}

	lower := strings.ToLower(output)
	missing := 0
	for _, name := range types.RequiredSections {
		if !strings.Contains(lower, strings.ToLower(name)) {
			missing++
		}
	}
	if missing > 2 {
		return fmt.Sprintf("report is missing %d of %d required sections", missing, len(types.RequiredSections))
	}
	return ""
}

const systemPrompt = `You are a senior crypto research analyst. You write
precise, well-sourced reports. Never invent facts: when the sources do not
support a claim, say so. Distinguish clearly between established facts and
speculation.`

// stagePrompt builds the user prompt for a stage. prior maps completed stages
// to their outputs.
func stagePrompt(stage Stage, project types.Project, mode types.Mode, sources string, prior map[Stage]string) string {
	var b strings.Builder
	label := project.Name
	if project.Symbol != "" {
		label = fmt.Sprintf("%s (%s)", project.Name, project.Symbol)
	}

	switch stage {
	case StageSourceGathering:
		fmt.Fprintf(&b, "List the research sources below for %s. For each, give a one-line summary of what it covers and rate its reliability (high/medium/low).\n\nSources:\n%s", label, sources)

	case StageContentExtraction:
		fmt.Fprintf(&b, "Extract the key facts about %s from the sources below. Group them by topic: technology, tokenomics, team, ecosystem, competition, risks. Cite the source URL for each fact.\n\nSource assessment:\n%s\n\nSources:\n%s", label, prior[StageSourceGathering], sources)

	case StageSynthesis:
		fmt.Fprintf(&b, "Synthesize the extracted facts about %s into a coherent analysis. Resolve contradictions between sources, note where evidence is thin, and draw out the implications.\n\nExtracted facts:\n%s", label, prior[StageContentExtraction])

	case StageSpeculation:
		fmt.Fprintf(&b, "Based on the analysis of %s below, write a forward-looking assessment: likely developments over the next 6-18 months, bull and bear scenarios, and what signals to watch. Label everything in this section as speculation.\n\nAnalysis:\n%s", label, prior[StageSynthesis])

	case StageFinalReport:
		fmt.Fprintf(&b, "Write the final %s research report for %s as markdown. It must contain exactly these sections, in order, each as a `## ` heading:\n", mode, label)
		for _, name := range types.RequiredSections {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\nForward-looking sections must carry clearly marked speculative sub-blocks (e.g. \"Outlook\", \"What To Watch\").\n")
		b.WriteString("After the markdown report, append a fenced ```json block mapping each section name to a one-paragraph summary of that section.\n")
		fmt.Fprintf(&b, "\nAnalysis:\n%s\n", prior[StageSynthesis])
		if spec, ok := prior[StageSpeculation]; ok {
			fmt.Fprintf(&b, "\nForward-looking assessment:\n%s\n", spec)
		}
		if sources != "" {
			fmt.Fprintf(&b, "\nSource excerpts:\n%s\n", sources)
		}

	case StageValidation:
		fmt.Fprintf(&b, "Review the report on %s below. List any factual claims that are not supported by the analysis, any required section that is missing or thin, and an overall confidence assessment (one sentence).\n\nReport:\n%s", label, prior[StageFinalReport])
	}

	return b.String()
}
