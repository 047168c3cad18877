// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"math"
	"strings"
	"testing"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// goodReport builds a body with every required section, concrete figures,
// labelled speculative sub-blocks in two sections, and at least words words.
func goodReport(words int) string {
	var b strings.Builder
	per := words/len(types.RequiredSections) + 1
	for _, name := range types.RequiredSections {
		b.WriteString("## " + name + "\n")
		if name == "Executive Summary" {
			b.WriteString("The protocol secures $4.2B in staked tokens, up 12% this quarter.\n")
		}
		switch name {
		case "Future Outlook":
			b.WriteString("### What To Watch\n")
		case "Risks & Challenges":
			b.WriteString("### Projections\n")
		}
		b.WriteString(strings.Repeat("analysis ", per))
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestEvaluateAcceptableReport(t *testing.T) {
	ev := Evaluate(goodReport(1000), types.ModeLite, types.QualityConfig{})
	if ev.Score != 100 {
		t.Errorf("score = %d, want 100 (issues: %v)", ev.Score, ev.Issues)
	}
	if !ev.Acceptable {
		t.Errorf("report not acceptable: %v", ev.Issues)
	}
}

func TestEvaluateDeepDiveWordFloor(t *testing.T) {
	body := goodReport(1000)
	ev := Evaluate(body, types.ModeDeepDive, types.QualityConfig{})
	if ev.Score != 70 {
		t.Errorf("score = %d, want 70 (word floor check should fail)", ev.Score)
	}
	if !ev.Acceptable {
		t.Error("70 with a single issue should be acceptable")
	}

	ev = Evaluate(goodReport(2500), types.ModeDeepDive, types.QualityConfig{})
	if ev.Score != 100 {
		t.Errorf("score = %d, want 100", ev.Score)
	}
}

func TestEvaluateMissingSections(t *testing.T) {
	body := "## Executive Summary\n" + strings.Repeat("word ", 900)
	ev := Evaluate(body, types.ModeLite, types.QualityConfig{})
	if ev.Acceptable {
		t.Error("report missing seven sections should not be acceptable")
	}
	found := false
	for _, issue := range ev.Issues {
		if strings.Contains(issue, "Tokenomics") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues do not name the missing sections: %v", ev.Issues)
	}
}

func TestEvaluateNoSpeculativeContent(t *testing.T) {
	var b strings.Builder
	for _, name := range types.RequiredSections {
		b.WriteString("## " + name + "\n")
		if name == "Executive Summary" {
			b.WriteString("The protocol secures $4.2B in staked tokens, up 12% this quarter.\n")
		}
		b.WriteString(strings.Repeat("analysis ", 150))
		b.WriteString("\n")
	}
	ev := Evaluate(b.String(), types.ModeLite, types.QualityConfig{})
	// Word floor, presence, and concrete content pass; coverage (0.7) and
	// speculative density fail.
	if ev.Score != 60 {
		t.Errorf("score = %d, want 60 (issues: %v)", ev.Score, ev.Issues)
	}
	if ev.Acceptable {
		t.Error("report without labelled speculation should not be acceptable")
	}
}

func TestScoreSectionCoverage(t *testing.T) {
	build := func(marked map[string]bool) string {
		var b strings.Builder
		for _, name := range types.RequiredSections {
			b.WriteString("## " + name + "\n")
			b.WriteString("steady protocol activity\n")
			if marked[name] {
				b.WriteString("### Outlook\nadoption may accelerate next year\n")
			}
			b.WriteString("\n")
		}
		return b.String()
	}

	// All sections present and non-empty, no speculative sub-blocks:
	// exactly 0.7.
	if got := scoreSectionCoverage(build(nil)); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("coverage = %v, want 0.7", got)
	}

	// Two of eight sections marked: 0.7 + 0.3 * 2/8.
	two := build(map[string]bool{"Future Outlook": true, "Risks & Challenges": true})
	if got := scoreSectionCoverage(two); math.Abs(got-0.775) > 1e-9 {
		t.Errorf("coverage = %v, want 0.775", got)
	}

	// Every section marked: full credit.
	all := map[string]bool{}
	for _, name := range types.RequiredSections {
		all[name] = true
	}
	if got := scoreSectionCoverage(build(all)); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("coverage = %v, want 1.0", got)
	}

	if got := scoreSectionCoverage(""); got != 0 {
		t.Errorf("coverage of empty body = %v, want 0", got)
	}

	// Headings with no content underneath do not count as present.
	var bare strings.Builder
	for _, name := range types.RequiredSections {
		bare.WriteString("## " + name + "\n")
	}
	if got := scoreSectionCoverage(bare.String()); got != 0 {
		t.Errorf("coverage of empty sections = %v, want 0", got)
	}
}

func TestSpeculativeDensity(t *testing.T) {
	body := "## Executive Summary\n" +
		strings.Repeat("word ", 8) + "\n" +
		"### Outlook\n" +
		strings.Repeat("maybe ", 5) + "\n"
	secs := splitSections(body)
	// Sub-block: 5 words. Section: 8 + 2 (marker heading) + 5 = 15.
	want := 5.0 / 15.0
	if got := speculativeDensity(secs); math.Abs(got-want) > 1e-9 {
		t.Errorf("density = %v, want %v", got, want)
	}

	// A marker with no text after it contributes nothing.
	empty := splitSections("## Executive Summary\nsome words here\n### Outlook\n")
	if got := speculativeDensity(empty); got != 0 {
		t.Errorf("density with empty sub-block = %v, want 0", got)
	}
}

func TestHasConcreteContent(t *testing.T) {
	if hasConcreteContent("growth continues apace") {
		t.Error("prose without figures should fail")
	}
	if hasConcreteContent("42 validators secure the protocol") {
		t.Error("figures without a percentage should fail")
	}
	if !hasConcreteContent("TVL grew 12% to $4.2B as staking expanded") {
		t.Error("numerals, a percentage, and domain terms should pass")
	}
}

func TestEvaluateCustomWordFloors(t *testing.T) {
	cfg := types.QualityConfig{MinWordsLite: 10000}
	ev := Evaluate(goodReport(1000), types.ModeLite, cfg)
	if ev.Score != 70 {
		t.Errorf("score = %d, want 70 with raised floor", ev.Score)
	}
}
