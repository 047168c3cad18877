// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// speculativeMarkers are the sub-block headings that mark clearly labelled
// forward-looking content.
var speculativeMarkers = []string{"Outlook", "Forward-Looking", "What To Watch", "Projections"}

// speculativeDensityFloor is the minimum summed per-section speculative
// density for the speculation check to pass.
const speculativeDensityFloor = 0.1

// domainTerms are the crypto vocabulary the concrete-content check looks for.
var domainTerms = []string{
	"token", "blockchain", "protocol", "staking", "staked", "validator",
	"liquidity", "tvl", "market cap", "consensus", "smart contract",
	"governance", "on-chain", "defi",
}

var (
	numeralPattern = regexp.MustCompile(`[0-9]`)
	percentPattern = regexp.MustCompile(`[0-9]+(\.[0-9]+)?\s?%`)
)

// Evaluation is the outcome of scoring a generated report.
type Evaluation struct {
	// Score is 0-100, summed from the five weighted checks.
	Score int

	// Coverage is the blended section-coverage score in [0, 1].
	Coverage float64

	// Issues lists every failed check, phrased as regeneration guidance.
	Issues []string

	// Acceptable is true when the score reaches 70 and at most one check
	// failed.
	Acceptable bool
}

// Evaluate scores a report body against five weighted checks: word floor
// (30), required sections present (20), section coverage (25), speculative
// density (15), and concrete crypto content (10).
func Evaluate(body string, mode types.Mode, cfg types.QualityConfig) Evaluation {
	var ev Evaluation
	words := len(strings.Fields(body))
	lower := strings.ToLower(body)

	floor := cfg.MinWordsLite
	if floor <= 0 {
		floor = 800
	}
	if mode == types.ModeDeepDive {
		floor = cfg.MinWordsDeep
		if floor <= 0 {
			floor = 2000
		}
	}
	if words >= floor {
		ev.Score += 30
	} else {
		ev.Issues = append(ev.Issues, fmt.Sprintf("report has %d words, needs at least %d", words, floor))
	}

	var missing []string
	for _, name := range types.RequiredSections {
		if !strings.Contains(lower, strings.ToLower(name)) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		ev.Score += 20
	} else {
		ev.Issues = append(ev.Issues, "missing required sections: "+strings.Join(missing, ", "))
	}

	secs := splitSections(body)
	ev.Coverage = scoreSectionCoverage(body)
	if ev.Coverage >= 0.75 {
		ev.Score += 25
	} else {
		ev.Issues = append(ev.Issues, fmt.Sprintf("section coverage %.2f is below 0.75; fill every required section and give forward-looking sections a labelled sub-block", ev.Coverage))
	}

	if speculativeDensity(secs) >= speculativeDensityFloor {
		ev.Score += 15
	} else {
		ev.Issues = append(ev.Issues, "too little clearly labelled speculative content; add marked sub-blocks such as \"Outlook\" or \"What To Watch\" with substantive text")
	}

	if hasConcreteContent(body) {
		ev.Score += 10
	} else {
		ev.Issues = append(ev.Issues, "report lacks concrete data; cite figures, percentages, and domain specifics")
	}

	ev.Acceptable = ev.Score >= 70 && len(ev.Issues) <= 1
	return ev
}

// section is one `## `-headed block of a report body.
type section struct {
	name  string
	lines []string
}

// splitSections parses the body's top-level markdown sections. Text before
// the first heading is ignored.
func splitSections(body string) []section {
	var out []section
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") && !strings.HasPrefix(trimmed, "###") {
			out = append(out, section{name: strings.TrimSpace(trimmed[3:])})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].lines = append(out[len(out)-1].lines, line)
		}
	}
	return out
}

func (s section) words() int {
	return len(strings.Fields(strings.Join(s.lines, "\n")))
}

// speculativeWords counts the words of the section's forward-looking
// sub-block: everything from the first marker heading to the end of the
// section. A marker with no following text counts as zero.
func (s section) speculativeWords() int {
	for i, line := range s.lines {
		if !isMarkerLine(line) {
			continue
		}
		n := len(strings.Fields(strings.Join(s.lines[i+1:], "\n")))
		if n == 0 {
			return 0
		}
		return n
	}
	return 0
}

// isMarkerLine reports whether a line is a heading-like speculative label: a
// sub-heading or bolded line naming one of the markers. Requiring the
// heading shape keeps the required "Future Outlook" section title from
// registering as the "Outlook" marker by itself.
func isMarkerLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "###") && !strings.HasPrefix(trimmed, "**") {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, m := range speculativeMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// findSection returns the parsed section matching a required name,
// case-insensitively.
func findSection(secs []section, name string) (section, bool) {
	for _, s := range secs {
		if strings.EqualFold(s.name, name) {
			return s, true
		}
	}
	return section{}, false
}

// scoreSectionCoverage blends section presence (weight 0.7) with the
// fraction of sections carrying a labelled forward-looking sub-block
// (weight 0.3). A report with every section present and non-empty but no
// speculative sub-blocks scores exactly 0.7.
func scoreSectionCoverage(body string) float64 {
	secs := splitSections(body)
	present, marked := 0, 0
	for _, name := range types.RequiredSections {
		s, ok := findSection(secs, name)
		if !ok || s.words() == 0 {
			continue
		}
		present++
		if s.speculativeWords() > 0 {
			marked++
		}
	}
	n := float64(len(types.RequiredSections))
	return float64(present)/n*0.7 + float64(marked)/n*0.3
}

// speculativeDensity sums, over the required sections, the ratio of words
// inside each section's forward-looking sub-block to the section's total
// words.
func speculativeDensity(secs []section) float64 {
	var total float64
	for _, name := range types.RequiredSections {
		s, ok := findSection(secs, name)
		if !ok {
			continue
		}
		words := s.words()
		if words == 0 {
			continue
		}
		total += float64(s.speculativeWords()) / float64(words)
	}
	return total
}

// hasConcreteContent checks for numerals, a percentage figure, and at least
// two distinct crypto domain terms.
func hasConcreteContent(body string) bool {
	if !numeralPattern.MatchString(body) || !percentPattern.MatchString(body) {
		return false
	}
	lower := strings.ToLower(body)
	terms := 0
	for _, t := range domainTerms {
		if strings.Contains(lower, t) {
			terms++
		}
	}
	return terms >= 2
}
