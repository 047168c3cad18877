// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"strings"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// liteTemplates are the query templates for lite mode. %s is the project label.
var liteTemplates = []string{
	"%s crypto project overview",
	"%s tokenomics token supply distribution",
	"%s team founders backers funding",
	"%s roadmap development updates",
	"%s partnerships ecosystem integrations",
	"%s competitors comparison",
	"%s risks criticism concerns",
	"%s price prediction outlook analysis",
}

// deepTemplates extend the lite set with gap-filling, validation, and recency
// queries for deep-dive mode.
var deepTemplates = []string{
	"%s whitepaper technical architecture",
	"%s smart contract audit security review",
	"%s token unlock schedule vesting",
	"%s governance proposals treasury",
	"%s total value locked adoption metrics",
	"%s venture capital investment round",
	"%s mainnet launch milestones",
	"%s latest news announcements",
}

// GenerateQueries expands the project identity into search queries: 8 in
// lite mode, 16 in deep-dive mode.
func GenerateQueries(project types.Project, mode types.Mode) []string {
	label := projectLabel(project)

	templates := liteTemplates
	if mode == types.ModeDeepDive {
		templates = append(append([]string{}, liteTemplates...), deepTemplates...)
	}

	queries := make([]string, 0, len(templates))
	for _, tpl := range templates {
		queries = append(queries, fmt.Sprintf(tpl, label))
	}
	return queries
}

// projectLabel combines name and symbol into the search term, with the
// category appended as a disambiguator when present.
func projectLabel(p types.Project) string {
	label := strings.TrimSpace(p.Name)
	if sym := strings.TrimSpace(p.Symbol); sym != "" && !strings.EqualFold(sym, label) {
		label = fmt.Sprintf("%s (%s)", label, strings.ToUpper(sym))
	}
	if cat := strings.TrimSpace(p.Category); cat != "" {
		label = label + " " + cat
	}
	return label
}
