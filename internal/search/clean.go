// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"regexp"
	"strings"

	"github.com/pdiddy/coinbrief/pkg/types"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// cleanContent strips HTML tags and collapses whitespace runs.
func cleanContent(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// fingerprint is the deduplication key: the URL (case-sensitive) combined
// with the lowercased title.
func fingerprint(s types.SearchSource) string {
	return s.URL + "\x00" + strings.ToLower(s.Title)
}

// deduplicate keeps the first source per fingerprint and reports how many
// were dropped.
func deduplicate(sources []types.SearchSource) ([]types.SearchSource, int) {
	seen := make(map[string]bool, len(sources))
	var out []types.SearchSource
	removed := 0
	for _, s := range sources {
		key := fingerprint(s)
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out, removed
}

// filterSources cleans each source's content and drops sources whose cleaned
// content length falls outside [min, max].
func filterSources(sources []types.SearchSource, min, max int) []types.SearchSource {
	var out []types.SearchSource
	for _, s := range sources {
		s.Content = cleanContent(s.Content)
		if len(s.Content) < min || (max > 0 && len(s.Content) > max) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// qualityScore rates a result set in [0,1] as a weighted blend of average
// content-length ratio (0.5), title presence (0.3), and HTTPS URL ratio (0.2).
func qualityScore(sources []types.SearchSource, maxContentLength int) float64 {
	if len(sources) == 0 {
		return 0
	}
	if maxContentLength <= 0 {
		maxContentLength = 8000
	}

	var lengthSum, titled, https float64
	for _, s := range sources {
		ratio := float64(len(s.Content)) / float64(maxContentLength)
		if ratio > 1 {
			ratio = 1
		}
		lengthSum += ratio
		if strings.TrimSpace(s.Title) != "" {
			titled++
		}
		if strings.HasPrefix(s.URL, "https://") {
			https++
		}
	}

	n := float64(len(sources))
	return 0.5*(lengthSum/n) + 0.3*(titled/n) + 0.2*(https/n)
}
