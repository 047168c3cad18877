// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// FormatTable writes a result as a human-readable table to w.
func FormatTable(r Result, w io.Writer) {
	if len(r.Sources) == 0 {
		fmt.Fprintln(w, "No sources found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-50s  %-40s  %s\n", "Rank", "Title", "URL", "Chars")
	fmt.Fprintln(w, strings.Repeat("-", 105))

	for i, s := range r.Sources {
		fmt.Fprintf(w, "%-4d  %-50s  %-40s  %d\n",
			i+1, truncate(s.Title, 50), truncate(s.URL, 40), len(s.Content))
	}

	fmt.Fprintf(w, "\n%d sources", len(r.Sources))
	if r.Metadata.Cached {
		fmt.Fprint(w, " (cached)")
	} else {
		fmt.Fprintf(w, " ($%.3f)", r.Metadata.Cost)
	}
	fmt.Fprintf(w, ", quality %.2f\n", r.Metadata.Quality)
}

// FormatJSON writes a result as indented JSON to w.
func FormatJSON(r Result, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Sources  []types.SearchSource `json:"sources"`
		Metadata types.SearchMetadata `json:"metadata"`
	}{r.Sources, r.Metadata})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
