// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report turns gathered sources into a finished, quality-checked
// research report.
package report

import (
	"encoding/json"
	"regexp"
	"strings"
)

// jsonBlockPattern matches a fenced ```json code block. The final report
// carries one mapping section names to summaries.
var jsonBlockPattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ExtractSections pulls the section-summary JSON block out of a generated
// report. It returns the parsed map and the report body with the block
// removed. When the block is absent or does not parse, sections is nil and
// the body is returned unchanged; callers treat that as a degraded report,
// not an error.
func ExtractSections(content string) (sections map[string]string, body string) {
	m := jsonBlockPattern.FindStringSubmatchIndex(content)
	if m == nil {
		return nil, content
	}

	raw := content[m[2]:m[3]]
	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, content
	}

	body = strings.TrimSpace(content[:m[0]] + content[m[1]:])
	return parsed, body
}
