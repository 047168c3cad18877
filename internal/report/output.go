// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/coinbrief/pkg/types"
)

// metadataSidecar is the YAML document written alongside each report file.
type metadataSidecar struct {
	Project     string               `yaml:"project"`
	Symbol      string               `yaml:"symbol,omitempty"`
	Mode        types.Mode           `yaml:"mode"`
	RequestID   string               `yaml:"request_id"`
	GeneratedAt time.Time            `yaml:"generated_at"`
	Confidence  float64              `yaml:"confidence"`
	Metadata    types.ReportMetadata `yaml:"metadata"`
	Sources     []sidecarSource      `yaml:"sources,omitempty"`
}

type sidecarSource struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// WriteFiles writes the report markdown and a YAML metadata sidecar into dir,
// creating it if needed. It returns the markdown path. Filenames follow
// <slug>-<mode>-<date>.md with a matching .yaml sidecar.
func WriteFiles(dir string, project types.Project, rep *types.ResearchReport, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	base := fmt.Sprintf("%s-%s-%s", slug(project), rep.Mode, now.Format("2006-01-02"))
	mdPath := filepath.Join(dir, base+".md")
	if err := os.WriteFile(mdPath, []byte(rep.Report), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	side := metadataSidecar{
		Project:     project.Name,
		Symbol:      project.Symbol,
		Mode:        rep.Mode,
		RequestID:   rep.RequestID,
		GeneratedAt: now,
		Confidence:  rep.ConfidenceScore,
		Metadata:    rep.Metadata,
	}
	for _, s := range rep.Sources {
		side.Sources = append(side.Sources, sidecarSource{Title: s.Title, URL: s.URL})
	}

	data, err := yaml.Marshal(side)
	if err != nil {
		return "", fmt.Errorf("encoding report metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, base+".yaml"), data, 0o644); err != nil {
		return "", fmt.Errorf("writing report metadata: %w", err)
	}

	return mdPath, nil
}

// slug derives a filesystem-friendly name for the project, preferring the
// ticker symbol.
func slug(p types.Project) string {
	s := p.Symbol
	if s == "" {
		s = p.Name
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "report"
	}
	return b.String()
}
