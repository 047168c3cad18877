// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Mode selects the research depth for a report.
type Mode string

const (
	ModeDeepDive Mode = "deep-dive"
	ModeLite     Mode = "lite"
)

// Valid reports whether the mode is one of the known values.
func (m Mode) Valid() bool {
	return m == ModeDeepDive || m == ModeLite
}

// RequiredSections is the fixed, ordered list of section names a finished
// report must cover. JSONSections is keyed by these names.
var RequiredSections = []string{
	"Executive Summary",
	"Technology & Architecture",
	"Tokenomics",
	"Team & Backers",
	"Ecosystem & Partnerships",
	"Competitive Landscape",
	"Risks & Challenges",
	"Future Outlook",
}

// ReportMetadata aggregates pipeline and quality information attached to a
// finished report.
type ReportMetadata struct {
	// Grade is the pipeline letter performance grade (A+, A, B, C, D).
	Grade string `json:"grade" yaml:"grade"`

	// TotalTokens and TotalDuration sum over all pipeline stages.
	TotalTokens   int           `json:"total_tokens" yaml:"total_tokens"`
	TotalDuration time.Duration `json:"total_duration" yaml:"total_duration"`

	// Bottlenecks lists stages whose duration exceeded twice the mean.
	Bottlenecks []string `json:"bottlenecks,omitempty" yaml:"bottlenecks,omitempty"`

	// GatePassRate is the fraction of stage quality gates that passed.
	GatePassRate float64 `json:"gate_pass_rate" yaml:"gate_pass_rate"`

	// ConfidenceReason summarises any quality compromise in the report.
	ConfidenceReason string `json:"confidence_reason,omitempty" yaml:"confidence_reason,omitempty"`

	// StrictModeWarnings lists quality shortfalls. Advisory: the report is
	// still delivered.
	StrictModeWarnings []string `json:"strict_mode_warnings,omitempty" yaml:"strict_mode_warnings,omitempty"`

	// NoSources reports that the search layer returned nothing and the
	// pipeline ran on empty source context.
	NoSources bool `json:"no_sources,omitempty" yaml:"no_sources,omitempty"`

	// QualityRetries is the number of quality-driven regeneration attempts used.
	QualityRetries int `json:"quality_retries" yaml:"quality_retries"`

	// SearchCost and SearchCacheHitRate summarise the retrieval phase.
	SearchCost         float64 `json:"search_cost" yaml:"search_cost"`
	SearchCacheHitRate float64 `json:"search_cache_hit_rate" yaml:"search_cache_hit_rate"`
}

// ResearchReport is the terminal aggregate returned to the caller. Report is
// the source of truth; JSONSections is a derived decomposition and may be nil
// when the model's structured block could not be parsed.
type ResearchReport struct {
	Report          string            `json:"report" yaml:"report"`
	Sources         []SearchSource    `json:"sources" yaml:"sources"`
	RequestID       string            `json:"request_id" yaml:"request_id"`
	ConfidenceScore float64           `json:"confidence_score" yaml:"confidence_score"`
	Mode            Mode              `json:"mode" yaml:"mode"`
	Metadata        ReportMetadata    `json:"metadata" yaml:"metadata"`
	JSONSections    map[string]string `json:"json_sections,omitempty" yaml:"json_sections,omitempty"`
}
