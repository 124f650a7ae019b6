package model

import "time"

// Report is the complete result of checking one document
type Report struct {
	ID              string           `json:"id"`                         // Random report identifier
	Source          string           `json:"source"`                     // File path, URL or "-" for stdin
	VerifiedAgainst string           `json:"verified_against,omitempty"` // Case-law source name, empty when lookups were off
	CheckedAt       time.Time        `json:"checked_at"`                 // When the check finished
	TextLength      int              `json:"text_length"`                // Bytes of plain text analysed
	Records         []CitationRecord `json:"records"`                    // Every occurrence, ordered by position
	Cases           []CaseGroup      `json:"cases"`                      // One entry per distinct case
	Summary         Summary          `json:"summary"`                    // Counts by status
	Options         Options          `json:"options"`                    // Options the report was produced with
	LLM             *LLMSummary      `json:"llm,omitempty"`              // Optional summary, never affects scores
	Warnings        []string         `json:"warnings,omitempty"`         // Non-fatal problems seen while checking
}

// Options toggles pipeline stages for one extract-and-verify run
type Options struct {
	EnableEnhancedVerification    bool `json:"enable_enhanced_verification"`
	EnableConfidenceScoring       bool `json:"enable_confidence_scoring"`
	EnableFalsePositivePrevention bool `json:"enable_false_positive_prevention"`
	ContextWindowOverride         int  `json:"context_window_override,omitempty"` // 0 keeps the default
}

// DefaultOptions enables every stage
func DefaultOptions() Options {
	return Options{
		EnableEnhancedVerification:    true,
		EnableConfidenceScoring:       true,
		EnableFalsePositivePrevention: true,
	}
}

// Occurrence locates one appearance of a case in the source text
type Occurrence struct {
	Citation string `json:"citation"`
	Start    int    `json:"start_index"`
	End      int    `json:"end_index"`
}

// CaseGroup collapses every occurrence of the same case into one display entry
type CaseGroup struct {
	Key         string         `json:"key"`
	Display     CitationRecord `json:"display"`
	Citations   []string       `json:"citations"` // Distinct citation strings, parallel citations included
	Occurrences []Occurrence   `json:"occurrences"`
}

// Summary counts records by outcome
type Summary struct {
	Total        int `json:"total"`
	Cases        int `json:"cases"`
	Verified     int `json:"verified"`
	Unverified   int `json:"unverified"`
	Hallucinated int `json:"hallucinated"`
	Unavailable  int `json:"unavailable"`
	WithName     int `json:"with_case_name"`
	WithYear     int `json:"with_year"`
}

// Summarize builds the summary counts for a set of records and groups
func Summarize(records []CitationRecord, cases []CaseGroup) Summary {
	s := Summary{Total: len(records), Cases: len(cases)}
	for _, r := range records {
		switch r.Status {
		case StatusVerified:
			s.Verified++
		case StatusHallucinated:
			s.Hallucinated++
		default:
			s.Unverified++
		}
		if r.VerificationSource == SourceUnavailable {
			s.Unavailable++
		}
		if r.ExtractedCaseName != nil {
			s.WithName++
		}
		if r.ExtractedYear != nil {
			s.WithYear++
		}
	}
	return s
}

// LLMSummary contains an optional LLM-generated narrative
// It is produced after scoring and never changes any record
type LLMSummary struct {
	Enabled   bool     `json:"enabled"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	SummaryMD string   `json:"summary_md,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}
