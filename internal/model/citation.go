package model

// CitationCandidate is a citation-shaped span found by the pattern matcher
type CitationCandidate struct {
	Text      string `json:"text"`       // Whitespace-normalized matched text
	Raw       string `json:"raw"`        // Matched text exactly as it appears in the source
	Start     int    `json:"start"`      // Byte offset of the first matched byte
	End       int    `json:"end"`        // Byte offset one past the last matched byte
	PatternID string `json:"pattern_id"` // Which reporter pattern matched (e.g., "wash")
}

// Status is the verification verdict for a citation
type Status string

const (
	StatusVerified     Status = "verified"     // Source confirmed a canonical match
	StatusUnverified   Status = "unverified"   // Neither confirmed nor refuted
	StatusHallucinated Status = "hallucinated" // Source explicitly rejected a well-formed citation
)

// Verification sources that are not an external provider
const (
	SourceUnavailable  = "unavailable"  // Transient failure or document timeout
	SourceSkipped      = "skipped"      // Verification disabled by options
	SourceUnnormalized = "unnormalized" // Citation could not be decomposed, never looked up
)

// ExtractionMethod identifies the heuristic that recovered the case name
type ExtractionMethod string

const (
	MethodSignalPhrase       ExtractionMethod = "signal_phrase"
	MethodParenthetical      ExtractionMethod = "parenthetical"
	MethodDocketFirst        ExtractionMethod = "docket_first"
	MethodTableOfAuthorities ExtractionMethod = "table_of_authorities"
	MethodGeneric            ExtractionMethod = "generic"
	MethodNone               ExtractionMethod = "none"
)

// Outcome is the raw result class of a verification lookup
type Outcome string

const (
	OutcomeMatch       Outcome = "match"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeSkipped     Outcome = "skipped"
)

// Suggestion proposes a corrected form of a citation
type Suggestion struct {
	CorrectedCitation string `json:"corrected_citation"`
	Explanation       string `json:"explanation"`
}

// CitationRecord is the fully processed form of one citation occurrence.
// Optional values are pointers so that "unknown" serializes as null.
type CitationRecord struct {
	Citation           string `json:"citation"`
	NormalizedCitation string `json:"normalized_citation"`
	Volume             string `json:"volume,omitempty"`
	Reporter           string `json:"reporter,omitempty"`
	Page               string `json:"page,omitempty"`
	Suffix             string `json:"suffix,omitempty"`
	Normalized         bool   `json:"normalized"`

	Start int `json:"start_index"`
	End   int `json:"end_index"`

	ExtractedCaseName *string          `json:"extracted_case_name"`
	ExtractedYear     *string          `json:"extracted_date"`
	ExtractionMethod  ExtractionMethod `json:"method"`

	CanonicalCaseName *string `json:"canonical_name"`
	CanonicalDate     *string `json:"canonical_date"`
	URL               *string `json:"url"`

	Verified           bool    `json:"verified"`
	VerificationSource string  `json:"source"`
	Outcome            Outcome `json:"-"`
	Status             Status  `json:"status"`

	ConfidenceScore int    `json:"confidence_score"`
	Badge           string `json:"badge,omitempty"`

	Suggestions []Suggestion   `json:"suggestions"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SetMeta records a provenance value, allocating the map on first use
func (r *CitationRecord) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// AddSuggestion appends a suggestion unless an identical correction is already present
func (r *CitationRecord) AddSuggestion(corrected, explanation string) {
	for _, s := range r.Suggestions {
		if s.CorrectedCitation == corrected {
			return
		}
	}
	r.Suggestions = append(r.Suggestions, Suggestion{
		CorrectedCitation: corrected,
		Explanation:       explanation,
	})
}

// Verification is the result of looking a normalized citation up in an authoritative source
type Verification struct {
	Citation          string   `json:"citation"`
	Verified          bool     `json:"verified"`
	Outcome           Outcome  `json:"outcome"`
	CanonicalCaseName *string  `json:"canonical_name,omitempty"`
	CanonicalDate     *string  `json:"canonical_date,omitempty"`
	URL               *string  `json:"url,omitempty"`
	CanonicalCitation string   `json:"canonical_citation,omitempty"`
	Source            string   `json:"source"`
	RawConfidence     float64  `json:"raw_confidence"`
	NameSimilarity    *float64 `json:"name_similarity,omitempty"`
	NameMismatch      bool     `json:"name_mismatch,omitempty"`
	CacheHit          bool     `json:"cache_hit,omitempty"`
	Attempts          int      `json:"attempts,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// StringPtr returns a pointer to s, or nil when s is blank
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
