package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/casecite/internal/model"
)

const (
	// signalLookback is how far before a numeric candidate a reference word may appear
	signalLookback = 20

	// minCitationLength is the shortest normalized text accepted as a citation
	minCitationLength = 8
)

// Rejection reasons reported by the filter
const (
	RejectPageReference = "page_reference"
	RejectTooShort      = "too_short"
	RejectNoReporter    = "no_reporter"
	RejectStatutory     = "statutory"
)

var referenceSignalRe = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:page|p\.|at|see)(?:[^a-z]|$)`)

// Rejection records why a candidate was discarded
type Rejection struct {
	Candidate model.CitationCandidate
	Reason    string
}

// Filter discards candidates that are not real reporter citations
type Filter struct {
	reporters *ReporterTable
}

// NewFilter creates a false-positive filter
func NewFilter(reporters *ReporterTable) *Filter {
	if reporters == nil {
		reporters = NewReporterTable(nil)
	}
	return &Filter{reporters: reporters}
}

// Apply splits candidates into kept and rejected. Each decision only looks at the
// candidate and the text immediately before it.
func (f *Filter) Apply(text string, candidates []model.CitationCandidate) ([]model.CitationCandidate, []Rejection) {
	kept := make([]model.CitationCandidate, 0, len(candidates))
	var rejected []Rejection

	for _, c := range candidates {
		if reason, reject := f.Check(text, c); reject {
			rejected = append(rejected, Rejection{Candidate: c, Reason: reason})
			continue
		}
		kept = append(kept, c)
	}

	return kept, rejected
}

// Check returns the rejection reason for a candidate, if any
func (f *Filter) Check(text string, c model.CitationCandidate) (string, bool) {
	normalized := NormalizeWhitespace(c.Text)

	// Every built-in pattern requires a reporter token, so the two numeric rules
	// only reject candidates that reach Apply from outside the Matcher
	if isNumeric(normalized) && precededBySignal(text, c.Start) {
		return RejectPageReference, true
	}

	if len(normalized) < minCitationLength {
		return RejectTooShort, true
	}

	if isNumeric(normalized) {
		return RejectNoReporter, true
	}

	tokens := strings.Fields(normalized)
	if len(tokens) >= 3 {
		reporter := strings.Join(tokens[1:len(tokens)-1], " ")
		if f.reporters.Classify(reporter) == ReporterStatutory {
			return RejectStatutory, true
		}
	}

	return "", false
}

// precededBySignal reports whether a reference word sits just before start
func precededBySignal(text string, start int) bool {
	from := start - signalLookback
	if from < 0 {
		from = 0
	}
	if start > len(text) {
		start = len(text)
	}
	return referenceSignalRe.MatchString(text[from:start])
}

// isNumeric reports whether s holds only digits and spaces (and at least one digit)
func isNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ':
		default:
			return false
		}
	}
	return digits > 0
}
