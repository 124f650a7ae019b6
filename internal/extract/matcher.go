// Package extract finds case citations in plain text and recovers the
// case name, decision year and structured components of each one.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/casecite/internal/model"
)

// Pattern is one reporter-format expression used by the matcher
type Pattern struct {
	ID          string
	Regex       *regexp.Regexp
	Description string
}

// defaultPatterns are tried in order. Whitespace inside a citation may include a
// line break, so every separator is \s rather than a literal space.
var defaultPatterns = []Pattern{
	{
		ID:          "wash",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+(?:Wn|Wash)\.\s*(?:App\.\s*)?(?:2d|3d)?\s+\d{1,5}\b`),
		Description: "Washington Reports, e.g. 149 Wn.2d 647",
	},
	{
		ID:          "us",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+U\.\s*S\.\s+\d{1,5}\b`),
		Description: "United States Reports, e.g. 347 U.S. 483",
	},
	{
		ID:          "sct",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+S\.\s*Ct\.\s+\d{1,5}\b`),
		Description: "Supreme Court Reporter, e.g. 135 S. Ct. 2584",
	},
	{
		ID:          "led",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+L\.\s*Ed\.(?:\s*2d)?\s+\d{1,5}\b`),
		Description: "Lawyers' Edition, e.g. 192 L. Ed. 2d 609",
	},
	{
		ID:          "fsupp",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+F\.\s*Supp\.(?:\s*[23]d)?\s+\d{1,5}\b`),
		Description: "Federal Supplement, e.g. 512 F. Supp. 2d 1023",
	},
	{
		ID:          "fappx",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+(?:F|Fed)\.\s*App(?:'x|x\.?)\s+\d{1,5}\b`),
		Description: "Federal Appendix, e.g. 245 F. App'x 100",
	},
	{
		ID:          "federal",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+F\.(?:\s*\d{1,3}(?:d|th))?\s+\d{1,5}\b`),
		Description: "Federal Reporter, e.g. 123 F.3d 456",
	},
	{
		ID:          "pacific",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+P\.(?:\s*[23]d)?\s+\d{1,5}\b`),
		Description: "Pacific Reporter, e.g. 68 P.3d 1055",
	},
	{
		ID:          "westlaw",
		Regex:       regexp.MustCompile(`\b(?:1[7-9]|20)\d{2}\s+WL\s+\d{3,8}\b`),
		Description: "Westlaw database citation, e.g. 2024 WL 1234567",
	},
	{
		ID:          "lexis",
		Regex:       regexp.MustCompile(`\b(?:1[7-9]|20)\d{2}\s+(?:[A-Z][A-Za-z.]*\s+){0,3}LEXIS\s+\d{1,8}\b`),
		Description: "Lexis database citation, e.g. 2019 U.S. Dist. LEXIS 4521",
	},
	{
		ID:          "generic",
		Regex:       regexp.MustCompile(`\b\d{1,4}\s+(?:[A-Z][A-Za-z']{0,11}\.\s*){1,4}(?:\d{1,3}(?:st|nd|rd|d|th)\s+)?\d{1,5}\b`),
		Description: "Any volume, abbreviated reporter and page, e.g. 100 So. 2d 5",
	},
}

// Matcher finds citation-shaped spans in text
type Matcher struct {
	patterns []Pattern
}

// NewMatcher creates a matcher using the built-in reporter patterns
func NewMatcher() *Matcher {
	return &Matcher{patterns: defaultPatterns}
}

// Find scans text with every pattern and returns candidates ordered by start offset.
// Identical spans found by several patterns are reported once, attributed to the
// first pattern in order; spans strictly inside a longer candidate are dropped.
func (m *Matcher) Find(text string) []model.CitationCandidate {
	seen := make(map[spanKey]bool)
	var candidates []model.CitationCandidate

	for _, p := range m.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			normalized := NormalizeWhitespace(raw)

			key := spanKey{text: normalized, start: loc[0], end: loc[1]}
			if seen[key] {
				continue
			}
			seen[key] = true

			candidates = append(candidates, model.CitationCandidate{
				Text:      normalized,
				Raw:       raw,
				Start:     loc[0],
				End:       loc[1],
				PatternID: p.ID,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].End > candidates[j].End
	})

	return dropContained(candidates)
}

type spanKey struct {
	text  string
	start int
	end   int
}

// dropContained removes candidates whose span lies strictly inside an earlier, longer one.
// Input must be sorted by start ascending, end descending.
func dropContained(candidates []model.CitationCandidate) []model.CitationCandidate {
	if len(candidates) < 2 {
		return candidates
	}

	kept := make([]model.CitationCandidate, 0, len(candidates))
	maxEnd := -1
	for _, c := range candidates {
		// Identical spans were already collapsed, so End <= maxEnd means strictly inside
		if c.End <= maxEnd {
			continue
		}
		kept = append(kept, c)
		maxEnd = c.End
	}
	return kept
}

// NormalizeWhitespace collapses newlines and runs of spaces into single spaces
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
