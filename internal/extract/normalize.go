package extract

import (
	"strings"
	"unicode"
)

// Components is a citation decomposed into its parts
type Components struct {
	Volume        string
	Reporter      string // Canonical reporter abbreviation
	RawReporter   string // Reporter as written
	Page          string
	Suffix        string // Anything after the page, e.g. a pin cite
	Citation      string // Canonical "volume reporter page"
	Normalized    bool   // True only when volume, reporter and page were all found
	ReporterKnown bool   // Reporter was found in the canonicalization table
}

// Normalizer decomposes citations and canonicalizes reporter abbreviations
type Normalizer struct {
	reporters *ReporterTable
}

// NewNormalizer creates a normalizer backed by a reporter table
func NewNormalizer(reporters *ReporterTable) *Normalizer {
	if reporters == nil {
		reporters = NewReporterTable(nil)
	}
	return &Normalizer{reporters: reporters}
}

// Normalize splits citation into volume, reporter, page and suffix. It never fails:
// text that does not decompose comes back with Normalized=false and the
// whitespace-normalized text as its citation.
func (n *Normalizer) Normalize(citation string) Components {
	text := NormalizeWhitespace(citation)
	tokens := strings.Fields(text)

	out := Components{Citation: text}
	if len(tokens) < 3 || !isDigits(tokens[0]) {
		return out
	}

	page := -1
	for i := 2; i < len(tokens); i++ {
		if isDigits(tokens[i]) {
			page = i
			break
		}
	}
	if page < 0 {
		return out
	}

	raw := strings.Join(tokens[1:page], " ")
	reporter, known := n.reporters.Canonical(raw)

	out.Volume = tokens[0]
	out.RawReporter = raw
	out.Reporter = reporter
	out.ReporterKnown = known
	out.Page = tokens[page]
	out.Suffix = strings.Join(tokens[page+1:], " ")
	out.Citation = out.Volume + " " + out.Reporter + " " + out.Page
	out.Normalized = true

	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
