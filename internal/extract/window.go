package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/casecite/internal/model"
)

// Window is the text surrounding one candidate
type Window struct {
	Preceding string       `json:"preceding"`
	Trailing  string       `json:"trailing"`
	Size      int          `json:"size"`    // Requested preceding size in bytes
	Kind      ReporterKind `json:"kind"`    // Reporter classification of the candidate
	Widened   bool         `json:"widened"` // Whether the unpublished-opinion window was used
}

// WindowResolver cuts context windows around candidates
type WindowResolver struct {
	preceding   int
	trailing    int
	unpublished int
	reporters   *ReporterTable
}

// NewWindowResolver creates a resolver from the extraction configuration
func NewWindowResolver(cfg model.ExtractionConfig, reporters *ReporterTable) *WindowResolver {
	r := &WindowResolver{
		preceding:   cfg.PrecedingWindow,
		trailing:    cfg.TrailingWindow,
		unpublished: cfg.UnpublishedWindow,
		reporters:   reporters,
	}
	if r.preceding <= 0 {
		r.preceding = 200
	}
	if r.trailing <= 0 {
		r.trailing = 100
	}
	if r.unpublished < r.preceding {
		r.unpublished = r.preceding
	}
	if r.reporters == nil {
		r.reporters = NewReporterTable(nil)
	}
	return r
}

// Resolve returns the window around c. A positive override replaces the default
// preceding size. Only candidates on an unpublished-opinion reporter get the wider
// window; widening every candidate would pull in neighbouring names in dense lists.
func (r *WindowResolver) Resolve(text string, c model.CitationCandidate, override int) Window {
	size := r.preceding
	if override > 0 {
		size = override
	}

	kind := r.reporters.Classify(reporterOf(c.Text))
	widened := false
	if kind == ReporterUnpublished && r.unpublished > size {
		size = r.unpublished
		widened = true
	}

	from := clampRuneStart(text, c.Start-size)
	to := clampRuneEnd(text, c.End+r.trailing)

	return Window{
		Preceding: text[from:c.Start],
		Trailing:  text[c.End:to],
		Size:      size,
		Kind:      kind,
		Widened:   widened,
	}
}

// reporterOf returns the tokens between the volume and the page
func reporterOf(citation string) string {
	tokens := strings.Fields(citation)
	if len(tokens) < 3 {
		return ""
	}
	return strings.Join(tokens[1:len(tokens)-1], " ")
}

// clampRuneStart moves i into [0, len(s)] and forward onto a rune boundary
func clampRuneStart(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// clampRuneEnd moves i into [0, len(s)] and back onto a rune boundary
func clampRuneEnd(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
