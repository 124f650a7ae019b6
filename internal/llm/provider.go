// Package llm produces an optional narrative summary of a citation report.
// The summary is generated after scoring and never changes any record.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/casecite/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a summary of the report with strict evidence mode
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	Report model.Report

	// AllowedURLs is the strict allowlist of URLs the LLM may cite: the
	// authoritative opinion URLs returned by the verification source
	AllowedURLs []string

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama" or "" (disabled)
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests in seconds
	Timeout int

	// StrictEvidence rejects summaries citing URLs outside the allowlist
	StrictEvidence bool

	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      800,
	}
}

// BuildPrompt constructs the default prompt for a citation report
func BuildPrompt(report model.Report, allowedURLs []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are summarizing a legal citation verification report. The report checks whether case citations in a document exist in an authoritative case-law database. It NEVER evaluates whether the document's legal arguments are correct.

CRITICAL RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT infer, speculate, or cite any source beyond this list.
3. Citations marked "hallucinated" were not found in the source; say so plainly and do not guess what was meant.
4. Citations marked "unverified" could not be checked; do not call them wrong.
5. Never give legal advice.

Report Summary:
- Source document: %s
- Citations found: %d (%d distinct cases)
- Verified: %d
- Hallucinated: %d
- Unverified: %d (of which %d could not reach the source)

Citations needing attention:
`, joinURLs(allowedURLs), report.Source, report.Summary.Total, report.Summary.Cases,
		report.Summary.Verified, report.Summary.Hallucinated, report.Summary.Unverified, report.Summary.Unavailable)

	listed := 0
	for _, g := range report.Cases {
		r := g.Display
		if r.Status == model.StatusVerified && !nameMismatch(r) {
			continue
		}
		if listed >= 10 {
			b.WriteString("- ...\n")
			break
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", strings.Join(g.Citations, ", "), nameOr(r.ExtractedCaseName, "name not found"), r.Status)
		listed++
	}
	if listed == 0 {
		b.WriteString("- none\n")
	}

	b.WriteString("\nProvide a 3-4 sentence summary of citation reliability for the author of the document.")
	return b.String()
}

func nameMismatch(r model.CitationRecord) bool {
	v, ok := r.Metadata["name_mismatch"].(bool)
	return ok && v
}

func nameOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No authoritative URLs available)"
	}
	var b strings.Builder
	for i, u := range urls {
		if i >= 20 {
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		b.WriteString("\n- " + u)
	}
	return b.String()
}

// AllowedURLs collects the distinct opinion URLs of a report
func AllowedURLs(report model.Report) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, r := range report.Records {
		if r.URL == nil || seen[*r.URL] {
			continue
		}
		seen[*r.URL] = true
		urls = append(urls, *r.URL)
	}
	return urls
}
