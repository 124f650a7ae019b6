package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/casecite/internal/llm"
	"github.com/ppiankov/casecite/internal/model"
)

// Renderer writes reports as JSON, Markdown and a console summary
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer printing summaries to out (stdout if nil)
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// RenderReport renders the report to the specified outputs
func (r *Renderer) RenderReport(report *model.Report, jsonPath, mdPath string, verbose bool) error {
	// Render JSON
	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(r.out, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	// Render Markdown
	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(r.out, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	// Render LLM summary to separate file if present
	if report.LLM != nil && report.LLM.Enabled && mdPath != "" {
		llmPath := strings.TrimSuffix(mdPath, ".md") + ".llm.md"
		if err := writeFile(llmPath, []byte(llm.RenderSeparateMarkdown(report.LLM))); err != nil {
			fmt.Fprintf(r.out, "Warning: Failed to write LLM summary: %v\n", err)
		} else if verbose {
			fmt.Fprintf(r.out, "✓ Wrote LLM Summary: %s\n", llmPath)
		}
	}

	// Print summary to stdout
	r.RenderSummary(report)
	return nil
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(Markdown(report)))
}

// RenderSummary prints a short per-case summary
func (r *Renderer) RenderSummary(report *model.Report) {
	s := report.Summary
	fmt.Fprintf(r.out, "\n%s\n", report.Source)
	fmt.Fprintf(r.out, "  Citations: %d (%d cases)  verified: %d  hallucinated: %d  unverified: %d\n",
		s.Total, s.Cases, s.Verified, s.Hallucinated, s.Unverified)

	for _, g := range report.Cases {
		d := g.Display
		fmt.Fprintf(r.out, "  %s %-28s %s", statusIcon(d.Status), strings.Join(g.Citations, ", "), nameOrDash(d))
		if d.Badge != "" {
			fmt.Fprintf(r.out, "  [%s %d/5]", d.Badge, d.ConfidenceScore)
		}
		fmt.Fprintln(r.out)
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(r.out, "  ! %s\n", w)
	}
}

// Markdown renders a report as a Markdown document
func Markdown(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# Citation Report: %s\n\n", report.Source)
	fmt.Fprintf(&b, "- Report ID: `%s`\n", report.ID)
	fmt.Fprintf(&b, "- Checked: %s\n", report.CheckedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Citations: %d in %d distinct cases\n", s.Total, s.Cases)
	fmt.Fprintf(&b, "- Verified: %d, hallucinated: %d, unverified: %d\n\n", s.Verified, s.Hallucinated, s.Unverified)

	if len(report.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range report.Warnings {
			b.WriteString("- " + w + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Cases\n\n")
	if len(report.Cases) == 0 {
		b.WriteString("No citations found.\n")
		return b.String()
	}

	b.WriteString("| Status | Citation | Extracted name | Year | Canonical name | Score |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, g := range report.Cases {
		d := g.Display
		canonical := model.Deref(d.CanonicalCaseName)
		if d.URL != nil && canonical != "" {
			canonical = fmt.Sprintf("[%s](%s)", canonical, *d.URL)
		}
		score := "-"
		if d.Badge != "" {
			score = fmt.Sprintf("%d (%s)", d.ConfidenceScore, d.Badge)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			d.Status,
			mdEscape(strings.Join(g.Citations, "; ")),
			mdEscape(model.Deref(d.ExtractedCaseName)),
			model.Deref(d.ExtractedYear),
			mdEscape(canonical),
			score)
	}

	var suggestions []string
	for _, g := range report.Cases {
		for _, sg := range g.Display.Suggestions {
			suggestions = append(suggestions, fmt.Sprintf("- `%s` → `%s`: %s", g.Display.Citation, sg.CorrectedCitation, sg.Explanation))
		}
	}
	if len(suggestions) > 0 {
		b.WriteString("\n## Suggestions\n\n")
		b.WriteString(strings.Join(suggestions, "\n") + "\n")
	}

	b.WriteString("\n---\n\n_Status reflects whether each citation exists in the verification source. It says nothing about whether the document's arguments are correct._\n")
	return b.String()
}

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusVerified:
		return "✓"
	case model.StatusHallucinated:
		return "✗"
	default:
		return "?"
	}
}

func nameOrDash(r model.CitationRecord) string {
	if r.CanonicalCaseName != nil {
		return *r.CanonicalCaseName
	}
	if r.ExtractedCaseName != nil {
		return *r.ExtractedCaseName
	}
	return "-"
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
