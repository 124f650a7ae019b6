package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/casecite/internal/model"
	"github.com/ppiankov/casecite/internal/pipeline"
	"github.com/ppiankov/casecite/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrHallucinated is returned by --fail-on-hallucinated when a report contains
// citations the source rejected
var ErrHallucinated = errors.New("hallucinated citations found")

var (
	outJSON            string
	outMD              string
	timeout            time.Duration
	noVerify           bool
	noScore            bool
	noFilter           bool
	windowOverride     int
	noCache            bool
	saveHistory        bool
	failOnHallucinated bool
	llmProvider        string
	llmModel           string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <file|url|->",
	Short: "Extract and verify the case citations in one document",
	Long: `Check reads a document and:
- Finds reporter citations (U.S., F.3d, Wn.2d, WL, LEXIS, ...)
- Recovers each citation's case name and year from the surrounding text
- Normalizes reporter abbreviations
- Verifies every citation against CourtListener
- Scores confidence and groups repeated and parallel citations

Plain text, HTML files and URLs are supported; "-" reads stdin.

Example:
  casecite check brief.txt
  casecite check opinion.html --md report.md
  cat brief.txt | casecite check - --json report.json
  casecite check brief.txt --no-verify`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")

	// Pipeline flags
	checkCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall check timeout")
	checkCmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip verification against the case-law source")
	checkCmd.Flags().BoolVar(&noScore, "no-score", false, "disable confidence scoring")
	checkCmd.Flags().BoolVar(&noFilter, "no-filter", false, "disable false-positive filtering")
	checkCmd.Flags().IntVar(&windowOverride, "window", 0, "preceding context window in characters (0 = default)")
	checkCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the verification cache")
	checkCmd.Flags().BoolVar(&saveHistory, "save", false, "save the report to the history database")
	checkCmd.Flags().BoolVar(&failOnHallucinated, "fail-on-hallucinated", false, "exit non-zero when any citation is hallucinated")

	// LLM flags
	checkCmd.Flags().StringVar(&llmProvider, "llm", "", "LLM provider for an optional summary (openai, ollama)")
	checkCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

// applyFlags overlays command-line flags onto the loaded configuration
func applyFlags(cmd *cobra.Command, cfg *model.Config) model.Options {
	if noVerify {
		cfg.Verification.Enabled = false
	}
	if noScore {
		cfg.Extraction.ConfidenceScoring = false
	}
	if noFilter {
		cfg.Extraction.FalsePositiveFilter = false
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cmd.Flags().Changed("llm") {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}

	opts := cfg.Options()
	opts.ContextWindowOverride = windowOverride
	return opts
}

// buildPipeline creates the pipeline and, when verification is enabled, the
// process-wide verifier it shares across documents
func buildPipeline(cfg *model.Config, opts model.Options, logger *zap.Logger) (*pipeline.Pipeline, error) {
	if cfg.Verification.Enabled && cfg.Verification.APIToken == "" {
		fmt.Fprintf(os.Stderr, "Warning: COURTLISTENER_API_TOKEN not set; anonymous lookups are heavily rate limited\n")
	}

	var p *pipeline.Pipeline
	if cfg.Verification.Enabled {
		v, err := pipeline.BuildVerifier(cfg, logger)
		if err != nil {
			return nil, err
		}
		p = pipeline.NewPipeline(cfg, v, logger)
	} else {
		p = pipeline.NewPipeline(cfg, nil, logger)
	}
	p.SetOptions(opts)
	return p, nil
}

func openStore(cfg *model.Config) (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

func runCheck(cmd *cobra.Command, args []string) error {
	source := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := applyFlags(cmd, cfg)

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", source)
		fmt.Fprintf(os.Stderr, "Verification: %v  Cache: %v\n", cfg.Verification.Enabled, cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	p, err := buildPipeline(cfg, opts, logger)
	if err != nil {
		return err
	}

	report, err := p.Check(ctx, source)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Found %d citations (%d cases)\n", report.Summary.Total, report.Summary.Cases)
		if report.LLM != nil && report.LLM.Enabled {
			fmt.Fprintf(os.Stderr, "✓ Generated LLM summary using %s/%s\n", report.LLM.Provider, report.LLM.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	// Render outputs
	if err := pipeline.NewRenderer(cmd.OutOrStdout()).RenderReport(report, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if saveHistory {
		s, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer s.Close()
		if err := s.SaveReport(ctx, report); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Saved report %s\n", report.ID)
		}
	}

	if failOnHallucinated && report.Summary.Hallucinated > 0 {
		return fmt.Errorf("%w: %d", ErrHallucinated, report.Summary.Hallucinated)
	}
	return nil
}
