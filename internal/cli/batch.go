package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/casecite/internal/pipeline"
	"github.com/ppiankov/casecite/internal/store"
	"github.com/ppiankov/casecite/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	inputList    string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file|url]...",
	Short: "Check many documents in parallel",
	Long: `Batch checks several documents concurrently:
- Documents come from arguments and/or a list file (one per line)
- All documents share one verification cache and rate limiter
- A JSON and a Markdown report is written for each document

Example:
  casecite batch briefs/*.txt
  casecite batch --input sources.txt --concurrency 4 --output-dir ./reports`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of documents checked at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./casecite-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&inputList, "input", "", "file listing documents to check, one per line")

	// Shared with check
	batchCmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip verification against the case-law source")
	batchCmd.Flags().BoolVar(&noScore, "no-score", false, "disable confidence scoring")
	batchCmd.Flags().BoolVar(&noFilter, "no-filter", false, "disable false-positive filtering")
	batchCmd.Flags().IntVar(&windowOverride, "window", 0, "preceding context window in characters (0 = default)")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the verification cache")
	batchCmd.Flags().BoolVar(&saveHistory, "save", false, "save reports to the history database")
	batchCmd.Flags().StringVar(&llmProvider, "llm", "", "LLM provider for optional summaries (openai, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	sources := append([]string(nil), args...)
	if inputList != "" {
		listed, err := worker.ReadSourcesFromFile(inputList)
		if err != nil {
			return fmt.Errorf("read input list: %w", err)
		}
		sources = append(sources, listed...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no documents given (pass files or --input)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := applyFlags(cmd, cfg)

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  casecite Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Documents:    %d\n", len(sources))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	// Create output directory
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := buildPipeline(cfg, opts, logger)
	if err != nil {
		return err
	}

	var history *store.Store
	if saveHistory {
		if history, err = openStore(cfg); err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer history.Close()
	}

	processor := worker.NewBatchProcessor(p, concurrency)
	processor.OnDone(func(r *worker.DocumentResult) {
		if r.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Source, r.Error)
			return
		}
		s := r.Report.Summary
		fmt.Fprintf(os.Stderr, "✓ %s (%d citations, %d hallucinated)\n", r.Source, s.Total, s.Hallucinated)
	})

	results, err := processor.Process(ctx, sources)
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(os.Stderr)
	successCount, failureCount, hallucinated := 0, 0, 0
	used := make(map[string]int)

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			continue
		}
		successCount++
		hallucinated += result.Report.Summary.Hallucinated

		// Generate output file names
		slug := sanitizeFilename(result.Source)
		if n := used[slug]; n > 0 {
			slug = fmt.Sprintf("%s-%d", slug, n+1)
		}
		used[slug]++

		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")
		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Source, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Source, err)
			continue
		}

		if history != nil {
			if err := history.SaveReport(ctx, result.Report); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to save report: %v\n", result.Source, err)
			}
		}
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:         %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:       %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:      %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Hallucinated:  %d citations\n", hallucinated)
	fmt.Fprintf(os.Stderr, "  Output:        %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a file path or URL into a safe report file name
func sanitizeFilename(s string) string {
	s = strings.TrimSuffix(s, "/")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else {
		s = filepath.Base(s)
		s = strings.TrimSuffix(s, filepath.Ext(s))
	}

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" || s == "-" || s == "." {
		s = "stdin"
	}
	return s
}
