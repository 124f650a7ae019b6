package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/casecite/internal/model"
	"golang.org/x/sync/errgroup"
)

// Checker checks one document source (file path, URL or "-") and returns its report
type Checker interface {
	Check(ctx context.Context, source string) (*model.Report, error)
}

// DocumentResult is the outcome of checking one document in a batch
type DocumentResult struct {
	Source string
	Report *model.Report
	Error  error
}

// GetError returns the error from the check
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor checks many documents concurrently through one Checker, so
// every document shares the same verifier, cache and limiter
type BatchProcessor struct {
	checker     Checker
	concurrency int
	onDone      func(*DocumentResult)
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// OnDone registers a callback invoked as each document finishes. It may be
// called from several goroutines at once.
func (b *BatchProcessor) OnDone(fn func(*DocumentResult)) {
	b.onDone = fn
}

// Process checks every source and returns results in input order. A failing
// document does not stop the others; only cancellation of ctx does.
func (b *BatchProcessor) Process(ctx context.Context, sources []string) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, len(sources))
	if len(sources) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &DocumentResult{Source: src, Error: err}
				return err
			}

			report, err := b.checker.Check(gctx, src)
			res := &DocumentResult{Source: src, Report: report, Error: err}
			results[i] = res
			if b.onDone != nil {
				b.onDone(res)
			}

			// Per-document failures are reported, not propagated
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch cancelled: %w", err)
	}
	return results, nil
}

// ReadSourcesFromFile reads document sources from a file, one per line.
// Blank lines and lines starting with # are skipped; duplicates are dropped.
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
