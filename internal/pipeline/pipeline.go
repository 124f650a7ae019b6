// Package pipeline runs extraction, verification, scoring and grouping over
// one document and renders the resulting report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ppiankov/casecite/internal/cache"
	"github.com/ppiankov/casecite/internal/dedup"
	"github.com/ppiankov/casecite/internal/extract"
	"github.com/ppiankov/casecite/internal/llm"
	"github.com/ppiankov/casecite/internal/model"
	"github.com/ppiankov/casecite/internal/score"
	"github.com/ppiankov/casecite/internal/util"
	"github.com/ppiankov/casecite/internal/verify"
	"github.com/ppiankov/casecite/internal/worker"
	"go.uber.org/zap"
)

// ErrInvalidInput is returned for payloads that are not usable text. It is the
// only error that aborts a document.
var ErrInvalidInput = errors.New("invalid input")

// Pipeline orchestrates the complete check of one document
type Pipeline struct {
	extractor  *extract.Extractor
	verifier   *verify.Verifier // nil disables lookups
	scorer     *score.Scorer
	loader     *Loader
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	options    model.Options
	logger     *zap.Logger
}

// BuildVerifier constructs the process-wide verifier: source client, cache,
// and the shared rate limiter
func BuildVerifier(cfg *model.Config, logger *zap.Logger) (*verify.Verifier, error) {
	client := util.NewHTTPClient(cfg.HTTP, cfg.Verification.RequestTimeout)
	source, err := verify.NewSource(cfg.Verification, cfg.HTTP, client)
	if err != nil {
		return nil, fmt.Errorf("verification source: %w", err)
	}

	limiter := worker.NewLimiter(cfg.Verification.RequestsPerSecond, cfg.Verification.Burst)
	return verify.NewVerifier(source, cfg.Verification, cache.New(cfg.Cache), limiter, logger), nil
}

// NewPipeline creates a pipeline. verifier may be nil, in which case every
// citation is reported as skipped.
func NewPipeline(cfg *model.Config, verifier *verify.Verifier, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("pipeline")

	// Create LLM summarizer if configured
	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			logger.Warn("LLM provider disabled", zap.Error(err))
		} else {
			summarizer = s
		}
	}

	return &Pipeline{
		extractor:  extract.NewExtractor(cfg.Extraction, extract.NewReporterTable(&cfg.Reporters)),
		verifier:   verifier,
		scorer:     score.NewScorer(),
		loader:     NewLoader(cfg.HTTP),
		summarizer: summarizer,
		options:    cfg.Options(),
		logger:     logger,
	}
}

// ExtractAndVerify returns one record per citation occurrence, ordered by
// position in text. Per-citation failures are recorded on the records; only
// unusable input returns an error.
func (p *Pipeline) ExtractAndVerify(ctx context.Context, text string, opts model.Options) ([]model.CitationRecord, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}

	// 1. Match and filter candidates
	candidates, rejected := p.extractor.Candidates(text, opts.EnableFalsePositivePrevention)
	for _, r := range rejected {
		p.logger.Debug("candidate rejected",
			zap.String("citation", r.Candidate.Text),
			zap.Int("start", r.Candidate.Start),
			zap.String("reason", r.Reason))
	}

	// 2. Context windows, names, years, normalization
	records := p.extractor.Records(text, candidates, opts.ContextWindowOverride)

	// 3. Verification
	p.verifyRecords(ctx, records, opts.EnableEnhancedVerification)

	// 4. Scoring and status
	for i := range records {
		p.scorer.Apply(&records[i], opts.EnableConfidenceScoring)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Start < records[j].Start
	})

	p.logger.Debug("document checked",
		zap.Int("candidates", len(candidates)),
		zap.Int("rejected", len(rejected)),
		zap.Int("records", len(records)))

	return records, nil
}

func (p *Pipeline) verifyRecords(ctx context.Context, records []model.CitationRecord, enabled bool) {
	if !enabled || p.verifier == nil {
		for i := range records {
			applyVerification(&records[i], verify.Skipped(records[i].NormalizedCitation, model.SourceSkipped))
		}
		return
	}

	var citations []string
	for _, r := range records {
		if r.Normalized {
			citations = append(citations, r.NormalizedCitation)
		}
	}
	results := p.verifier.VerifyAll(ctx, citations)

	for i := range records {
		r := &records[i]
		if !r.Normalized {
			applyVerification(r, verify.Skipped(r.Citation, model.SourceUnnormalized))
			continue
		}
		res := results[r.NormalizedCitation]
		verify.CompareNames(&res, r.ExtractedCaseName)
		applyVerification(r, res)
	}
}

// applyVerification copies a verification result onto a record
func applyVerification(r *model.CitationRecord, res model.Verification) {
	r.Verified = res.Verified
	r.VerificationSource = res.Source
	r.Outcome = res.Outcome
	r.CanonicalCaseName = res.CanonicalCaseName
	r.CanonicalDate = res.CanonicalDate
	r.URL = res.URL

	r.SetMeta("raw_confidence", res.RawConfidence)
	if res.CacheHit {
		r.SetMeta("cache_hit", true)
	}
	if res.Attempts > 0 {
		r.SetMeta("attempts", res.Attempts)
	}
	if res.NameSimilarity != nil {
		r.SetMeta("name_similarity", *res.NameSimilarity)
	}
	if res.NameMismatch {
		r.SetMeta("name_mismatch", true)
	}
	if res.Error != "" {
		r.SetMeta("verification_error", res.Error)
	}

	if !res.Verified {
		return
	}
	if res.CanonicalCitation != "" && !strings.EqualFold(res.CanonicalCitation, r.NormalizedCitation) {
		r.AddSuggestion(res.CanonicalCitation, "citation as normalized by "+res.Source)
	}
	if res.NameMismatch && res.CanonicalCaseName != nil {
		r.AddSuggestion(r.NormalizedCitation, "source lists this citation as "+*res.CanonicalCaseName)
	}
}

// Analyze checks text and assembles a full report
func (p *Pipeline) Analyze(ctx context.Context, source, text string, opts model.Options) (*model.Report, error) {
	records, err := p.ExtractAndVerify(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	cases := dedup.Group(records)
	report := &model.Report{
		ID:         uuid.NewString(),
		Source:     source,
		CheckedAt:  time.Now().UTC(),
		TextLength: len(text),
		Records:    records,
		Cases:      cases,
		Summary:    model.Summarize(records, cases),
		Options:    opts,
	}

	if opts.EnableEnhancedVerification && p.verifier != nil {
		report.VerifiedAgainst = p.verifier.SourceName()
	}
	if opts.EnableEnhancedVerification && p.verifier == nil {
		report.Warnings = append(report.Warnings, "verification requested but no verifier is configured")
	}
	if report.Summary.Unavailable > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d citation(s) could not be checked because the source was unavailable", report.Summary.Unavailable))
	}

	// Generate LLM summary if enabled (AFTER scoring, never affects score)
	if p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, *report)
		if err != nil {
			// Don't fail the check, just warn
			p.logger.Warn("LLM summary generation failed", zap.Error(err))
			report.Warnings = append(report.Warnings, "LLM summary failed: "+err.Error())
		} else if summary != nil {
			report.LLM = summary
		}
	}

	return report, nil
}

// SetOptions replaces the options used by Check
func (p *Pipeline) SetOptions(opts model.Options) {
	p.options = opts
}

// Check loads a document (file, URL or "-" for stdin) and analyzes it
func (p *Pipeline) Check(ctx context.Context, source string) (*model.Report, error) {
	doc, err := p.loader.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	report, err := p.Analyze(ctx, doc.Source, doc.Text, p.options)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", source, err)
	}
	return report, nil
}

// ValidateText rejects payloads that are empty or not plain UTF-8 text
func ValidateText(text string) error {
	switch {
	case strings.TrimSpace(text) == "":
		return fmt.Errorf("%w: empty text", ErrInvalidInput)
	case !utf8.ValidString(text):
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	case strings.ContainsRune(text, 0):
		return fmt.Errorf("%w: text contains NUL bytes", ErrInvalidInput)
	}
	return nil
}
