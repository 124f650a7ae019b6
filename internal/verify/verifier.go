package verify

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ppiankov/casecite/internal/cache"
	"github.com/ppiankov/casecite/internal/model"
	"github.com/ppiankov/casecite/internal/util"
	"github.com/ppiankov/casecite/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// NameMismatchThreshold is the token overlap below which a matched case name
// is flagged as a mismatch
const NameMismatchThreshold = 0.5

const (
	defaultMaxAttempts = 3
	defaultWorkers     = 5
	defaultBackoff     = time.Second
	cooldownOn429      = 5 * time.Second
)

// verifySleepFunc waits between retries (injectable for tests)
var verifySleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Verifier looks citations up in a Source. One Verifier is shared by every
// document in a process so its cache, limiter and in-flight set are shared too.
type Verifier struct {
	source      Source
	cache       cache.Cache
	limiter     *worker.Limiter
	group       singleflight.Group
	maxAttempts int
	workers     int
	docTimeout  time.Duration
	backoff     time.Duration
	logger      *zap.Logger
	lookups     atomic.Int64
}

// NewVerifier creates a verifier. c and limiter may be nil.
func NewVerifier(source Source, cfg model.VerificationConfig, c cache.Cache, limiter *worker.Limiter, logger *zap.Logger) *Verifier {
	if c == nil {
		c = cache.Nop{}
	}
	if limiter == nil {
		limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &Verifier{
		source:      source,
		cache:       c,
		limiter:     limiter,
		maxAttempts: cfg.MaxAttempts,
		workers:     cfg.Workers,
		docTimeout:  cfg.DocumentTimeout,
		backoff:     defaultBackoff,
		logger:      logger.Named("verify"),
	}
	if v.maxAttempts <= 0 {
		v.maxAttempts = defaultMaxAttempts
	}
	if v.workers <= 0 {
		v.workers = defaultWorkers
	}
	return v
}

// SourceName returns the name of the underlying source
func (v *Verifier) SourceName() string {
	return v.source.Name()
}

// Lookups returns how many requests were sent to the source
func (v *Verifier) Lookups() int64 {
	return v.lookups.Load()
}

// Verify looks up one normalized citation and compares the canonical case
// name against extractedName when both are known
func (v *Verifier) Verify(ctx context.Context, citation string, extractedName *string) model.Verification {
	result := v.lookup(ctx, citation)
	CompareNames(&result, extractedName)
	return result
}

// VerifyAll looks up every distinct citation once on the worker pool. The
// whole batch is bounded by the document timeout; citations without a result
// when it expires come back unavailable. Name comparison is left to the caller.
func (v *Verifier) VerifyAll(ctx context.Context, citations []string) map[string]model.Verification {
	distinct := make([]string, 0, len(citations))
	seen := make(map[string]bool, len(citations))
	for _, c := range citations {
		if !seen[c] {
			seen[c] = true
			distinct = append(distinct, c)
		}
	}
	sort.Strings(distinct)

	results := make(map[string]model.Verification, len(distinct))
	if len(distinct) == 0 {
		return results
	}

	if v.docTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.docTimeout)
		defer cancel()
	}

	pool := worker.NewPool(ctx, v.workers)
	pool.Start()
	for _, c := range distinct {
		if !pool.Submit(&verifyJob{verifier: v, citation: c}) {
			break
		}
	}

	for _, r := range pool.Wait() {
		res := r.(*verifyResult)
		results[res.citation] = res.verification
	}

	for _, c := range distinct {
		if _, ok := results[c]; !ok {
			results[c] = unavailable(c, "verification timed out before lookup")
		}
	}

	v.logger.Debug("verified batch",
		zap.Int("citations", len(citations)),
		zap.Int("distinct", len(distinct)),
		zap.Int64("lookups_total", v.Lookups()))

	return results
}

type verifyJob struct {
	verifier *Verifier
	citation string
}

func (j *verifyJob) Execute(ctx context.Context) worker.Result {
	return &verifyResult{citation: j.citation, verification: j.verifier.lookup(ctx, j.citation)}
}

type verifyResult struct {
	citation     string
	verification model.Verification
}

func (r *verifyResult) GetError() error {
	if r.verification.Outcome == model.OutcomeUnavailable {
		return errors.New(r.verification.Error)
	}
	return nil
}

// cachedLookup is the persisted form of a definitive outcome
type cachedLookup struct {
	Outcome           model.Outcome `json:"outcome"`
	CaseName          string        `json:"case_name,omitempty"`
	DateFiled         string        `json:"date_filed,omitempty"`
	URL               string        `json:"url,omitempty"`
	CanonicalCitation string        `json:"canonical_citation,omitempty"`
}

// lookup serves citation from the cache, joining an in-flight lookup for the
// same key if there is one
func (v *Verifier) lookup(ctx context.Context, citation string) model.Verification {
	key := cache.Key(v.source.Name(), citation)

	if data, ok := v.cache.Get(key); ok {
		var cl cachedLookup
		if err := json.Unmarshal(data, &cl); err == nil {
			res := v.fromCached(citation, cl)
			res.CacheHit = true
			return res
		}
		_ = v.cache.Delete(key)
	}

	ch := v.group.DoChan(key, func() (any, error) {
		// Detached so one cancelled waiter does not fail the others
		res := v.query(context.WithoutCancel(ctx), citation, key)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return unavailable(citation, ctx.Err().Error())
	case r := <-ch:
		res := r.Val.(model.Verification)
		if r.Shared {
			res.Attempts = 0
		}
		return res
	}
}

// query runs the retry loop against the source and caches definitive outcomes
func (v *Verifier) query(ctx context.Context, citation, key string) model.Verification {
	cit, ok := ParseCitation(citation)
	if !ok {
		return unavailable(citation, "citation is not in volume reporter page form")
	}

	// Bound the detached lookup so it cannot outlive the document
	if v.docTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.docTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		if err := v.limiter.Wait(ctx, v.source.Endpoint()); err != nil {
			lastErr = err
			break
		}

		v.lookups.Add(1)
		match, err := v.source.Lookup(ctx, cit)

		switch {
		case err == nil:
			cl := cachedLookup{
				Outcome:           model.OutcomeMatch,
				CaseName:          match.CaseName,
				DateFiled:         match.DateFiled,
				URL:               match.URL,
				CanonicalCitation: match.CanonicalCitation,
			}
			v.store(key, cl)
			res := v.fromCached(citation, cl)
			res.Attempts = attempt
			return res

		case errors.Is(err, ErrNotFound):
			cl := cachedLookup{Outcome: model.OutcomeNotFound}
			v.store(key, cl)
			res := v.fromCached(citation, cl)
			res.Attempts = attempt
			return res
		}

		lastErr = err
		if !IsTransient(err) {
			break
		}

		wait := v.retryWait(err, attempt)

		v.logger.Debug("transient lookup failure",
			zap.String("citation", citation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Duration("cooldown", v.limiter.CooldownRemaining(v.source.Endpoint())),
			zap.Error(err))

		if attempt < v.maxAttempts {
			if err := verifySleepFunc(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
	}

	msg := "lookup failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	v.logger.Warn("citation unavailable", zap.String("citation", citation), zap.String("error", msg))
	return unavailable(citation, msg)
}

// retryWait is the backoff before the next attempt. A 429 also pauses the
// shared limiter so other lookups back off too.
func (v *Verifier) retryWait(err error, attempt int) time.Duration {
	wait := v.backoff * time.Duration(1<<uint(attempt-1))

	var te *TransientError
	if !errors.As(err, &te) {
		return wait
	}
	if te.StatusCode == 429 {
		cooldown := te.RetryAfter
		if cooldown <= 0 {
			cooldown = cooldownOn429
		}
		v.limiter.Penalize(v.source.Endpoint(), cooldown)
	}
	if te.RetryAfter > wait {
		wait = te.RetryAfter
	}
	return wait
}

func (v *Verifier) store(key string, cl cachedLookup) {
	data, err := json.Marshal(cl)
	if err != nil {
		return
	}
	if err := v.cache.Set(key, data, 0); err != nil {
		v.logger.Warn("cache write failed", zap.Error(err))
	}
}

func (v *Verifier) fromCached(citation string, cl cachedLookup) model.Verification {
	res := model.Verification{
		Citation: citation,
		Outcome:  cl.Outcome,
		Source:   v.source.Name(),
	}
	if cl.Outcome != model.OutcomeMatch {
		return res
	}

	res.Verified = true
	res.CanonicalCaseName = model.StringPtr(cl.CaseName)
	res.CanonicalDate = model.StringPtr(cl.DateFiled)
	res.URL = model.StringPtr(cl.URL)
	res.CanonicalCitation = cl.CanonicalCitation
	res.RawConfidence = 1
	return res
}

// CompareNames fills in the name similarity of a match against the extracted
// case name. A poor match stays verified; it is only flagged.
func CompareNames(res *model.Verification, extractedName *string) {
	res.NameSimilarity = nil
	res.NameMismatch = false
	if !res.Verified || extractedName == nil || res.CanonicalCaseName == nil {
		return
	}

	sim := util.TokenOverlap(*extractedName, *res.CanonicalCaseName)
	res.NameSimilarity = &sim
	res.NameMismatch = sim < NameMismatchThreshold
	res.RawConfidence = 0.5 + 0.5*sim
}

// Skipped is the verification of a citation that was never looked up
func Skipped(citation, source string) model.Verification {
	return model.Verification{
		Citation: citation,
		Outcome:  model.OutcomeSkipped,
		Source:   source,
	}
}

func unavailable(citation, msg string) model.Verification {
	return model.Verification{
		Citation: citation,
		Outcome:  model.OutcomeUnavailable,
		Source:   model.SourceUnavailable,
		Error:    msg,
	}
}
