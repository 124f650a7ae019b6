package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/casecite/internal/cache"
	"github.com/ppiankov/casecite/internal/model"
	"github.com/ppiankov/casecite/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	// Disable backoff sleeps in tests
	verifySleepFunc = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
}

type fakeResponse struct {
	match *Match
	err   error
}

// fakeSource replays scripted responses per citation; the last response repeats
type fakeSource struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	calls     map[string]int
	delay     time.Duration
	block     bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{responses: make(map[string][]fakeResponse), calls: make(map[string]int)}
}

func (f *fakeSource) on(citation string, rs ...fakeResponse) *fakeSource {
	f.responses[citation] = rs
	return f
}

func (f *fakeSource) Name() string     { return "fake" }
func (f *fakeSource) Endpoint() string { return "https://fake.example/lookup" }

func (f *fakeSource) Lookup(ctx context.Context, c Citation) (*Match, error) {
	key := c.String()

	f.mu.Lock()
	n := f.calls[key]
	f.calls[key]++
	rs := f.responses[key]
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if len(rs) == 0 {
		return nil, ErrNotFound
	}
	if n >= len(rs) {
		n = len(rs) - 1
	}
	return rs[n].match, rs[n].err
}

func (f *fakeSource) callCount(citation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[citation]
}

var brown = &Match{
	CaseName:          "Brown v. Board of Education",
	DateFiled:         "1954-05-17",
	URL:               "https://www.courtlistener.com/opinion/105221/brown-v-board-of-education/",
	CanonicalCitation: "347 U.S. 483",
}

func newTestVerifier(t *testing.T, src Source, c cache.Cache) *Verifier {
	t.Helper()
	cfg := model.VerificationConfig{Workers: 4, MaxAttempts: 3, DocumentTimeout: 5 * time.Second}
	return NewVerifier(src, cfg, c, worker.NewLimiter(0, 1), zaptest.NewLogger(t))
}

func TestVerifier_Match(t *testing.T) {
	src := newFakeSource().on("347 U.S. 483", fakeResponse{match: brown})
	v := newTestVerifier(t, src, nil)

	name := "Brown v. Board of Education"
	res := v.Verify(context.Background(), "347 U.S. 483", &name)

	assert.True(t, res.Verified)
	assert.Equal(t, model.OutcomeMatch, res.Outcome)
	assert.Equal(t, "fake", res.Source)
	assert.Equal(t, brown.CaseName, model.Deref(res.CanonicalCaseName))
	assert.Equal(t, brown.DateFiled, model.Deref(res.CanonicalDate))
	assert.Equal(t, brown.URL, model.Deref(res.URL))
	assert.Equal(t, 1, res.Attempts)
	require.NotNil(t, res.NameSimilarity)
	assert.InDelta(t, 1.0, *res.NameSimilarity, 1e-9)
	assert.False(t, res.NameMismatch)
}

func TestVerifier_NameMismatchStaysVerified(t *testing.T) {
	src := newFakeSource().on("347 U.S. 483", fakeResponse{match: brown})
	v := newTestVerifier(t, src, nil)

	name := "Smith v. Jones"
	res := v.Verify(context.Background(), "347 U.S. 483", &name)

	assert.True(t, res.Verified)
	assert.True(t, res.NameMismatch)
	require.NotNil(t, res.NameSimilarity)
	assert.Less(t, *res.NameSimilarity, NameMismatchThreshold)
}

func TestVerifier_NotFound(t *testing.T) {
	v := newTestVerifier(t, newFakeSource(), nil)

	res := v.Verify(context.Background(), "999 F.999d 999", nil)
	assert.False(t, res.Verified)
	assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	assert.Equal(t, "fake", res.Source)
	assert.Nil(t, res.CanonicalCaseName)
}

func TestVerifier_RetriesTransient(t *testing.T) {
	transient := &TransientError{StatusCode: 503, Err: errors.New("unavailable")}
	src := newFakeSource().on("347 U.S. 483",
		fakeResponse{err: transient},
		fakeResponse{err: transient},
		fakeResponse{match: brown},
	)
	v := newTestVerifier(t, src, nil)

	res := v.Verify(context.Background(), "347 U.S. 483", nil)
	assert.True(t, res.Verified)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int64(3), v.Lookups())
}

func TestVerifier_BackoffIsExponential(t *testing.T) {
	var waits []time.Duration
	prev := verifySleepFunc
	verifySleepFunc = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	defer func() { verifySleepFunc = prev }()

	src := newFakeSource().on("347 U.S. 483", fakeResponse{err: &TransientError{Err: errors.New("timeout")}})
	v := newTestVerifier(t, src, nil)

	res := v.Verify(context.Background(), "347 U.S. 483", nil)
	assert.Equal(t, model.OutcomeUnavailable, res.Outcome)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestVerifier_ExhaustedRetriesAreUnavailable(t *testing.T) {
	src := newFakeSource().on("347 U.S. 483", fakeResponse{err: &TransientError{StatusCode: 502, Err: errors.New("bad gateway")}})
	c := cache.NewMemoryCache(time.Hour, time.Minute)
	v := newTestVerifier(t, src, c)

	res := v.Verify(context.Background(), "347 U.S. 483", nil)
	assert.False(t, res.Verified)
	assert.Equal(t, model.OutcomeUnavailable, res.Outcome)
	assert.Equal(t, model.SourceUnavailable, res.Source)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 3, src.callCount("347 U.S. 483"))

	// Transient outcomes are never cached
	assert.Equal(t, 0, c.Len())
}

func TestVerifier_PermanentErrorNotRetried(t *testing.T) {
	src := newFakeSource().on("347 U.S. 483", fakeResponse{err: errors.New("status 401")})
	v := newTestVerifier(t, src, nil)

	res := v.Verify(context.Background(), "347 U.S. 483", nil)
	assert.Equal(t, model.OutcomeUnavailable, res.Outcome)
	assert.Equal(t, 1, src.callCount("347 U.S. 483"))
}

func TestVerifier_RateLimitedPenalizesLimiter(t *testing.T) {
	src := newFakeSource().on("347 U.S. 483",
		fakeResponse{err: &TransientError{StatusCode: 429, RetryAfter: 20 * time.Millisecond, Err: errors.New("rate limited")}},
		fakeResponse{match: brown},
	)
	limiter := worker.NewLimiter(0, 1)
	v := NewVerifier(src, model.VerificationConfig{}, nil, limiter, zaptest.NewLogger(t))

	start := time.Now()
	res := v.Verify(context.Background(), "347 U.S. 483", nil)
	assert.True(t, res.Verified)
	// The second attempt waited out the shared cooldown
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestVerifier_CacheReverifyIsEqual(t *testing.T) {
	src := newFakeSource().on("347 U.S. 483", fakeResponse{match: brown})
	v := newTestVerifier(t, src, cache.NewMemoryCache(time.Hour, time.Minute))
	ctx := context.Background()

	first := v.Verify(ctx, "347 U.S. 483", nil)
	second := v.Verify(ctx, "347 U.S. 483", nil)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, int64(1), v.Lookups())

	first.CacheHit, second.CacheHit = false, false
	first.Attempts, second.Attempts = 0, 0
	assert.Equal(t, first, second)
}

func TestVerifier_NotFoundIsCached(t *testing.T) {
	v := newTestVerifier(t, newFakeSource(), cache.NewMemoryCache(time.Hour, time.Minute))
	ctx := context.Background()

	v.Verify(ctx, "999 F.999d 999", nil)
	res := v.Verify(ctx, "999 F.999d 999", nil)

	assert.True(t, res.CacheHit)
	assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	assert.Equal(t, int64(1), v.Lookups())
}

func TestVerifier_CoalescesConcurrentLookups(t *testing.T) {
	src := newFakeSource().on("347 U.S. 483", fakeResponse{match: brown})
	src.delay = 50 * time.Millisecond
	v := newTestVerifier(t, src, nil)

	var wg sync.WaitGroup
	results := make([]model.Verification, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = v.Verify(context.Background(), "347 U.S. 483", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, src.callCount("347 U.S. 483"))
	for _, r := range results {
		assert.True(t, r.Verified)
	}
}

func TestVerifier_VerifyAllDeduplicates(t *testing.T) {
	src := newFakeSource().
		on("347 U.S. 483", fakeResponse{match: brown}).
		on("149 Wn.2d 647", fakeResponse{match: &Match{CaseName: "State v. Smith", DateFiled: "2003-06-12"}})
	v := newTestVerifier(t, src, cache.NewMemoryCache(time.Hour, time.Minute))

	citations := []string{"347 U.S. 483", "149 Wn.2d 647", "347 U.S. 483", "149 Wn.2d 647", "999 F.999d 999"}
	got := v.VerifyAll(context.Background(), citations)

	require.Len(t, got, 3)
	assert.True(t, got["347 U.S. 483"].Verified)
	assert.True(t, got["149 Wn.2d 647"].Verified)
	assert.Equal(t, model.OutcomeNotFound, got["999 F.999d 999"].Outcome)
	assert.Equal(t, int64(3), v.Lookups())

	// A second document citing the same cases is served from cache
	v.VerifyAll(context.Background(), citations)
	assert.Equal(t, int64(3), v.Lookups())
}

func TestVerifier_DocumentTimeout(t *testing.T) {
	src := newFakeSource()
	src.block = true
	cfg := model.VerificationConfig{Workers: 2, DocumentTimeout: 50 * time.Millisecond}
	// no test logger: detached lookups finish after VerifyAll returns
	v := NewVerifier(src, cfg, nil, worker.NewLimiter(0, 1), nil)

	citations := []string{"1 U.S. 1", "2 U.S. 2", "3 U.S. 3", "4 U.S. 4", "5 U.S. 5"}

	start := time.Now()
	got := v.VerifyAll(context.Background(), citations)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, got, len(citations))
	for _, c := range citations {
		assert.Equal(t, model.OutcomeUnavailable, got[c].Outcome, c)
		assert.Equal(t, model.SourceUnavailable, got[c].Source, c)
		assert.False(t, got[c].Verified, c)
	}
}

func TestVerifier_UnparseableCitation(t *testing.T) {
	v := newTestVerifier(t, newFakeSource(), nil)

	res := v.Verify(context.Background(), "U.S.", nil)
	assert.Equal(t, model.OutcomeUnavailable, res.Outcome)
	assert.Equal(t, int64(0), v.Lookups())
}

func TestCompareNames(t *testing.T) {
	name := "Board of Education"
	res := model.Verification{Verified: true, CanonicalCaseName: model.StringPtr("Brown v. Board of Education")}

	CompareNames(&res, &name)
	require.NotNil(t, res.NameSimilarity)
	assert.InDelta(t, 2.0/3.0, *res.NameSimilarity, 1e-9)
	assert.False(t, res.NameMismatch)

	CompareNames(&res, nil)
	assert.Nil(t, res.NameSimilarity)

	unverified := model.Verification{}
	CompareNames(&unverified, &name)
	assert.Nil(t, unverified.NameSimilarity)
}

func TestSkipped(t *testing.T) {
	res := Skipped("347 U.S. 483", model.SourceSkipped)
	assert.Equal(t, model.OutcomeSkipped, res.Outcome)
	assert.Equal(t, model.SourceSkipped, res.Source)
	assert.False(t, res.Verified)
}
