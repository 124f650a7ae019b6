package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/casecite/internal/extract"
	"github.com/ppiankov/casecite/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeCase struct {
	name string
	date string
	url  string
}

var knownCases = map[string]fakeCase{
	"347 U.S. 483":    {"Brown v. Board of Education", "1954-05-17", "/opinion/105221/brown-v-board-of-education/"},
	"410 U.S. 113":    {"Roe v. Wade", "1973-01-22", "/opinion/108713/roe-v-wade/"},
	"149 Wn.2d 647":   {"State v. Smith", "2003-06-12", "/opinion/1234/state-v-smith/"},
	"2024 WL 1234567": {"Doe v. Acme Corp.", "2024-03-03", "/opinion/9999/doe-v-acme-corp/"},
}

// courtListener serves the citation-lookup API from knownCases. Unknown
// reporters get item status 400, unknown citations 404.
func courtListener(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		cite := r.PostForm.Get("volume") + " " + r.PostForm.Get("reporter") + " " + r.PostForm.Get("page")

		item := map[string]any{"citation": cite, "normalized_citations": []string{cite}, "status": 200}
		c, ok := knownCases[cite]
		switch {
		case ok:
			item["clusters"] = []map[string]string{{"case_name": c.name, "date_filed": c.date, "absolute_url": c.url}}
		case r.PostForm.Get("reporter") == "F.999d":
			item["status"] = 400
			item["error_message"] = "Unable to find reporter"
			item["normalized_citations"] = []string{}
		default:
			item["status"] = 404
			item["clusters"] = []any{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]any{item})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Verification.BaseURL = baseURL
	cfg.Verification.RequestsPerSecond = 0
	cfg.Verification.DocumentTimeout = 5 * time.Second
	cfg.Cache.DiskDir = ""
	return cfg
}

func newTestPipeline(t *testing.T, cfg *model.Config) *Pipeline {
	t.Helper()
	logger := zaptest.NewLogger(t)
	v, err := BuildVerifier(cfg, logger)
	require.NoError(t, err)
	return NewPipeline(cfg, v, logger)
}

func TestExtractAndVerify_Brown(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	text := "Brown v. Board of Education, 347 U.S. 483 (1954)"
	records, err := p.ExtractAndVerify(context.Background(), text, model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "347 U.S. 483", r.Citation)
	assert.Equal(t, "Brown v. Board of Education", model.Deref(r.ExtractedCaseName))
	assert.Equal(t, "1954", model.Deref(r.ExtractedYear))
	assert.Equal(t, "Brown v. Board of Education", model.Deref(r.CanonicalCaseName))
	assert.Equal(t, "1954-05-17", model.Deref(r.CanonicalDate))
	assert.Contains(t, model.Deref(r.URL), "/opinion/105221/")
	assert.True(t, r.Verified)
	assert.Equal(t, "courtlistener", r.VerificationSource)
	assert.Equal(t, model.StatusVerified, r.Status)
	assert.Equal(t, 5, r.ConfidenceScore)
	assert.Equal(t, "high", r.Badge)
	assert.Empty(t, r.Suggestions)
}

func TestExtractAndVerify_FabricatedCitationIsHallucinated(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	records, err := p.ExtractAndVerify(context.Background(), "Fake v. Case, 999 F.999d 999 (2020)", model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.True(t, r.Normalized)
	assert.False(t, r.Verified)
	assert.Equal(t, model.StatusHallucinated, r.Status)
	assert.Equal(t, 0, r.ConfidenceScore)
	assert.Equal(t, "low", r.Badge)
}

func TestExtractAndVerify_DocketOnly(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	records, err := p.ExtractAndVerify(context.Background(), "No. 12-34567, 2024 WL 1234567", model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Nil(t, r.ExtractedCaseName)
	assert.Equal(t, "2024", model.Deref(r.ExtractedYear))
	assert.NotEqual(t, model.StatusHallucinated, r.Status)
	assert.NotContains(t, r.Metadata, "name_mismatch")
}

func TestExtractAndVerify_NameMismatchSuggests(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	records, err := p.ExtractAndVerify(context.Background(), "Smith v. Jones, 347 U.S. 483 (1954)", model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, model.StatusVerified, r.Status)
	assert.Equal(t, true, r.Metadata["name_mismatch"])
	require.Len(t, r.Suggestions, 1)
	assert.Contains(t, r.Suggestions[0].Explanation, "Brown v. Board of Education")
	assert.Equal(t, 4, r.ConfidenceScore)
}

func TestExtractAndVerify_OffsetsAndOrder(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	text := "See Roe v. Wade, 410 U.S.\n113 (1973); Brown v. Board of Education, 347 U.S. 483 (1954). " +
		"Later, State v. Smith, 149 Wn.2d 647 (2003), and again Smith, 149 Wn.2d 647."
	records, err := p.ExtractAndVerify(context.Background(), text, model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 4)

	for i, r := range records {
		require.True(t, r.Start >= 0 && r.End <= len(text) && r.Start < r.End)
		assert.Equal(t, r.Citation, extract.NormalizeWhitespace(text[r.Start:r.End]))
		if i > 0 {
			assert.Less(t, records[i-1].Start, r.Start)
		}
	}
	assert.Equal(t, "410 U.S. 113", records[0].Citation)

	// three distinct citations, one lookup each
	assert.Equal(t, int64(3), calls.Load())
}

func TestExtractAndVerify_Deterministic(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))
	text := "Roe v. Wade, 410 U.S. 113 (1973); Brown v. Board of Education, 347 U.S. 483 (1954)."

	first, err := p.ExtractAndVerify(context.Background(), text, model.DefaultOptions())
	require.NoError(t, err)
	second, err := p.ExtractAndVerify(context.Background(), text, model.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Start, second[i].Start)
		assert.Equal(t, first[i].NormalizedCitation, second[i].NormalizedCitation)
		assert.Equal(t, first[i].CanonicalCaseName, second[i].CanonicalCaseName)
		assert.Equal(t, first[i].URL, second[i].URL)
	}
	assert.Equal(t, true, second[0].Metadata["cache_hit"])
	assert.Equal(t, int64(2), calls.Load())
}

func TestExtractAndVerify_VerificationDisabled(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	opts := model.DefaultOptions()
	opts.EnableEnhancedVerification = false
	records, err := p.ExtractAndVerify(context.Background(), "Brown v. Board of Education, 347 U.S. 483 (1954)", opts)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, model.SourceSkipped, records[0].VerificationSource)
	assert.Equal(t, model.StatusUnverified, records[0].Status)
	assert.Equal(t, int64(0), calls.Load())
}

func TestExtractAndVerify_NilVerifierSkips(t *testing.T) {
	p := NewPipeline(model.DefaultConfig(), nil, nil)

	records, err := p.ExtractAndVerify(context.Background(), "Roe v. Wade, 410 U.S. 113 (1973)", model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.SourceSkipped, records[0].VerificationSource)
	assert.Equal(t, model.StatusUnverified, records[0].Status)
}

func TestExtractAndVerify_ScoringDisabled(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	opts := model.DefaultOptions()
	opts.EnableConfidenceScoring = false
	records, err := p.ExtractAndVerify(context.Background(), "Brown v. Board of Education, 347 U.S. 483 (1954)", opts)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, model.StatusVerified, records[0].Status)
	assert.Equal(t, 0, records[0].ConfidenceScore)
	assert.Empty(t, records[0].Badge)
}

func TestExtractAndVerify_DocumentTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := testConfig(srv.URL)
	cfg.Verification.DocumentTimeout = 100 * time.Millisecond

	// Nop logger: the detached lookups may still log after the test returns
	v, err := BuildVerifier(cfg, nil)
	require.NoError(t, err)
	p := NewPipeline(cfg, v, nil)

	records, err := p.ExtractAndVerify(context.Background(), "Roe v. Wade, 410 U.S. 113 (1973); Brown v. Board of Education, 347 U.S. 483 (1954)", model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, r := range records {
		assert.Equal(t, model.SourceUnavailable, r.VerificationSource)
		assert.Equal(t, model.StatusUnverified, r.Status)
		assert.False(t, r.Verified)
	}
}

func TestExtractAndVerify_MissingEndpointIsNotHallucinated(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>Page not found</html>"))
	}))
	t.Cleanup(srv.Close)

	p := newTestPipeline(t, testConfig(srv.URL))

	records, err := p.ExtractAndVerify(context.Background(), "Brown v. Board of Education, 347 U.S. 483 (1954).", model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "347 U.S. 483", r.Citation)
	assert.False(t, r.Verified)
	assert.Equal(t, model.SourceUnavailable, r.VerificationSource)
	assert.Equal(t, model.StatusUnverified, r.Status)
	assert.Equal(t, int64(1), calls.Load(), "a missing endpoint is not retried")
}

func TestExtractAndVerify_FalsePositiveFilter(t *testing.T) {
	p := NewPipeline(model.DefaultConfig(), nil, nil)
	text := "Claims under 42 U.S.C. 1983 fail, see Roe v. Wade, 410 U.S. 113 (1973), and 1 P. 2 is a typo."

	filtered, err := p.ExtractAndVerify(context.Background(), text, model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "410 U.S. 113", filtered[0].Citation)

	opts := model.DefaultOptions()
	opts.EnableFalsePositivePrevention = false
	unfiltered, err := p.ExtractAndVerify(context.Background(), text, opts)
	require.NoError(t, err)

	var got []string
	for _, r := range unfiltered {
		got = append(got, r.Citation)
	}
	assert.Equal(t, []string{"42 U.S.C. 1983", "410 U.S. 113", "1 P. 2"}, got)
}

func TestExtractAndVerify_InvalidInput(t *testing.T) {
	p := NewPipeline(model.DefaultConfig(), nil, nil)

	for _, text := range []string{"", "   \n", "abc\x00def", "bad \xff\xfe bytes"} {
		_, err := p.ExtractAndVerify(context.Background(), text, model.DefaultOptions())
		assert.True(t, errors.Is(err, ErrInvalidInput), "%q", text)
	}
}

func TestAnalyze_GroupsOccurrences(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, testConfig(courtListener(t, &calls).URL))

	text := "State v. Smith, 149 Wn.2d 647 (2003). The court in State v. Smith, 149 Wn.2d 647, also held..."
	report, err := p.Analyze(context.Background(), "brief.txt", text, model.DefaultOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "brief.txt", report.Source)
	assert.Equal(t, "courtlistener", report.VerifiedAgainst)
	assert.Len(t, report.Records, 2)
	require.Len(t, report.Cases, 1)

	g := report.Cases[0]
	assert.Equal(t, []string{"149 Wn.2d 647"}, g.Citations)
	require.Len(t, g.Occurrences, 2)
	for _, o := range g.Occurrences {
		assert.Equal(t, "149 Wn.2d 647", text[o.Start:o.End])
	}
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Cases)
	assert.Equal(t, 2, report.Summary.Verified)
	assert.Nil(t, report.LLM)
	assert.Equal(t, int64(1), calls.Load())
}

func TestAnalyze_UnavailableWarns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.Verification.MaxAttempts = 1
	p := newTestPipeline(t, cfg)

	report, err := p.Analyze(context.Background(), "-", "Roe v. Wade, 410 U.S. 113 (1973)", model.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Unavailable)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "unavailable")
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText("Roe v. Wade, 410 U.S. 113"))
	assert.ErrorIs(t, ValidateText(""), ErrInvalidInput)
}
