package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Brown v. Board of Education", "Brown v. Board of Education of Topeka", 0.75},
		{"Roe v. Wade", "Roe v. Wade", 1},
		{"ROE V. WADE", "roe v. wade", 1},
		{"Smith v. Jones", "Doe v. Roe", 0},
		{"", "Roe v. Wade", 0},
		{"A v. B", "A v. B", 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s|%s", tt.a, tt.b), func(t *testing.T) {
			assert.InDelta(t, tt.want, TokenOverlap(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, TokenOverlap(tt.b, tt.a), 1e-9, "overlap must be symmetric")
		})
	}
}

func TestNameTokens(t *testing.T) {
	got := NameTokens("Nat'l Ass'n of Mfrs. v. Dep't of Labor")
	assert.Contains(t, got, "nat'l")
	assert.Contains(t, got, "mfrs")
	assert.Contains(t, got, "labor")
	assert.NotContains(t, got, "of")
	assert.NotContains(t, got, "v")
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3128", "courtlistener.com")

	req := httptest.NewRequest(http.MethodGet, "https://example.com/doc", nil)
	u, err := proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "secure.local:3128", u.Host)

	req = httptest.NewRequest(http.MethodGet, "http://example.com/doc", nil)
	u, err = proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.local:3128", u.Host)

	req = httptest.NewRequest(http.MethodGet, "https://www.courtlistener.com/api/", nil)
	u, err = proxy(req)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRobotsChecker(t *testing.T) {
	var robotsHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: casecite\nDisallow: /private\nCrawl-delay: 2\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRobotsChecker("casecite/0.3 (+https://example.com)", srv.Client())
	ctx := context.Background()

	allowed, delay, err := r.CanFetch(ctx, srv.URL+"/briefs/1.html")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2*time.Second, delay)

	allowed, _, err = r.CanFetch(ctx, srv.URL+"/private/brief.html")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, int32(1), robotsHits.Load(), "robots.txt should be cached per host")

	_, _, err = r.CanFetch(ctx, "ftp://example.com/x")
	assert.Error(t, err)
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	allowed, _, err := NewRobotsChecker("casecite", srv.Client()).CanFetch(context.Background(), srv.URL+"/doc")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "casecite", NormalizeUserAgent("casecite/0.3 (+https://github.com/ppiankov/casecite)"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}
