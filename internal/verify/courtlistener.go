package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/casecite/internal/model"
)

const courtListenerLookupPath = "/api/rest/v4/citation-lookup/"

// CourtListener queries the CourtListener citation-lookup API
type CourtListener struct {
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	maxBody   int64
}

// NewCourtListener creates a client. A nil client gets one with the
// configured request timeout.
func NewCourtListener(cfg model.VerificationConfig, httpCfg model.HTTPConfig, client *http.Client) *CourtListener {
	if client == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.courtlistener.com"
	}

	maxBody := httpCfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 5_000_000
	}

	return &CourtListener{
		baseURL:   baseURL,
		token:     cfg.APIToken,
		userAgent: httpCfg.UserAgent,
		client:    client,
		maxBody:   maxBody,
	}
}

// Name implements Source
func (c *CourtListener) Name() string {
	return "courtlistener"
}

// Endpoint implements Source
func (c *CourtListener) Endpoint() string {
	return c.baseURL + courtListenerLookupPath
}

type lookupCluster struct {
	CaseName    string `json:"case_name"`
	DateFiled   string `json:"date_filed"`
	AbsoluteURL string `json:"absolute_url"`
}

type lookupItem struct {
	Citation            string          `json:"citation"`
	NormalizedCitations []string        `json:"normalized_citations"`
	Status              int             `json:"status"`
	ErrorMessage        string          `json:"error_message"`
	Clusters            []lookupCluster `json:"clusters"`
}

// Lookup implements Source
func (c *CourtListener) Lookup(ctx context.Context, cit Citation) (*Match, error) {
	form := url.Values{}
	form.Set("volume", cit.Volume)
	form.Set("reporter", cit.Reporter)
	form.Set("page", cit.Page)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        errors.New("rate limited"),
		}
	case resp.StatusCode >= 500:
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("citation lookup: status %d: %s", resp.StatusCode, snippet(body))
	}

	var items []lookupItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	return c.matchFromItem(items[0])
}

func (c *CourtListener) matchFromItem(item lookupItem) (*Match, error) {
	switch item.Status {
	case http.StatusOK, http.StatusMultipleChoices:
		if len(item.Clusters) == 0 {
			return nil, ErrNotFound
		}
	case http.StatusNotFound, http.StatusBadRequest:
		// 400 is an unknown reporter; the citation cannot exist as written
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, &TransientError{StatusCode: item.Status, Err: errors.New(item.ErrorMessage)}
	default:
		return nil, fmt.Errorf("citation lookup: item status %d: %s", item.Status, item.ErrorMessage)
	}

	cluster := item.Clusters[0]
	m := &Match{
		CaseName:  strings.TrimSpace(cluster.CaseName),
		DateFiled: cluster.DateFiled,
	}
	if cluster.AbsoluteURL != "" {
		if strings.HasPrefix(cluster.AbsoluteURL, "http") {
			m.URL = cluster.AbsoluteURL
		} else {
			m.URL = c.baseURL + cluster.AbsoluteURL
		}
	}
	if len(item.NormalizedCitations) > 0 {
		m.CanonicalCitation = item.NormalizedCitations[0]
	}
	return m, nil
}

// parseRetryAfter understands the delta-seconds form and HTTP dates
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
