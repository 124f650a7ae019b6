package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/casecite/internal/model"
	"github.com/ppiankov/casecite/internal/util"
	"github.com/ppiankov/casecite/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids loading a document URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

const defaultMaxBodyBytes = 5_000_000

// Document is loaded source text ready for analysis
type Document struct {
	Source      string
	Text        string
	ContentType string
}

// Loader reads documents from files, stdin or HTTP(S) URLs
type Loader struct {
	httpClient *http.Client
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	userAgent  string
	maxBytes   int64
	stdin      io.Reader
}

// NewLoader creates a loader from the HTTP configuration
func NewLoader(cfg model.HTTPConfig) *Loader {
	client := util.NewHTTPClient(cfg, cfg.Timeout)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}

	l := &Loader{
		httpClient: client,
		limiter:    worker.NewLimiter(2, 1),
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		stdin:      os.Stdin,
	}
	if cfg.RespectRobots {
		l.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return l
}

// Load reads source. "-" reads stdin; http(s) URLs are fetched; anything else
// is a file path. HTML is reduced to its visible text.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	switch {
	case source == "-":
		body, err := l.readLimited(l.stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return newDocument("-", body, ""), nil

	case isURL(source):
		return l.fetch(ctx, source)

	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		defer f.Close()

		body, err := l.readLimited(f)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		contentType := ""
		switch strings.ToLower(filepath.Ext(source)) {
		case ".html", ".htm":
			contentType = "text/html"
		}
		return newDocument(source, body, contentType), nil
	}
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (*Document, error) {
	var delay time.Duration
	if l.robots != nil {
		allowed, crawlDelay, err := l.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, ErrDisallowed
		}
		delay = crawlDelay
	}

	if err := l.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := l.readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return newDocument(resp.Request.URL.String(), body, resp.Header.Get("Content-Type")), nil
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, l.maxBytes))
}

func newDocument(source string, body []byte, contentType string) *Document {
	text := string(body)
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if strings.Contains(contentType, "html") {
		text = VisibleText(text)
	}
	return &Document{Source: source, Text: text, ContentType: contentType}
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
