// Package verify checks normalized citations against an authoritative
// case-law source.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/casecite/internal/model"
)

// ErrNotFound means the source answered definitively that the citation does not exist
var ErrNotFound = errors.New("citation not found")

// TransientError is a failure worth retrying: timeouts, connection errors, 5xx and 429
type TransientError struct {
	StatusCode int           // 0 for network errors
	RetryAfter time.Duration // Server-requested wait, if any
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is or wraps a *TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Citation is the lookup key sent to a source
type Citation struct {
	Volume   string
	Reporter string
	Page     string
}

// String returns "volume reporter page"
func (c Citation) String() string {
	return c.Volume + " " + c.Reporter + " " + c.Page
}

// ParseCitation splits a normalized "volume reporter page" citation
func ParseCitation(normalized string) (Citation, bool) {
	tokens := strings.Fields(normalized)
	if len(tokens) < 3 {
		return Citation{}, false
	}
	return Citation{
		Volume:   tokens[0],
		Reporter: strings.Join(tokens[1:len(tokens)-1], " "),
		Page:     tokens[len(tokens)-1],
	}, true
}

// Match is a source's canonical record for a citation
type Match struct {
	CaseName          string
	DateFiled         string
	URL               string
	CanonicalCitation string
}

// Source is an authoritative case-law lookup service
type Source interface {
	// Name identifies the source in records and cache keys
	Name() string

	// Endpoint is the URL requests go to; the limiter is keyed on its host
	Endpoint() string

	// Lookup returns the canonical match, ErrNotFound, a *TransientError or
	// another error that should not be retried
	Lookup(ctx context.Context, c Citation) (*Match, error)
}

// NewSource builds the source named in cfg
func NewSource(cfg model.VerificationConfig, httpCfg model.HTTPConfig, client *http.Client) (Source, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "courtlistener":
		return NewCourtListener(cfg, httpCfg, client), nil
	default:
		return nil, fmt.Errorf("unknown verification provider: %s", cfg.Provider)
	}
}
