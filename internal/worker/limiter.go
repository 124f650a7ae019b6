package worker

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket per remote host. A host that answered 429 can be
// put into a cooldown that every caller waiting on that host honours.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	cooldowns    map[string]time.Time
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	now          func() time.Time
}

// NewLimiter creates a limiter; requestsPerSecond <= 0 disables throttling
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		cooldowns:    make(map[string]time.Time),
		defaultRate:  limit,
		defaultBurst: burst,
		now:          time.Now,
	}
}

// Wait blocks until a request to rawURL's host may proceed
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := extractHost(rawURL)
	if err != nil {
		return err
	}

	if err := l.waitCooldown(ctx, host); err != nil {
		return err
	}
	return l.getLimiter(host).Wait(ctx)
}

// WaitWithDelay waits for the limiter and then an extra delay, e.g. a robots.txt crawl delay
func (l *Limiter) WaitWithDelay(ctx context.Context, rawURL string, additionalDelay time.Duration) error {
	if err := l.Wait(ctx, rawURL); err != nil {
		return err
	}
	return sleepCtx(ctx, additionalDelay)
}

// Penalize pauses all requests to rawURL's host for d. Overlapping penalties
// keep the later deadline.
func (l *Limiter) Penalize(rawURL string, d time.Duration) {
	host, err := extractHost(rawURL)
	if err != nil || d <= 0 {
		return
	}

	until := l.now().Add(d)

	l.mu.Lock()
	defer l.mu.Unlock()
	if until.After(l.cooldowns[host]) {
		l.cooldowns[host] = until
	}
}

// CooldownRemaining reports how long rawURL's host is still paused
func (l *Limiter) CooldownRemaining(rawURL string) time.Duration {
	host, err := extractHost(rawURL)
	if err != nil {
		return 0
	}

	l.mu.RLock()
	until := l.cooldowns[host]
	l.mu.RUnlock()

	if d := until.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

func (l *Limiter) waitCooldown(ctx context.Context, host string) error {
	// Re-check after sleeping; another caller may have extended the penalty
	for {
		l.mu.RLock()
		until := l.cooldowns[host]
		l.mu.RUnlock()

		d := until.Sub(l.now())
		if d <= 0 {
			return nil
		}
		if err := sleepCtx(ctx, d); err != nil {
			return err
		}
	}
}

// getLimiter returns the bucket for a host, creating it on first use
func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = limiter
	return limiter
}

func extractHost(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return parsed.Host, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
