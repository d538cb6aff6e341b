package httptransport

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// ErrRateLimited is returned instead of sending a request that would exceed
// the configured budget.
var ErrRateLimited = errors.New("client rate limit exceeded")

// RateLimitConfig configures the sliding window limiter for outgoing
// requests.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	// Zero disables limiting.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, method and path are used.
	KeyFunc func(*http.Request) string
}

// entry tracks request counts across two adjacent windows for the sliding
// window algorithm.
type entry struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

type rateLimiter struct {
	cfg     RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*entry
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = defaultKeyFunc
	}
	return &rateLimiter{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// allow reports whether a request for key may be sent now and records it
// when it may.
func (rl *rateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok {
		e = &entry{currStart: now}
		rl.entries[key] = e
	}

	if since := now.Sub(e.currStart); since >= rl.cfg.Window {
		e.prevCount = e.currCount
		// If even the previous window is stale, zero it out.
		if since >= 2*rl.cfg.Window {
			e.prevCount = 0
		}
		e.currCount = 0
		e.currStart = now.Truncate(rl.cfg.Window)
	}

	// Weight the previous window by how much of it still overlaps.
	overlap := 1.0 - now.Sub(e.currStart).Seconds()/rl.cfg.Window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	if e.prevCount*overlap+e.currCount >= float64(rl.cfg.Max) {
		return false
	}
	e.currCount++
	return true
}

// RateLimit returns a middleware that keeps outgoing requests within a
// per-key sliding window budget. Requests over budget fail locally with
// ErrRateLimited and never reach the server.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.RoundTripper) http.RoundTripper { return next }
	}
	rl := newRateLimiter(cfg)
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		key := rl.cfg.KeyFunc(req)
		if !rl.allow(key, rl.now()) {
			return nil, errors.Wrapf(ErrRateLimited, "%s", key)
		}
		return next.RoundTrip(req)
	})
}

func defaultKeyFunc(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}
