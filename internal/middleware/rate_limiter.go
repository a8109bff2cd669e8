package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateKey names the budget of one action for the client behind r, so that login
// attempts and refreshes from one address are counted separately.
func RateKey(r *http.Request, scope string) string {
	ip := ClientIP(r)
	if scope == "" {
		return ip
	}
	return scope + ":" + ip
}

// ClientIP returns the first X-Forwarded-For hop, falling back to the host of the
// remote address.
func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	return remote
}

type bucket struct {
	tokens  *rate.Limiter
	touched time.Time
}

// IPRateLimiter is the in-process RateLimiter: a token bucket per key, refilled at
// requests per window. Buckets left idle for longer than idle are dropped.
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	refill  rate.Limit
	burst   int
	idle    time.Duration
	clock   func() time.Time
}

// NewIPRateLimiter builds an in-process limiter. Non-positive arguments fall back
// to one request per second, a burst of one and five idle minutes.
func NewIPRateLimiter(requests int, window time.Duration, burst int, idle time.Duration) *IPRateLimiter {
	if window <= 0 {
		window = time.Second
	}
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &IPRateLimiter{
		buckets: make(map[string]*bucket),
		refill:  rate.Every(window / time.Duration(max(requests, 1))),
		burst:   max(burst, 1),
		idle:    idle,
		clock:   time.Now,
	}
}

// Allow spends one token of key's bucket.
func (l *IPRateLimiter) Allow(_ context.Context, key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	for k, b := range l.buckets {
		if now.Sub(b.touched) > l.idle {
			delete(l.buckets, k)
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.refill, l.burst)}
		l.buckets[key] = b
	}
	b.touched = now
	return b.tokens.AllowN(now, 1)
}

// SetClock replaces the time source.
func (l *IPRateLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = now
}
