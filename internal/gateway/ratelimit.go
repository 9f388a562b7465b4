package gateway

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig caps request rates per class. Zero values disable the
// corresponding limit.
type RateLimitConfig struct {
	// SearchesPerMin caps POST /api/search calls.
	SearchesPerMin int `yaml:"searches_per_min"`

	// WritesPerMin caps mutating API calls (memory and reminder writes).
	WritesPerMin int `yaml:"writes_per_min"`
}

// IsConfigured returns true if any limit is set.
func (c RateLimitConfig) IsConfigured() bool {
	return c.SearchesPerMin > 0 || c.WritesPerMin > 0
}

// rateLimiter implements sliding window rate limiting. Each bucket tracks
// timestamps of recent events within its window.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		now:     time.Now,
		buckets: map[string]*bucket{},
	}
	if cfg.SearchesPerMin > 0 {
		rl.buckets["search"] = &bucket{window: time.Minute, limit: cfg.SearchesPerMin}
	}
	if cfg.WritesPerMin > 0 {
		rl.buckets["write"] = &bucket{window: time.Minute, limit: cfg.WritesPerMin}
	}
	return rl
}

// allow checks whether an event of the given kind fits under its limit. An
// unknown kind has no limit configured and always passes.
func (rl *rateLimiter) allow(kind string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return true
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return false
	}

	b.events = append(b.events, now)
	return true
}

// evict removes events outside the sliding window. Events are
// chronologically ordered.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}

// classifyRequest maps a request to its rate-limit bucket. Reads are never
// limited.
func classifyRequest(r *http.Request) string {
	if r.Method == http.MethodGet {
		return ""
	}
	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/search") {
		return "search"
	}
	return "write"
}

// rateLimitMiddleware rejects over-limit requests with 429.
func rateLimitMiddleware(rl *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			kind := classifyRequest(r)
			if kind != "" && !rl.allow(kind) {
				errorJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
