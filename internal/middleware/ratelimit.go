package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Policy names a limiter and its cap per client within a fixed window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	// AuthPolicy caps admin login attempts.
	AuthPolicy = Policy{Name: "auth", Limit: 20, Window: 15 * time.Minute}
	// APIPolicy caps general API calls.
	APIPolicy = Policy{Name: "api", Limit: 120, Window: time.Minute}
)

// RealIP extracts the client's IP address. Forwarding headers are honoured
// only when trustProxy is set, preferring Cloudflare's CF-Connecting-IP,
// then the first X-Forwarded-For entry, and falling back to RemoteAddr.
func RealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
			return ip
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First IP in the chain is the original client
			if i := strings.IndexByte(xff, ','); i > 0 {
				return strings.TrimSpace(xff[:i])
			}
			return strings.TrimSpace(xff)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type entry struct {
	count    int
	windowAt time.Time
}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// sweepInterval is the minimum time between lazy sweeps of lapsed windows.
const sweepInterval = time.Minute

// RateLimiter provides in-memory fixed-window rate limiting keyed by policy
// name and client. A window opens on the first request and only lapses with
// time; denied requests never extend or reset it. Lapsed windows are swept
// from within Check at most once per sweepInterval.
type RateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*entry
	now       func() time.Time
	nextSweep time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	rl.now = now
	rl.nextSweep = time.Time{}
	rl.mu.Unlock()
}

// Len returns the number of tracked windows, lapsed ones included.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Check counts a request from client against policy.
func (rl *RateLimiter) Check(client string, p Policy) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if !now.Before(rl.nextSweep) {
		rl.sweep(now)
		rl.nextSweep = now.Add(sweepInterval)
	}

	key := p.Name + "|" + client
	e, ok := rl.entries[key]
	if !ok || !now.Before(e.windowAt) {
		e = &entry{windowAt: now.Add(p.Window)}
		rl.entries[key] = e
	}
	e.count++

	d := Decision{
		Allowed:   e.count <= p.Limit,
		Limit:     p.Limit,
		Remaining: max(p.Limit-e.count, 0),
	}
	if !d.Allowed {
		d.RetryAfter = e.windowAt.Sub(now)
	}
	return d
}

// Allow returns true if client has not exceeded the policy limit.
func (rl *RateLimiter) Allow(client string, p Policy) bool {
	return rl.Check(client, p).Allowed
}

// Cleanup removes expired entries.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweep(rl.now())
}

func (rl *RateLimiter) sweep(now time.Time) {
	for key, e := range rl.entries {
		if !now.Before(e.windowAt) {
			delete(rl.entries, key)
		}
	}
}

// Reset drops all counters.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	clear(rl.entries)
	rl.mu.Unlock()
}

// RateLimit returns middleware that rate-limits requests by a key function.
// Rejected requests get 429 with a Retry-After header and a JSON body.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Check(keyFunc(r), p)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				rateLimitRejects.WithLabelValues(p.Name).Inc()
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error":      "Too many requests, please try again later.",
					"retryAfter": retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
