package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter keeps one token bucket per client. Idle clients are swept and the
// number of tracked clients is capped.
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.RWMutex

	limit     rate.Limit
	burstSize int

	trusted    []netip.Prefix
	maxClients int
	lastSweep  time.Time
	now        func() time.Time
}

// NewRateLimiter creates a new rate limiter. A non-positive rps disables
// limiting. X-Forwarded-For is only read from peers inside trusted.
func NewRateLimiter(rps, burst int, trusted []netip.Prefix) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters:   make(map[string]*clientLimiter),
		limit:      limit,
		burstSize:  burst,
		trusted:    trusted,
		maxClients: defaultMaxClients,
		lastSweep:  time.Now(),
		now:        time.Now,
	}
}

// getLimiter returns the rate limiter for a specific client
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.RLock()
	entry, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if entry, exists := rl.limiters[key]; exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	if now.Sub(rl.lastSweep) >= clientIdleTTL || len(rl.limiters) >= rl.maxClients {
		rl.sweepLocked(now)
	}
	if len(rl.limiters) >= rl.maxClients {
		rl.evictOldestLocked()
	}

	entry = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burstSize)}
	entry.lastSeen.Store(now.UnixNano())
	rl.limiters[key] = entry

	return entry.limiter
}

// sweepLocked drops clients idle for clientIdleTTL
func (rl *RateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-clientIdleTTL).UnixNano()
	for key, entry := range rl.limiters {
		if entry.lastSeen.Load() < cutoff {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) evictOldestLocked() {
	var (
		oldestKey string
		oldest    int64
		found     bool
	)
	for key, entry := range rl.limiters {
		if seen := entry.lastSeen.Load(); !found || seen < oldest {
			oldestKey, oldest, found = key, seen, true
		}
	}
	if found {
		delete(rl.limiters, oldestKey)
	}
}

// clients reports how many clients are tracked
func (rl *RateLimiter) clients() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// clientKey identifies the caller by its remote host. Behind a trusted proxy it
// is the nearest X-Forwarded-For hop that is not itself a trusted proxy.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !rl.isTrusted(host) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			// a forged or garbled hop ends the trusted chain
			return host
		}
		if !rl.isTrusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (rl *RateLimiter) isTrusted(host string) bool {
	if len(rl.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range rl.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.getLimiter(rl.clientKey(r))
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"limit": float64(limiter.Limit()),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
