/*
Package limiter provides rate limiting keyed by client IP address.

It uses the token bucket algorithm (rate.Limiter) per IP and runs a cleanup goroutine
that forgets idle addresses so the map does not grow without bound.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"strangerchat/internal/pkg/errs"
	"strangerchat/internal/pkg/logx"
	"strangerchat/internal/pkg/resp"
)

// cleanupInterval is how often idle limiters are swept.
const cleanupInterval = 3 * time.Minute

// IPRateLimiter implements a concurrency-safe rate limiter keyed by client IP address.
type IPRateLimiter struct {
	// mu protects concurrent access to the limits map.
	mu sync.RWMutex

	// limits maps a client IP address to its token bucket.
	limits map[string]*rate.Limiter

	// r is the number of events allowed per second.
	r rate.Limit

	// b is the burst size of each bucket.
	b int
}

// NewIPRateLimiter creates an IPRateLimiter and starts its cleanup goroutine,
// which runs until ctx is cancelled.
func NewIPRateLimiter(ctx context.Context, r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.cleanUpVisitors(ctx)

	return i
}

// GetLimiter returns the limiter for ip, creating it on first use (double-checked locking).
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// Allow reports whether a request from ip may proceed now.
func (i *IPRateLimiter) Allow(ip string) bool {
	return i.GetLimiter(ip).Allow()
}

// Len returns the number of tracked addresses.
func (i *IPRateLimiter) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.limits)
}

// sweep drops every limiter whose bucket has refilled completely.
func (i *IPRateLimiter) sweep(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	count := 0
	for ip, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, ip)
			count++
		}
	}
	return count
}

func (i *IPRateLimiter) cleanUpVisitors(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := i.sweep(now)
			logx.Logger().Debug().
				Int("removed", removed).
				Int("remaining", i.Len()).
				Msg("Rate limiter cleanup finished.")
		}
	}
}

// ClientIP extracts the host part of r.RemoteAddr. chi's RealIP middleware has
// already rewritten RemoteAddr when a trusted proxy header is present.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if ip == "" {
		ip = "unknown_ip"
	}

	return ip
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if !i.Allow(ip) {
			logx.Warn("Request rejected: rate limit exceeded.", "ip", ip, "path", r.URL.Path)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
