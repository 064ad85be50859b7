package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window. Zero disables the
	// limiter.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health checks.
	Skip func(*http.Request) bool
}

// window counts requests in the current and previous fixed windows; the
// sliding estimate weights the previous count by its remaining overlap.
type window struct {
	start     time.Time
	count     float64
	prevCount float64
}

type limiter struct {
	max     int
	size    time.Duration
	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(limit int, size time.Duration) *limiter {
	return &limiter{max: limit, size: size, clients: make(map[string]*window)}
}

// take registers one request for key at now. It reports whether the request
// fits the limit, how many remain and when the current window ends.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.clients[key]
	if !found {
		w = &window{start: now.Truncate(l.size)}
		l.clients[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.size {
		if elapsed >= 2*l.size {
			w.prevCount = 0
		} else {
			w.prevCount = w.count
		}
		w.count = 0
		w.start = now.Truncate(l.size)
	}

	overlap := 1 - now.Sub(w.start).Seconds()/l.size.Seconds()
	estimate := w.prevCount*math.Max(overlap, 0) + w.count
	reset = w.start.Add(l.size)
	if estimate >= float64(l.max) {
		return false, 0, reset
	}
	w.count++
	return true, max(l.max-int(math.Ceil(estimate+1)), 0), reset
}

// sweep drops clients idle for two windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.clients, key)
		}
	}
}

// RateLimit limits requests per client. Responses carry X-RateLimit-*
// headers; rejected requests get 429 with the API failure envelope.
// Idle clients are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	l := newLimiter(cfg.Max, cfg.Window)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			now := time.Now()
			ok, remaining, reset := l.take(cfg.KeyFunc(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(max(reset.Sub(now), 0).Seconds()))))
				writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
