package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Counter is the injected store behind the rate limiter. The Redis cache
// implements it in production so limits survive restarts and are shared
// across instances; tests and Redis-less deployments use the in-memory
// cache.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type RateLimiter struct {
	limit   int
	window  time.Duration
	counter Counter
}

func NewRateLimiter(limit int, window time.Duration, counter Counter) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		counter: counter,
	}
}

// Allow uses fixed windows keyed by the window index, so a key's budget
// resets at window boundaries. A counter error fails open: losing the
// limiter store must not take the public forms down with it.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	windowIdx := time.Now().UnixMilli() / rl.window.Milliseconds()
	bucketKey := "ratelimit:" + key + ":" + strconv.FormatInt(windowIdx, 10)

	count, err := rl.counter.Incr(ctx, bucketKey, rl.window)
	if err != nil {
		return true
	}
	return count <= int64(rl.limit)
}

// clientIP reads RemoteAddr only. chi's RealIP middleware runs earlier in
// the chain and rewrites RemoteAddr from trusted proxy headers, so honoring
// X-Forwarded-For here would let callers pick their own limiter key.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r) + ":" + r.URL.Path
		if !rl.Allow(r.Context(), key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests, please try again later"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
