package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chapterdesk/chapterdesk-server/internal/http/response"
	"github.com/chapterdesk/chapterdesk-server/internal/ratelimit"
)

// RateLimiter wraps KeyedRateLimiter for API use.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a limiter allowing ratePerInterval requests per
// interval for each client, e.g. 6 uploads per minute.
func NewRateLimiter(ratePerInterval int, interval time.Duration, burst int) *RateLimiter {
	return ratelimit.PerInterval(ratePerInterval, interval, burst)
}

// RateLimitMiddleware creates a middleware that rate limits requests by IP.
// Returns 429 Too Many Requests when limit is exceeded.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				response.TooManyRequests(w, "Too many requests. Please try again later.", logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
// chi's RealIP middleware has already folded X-Forwarded-For and X-Real-IP
// into RemoteAddr, so only the port needs stripping.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
