package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/pkg/response"
)

// RateLimiter provides fixed-window inbound rate limiting backed by Redis.
type RateLimiter struct {
	redis *redis.Client
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis: redisClient,
	}
}

// RateLimitConfig defines rate limit parameters.
type RateLimitConfig struct {
	MaxRequests int           // Maximum requests allowed
	Window      time.Duration // Time window
	KeyPrefix   string        // Redis key prefix
}

// Public rate limits unauthenticated endpoints (webhook callbacks, OAuth
// entry points) by caller IP.
func (rl *RateLimiter) Public(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	config := RateLimitConfig{MaxRequests: maxRequests, Window: window, KeyPrefix: "ratelimit:public"}
	return rl.limit(config, getIPIdentifier)
}

// General rate limits authenticated API endpoints by user.
func (rl *RateLimiter) General(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	config := RateLimitConfig{MaxRequests: maxRequests, Window: window, KeyPrefix: "ratelimit:general"}
	return rl.limit(config, getUserIdentifier)
}

// SyncTrigger rate limits the manual sync-trigger endpoint more tightly
// than general traffic, since it always costs at least one upstream call.
func (rl *RateLimiter) SyncTrigger() func(http.Handler) http.Handler {
	config := RateLimitConfig{MaxRequests: 10, Window: time.Minute, KeyPrefix: "ratelimit:sync-trigger"}
	return rl.limit(config, getUserIdentifier)
}

// limit is the core rate limiting middleware.
func (rl *RateLimiter) limit(config RateLimitConfig, identifierFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identifier := identifierFunc(r)

			key := fmt.Sprintf("%s:%s", config.KeyPrefix, identifier)

			count, err := rl.redis.Get(ctx, key).Int()
			if err != nil && err != redis.Nil {
				// Redis unavailable: fail open rather than block traffic on it.
				next.ServeHTTP(w, r)
				return
			}

			if count >= config.MaxRequests {
				ttl, _ := rl.redis.TTL(ctx, key).Result()
				retryAfter := int(ttl.Seconds())
				if retryAfter <= 0 {
					retryAfter = int(config.Window.Seconds())
				}

				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				err := apperr.New(apperr.RateLimited, "rate limit exceeded").
					WithDetail(fmt.Sprintf("retry in %d seconds", retryAfter))
				response.Error(w, err, r.URL.Path)
				return
			}

			pipe := rl.redis.Pipeline()
			pipe.Incr(ctx, key)
			if count == 0 {
				pipe.Expire(ctx, key, config.Window)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			remaining := config.MaxRequests - count - 1
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

			next.ServeHTTP(w, r)
		})
	}
}

// getIPIdentifier extracts the caller's IP address from the request.
func getIPIdentifier(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// getUserIdentifier extracts the authenticated user ID from context, set
// by the Auth middleware; falls back to IP for requests without a session.
func getUserIdentifier(r *http.Request) string {
	if claims := GetClaims(r.Context()); claims != nil {
		return "user:" + claims.UserID.String()
	}
	return "ip:" + getIPIdentifier(r)
}
