package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/calensync/backend/internal/service/auth"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func TestNewRateLimiter(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	rl := NewRateLimiter(client)
	if rl == nil {
		t.Fatal("Expected non-nil rate limiter")
	}
}

func TestPublicRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.FlushAll()

	rl := NewRateLimiter(client)
	handler := rl.Public(10, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/webhooks/calendar", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, rr.Code)
		}
		if rr.Header().Get("X-RateLimit-Limit") == "" {
			t.Error("missing X-RateLimit-Limit header")
		}
	}
}

func TestPublicRateLimiterBlocksRequestsOverLimit(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.FlushAll()

	rl := NewRateLimiter(client)
	handler := rl.Public(5, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/webhooks/calendar", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	req := httptest.NewRequest("GET", "/webhooks/calendar", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestPublicRateLimiterTracksDifferentIPsSeparately(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.FlushAll()

	rl := NewRateLimiter(client)
	handler := rl.Public(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest("GET", "/", nil)
	req1.RemoteAddr = "1.1.1.1:12345"
	handler.ServeHTTP(httptest.NewRecorder(), req1)
	handler.ServeHTTP(httptest.NewRecorder(), req1) // over limit for 1.1.1.1

	req2 := httptest.NewRequest("GET", "/", nil)
	req2.RemoteAddr = "2.2.2.2:12345"
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)

	if rr2.Code != http.StatusOK {
		t.Errorf("different IP should not be rate limited, got %d", rr2.Code)
	}
}

func TestGeneralRateLimiterKeysByAuthenticatedUser(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.FlushAll()

	rl := NewRateLimiter(client)
	handler := rl.General(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	userID := uuid.New()
	withClaims := func() *http.Request {
		req := httptest.NewRequest("GET", "/api/events", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		ctx := context.WithValue(req.Context(), ClaimsKey, &auth.Claims{UserID: userID})
		return req.WithContext(ctx)
	}

	handler.ServeHTTP(httptest.NewRecorder(), withClaims())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withClaims())

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected second request from same user to be rate limited, got %d", rr.Code)
	}
}

func TestGetIPIdentifier(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		xForwardedFor  string
		xRealIP        string
		expectedPrefix string
	}{
		{name: "simple remote addr", remoteAddr: "192.168.1.1:8080", expectedPrefix: "192.168.1.1"},
		{name: "X-Forwarded-For takes precedence", remoteAddr: "10.0.0.1:8080", xForwardedFor: "203.0.113.50", expectedPrefix: "203.0.113.50"},
		{name: "X-Real-IP takes precedence over RemoteAddr", remoteAddr: "10.0.0.1:8080", xRealIP: "198.51.100.178", expectedPrefix: "198.51.100.178"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			result := getIPIdentifier(req)
			if result != tt.expectedPrefix {
				t.Errorf("expected %q, got %q", tt.expectedPrefix, result)
			}
		})
	}
}

func TestRateLimiterFailsOpenOnRedisFailure(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	rl := NewRateLimiter(client)
	handler := rl.Public(10, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	mr.Close()

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 on Redis failure (fail open), got %d", rr.Code)
	}
}

func TestRateLimitHeadersReflectConfiguredLimit(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.FlushAll()

	rl := NewRateLimiter(client)
	handler := rl.Public(100, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-RateLimit-Limit") != "100" {
		t.Errorf("expected limit 100, got %s", rr.Header().Get("X-RateLimit-Limit"))
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "99" {
		t.Errorf("expected remaining 99, got %s", rr.Header().Get("X-RateLimit-Remaining"))
	}
}
