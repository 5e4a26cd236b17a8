package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/calensync/backend/internal/middleware"
	"github.com/calensync/backend/internal/service/auth"
)

// NewTestRedisClient creates a client against a local redis instance,
// skipping the test if one isn't reachable.
func NewTestRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
		return nil
	}
	return client
}

// GenerateTestUserID creates a random UUID for testing
func GenerateTestUserID() uuid.UUID {
	return uuid.New()
}

// CreateTestRequest creates an HTTP request for testing
func CreateTestRequest(method, path, body string) *http.Request {
	if body != "" {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}
	return httptest.NewRequest(method, path, nil)
}

// CreateAuthenticatedRequest creates an HTTP request carrying session claims
// for userID, as if middleware.Auth had already run.
func CreateAuthenticatedRequest(t *testing.T, method, path, body string, userID uuid.UUID) *http.Request {
	req := CreateTestRequest(method, path, body)

	claims := &auth.Claims{UserID: userID, Email: "test@example.com"}
	ctx := context.WithValue(req.Context(), middleware.ClaimsKey, claims)
	return req.WithContext(ctx)
}

// AssertHTTPStatus checks the response status code
func AssertHTTPStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// AssertContains checks if the response body contains a string
func AssertContains(t *testing.T, rr *httptest.ResponseRecorder, substring string) {
	t.Helper()
	if !strings.Contains(rr.Body.String(), substring) {
		t.Errorf("Expected body to contain %q, got: %s", substring, rr.Body.String())
	}
}
