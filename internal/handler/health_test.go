package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthReturnsOK(t *testing.T) {
	h := NewHealthHandler(nil, nil, "test")

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	h.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestReadyReportsNotConfiguredWithNilDependencies(t *testing.T) {
	h := NewHealthHandler(nil, nil, "test")

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()
	h.Ready(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 when no dependencies are configured, got %d", rr.Code)
	}
}

func TestInfoReportsConfiguredEnvironment(t *testing.T) {
	h := NewHealthHandler(nil, nil, "production")

	req := httptest.NewRequest("GET", "/api/v1/info", nil)
	rr := httptest.NewRecorder()
	h.Info(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "production") {
		t.Errorf("expected response to mention configured environment, got %s", body)
	}
}
