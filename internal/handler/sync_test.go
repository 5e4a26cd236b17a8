package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/service/sync"
)

func TestSyncTriggerRequiresAuth(t *testing.T) {
	h := NewSyncHandler(&mockSyncRunner{})

	req := httptest.NewRequest("POST", "/calendar/sync", nil)
	rr := httptest.NewRecorder()
	h.Trigger(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestSyncTriggerRunsIncrementalByDefault(t *testing.T) {
	userID := uuid.New()
	var gotOpts sync.Options
	runner := &mockSyncRunner{
		RunFunc: func(ctx context.Context, uid uuid.UUID, opts sync.Options) (*model.SyncResult, error) {
			gotOpts = opts
			return &model.SyncResult{Success: true, Processed: 3}, nil
		},
	}
	h := NewSyncHandler(runner)

	req := authedRequest("POST", "/calendar/sync", nil, userID)
	rr := httptest.NewRecorder()
	h.Trigger(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotOpts.ForceFullSync {
		t.Error("expected Trigger not to force a full sync")
	}
}

func TestSyncTriggerPropagatesAlreadyRunning(t *testing.T) {
	userID := uuid.New()
	runner := &mockSyncRunner{
		RunFunc: func(ctx context.Context, uid uuid.UUID, opts sync.Options) (*model.SyncResult, error) {
			return nil, apperr.New(apperr.SyncAlreadyRunning, "sync already running")
		},
	}
	h := NewSyncHandler(runner)

	req := authedRequest("POST", "/calendar/sync", nil, userID)
	rr := httptest.NewRecorder()
	h.Trigger(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rr.Code)
	}
}

func TestBatchSyncForcesFullSync(t *testing.T) {
	userID := uuid.New()
	var gotOpts sync.Options
	runner := &mockSyncRunner{
		RunFunc: func(ctx context.Context, uid uuid.UUID, opts sync.Options) (*model.SyncResult, error) {
			gotOpts = opts
			return &model.SyncResult{Success: true}, nil
		},
	}
	h := NewSyncHandler(runner)

	req := authedRequest("POST", "/calendar/batch-sync", bytes.NewBufferString(`{"startDate":"2024-01-01T00:00:00Z"}`), userID)
	rr := httptest.NewRecorder()
	h.BatchSync(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !gotOpts.ForceFullSync {
		t.Error("expected BatchSync to force a full sync")
	}
	if gotOpts.TimeMin == nil {
		t.Error("expected TimeMin to be carried from the request body")
	}
}

func TestBatchSyncWithoutBody(t *testing.T) {
	userID := uuid.New()
	runner := &mockSyncRunner{
		RunFunc: func(ctx context.Context, uid uuid.UUID, opts sync.Options) (*model.SyncResult, error) {
			return &model.SyncResult{Success: true}, nil
		},
	}
	h := NewSyncHandler(runner)

	req := authedRequest("POST", "/calendar/batch-sync", nil, userID)
	rr := httptest.NewRecorder()
	h.BatchSync(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBatchSyncInvalidBody(t *testing.T) {
	userID := uuid.New()
	h := NewSyncHandler(&mockSyncRunner{})

	req := authedRequest("POST", "/calendar/batch-sync", bytes.NewBufferString(`not json`), userID)
	rr := httptest.NewRecorder()
	h.BatchSync(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}
