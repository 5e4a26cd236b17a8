package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/pkg/retry"
	"github.com/calensync/backend/internal/service/calendarapi"
	"github.com/calensync/backend/internal/service/calendarapi/calendarapitest"
)

type fakeCursorStore struct {
	cursor           *model.SyncCursor
	startCalls       int
	completeSuccess  *struct {
		nextSyncToken     string
		fullSyncCompleted bool
	}
	completeFailureMsg string
}

func newFakeCursorStore(cursor model.SyncCursor) *fakeCursorStore {
	return &fakeCursorStore{cursor: &cursor}
}

func (s *fakeCursorStore) GetByUser(ctx context.Context, userID uuid.UUID) (*model.SyncCursor, error) {
	cp := *s.cursor
	return &cp, nil
}

func (s *fakeCursorStore) EnsureExists(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (s *fakeCursorStore) TryStart(ctx context.Context, userID uuid.UUID) (bool, error) {
	s.startCalls++
	if s.cursor.SyncInProgress {
		return false, nil
	}
	s.cursor.SyncInProgress = true
	return true, nil
}

func (s *fakeCursorStore) CompleteSuccess(ctx context.Context, userID uuid.UUID, nextSyncToken string, fullSyncCompleted bool) error {
	s.completeSuccess = &struct {
		nextSyncToken     string
		fullSyncCompleted bool
	}{nextSyncToken, fullSyncCompleted}
	s.cursor.SyncInProgress = false
	s.cursor.NextSyncToken = nextSyncToken
	s.cursor.FullSyncCompleted = s.cursor.FullSyncCompleted || fullSyncCompleted
	return nil
}

func (s *fakeCursorStore) CompleteFailure(ctx context.Context, userID uuid.UUID, errMsg string) error {
	s.completeFailureMsg = errMsg
	s.cursor.SyncInProgress = false
	return nil
}

type fakeEventStore struct {
	byUpstreamID map[string]*model.Event
	upsertCalls  int
	deleteCalls  int
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{byUpstreamID: map[string]*model.Event{}}
}

func (s *fakeEventStore) UpsertByUpstream(ctx context.Context, e *model.Event) (uuid.UUID, error) {
	s.upsertCalls++
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	s.byUpstreamID[*e.UpstreamEventID] = &cp
	return e.ID, nil
}

func (s *fakeEventStore) DeleteByUpstreamID(ctx context.Context, userID uuid.UUID, upstreamEventID string) (bool, error) {
	s.deleteCalls++
	_, existed := s.byUpstreamID[upstreamEventID]
	delete(s.byUpstreamID, upstreamEventID)
	return existed, nil
}

func (s *fakeEventStore) GetByUpstreamID(ctx context.Context, userID uuid.UUID, upstreamEventID string) (*model.Event, error) {
	e, ok := s.byUpstreamID[upstreamEventID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return e, nil
}

type fakeCredentialSource struct {
	token string
	err   error
}

func (f *fakeCredentialSource) EnsureValid(ctx context.Context, userID uuid.UUID) (string, error) {
	return f.token, f.err
}

func upstreamEvent(id string, lastModified time.Time) model.Event {
	return model.Event{
		UpstreamEventID: &id,
		Title:           "event " + id,
		Status:          model.EventStatusConfirmed,
		LastModified:    lastModified,
	}
}

func TestRunFailsWhenAlreadyInProgress(t *testing.T) {
	cursors := newFakeCursorStore(model.SyncCursor{SyncInProgress: true})
	events := newFakeEventStore()
	client := &calendarapitest.Fake{}
	creds := &fakeCredentialSource{token: "access-1"}
	e := NewEngine(cursors, events, client, creds, retry.NewExecutor())

	_, err := e.Run(context.Background(), uuid.New(), Options{})
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.SyncAlreadyRunning {
		t.Errorf("expected SyncAlreadyRunning kind, got %v", err)
	}
}

func TestRunPicksFullSyncWhenNoCursorYet(t *testing.T) {
	cursors := newFakeCursorStore(model.SyncCursor{})
	events := newFakeEventStore()
	fullCalled := false
	client := &calendarapitest.Fake{
		FullSyncFunc: func(ctx context.Context, creds calendarapi.Credentials, timeMin, timeMax *time.Time, maxResults int) (*calendarapi.FetchResult, error) {
			fullCalled = true
			return &calendarapi.FetchResult{NextSyncToken: "token-1"}, nil
		},
		IncrementalFunc: func(ctx context.Context, creds calendarapi.Credentials, syncToken string, maxResults int) (*calendarapi.FetchResult, error) {
			t.Fatal("incremental sync should not be called when no cursor exists")
			return nil, nil
		},
	}
	creds := &fakeCredentialSource{token: "access-1"}
	e := NewEngine(cursors, events, client, creds, retry.NewExecutor())

	result, err := e.Run(context.Background(), uuid.New(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !fullCalled {
		t.Error("expected FullSync to be called")
	}
	if result.Mode != model.SyncModeFull {
		t.Errorf("Mode = %v, want full", result.Mode)
	}
	if cursors.cursor.NextSyncToken != "token-1" {
		t.Errorf("NextSyncToken = %q, want token-1", cursors.cursor.NextSyncToken)
	}
}

func TestRunUsesIncrementalWhenCursorReady(t *testing.T) {
	cursors := newFakeCursorStore(model.SyncCursor{NextSyncToken: "existing-token", FullSyncCompleted: true})
	events := newFakeEventStore()
	incrementalCalled := false
	client := &calendarapitest.Fake{
		IncrementalFunc: func(ctx context.Context, creds calendarapi.Credentials, syncToken string, maxResults int) (*calendarapi.FetchResult, error) {
			incrementalCalled = true
			if syncToken != "existing-token" {
				t.Errorf("syncToken = %q, want existing-token", syncToken)
			}
			return &calendarapi.FetchResult{NextSyncToken: "next-token"}, nil
		},
	}
	creds := &fakeCredentialSource{token: "access-1"}
	e := NewEngine(cursors, events, client, creds, retry.NewExecutor())

	result, err := e.Run(context.Background(), uuid.New(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !incrementalCalled {
		t.Error("expected IncrementalSync to be called")
	}
	if result.Mode != model.SyncModeIncremental {
		t.Errorf("Mode = %v, want incremental", result.Mode)
	}
}

func TestRunFallsBackToFullSyncOnCursorInvalidation(t *testing.T) {
	cursors := newFakeCursorStore(model.SyncCursor{NextSyncToken: "stale-token", FullSyncCompleted: true})
	events := newFakeEventStore()
	fullCalled := false
	client := &calendarapitest.Fake{
		IncrementalFunc: func(ctx context.Context, creds calendarapi.Credentials, syncToken string, maxResults int) (*calendarapi.FetchResult, error) {
			return &calendarapi.FetchResult{FullSyncRequired: true}, nil
		},
		FullSyncFunc: func(ctx context.Context, creds calendarapi.Credentials, timeMin, timeMax *time.Time, maxResults int) (*calendarapi.FetchResult, error) {
			fullCalled = true
			return &calendarapi.FetchResult{NextSyncToken: "fresh-token"}, nil
		},
	}
	creds := &fakeCredentialSource{token: "access-1"}
	e := NewEngine(cursors, events, client, creds, retry.NewExecutor())

	result, err := e.Run(context.Background(), uuid.New(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !fullCalled {
		t.Error("expected fallback to FullSync after cursor invalidation")
	}
	if result.Mode != model.SyncModeFull {
		t.Errorf("Mode = %v, want full", result.Mode)
	}
}

func TestApplyItemsCreatesUpdatesAndDeletes(t *testing.T) {
	cursors := newFakeCursorStore(model.SyncCursor{})
	events := newFakeEventStore()
	existingID := "evt-existing"
	events.byUpstreamID[existingID] = &model.Event{
		UpstreamEventID: &existingID,
		Title:           "old title",
		LastModified:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	toDeleteID := "evt-to-delete"
	events.byUpstreamID[toDeleteID] = &model.Event{UpstreamEventID: &toDeleteID}

	newID := "evt-new"
	staleUpdateID := "evt-stale-update"
	events.byUpstreamID[staleUpdateID] = &model.Event{
		UpstreamEventID: &staleUpdateID,
		Title:           "unchanged",
		LastModified:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	items := []model.Event{
		upstreamEvent(newID, time.Now()),
		upstreamEvent(existingID, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		{UpstreamEventID: &toDeleteID, Status: model.EventStatusCancelled},
		upstreamEvent(staleUpdateID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	client := &calendarapitest.Fake{
		FullSyncFunc: func(ctx context.Context, creds calendarapi.Credentials, timeMin, timeMax *time.Time, maxResults int) (*calendarapi.FetchResult, error) {
			return &calendarapi.FetchResult{Events: items, NextSyncToken: "token-x"}, nil
		},
	}
	creds := &fakeCredentialSource{token: "access-1"}
	e := NewEngine(cursors, events, client, creds, retry.NewExecutor())

	result, err := e.Run(context.Background(), uuid.New(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Processed != 4 {
		t.Errorf("Processed = %d, want 4", result.Processed)
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1", result.Created)
	}
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if _, stillThere := events.byUpstreamID[toDeleteID]; stillThere {
		t.Error("expected cancelled event to be deleted")
	}
	if events.byUpstreamID[staleUpdateID].Title != "unchanged" {
		t.Error("expected stale-dated update to be skipped")
	}
}

func TestRunThreadsWindowAndMaxResultsToFullSync(t *testing.T) {
	cursors := newFakeCursorStore(model.SyncCursor{})
	events := newFakeEventStore()
	min := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var gotMin, gotMax *time.Time
	var gotMaxResults int
	client := &calendarapitest.Fake{
		FullSyncFunc: func(ctx context.Context, creds calendarapi.Credentials, timeMin, timeMax *time.Time, maxResults int) (*calendarapi.FetchResult, error) {
			gotMin, gotMax = timeMin, timeMax
			gotMaxResults = maxResults
			return &calendarapi.FetchResult{NextSyncToken: "token-1"}, nil
		},
	}
	creds := &fakeCredentialSource{token: "access-1"}
	e := NewEngine(cursors, events, client, creds, retry.NewExecutor())

	_, err := e.Run(context.Background(), uuid.New(), Options{TimeMin: &min, TimeMax: &max, MaxResults: 25})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotMin == nil || !gotMin.Equal(min) {
		t.Errorf("TimeMin = %v, want %v", gotMin, min)
	}
	if gotMax == nil || !gotMax.Equal(max) {
		t.Errorf("TimeMax = %v, want %v", gotMax, max)
	}
	if gotMaxResults != 25 {
		t.Errorf("MaxResults = %d, want 25", gotMaxResults)
	}
}

func TestRunRecordsFailureOnUpstreamError(t *testing.T) {
	cursors := newFakeCursorStore(model.SyncCursor{})
	events := newFakeEventStore()
	client := &calendarapitest.Fake{
		FullSyncFunc: func(ctx context.Context, creds calendarapi.Credentials, timeMin, timeMax *time.Time, maxResults int) (*calendarapi.FetchResult, error) {
			return nil, apperr.New(apperr.UpstreamAuth, "token invalid")
		},
	}
	creds := &fakeCredentialSource{token: "access-1"}
	e := NewEngine(cursors, events, client, creds, retry.NewExecutor())

	_, err := e.Run(context.Background(), uuid.New(), Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if cursors.completeFailureMsg == "" {
		t.Error("expected CompleteFailure to be recorded")
	}
	if cursors.cursor.SyncInProgress {
		t.Error("expected sync-in-progress to be released after failure")
	}
}
