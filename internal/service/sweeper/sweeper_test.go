package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeOAuthStates struct {
	deleted int64
	err     error
	calls   int
}

func (f *fakeOAuthStates) DeleteExpired(ctx context.Context) (int64, error) {
	f.calls++
	return f.deleted, f.err
}

type fakeCursors struct {
	reset         int64
	err           error
	lastOlderThan time.Duration
}

func (f *fakeCursors) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.lastOlderThan = olderThan
	return f.reset, f.err
}

type fakeWebhooks struct {
	deactivated    int64
	deactivatedErr error
	resetStuck     int64
	resetStuckErr  error
	lastOlderThan  time.Duration
}

func (f *fakeWebhooks) DeactivateExpired(ctx context.Context) (int64, error) {
	return f.deactivated, f.deactivatedErr
}

func (f *fakeWebhooks) ResetStuckSyncs(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.lastOlderThan = olderThan
	return f.resetStuck, f.resetStuckErr
}

func TestRunOnceSweepsAllThreeSurfaces(t *testing.T) {
	oauthStates := &fakeOAuthStates{deleted: 3}
	cursors := &fakeCursors{reset: 1}
	webhooks := &fakeWebhooks{deactivated: 2, resetStuck: 1}
	s := New(oauthStates, cursors, webhooks, Config{StuckSyncAge: 30 * time.Minute})

	s.runOnce(context.Background())

	if oauthStates.calls != 1 {
		t.Fatalf("expected DeleteExpired to be called once, got %d", oauthStates.calls)
	}
	if cursors.lastOlderThan != 30*time.Minute {
		t.Fatalf("expected ResetStuck called with configured stuck age, got %s", cursors.lastOlderThan)
	}
	if webhooks.lastOlderThan != 30*time.Minute {
		t.Fatalf("expected ResetStuckSyncs called with configured stuck age, got %s", webhooks.lastOlderThan)
	}
}

func TestRunOnceContinuesPastIndividualFailures(t *testing.T) {
	oauthStates := &fakeOAuthStates{err: errors.New("db unavailable")}
	cursors := &fakeCursors{err: errors.New("db unavailable")}
	webhooks := &fakeWebhooks{deactivatedErr: errors.New("db unavailable"), resetStuckErr: errors.New("db unavailable")}
	s := New(oauthStates, cursors, webhooks, Config{})

	// Must not panic despite every repository failing.
	s.runOnce(context.Background())

	if oauthStates.calls != 1 {
		t.Fatalf("expected the sweep to still call every repository once, got %d calls to DeleteExpired", oauthStates.calls)
	}
}

func TestNewAppliesDefaultsForZeroConfig(t *testing.T) {
	s := New(&fakeOAuthStates{}, &fakeCursors{}, &fakeWebhooks{}, Config{})
	if s.interval != 10*time.Minute {
		t.Fatalf("expected default interval of 10m, got %s", s.interval)
	}
	if s.stuckAge != StuckSyncAge {
		t.Fatalf("expected default stuck age of %s, got %s", StuckSyncAge, s.stuckAge)
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	s := New(&fakeOAuthStates{}, &fakeCursors{}, &fakeWebhooks{}, Config{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
