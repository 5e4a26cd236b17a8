// Package sweeper runs the background maintenance pass that keeps
// long-lived state from accumulating or getting stuck: expired OAuth CSRF
// states, expired webhook channels, and sync-in-progress markers left
// behind by a process that died mid-sync. It is the sync core's analogue
// of a periodic garbage collector, grounded on the same ticker-driven
// worker shape as other background services in this codebase.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// StuckSyncAge bounds how long a sync-in-progress marker may persist
// before the sweeper considers the owning process dead and resets it.
const StuckSyncAge = time.Hour

type oauthStateRepository interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type syncCursorRepository interface {
	ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

type webhookSubscriptionRepository interface {
	DeactivateExpired(ctx context.Context) (int64, error)
	ResetStuckSyncs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config holds the sweeper's tunables.
type Config struct {
	Interval     time.Duration
	StuckSyncAge time.Duration
}

// Sweeper is the background maintenance worker.
type Sweeper struct {
	oauthStates oauthStateRepository
	cursors     syncCursorRepository
	webhooks    webhookSubscriptionRepository
	interval    time.Duration
	stuckAge    time.Duration
}

// New builds a Sweeper. Zero-valued Config fields fall back to sane
// defaults.
func New(oauthStates oauthStateRepository, cursors syncCursorRepository, webhooks webhookSubscriptionRepository, cfg Config) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.StuckSyncAge == 0 {
		cfg.StuckSyncAge = StuckSyncAge
	}
	return &Sweeper{
		oauthStates: oauthStates,
		cursors:     cursors,
		webhooks:    webhooks,
		interval:    cfg.Interval,
		stuckAge:    cfg.StuckSyncAge,
	}
}

// Run blocks, running one pass immediately and then one per interval,
// until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("sweeper starting", "interval", s.interval, "stuckSyncAge", s.stuckAge)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("sweeper stopping")
			return
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if n, err := s.oauthStates.DeleteExpired(ctx); err != nil {
		slog.Error("sweeper: failed to delete expired oauth states", "error", err)
	} else if n > 0 {
		slog.Info("sweeper: deleted expired oauth states", "count", n)
	}

	if n, err := s.cursors.ResetStuck(ctx, s.stuckAge); err != nil {
		slog.Error("sweeper: failed to reset stuck sync cursors", "error", err)
	} else if n > 0 {
		slog.Warn("sweeper: reset stuck sync cursors", "count", n)
	}

	if n, err := s.webhooks.DeactivateExpired(ctx); err != nil {
		slog.Error("sweeper: failed to deactivate expired webhook subscriptions", "error", err)
	} else if n > 0 {
		slog.Info("sweeper: deactivated expired webhook subscriptions", "count", n)
	}

	if n, err := s.webhooks.ResetStuckSyncs(ctx, s.stuckAge); err != nil {
		slog.Error("sweeper: failed to reset stuck webhook syncs", "error", err)
	} else if n > 0 {
		slog.Warn("sweeper: reset stuck webhook syncs", "count", n)
	}
}
