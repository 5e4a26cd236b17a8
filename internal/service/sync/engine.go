// Package sync is the centerpiece of the calendar core: it reconciles
// upstream calendar state into the local replica, via either a full sync
// (a bounded time-window pagination) or an incremental sync (pagination
// from a server-issued cursor), transparently degrading to full sync when
// the upstream invalidates the cursor.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/pkg/retry"
	"github.com/calensync/backend/internal/service/calendarapi"
)

// cursorStore is the slice of SyncCursorRepository the engine depends on.
type cursorStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.SyncCursor, error)
	EnsureExists(ctx context.Context, userID uuid.UUID) error
	TryStart(ctx context.Context, userID uuid.UUID) (bool, error)
	CompleteSuccess(ctx context.Context, userID uuid.UUID, nextSyncToken string, fullSyncCompleted bool) error
	CompleteFailure(ctx context.Context, userID uuid.UUID, errMsg string) error
}

// eventStore is the slice of EventRepository's upstream-keyed methods the
// engine writes reconciled events through.
type eventStore interface {
	UpsertByUpstream(ctx context.Context, e *model.Event) (uuid.UUID, error)
	DeleteByUpstreamID(ctx context.Context, userID uuid.UUID, upstreamEventID string) (bool, error)
	GetByUpstreamID(ctx context.Context, userID uuid.UUID, upstreamEventID string) (*model.Event, error)
}

// credentialSource supplies live upstream credentials for a user, backed
// by the Token Manager in production.
type credentialSource interface {
	EnsureValid(ctx context.Context, userID uuid.UUID) (string, error)
}

// Engine is the Sync Engine.
type Engine struct {
	cursors  cursorStore
	events   eventStore
	client   calendarapi.Client
	tokens   credentialSource
	executor *retry.Executor
}

// NewEngine builds a Sync Engine.
func NewEngine(cursors cursorStore, events eventStore, client calendarapi.Client, tokens credentialSource, executor *retry.Executor) *Engine {
	return &Engine{cursors: cursors, events: events, client: client, tokens: tokens, executor: executor}
}

// Options customizes a Run: a caller-requested full sync, or an explicit
// time window (full sync only; defaults to the trailing/leading year).
type Options struct {
	ForceFullSync bool
	TimeMin       *time.Time
	TimeMax       *time.Time

	// MaxResults caps the per-page size requested from the upstream client.
	// Zero defers to the client's own default; webhook-triggered syncs pass
	// a small value to keep a notification-driven sync cheap.
	MaxResults int
}

// Run executes one sync pass for userID: it claims sync-in-progress,
// selects full or incremental mode, processes every returned item, and
// releases the cursor with the outcome recorded.
func (e *Engine) Run(ctx context.Context, userID uuid.UUID, opts Options) (*model.SyncResult, error) {
	if err := e.cursors.EnsureExists(ctx, userID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "ensure sync cursor exists", err)
	}

	started, err := e.cursors.TryStart(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "claim sync cursor", err)
	}
	if !started {
		return nil, apperr.New(apperr.SyncAlreadyRunning, "a sync is already running for this user")
	}

	result, runErr := e.run(ctx, userID, opts)
	if runErr != nil {
		if failErr := e.cursors.CompleteFailure(ctx, userID, runErr.Error()); failErr != nil {
			slog.Error("failed to record sync failure", "userId", userID, "error", failErr)
		}
		return nil, runErr
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, userID uuid.UUID, opts Options) (*model.SyncResult, error) {
	cursor, err := e.cursors.GetByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load sync cursor", err)
	}

	mode := model.SyncModeIncremental
	if opts.ForceFullSync || cursor.NextSyncToken == "" || !cursor.FullSyncCompleted {
		mode = model.SyncModeFull
	}

	accessToken, err := e.tokens.EnsureValid(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds := calendarapi.Credentials{AccessToken: accessToken}

	var fetch *calendarapi.FetchResult
	err = e.executor.Execute(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		var execErr error
		if mode == model.SyncModeFull {
			fetch, execErr = e.client.FullSync(ctx, creds, opts.TimeMin, opts.TimeMax, opts.MaxResults)
		} else {
			fetch, execErr = e.client.IncrementalSync(ctx, creds, cursor.NextSyncToken, opts.MaxResults)
		}
		return execErr
	})
	if err != nil {
		return nil, err
	}

	if mode == model.SyncModeIncremental && fetch.FullSyncRequired {
		slog.Info("incremental sync cursor invalidated upstream, falling back to full sync", "userId", userID)
		mode = model.SyncModeFull
		err = e.executor.Execute(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
			var execErr error
			fetch, execErr = e.client.FullSync(ctx, creds, opts.TimeMin, opts.TimeMax, opts.MaxResults)
			return execErr
		})
		if err != nil {
			return nil, err
		}
	}

	result := e.applyItems(ctx, userID, fetch.Events)
	result.Mode = mode
	result.Success = len(result.Errors) == 0

	if err := e.cursors.CompleteSuccess(ctx, userID, fetch.NextSyncToken, mode == model.SyncModeFull); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persist sync cursor", err)
	}

	return result, nil
}

// applyItems processes each upstream event per the per-item contract:
// cancelled events delete the matching local row; everything else is
// inserted if absent, or updated only when the upstream side is strictly
// newer than the local last-modified instant.
func (e *Engine) applyItems(ctx context.Context, userID uuid.UUID, items []model.Event) *model.SyncResult {
	result := &model.SyncResult{}

	for _, item := range items {
		result.Processed++

		if item.UpstreamEventID == nil {
			continue
		}
		upstreamID := *item.UpstreamEventID

		if item.Status == model.EventStatusCancelled {
			deleted, err := e.events.DeleteByUpstreamID(ctx, userID, upstreamID)
			if err != nil {
				result.Errors = append(result.Errors, itemError(upstreamID, err))
				continue
			}
			if deleted {
				result.Deleted++
			}
			continue
		}

		existing, err := e.events.GetByUpstreamID(ctx, userID, upstreamID)
		if err != nil && err != model.ErrNotFound {
			result.Errors = append(result.Errors, itemError(upstreamID, err))
			continue
		}

		item.UserID = userID
		item.Source = model.EventSourceUpstream

		if existing == nil {
			if _, err := e.events.UpsertByUpstream(ctx, &item); err != nil {
				result.Errors = append(result.Errors, itemError(upstreamID, err))
				continue
			}
			result.Created++
			continue
		}

		if !item.LastModified.After(existing.LastModified) {
			continue
		}

		if _, err := e.events.UpsertByUpstream(ctx, &item); err != nil {
			result.Errors = append(result.Errors, itemError(upstreamID, err))
			continue
		}
		result.Updated++
	}

	return result
}

func itemError(upstreamEventID string, err error) model.ItemError {
	kind := string(apperr.KindOf(err))
	return model.ItemError{UpstreamEventID: upstreamEventID, Kind: kind, Message: err.Error()}
}
