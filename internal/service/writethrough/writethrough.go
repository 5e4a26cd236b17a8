// Package writethrough mediates every locally-initiated event mutation: it
// calls the upstream calendar before committing the local row, so the
// local replica and the upstream calendar never diverge on a write this
// process issued itself. A failed upstream call means the local
// transaction is rolled back and nothing is persisted; a failed local
// write after a successful upstream call is reported but the upstream
// side effect already happened and is not undone.
package writethrough

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/pkg/database"
	"github.com/calensync/backend/internal/pkg/retry"
	"github.com/calensync/backend/internal/service/calendarapi"
	"github.com/calensync/backend/internal/service/eventstore"
)

// eventRepository is the slice of EventRepository the mediator needs: the
// transaction-scoped writes plus a plain read to fetch the row an update
// or delete targets.
type eventRepository interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (*model.Event, error)
	CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error
	UpdateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error
	DeleteTx(ctx context.Context, tx *sql.Tx, userID, id uuid.UUID) error
}

type credentialSource interface {
	EnsureValid(ctx context.Context, userID uuid.UUID) (string, error)
}

// Mediator is the Write-Through Mediator.
type Mediator struct {
	db       *sql.DB
	events   eventRepository
	client   calendarapi.Client
	tokens   credentialSource
	executor *retry.Executor
}

// NewMediator builds a Write-Through Mediator. db is the same pool the
// repository was constructed against; WithTransaction opens its
// transactions directly on it so the upstream call and the local write
// it guards share one commit/rollback boundary.
func NewMediator(db *sql.DB, events eventRepository, client calendarapi.Client, tokens credentialSource, executor *retry.Executor) *Mediator {
	return &Mediator{db: db, events: events, client: client, tokens: tokens, executor: executor}
}

func (m *Mediator) credentials(ctx context.Context, userID uuid.UUID) (calendarapi.Credentials, error) {
	accessToken, err := m.tokens.EnsureValid(ctx, userID)
	if err != nil {
		return calendarapi.Credentials{}, err
	}
	return calendarapi.Credentials{AccessToken: accessToken}, nil
}

// CreateEvent validates e, creates it upstream, and persists the upstream
// response locally in the same transaction.
func (m *Mediator) CreateEvent(ctx context.Context, userID uuid.UUID, e *model.Event) (*model.Event, error) {
	e.ID = uuid.New()
	e.UserID = userID
	if e.Source == "" {
		e.Source = model.EventSourceManual
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.LastModified = now

	if err := e.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "validate event", err)
	}

	creds, err := m.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	txErr := database.WithTransaction(ctx, m.db, func(tx *sql.Tx) error {
		var upstream *model.Event
		err := m.executor.Execute(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
			var execErr error
			upstream, execErr = m.client.CreateEvent(ctx, creds, e)
			return execErr
		})
		if err != nil {
			return err
		}

		e.UpstreamEventID = upstream.UpstreamEventID
		if !upstream.LastModified.IsZero() {
			e.LastModified = upstream.LastModified
		}

		if err := m.events.CreateTx(ctx, tx, e); err != nil {
			return apperr.Wrap(apperr.Internal, "persist created event", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return e, nil
}

// UpdateEvent merges patch over the row owned by userID, pushes the
// complete merged representation upstream, and commits the merge locally
// only once the upstream call succeeds.
func (m *Mediator) UpdateEvent(ctx context.Context, userID, id uuid.UUID, patch eventstore.Patch) (*model.Event, error) {
	existing, err := m.events.GetByID(ctx, userID, id)
	if err != nil {
		if err == model.ErrNotFound {
			return nil, apperr.New(apperr.NotFound, "event not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "get event", err)
	}

	applyPatch(existing, patch)
	if err := existing.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "validate event", err)
	}
	if existing.UpstreamEventID == nil {
		return nil, apperr.New(apperr.Validation, "event has no upstream counterpart to update")
	}

	creds, err := m.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	txErr := database.WithTransaction(ctx, m.db, func(tx *sql.Tx) error {
		var upstream *model.Event
		err := m.executor.Execute(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
			var execErr error
			upstream, execErr = m.client.UpdateEvent(ctx, creds, *existing.UpstreamEventID, existing)
			return execErr
		})
		if err != nil {
			return err
		}

		if !upstream.LastModified.IsZero() {
			existing.LastModified = upstream.LastModified
		}

		if err := m.events.UpdateTx(ctx, tx, existing); err != nil {
			if err == model.ErrNotFound {
				return apperr.New(apperr.NotFound, "event not found")
			}
			return apperr.Wrap(apperr.Internal, "persist updated event", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return existing, nil
}

// DeleteEvent cancels the upstream event (a 404/410 from the provider is
// treated as success by the calendarapi.Client implementation) and then
// removes the local row in the same transaction. An event never synced
// upstream skips the upstream call entirely.
func (m *Mediator) DeleteEvent(ctx context.Context, userID, id uuid.UUID) error {
	existing, err := m.events.GetByID(ctx, userID, id)
	if err != nil {
		if err == model.ErrNotFound {
			return apperr.New(apperr.NotFound, "event not found")
		}
		return apperr.Wrap(apperr.Internal, "get event", err)
	}

	creds, err := m.credentials(ctx, userID)
	if err != nil {
		return err
	}

	return database.WithTransaction(ctx, m.db, func(tx *sql.Tx) error {
		if existing.UpstreamEventID != nil {
			err := m.executor.Execute(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
				return m.client.DeleteEvent(ctx, creds, *existing.UpstreamEventID)
			})
			if err != nil {
				return err
			}
		}

		if err := m.events.DeleteTx(ctx, tx, userID, id); err != nil {
			if err == model.ErrNotFound {
				return apperr.New(apperr.NotFound, "event not found")
			}
			return apperr.Wrap(apperr.Internal, "delete event", err)
		}
		return nil
	})
}

func applyPatch(e *model.Event, patch eventstore.Patch) {
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Start != nil {
		e.Start = *patch.Start
	}
	if patch.End != nil {
		e.End = *patch.End
	}
	if patch.Location != nil {
		e.Location = *patch.Location
	}
	if patch.Attendees != nil {
		e.Attendees = *patch.Attendees
	}
	if patch.AllDay != nil {
		e.AllDay = *patch.AllDay
	}
	if patch.Timezone != nil {
		e.Timezone = *patch.Timezone
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
}
