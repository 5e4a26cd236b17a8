// Package eventstore is the local replica's query and mutation facade: it
// enforces ownership scoping and Event's validation invariants in front of
// the raw repository, and implements the sparse-update merge the API
// contract promises callers.
package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
)

// repository is the slice of EventRepository the facade depends on.
type repository interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context, userID uuid.UUID, filter model.EventFilter) (*model.EventPage, error)
	Update(ctx context.Context, e *model.Event) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	UpsertByUpstream(ctx context.Context, e *model.Event) (uuid.UUID, error)
}

// Store is the Event Store Facade.
type Store struct {
	repo repository
}

// NewStore builds an Event Store Facade.
func NewStore(repo repository) *Store {
	return &Store{repo: repo}
}

// Patch is a sparse set of fields for Update; a nil field leaves the
// existing value unchanged.
type Patch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Location    *string
	Attendees   *[]model.Attendee
	AllDay      *bool
	Timezone    *string
	Status      *model.EventStatus
}

// List returns a filtered, paginated page of userID's events.
func (s *Store) List(ctx context.Context, userID uuid.UUID, filter model.EventFilter) (*model.EventPage, error) {
	page, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list events", err)
	}
	return page, nil
}

// Get fetches a single event, scoped to its owner.
func (s *Store) Get(ctx context.Context, userID, id uuid.UUID) (*model.Event, error) {
	e, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		if err == model.ErrNotFound {
			return nil, apperr.New(apperr.NotFound, "event not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "get event", err)
	}
	return e, nil
}

// Create validates and inserts a new manually-created event.
func (s *Store) Create(ctx context.Context, e *model.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Source == "" {
		e.Source = model.EventSourceManual
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.LastModified = now

	if err := e.Validate(); err != nil {
		return apperr.Wrap(apperr.Validation, "validate event", err)
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return apperr.Wrap(apperr.Internal, "create event", err)
	}
	return nil
}

// Update applies patch over the existing row owned by userID and persists
// the full merged representation, since the repository (and the upstream
// write-through path) both require a complete payload.
func (s *Store) Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*model.Event, error) {
	e, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	applyPatch(e, patch)

	if err := e.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "validate event", err)
	}
	if err := s.repo.Update(ctx, e); err != nil {
		if err == model.ErrNotFound {
			return nil, apperr.New(apperr.NotFound, "event not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "update event", err)
	}
	return e, nil
}

func applyPatch(e *model.Event, patch Patch) {
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

// Delete hard-deletes an event owned by userID.
func (s *Store) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if err == model.ErrNotFound {
			return apperr.New(apperr.NotFound, "event not found")
		}
		return apperr.Wrap(apperr.Internal, "delete event", err)
	}
	return nil
}

// UpsertByUpstream inserts or replaces the row matching (userID,
// upstreamEventID), used by the Sync Engine for every incoming upstream
// event that isn't a cancellation.
func (s *Store) UpsertByUpstream(ctx context.Context, e *model.Event) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.LastModified = now

	if err := e.Validate(); err != nil {
		return uuid.Nil, apperr.Wrap(apperr.Validation, "validate event", err)
	}
	id, err := s.repo.UpsertByUpstream(ctx, e)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.Internal, "upsert event", err)
	}
	return id, nil
}
