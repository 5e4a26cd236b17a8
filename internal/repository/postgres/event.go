package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calensync/backend/internal/model"
	"github.com/google/uuid"
)

// EventRepository handles event database operations.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, user_id, upstream_event_id, title, description, start_at, end_at,
	location, attendees, all_day, timezone, status, source, created_at, updated_at, last_modified`

func scanEvent(scanner interface{ Scan(...interface{}) error }) (*model.Event, error) {
	e := &model.Event{}
	var attendeesRaw []byte
	err := scanner.Scan(
		&e.ID, &e.UserID, &e.UpstreamEventID, &e.Title, &e.Description, &e.Start, &e.End,
		&e.Location, &attendeesRaw, &e.AllDay, &e.Timezone, &e.Status, &e.Source,
		&e.CreatedAt, &e.UpdatedAt, &e.LastModified,
	)
	if err != nil {
		return nil, err
	}
	e.Attendees = decodeAttendees(attendeesRaw)
	return e, nil
}

// decodeAttendees tolerates absent or malformed JSON by returning an empty
// list rather than an error, per the facade's read invariant.
func decodeAttendees(raw []byte) []model.Attendee {
	if len(raw) == 0 {
		return nil
	}
	var attendees []model.Attendee
	if err := json.Unmarshal(raw, &attendees); err != nil {
		return nil
	}
	return attendees
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting the mutating
// methods below run either standalone or as part of a caller-managed
// transaction (the Write-Through Mediator's create/update/delete calls).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Create inserts a new event row.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	return r.create(ctx, r.db, e)
}

// CreateTx is Create scoped to an in-flight transaction.
func (r *EventRepository) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	return r.create(ctx, tx, e)
}

func (r *EventRepository) create(ctx context.Context, x execer, e *model.Event) error {
	attendeesJSON, err := json.Marshal(e.Attendees)
	if err != nil {
		return fmt.Errorf("marshal attendees: %w", err)
	}

	query := `
		INSERT INTO events (id, user_id, upstream_event_id, title, description, start_at, end_at,
			location, attendees, all_day, timezone, status, source, created_at, updated_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = x.ExecContext(ctx, query,
		e.ID, e.UserID, e.UpstreamEventID, e.Title, e.Description, e.Start, e.End,
		e.Location, attendeesJSON, e.AllDay, e.Timezone, e.Status, e.Source,
		e.CreatedAt, e.UpdatedAt, e.LastModified,
	)
	return err
}

// GetByID retrieves an event, scoped to its owner so cross-user access is
// impossible at the query level.
func (r *EventRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND user_id = $2`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// GetByUpstreamID looks up an event by (userID, upstreamEventID).
func (r *EventRepository) GetByUpstreamID(ctx context.Context, userID uuid.UUID, upstreamEventID string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1 AND upstream_event_id = $2`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, userID, upstreamEventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns a filtered, paginated page of events plus the total count
// under the same filter. Two-query shape: a COUNT(*) query and a windowed
// SELECT, both scoped to userID.
func (r *EventRepository) List(ctx context.Context, userID uuid.UUID, filter model.EventFilter) (*model.EventPage, error) {
	filter.Normalize()

	where := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where = append(where, fmt.Sprintf("start_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where = append(where, fmt.Sprintf("start_at <= $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Source != "" && filter.Source != "all" {
		args = append(args, filter.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		where = append(where, fmt.Sprintf("(title || ' ' || description) ILIKE '%%' || $%d || '%%'", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	countQuery := `SELECT COUNT(*) FROM events WHERE ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	listQuery := `SELECT ` + eventColumns + ` FROM events WHERE ` + whereClause +
		fmt.Sprintf(" ORDER BY start_at ASC LIMIT $%d OFFSET $%d", limitArg, offsetArg)

	listArgs := append(append([]interface{}{}, args...), filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.Event, 0, filter.Limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.EventPage{Events: events, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Update overwrites every mutable column of the existing row with e's
// values, zero values included; sparse merging happens at the service
// layer before this is called.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) error {
	return r.update(ctx, r.db, e)
}

// UpdateTx is Update scoped to an in-flight transaction.
func (r *EventRepository) UpdateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	return r.update(ctx, tx, e)
}

func (r *EventRepository) update(ctx context.Context, x execer, e *model.Event) error {
	attendeesJSON, err := json.Marshal(e.Attendees)
	if err != nil {
		return fmt.Errorf("marshal attendees: %w", err)
	}

	query := `
		UPDATE events
		SET title = $3, description = $4, start_at = $5, end_at = $6, location = $7,
			attendees = $8, all_day = $9, timezone = $10, status = $11, updated_at = $12,
			last_modified = $12
		WHERE id = $1 AND user_id = $2
	`
	now := time.Now().UTC()
	result, err := x.ExecContext(ctx, query,
		e.ID, e.UserID, e.Title, e.Description, e.Start, e.End, e.Location,
		attendeesJSON, e.AllDay, e.Timezone, e.Status, now,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return model.ErrNotFound
	}
	e.UpdatedAt = now
	e.LastModified = now
	return nil
}

// Delete hard-deletes an event row, scoped to its owner.
func (r *EventRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return r.delete(ctx, r.db, userID, id)
}

// DeleteTx is Delete scoped to an in-flight transaction.
func (r *EventRepository) DeleteTx(ctx context.Context, tx *sql.Tx, userID, id uuid.UUID) error {
	return r.delete(ctx, tx, userID, id)
}

func (r *EventRepository) delete(ctx context.Context, x execer, userID, id uuid.UUID) error {
	query := `DELETE FROM events WHERE id = $1 AND user_id = $2`
	result, err := x.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteByUpstreamID hard-deletes the local row matching an upstream id,
// used by the Sync Engine when an upstream event is cancelled. Returns
// nil (no error) when no matching row exists — cancellation of an event
// never locally replicated is a no-op, not a failure.
func (r *EventRepository) DeleteByUpstreamID(ctx context.Context, userID uuid.UUID, upstreamEventID string) (bool, error) {
	query := `DELETE FROM events WHERE user_id = $1 AND upstream_event_id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, upstreamEventID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpsertByUpstream inserts or replaces all mutable fields of the row
// matching (userID, upstreamEventID), keyed off the real unique index —
// race-free under concurrent sync and write-through activity.
func (r *EventRepository) UpsertByUpstream(ctx context.Context, e *model.Event) (uuid.UUID, error) {
	attendeesJSON, err := json.Marshal(e.Attendees)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal attendees: %w", err)
	}

	query := `
		INSERT INTO events (id, user_id, upstream_event_id, title, description, start_at, end_at,
			location, attendees, all_day, timezone, status, source, created_at, updated_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id, upstream_event_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			location = EXCLUDED.location,
			attendees = EXCLUDED.attendees,
			all_day = EXCLUDED.all_day,
			timezone = EXCLUDED.timezone,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			last_modified = EXCLUDED.last_modified
		RETURNING id
	`
	var id uuid.UUID
	err = r.db.QueryRowContext(ctx, query,
		e.ID, e.UserID, e.UpstreamEventID, e.Title, e.Description, e.Start, e.End,
		e.Location, attendeesJSON, e.AllDay, e.Timezone, e.Status, e.Source,
		e.CreatedAt, e.UpdatedAt, e.LastModified,
	).Scan(&id)
	return id, err
}
