package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/calensync/backend/internal/model"
	"github.com/google/uuid"
)

// SyncCursorRepository handles per-user sync cursor state.
type SyncCursorRepository struct {
	db *sql.DB
}

// NewSyncCursorRepository creates a new sync cursor repository.
func NewSyncCursorRepository(db *sql.DB) *SyncCursorRepository {
	return &SyncCursorRepository{db: db}
}

const cursorColumns = `user_id, next_sync_token, last_sync_at, full_sync_completed,
	sync_in_progress, last_error, consecutive_error_count, updated_at`

func scanCursor(row *sql.Row) (*model.SyncCursor, error) {
	c := &model.SyncCursor{}
	err := row.Scan(&c.UserID, &c.NextSyncToken, &c.LastSyncAt, &c.FullSyncCompleted,
		&c.SyncInProgress, &c.LastError, &c.ConsecutiveErrors, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByUser retrieves the sync cursor for a user, or model.ErrNotFound if
// the user has never synced.
func (r *SyncCursorRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.SyncCursor, error) {
	query := `SELECT ` + cursorColumns + ` FROM sync_cursors WHERE user_id = $1`
	c, err := scanCursor(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// EnsureExists creates an idle cursor row for a user if one doesn't exist.
func (r *SyncCursorRepository) EnsureExists(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO sync_cursors (user_id, next_sync_token, full_sync_completed, sync_in_progress, consecutive_error_count, updated_at)
		VALUES ($1, '', FALSE, FALSE, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC())
	return err
}

// TryStart attempts the sync-in-progress false→true transition in a
// single atomic step. Returns false (no error) if a sync is already
// running for this user.
func (r *SyncCursorRepository) TryStart(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE sync_cursors
		SET sync_in_progress = TRUE, updated_at = $2
		WHERE user_id = $1 AND sync_in_progress = FALSE
		RETURNING user_id
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, userID, time.Now().UTC()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CompleteSuccess persists the new sync token, marks full-sync-completed
// when applicable, clears the error state, and releases sync-in-progress.
func (r *SyncCursorRepository) CompleteSuccess(ctx context.Context, userID uuid.UUID, nextSyncToken string, fullSyncCompleted bool) error {
	query := `
		UPDATE sync_cursors
		SET next_sync_token = $2, full_sync_completed = full_sync_completed OR $3,
			sync_in_progress = FALSE, last_sync_at = $4, last_error = '',
			consecutive_error_count = 0, updated_at = $4
		WHERE user_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, nextSyncToken, fullSyncCompleted, time.Now().UTC())
	return err
}

// CompleteFailure releases sync-in-progress, bumps the consecutive error
// counter, and records the last error message.
func (r *SyncCursorRepository) CompleteFailure(ctx context.Context, userID uuid.UUID, errMsg string) error {
	query := `
		UPDATE sync_cursors
		SET sync_in_progress = FALSE, last_error = $2,
			consecutive_error_count = consecutive_error_count + 1, updated_at = $3
		WHERE user_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, errMsg, time.Now().UTC())
	return err
}

// ResetStuck sweeps sync-in-progress rows whose updated_at predates the
// cutoff back to idle, mirroring MarkStuckJobsAsFailed's age-cutoff UPDATE.
func (r *SyncCursorRepository) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		UPDATE sync_cursors
		SET sync_in_progress = FALSE, last_error = 'reset by sweeper: stuck in progress',
			consecutive_error_count = consecutive_error_count + 1, updated_at = NOW()
		WHERE sync_in_progress = TRUE AND updated_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
