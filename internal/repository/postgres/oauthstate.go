package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/calensync/backend/internal/model"
)

// OAuthStateRepository handles CSRF nonce persistence for the
// authorization-code flow.
type OAuthStateRepository struct {
	db *sql.DB
}

// NewOAuthStateRepository creates a new OAuth state repository.
func NewOAuthStateRepository(db *sql.DB) *OAuthStateRepository {
	return &OAuthStateRepository{db: db}
}

// Create persists a new state nonce.
func (r *OAuthStateRepository) Create(ctx context.Context, s *model.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, s.State, s.UserID, s.ExpiresAt, s.CreatedAt)
	return err
}

// ConsumeAndDelete looks up state and deletes it in one round trip
// (one-shot consumption). Returns model.ErrNotFound if absent or expired.
func (r *OAuthStateRepository) ConsumeAndDelete(ctx context.Context, state string) (*model.OAuthState, error) {
	query := `DELETE FROM oauth_states WHERE state = $1 RETURNING state, user_id, expires_at, created_at`

	s := &model.OAuthState{}
	err := r.db.QueryRowContext(ctx, query, state).Scan(&s.State, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if s.Expired(time.Now().UTC()) {
		return nil, model.ErrNotFound
	}
	return s, nil
}

// DeleteExpired garbage-collects state rows past their expiry, regardless
// of whether they were ever consumed. Returns the number of rows removed.
func (r *OAuthStateRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM oauth_states WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
