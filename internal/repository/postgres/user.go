package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/calensync/backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUserAlreadyExists = errors.New("user already exists")

// UserRepository handles user database operations.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, upstream_user_id, email, display_name, picture_url,
			wrapped_access_token, wrapped_refresh_token, access_token_expires_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.UpstreamUserID,
		user.Email,
		user.DisplayName,
		user.PictureURL,
		user.WrappedAccessToken,
		user.WrappedRefreshToken,
		user.AccessTokenExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrUserAlreadyExists
		}
		return err
	}

	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID,
		&user.UpstreamUserID,
		&user.Email,
		&user.DisplayName,
		&user.PictureURL,
		&user.WrappedAccessToken,
		&user.WrappedRefreshToken,
		&user.AccessTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

const userColumns = `id, upstream_user_id, email, display_name, picture_url,
	wrapped_access_token, wrapped_refresh_token, access_token_expires_at,
	created_at, updated_at`

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByUpstreamID retrieves a user by their upstream account id.
func (r *UserRepository) GetByUpstreamID(ctx context.Context, upstreamUserID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE upstream_user_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, upstreamUserID))
}

// Upsert inserts a user or, when the upstream id already exists, updates
// the profile fields and timestamps. Used by the OAuth Orchestrator on
// every successful authorization-code exchange.
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, upstream_user_id, email, display_name, picture_url,
			wrapped_access_token, wrapped_refresh_token, access_token_expires_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (upstream_user_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			picture_url = EXCLUDED.picture_url,
			wrapped_access_token = EXCLUDED.wrapped_access_token,
			wrapped_refresh_token = EXCLUDED.wrapped_refresh_token,
			access_token_expires_at = EXCLUDED.access_token_expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		user.ID,
		user.UpstreamUserID,
		user.Email,
		user.DisplayName,
		user.PictureURL,
		user.WrappedAccessToken,
		user.WrappedRefreshToken,
		user.AccessTokenExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
}

// UpdateCredentials writes a refreshed or newly stored token pair.
func (r *UserRepository) UpdateCredentials(ctx context.Context, userID uuid.UUID, wrappedAccess, wrappedRefresh string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET wrapped_access_token = $2, wrapped_refresh_token = $3,
			access_token_expires_at = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, userID, wrappedAccess, wrappedRefresh, expiresAt, time.Now().UTC())
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

// UpdateAccessTokenIfUnchanged conditionally writes a refreshed access
// token, but only if the persisted updated_at still matches expectedUpdatedAt
// — a compare-and-swap guarding against a concurrent refresh winning first.
// Returns false (no error) when the CAS lost the race.
func (r *UserRepository) UpdateAccessTokenIfUnchanged(ctx context.Context, userID uuid.UUID, wrappedAccess, wrappedRefresh string, expiresAt time.Time, expectedUpdatedAt time.Time) (bool, error) {
	query := `
		UPDATE users
		SET wrapped_access_token = $2, wrapped_refresh_token = $3,
			access_token_expires_at = $4, updated_at = $5
		WHERE id = $1 AND updated_at = $6
		RETURNING id
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, userID, wrappedAccess, wrappedRefresh, expiresAt, time.Now().UTC(), expectedUpdatedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ClearCredentials wipes stored tokens unconditionally (revocation).
func (r *UserRepository) ClearCredentials(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET wrapped_access_token = '', wrapped_refresh_token = '',
			access_token_expires_at = NULL, updated_at = $2
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC())
	return err
}
