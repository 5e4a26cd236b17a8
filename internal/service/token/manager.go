// Package token owns the per-user OAuth2 credential lifecycle: storing
// wrapped tokens, loading them back, refreshing against the upstream
// provider, and guaranteeing a caller a live access token on demand.
package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/pkg/retry"
	"github.com/calensync/backend/internal/pkg/vault"
	"github.com/calensync/backend/internal/service/calendarapi"
)

// userStore is the slice of UserRepository the Token Manager depends on.
// Narrowed to an interface so tests can substitute a fake in place of a
// live database.
type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateCredentials(ctx context.Context, userID uuid.UUID, wrappedAccess, wrappedRefresh string, expiresAt time.Time) error
	UpdateAccessTokenIfUnchanged(ctx context.Context, userID uuid.UUID, wrappedAccess, wrappedRefresh string, expiresAt, expectedUpdatedAt time.Time) (bool, error)
	ClearCredentials(ctx context.Context, userID uuid.UUID) error
}

// refreshBuffer is how far ahead of the stored expiry ensureValid proactively
// refreshes, so a caller never races a token expiring mid-request.
const refreshBuffer = 5 * time.Minute

// Tokens is the unwrapped credential pair returned to callers. The zero
// value (no AccessToken) means the user has no stored credentials.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Manager implements store/load/refresh/ensureValid/revoke over a user's
// upstream OAuth2 credentials.
type Manager struct {
	users    userStore
	vault    *vault.Vault
	client   calendarapi.Client
	executor *retry.Executor
	sf       singleflight.Group
}

// NewManager builds a Token Manager.
func NewManager(users userStore, v *vault.Vault, client calendarapi.Client, executor *retry.Executor) *Manager {
	return &Manager{users: users, vault: v, client: client, executor: executor}
}

// Store wraps tokens via the vault and persists them against userID.
func (m *Manager) Store(ctx context.Context, userID uuid.UUID, tokens Tokens) error {
	wrappedAccess, err := m.vault.Wrap(tokens.AccessToken)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "wrap access token", err)
	}
	wrappedRefresh, err := m.vault.Wrap(tokens.RefreshToken)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "wrap refresh token", err)
	}
	if err := m.users.UpdateCredentials(ctx, userID, wrappedAccess, wrappedRefresh, tokens.ExpiresAt); err != nil {
		return apperr.Wrap(apperr.Internal, "persist credentials", err)
	}
	return nil
}

// Load reads and unwraps the stored credentials for userID. It returns a
// zero-valued Tokens (no error) when the user has never stored one.
func (m *Manager) Load(ctx context.Context, userID uuid.UUID) (Tokens, error) {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "load user", err)
	}
	if !u.HasCredentials() {
		return Tokens{}, nil
	}

	access, err := m.vault.Unwrap(u.WrappedAccessToken)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "unwrap access token", err)
	}
	refresh, err := m.vault.Unwrap(u.WrappedRefreshToken)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "unwrap refresh token", err)
	}

	var expiresAt time.Time
	if u.AccessTokenExpiresAt != nil {
		expiresAt = *u.AccessTokenExpiresAt
	}
	return Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

// Refresh calls the upstream token endpoint through the retry executor
// using the stored refresh token, and persists the result — unless a
// concurrent refresh already moved the persisted row out from under it, in
// which case this result is discarded.
func (m *Manager) Refresh(ctx context.Context, userID uuid.UUID) (Tokens, error) {
	v, err, _ := m.sf.Do(userID.String(), func() (interface{}, error) {
		return m.refreshOnce(ctx, userID)
	})
	if err != nil {
		return Tokens{}, err
	}
	return v.(Tokens), nil
}

func (m *Manager) refreshOnce(ctx context.Context, userID uuid.UUID) (Tokens, error) {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "load user", err)
	}
	if u.WrappedRefreshToken == "" {
		return Tokens{}, apperr.New(apperr.UpstreamAuth, "no-refresh-token")
	}
	refreshToken, err := m.vault.Unwrap(u.WrappedRefreshToken)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "unwrap refresh token", err)
	}

	var newAccess, newRefresh string
	var newExpiry time.Time
	err = m.executor.Execute(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		tok, err := m.client.Refresh(ctx, refreshToken)
		if err != nil {
			return err
		}
		newAccess = tok.AccessToken
		newExpiry = tok.Expiry
		if tok.RefreshToken != "" {
			newRefresh = tok.RefreshToken
		} else {
			newRefresh = refreshToken
		}
		return nil
	})
	if err != nil {
		return Tokens{}, err
	}

	wrappedAccess, err := m.vault.Wrap(newAccess)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "wrap access token", err)
	}
	wrappedRefresh, err := m.vault.Wrap(newRefresh)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "wrap refresh token", err)
	}

	changed, err := m.users.UpdateAccessTokenIfUnchanged(ctx, userID, wrappedAccess, wrappedRefresh, newExpiry, u.UpdatedAt)
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.Internal, "persist refreshed credentials", err)
	}
	if !changed {
		slog.Info("discarding stale refresh result, persisted token moved concurrently", "userId", userID)
		return m.Load(ctx, userID)
	}

	return Tokens{AccessToken: newAccess, RefreshToken: newRefresh, ExpiresAt: newExpiry}, nil
}

// EnsureValid is the canonical pre-flight for every outbound upstream call:
// it loads stored credentials, refreshing first if the access token is
// within refreshBuffer of expiring, and returns a live access token.
func (m *Manager) EnsureValid(ctx context.Context, userID uuid.UUID) (string, error) {
	tokens, err := m.Load(ctx, userID)
	if err != nil {
		return "", err
	}
	if tokens.AccessToken == "" {
		return "", apperr.New(apperr.Unauthenticated, "no stored credentials")
	}
	if time.Now().Add(refreshBuffer).Before(tokens.ExpiresAt) {
		return tokens.AccessToken, nil
	}

	refreshed, err := m.Refresh(ctx, userID)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Revoke attempts best-effort upstream revocation, then unconditionally
// clears stored credentials regardless of whether the upstream call
// succeeded.
func (m *Manager) Revoke(ctx context.Context, userID uuid.UUID) error {
	tokens, err := m.Load(ctx, userID)
	if err == nil && tokens.AccessToken != "" {
		if revokeErr := m.client.Revoke(ctx, tokens.AccessToken); revokeErr != nil {
			slog.Warn("upstream token revocation failed, clearing local credentials anyway", "userId", userID, "error", revokeErr)
		}
	}
	if err := m.users.ClearCredentials(ctx, userID); err != nil {
		return apperr.Wrap(apperr.Internal, "clear credentials", err)
	}
	return nil
}
