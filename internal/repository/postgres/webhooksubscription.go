package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/calensync/backend/internal/model"
	"github.com/google/uuid"
)

// WebhookSubscriptionRepository handles upstream push-channel bindings.
type WebhookSubscriptionRepository struct {
	db *sql.DB
}

// NewWebhookSubscriptionRepository creates a new webhook subscription repository.
func NewWebhookSubscriptionRepository(db *sql.DB) *WebhookSubscriptionRepository {
	return &WebhookSubscriptionRepository{db: db}
}

const webhookColumns = `id, user_id, upstream_resource_id, channel_id, verification_token,
	resource_uri, expires_at, active, sync_in_progress, sync_started_at, created_at`

func scanWebhookSubscription(row *sql.Row) (*model.WebhookSubscription, error) {
	s := &model.WebhookSubscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.UpstreamResourceID, &s.ChannelID, &s.VerificationToken,
		&s.ResourceURI, &s.ExpiresAt, &s.Active, &s.SyncInProgress, &s.SyncStartedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create persists a new subscription.
func (r *WebhookSubscriptionRepository) Create(ctx context.Context, s *model.WebhookSubscription) error {
	query := `
		INSERT INTO webhook_subscriptions (id, user_id, upstream_resource_id, channel_id,
			verification_token, resource_uri, expires_at, active, sync_in_progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.UpstreamResourceID, s.ChannelID,
		s.VerificationToken, s.ResourceURI, s.ExpiresAt, s.Active, s.CreatedAt)
	return err
}

// FindOwner resolves the (channelID, resourceID) pair from an inbound
// webhook notification to its owning, still-active subscription.
func (r *WebhookSubscriptionRepository) FindOwner(ctx context.Context, channelID, resourceID string) (*model.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions
		WHERE channel_id = $1 AND upstream_resource_id = $2 AND active = TRUE`
	s, err := scanWebhookSubscription(r.db.QueryRowContext(ctx, query, channelID, resourceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetActiveByUser returns userID's currently active subscription, if any,
// for the unsubscribe endpoint.
func (r *WebhookSubscriptionRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at DESC
		LIMIT 1`
	s, err := scanWebhookSubscription(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// TryStartSync marks a subscription's sync-in-progress flag, so a burst of
// duplicate push notifications collapses into one triggered sync.
func (r *WebhookSubscriptionRepository) TryStartSync(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE webhook_subscriptions
		SET sync_in_progress = TRUE, sync_started_at = $2
		WHERE id = $1 AND sync_in_progress = FALSE
		RETURNING id
	`
	var got uuid.UUID
	err := r.db.QueryRowContext(ctx, query, id, time.Now().UTC()).Scan(&got)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FinishSync clears the sync-in-progress flag regardless of outcome.
func (r *WebhookSubscriptionRepository) FinishSync(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_subscriptions SET sync_in_progress = FALSE, sync_started_at = NULL WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// Deactivate marks a subscription inactive (explicit teardown or upstream
// expiry).
func (r *WebhookSubscriptionRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_subscriptions SET active = FALSE WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// DeactivateExpired deactivates subscriptions whose upstream-granted
// lifetime has elapsed.
func (r *WebhookSubscriptionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `UPDATE webhook_subscriptions SET active = FALSE WHERE active = TRUE AND expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ResetStuckSyncs sweeps sync-in-progress rows older than olderThan back
// to idle by clearing the in-progress flag and its start time — the webhook analogue of SyncCursor's
// stuck-running reset.
func (r *WebhookSubscriptionRepository) ResetStuckSyncs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		UPDATE webhook_subscriptions
		SET sync_in_progress = FALSE, sync_started_at = NULL
		WHERE sync_in_progress = TRUE AND sync_started_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
