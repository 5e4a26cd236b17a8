package model

import (
	"time"

	"github.com/google/uuid"
)

// StuckWebhookSyncAge is how long a sync-in-progress marker may persist on
// a subscription before the sweeper resets it.
const StuckWebhookSyncAge = time.Hour

// WebhookSubscription binds an upstream push-notification channel to its
// owning user and resource.
type WebhookSubscription struct {
	ID                 uuid.UUID  `db:"id"`
	UserID             uuid.UUID  `db:"user_id"`
	UpstreamResourceID string     `db:"upstream_resource_id"`
	ChannelID          string     `db:"channel_id"`
	VerificationToken  string     `db:"verification_token"`
	ResourceURI        string     `db:"resource_uri"`
	ExpiresAt          time.Time  `db:"expires_at"`
	Active             bool       `db:"active"`
	SyncInProgress     bool       `db:"sync_in_progress"`
	SyncStartedAt      *time.Time `db:"sync_started_at"`
	CreatedAt          time.Time  `db:"created_at"`
}

// Expired reports whether the channel's upstream-granted lifetime has
// elapsed.
func (s *WebhookSubscription) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// BatchSyncRequest requests a bulk backfill over an explicit window,
// defaulting to the Sync Engine's standard two-year span when unset.
type BatchSyncRequest struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}
