package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxConsecutiveSyncErrors disqualifies a user from the automatic sync
// scheduler once reached.
const MaxConsecutiveSyncErrors = 5

// SyncCursor is the per-user sync state. At most one row exists per user.
type SyncCursor struct {
	UserID            uuid.UUID  `db:"user_id"`
	NextSyncToken     string     `db:"next_sync_token"`
	LastSyncAt        *time.Time `db:"last_sync_at"`
	FullSyncCompleted bool       `db:"full_sync_completed"`
	SyncInProgress    bool       `db:"sync_in_progress"`
	LastError         string     `db:"last_error"`
	ConsecutiveErrors int        `db:"consecutive_error_count"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Disqualified reports whether this user should be skipped by the
// automatic sync scheduler.
func (c *SyncCursor) Disqualified() bool {
	return c.ConsecutiveErrors >= MaxConsecutiveSyncErrors
}

// SyncMode selects between full and incremental synchronization.
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// SyncResult is what the Sync Engine returns for a single sync run.
type SyncResult struct {
	Mode      SyncMode    `json:"mode"`
	Processed int         `json:"processed"`
	Created   int         `json:"created"`
	Updated   int         `json:"updated"`
	Deleted   int         `json:"deleted"`
	Errors    []ItemError `json:"errors,omitempty"`
	Success   bool        `json:"success"`
}

// ItemError is a single per-item failure encountered during a sync run.
type ItemError struct {
	UpstreamEventID string `json:"upstreamEventId"`
	Kind            string `json:"kind"`
	Message         string `json:"message"`
}
