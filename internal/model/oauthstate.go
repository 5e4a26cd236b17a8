package model

import (
	"time"

	"github.com/google/uuid"
)

// OAuthStateExpiry is the CSRF nonce lifetime from issuance.
const OAuthStateExpiry = 10 * time.Minute

// OAuthState is a short-lived CSRF nonce created at authorization-flow
// initiation and consumed (deleted) on callback.
type OAuthState struct {
	State     string     `db:"state"`
	UserID    *uuid.UUID `db:"user_id"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// Expired reports whether the state has outlived its expiry instant.
func (s *OAuthState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
