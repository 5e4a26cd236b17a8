package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a principal linked to an upstream calendar account. Credentials
// are stored wrapped (see internal/pkg/vault) and are never marshaled to
// JSON.
type User struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	UpstreamUserID       *string    `json:"-" db:"upstream_user_id"`
	Email                string     `json:"email" db:"email"`
	DisplayName          string     `json:"displayName" db:"display_name"`
	PictureURL           string     `json:"pictureUrl,omitempty" db:"picture_url"`
	WrappedAccessToken   string     `json:"-" db:"wrapped_access_token"`
	WrappedRefreshToken  string     `json:"-" db:"wrapped_refresh_token"`
	AccessTokenExpiresAt *time.Time `json:"-" db:"access_token_expires_at"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" db:"updated_at"`
}

// HasCredentials reports whether the user currently has stored upstream
// credentials. Revocation clears both wrapped token columns, so this is
// the cheap local check before going to the Token Manager.
func (u *User) HasCredentials() bool {
	return u.WrappedAccessToken != ""
}
