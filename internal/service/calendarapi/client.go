// Package calendarapi wraps the upstream calendar provider behind a narrow
// interface, so the rest of the sync core never imports the provider SDK
// directly. Every call here is expected to be run through the retry
// executor by its caller; this package only translates between provider
// types and local model types.
package calendarapi

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"github.com/calensync/backend/internal/model"
)

// Credentials is the minimal unwrapped token material a Client call needs.
// Callers are responsible for unwrapping from the vault before building
// this and never logging it.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// FetchResult is one page (or, after pagination, the full set) of upstream
// events returned by a list call, plus the cursor to resume from.
type FetchResult struct {
	Events        []model.Event
	NextSyncToken string
	NextPageToken string
	// FullSyncRequired is set when the upstream rejected a sync token as
	// expired (HTTP 410 GONE); the caller must restart from a full sync.
	FullSyncRequired bool
}

// WatchResult is the upstream channel registration returned by Subscribe.
type WatchResult struct {
	ChannelID         string
	ResourceID        string
	ResourceURI       string
	Expiration        time.Time
	VerificationToken string
}

// Client is the upstream calendar provider surface the sync core depends
// on. A real implementation talks to Google Calendar; tests substitute a
// fake.
type Client interface {
	// AuthCodeURL returns the provider consent screen URL for the given
	// CSRF state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh exchanges a refresh token for a fresh access token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// FetchProfile retrieves the authenticated user's upstream identity.
	FetchProfile(ctx context.Context, creds Credentials) (upstreamUserID, email, displayName, pictureURL string, err error)

	// FullSync lists every non-cancelled event on the primary calendar within
	// [timeMin, timeMax] (either may be nil, defaulting to one year back/
	// forward), paginating internally at maxResults per page (0 defaults to
	// the client's own page size), and returns the sync token to resume from.
	FullSync(ctx context.Context, creds Credentials, timeMin, timeMax *time.Time, maxResults int) (*FetchResult, error)

	// IncrementalSync lists events changed since syncToken, paginating at
	// maxResults per page (0 defaults to the client's own page size). A
	// FullSyncRequired result (rather than an error) signals the token
	// expired upstream.
	IncrementalSync(ctx context.Context, creds Credentials, syncToken string, maxResults int) (*FetchResult, error)

	// CreateEvent creates an event on the primary calendar and returns it
	// with its assigned upstream ID.
	CreateEvent(ctx context.Context, creds Credentials, e *model.Event) (*model.Event, error)

	// UpdateEvent overwrites an existing upstream event in place.
	UpdateEvent(ctx context.Context, creds Credentials, upstreamEventID string, e *model.Event) (*model.Event, error)

	// DeleteEvent cancels an upstream event. Deleting an already-gone event
	// is not an error.
	DeleteEvent(ctx context.Context, creds Credentials, upstreamEventID string) error

	// Subscribe registers a push notification channel for the primary
	// calendar.
	Subscribe(ctx context.Context, creds Credentials, channelID, address string, ttl time.Duration) (*WatchResult, error)

	// Unsubscribe tears down a previously registered push channel.
	Unsubscribe(ctx context.Context, creds Credentials, channelID, resourceID string) error

	// Revoke asks the provider to invalidate accessToken. Best-effort: a
	// failure here must never block clearing local credentials.
	Revoke(ctx context.Context, accessToken string) error
}

// tokenSource builds a one-shot oauth2.TokenSource from already-unwrapped
// credentials, used to construct a provider HTTP client per call. It never
// persists the refreshed token itself — refresh persistence is the Token
// Manager's job, not this package's.
func tokenSource(cfg *oauth2.Config, creds Credentials) oauth2.TokenSource {
	return cfg.TokenSource(context.Background(), &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	})
}

func mapStatus(status string) model.EventStatus {
	switch status {
	case "confirmed":
		return model.EventStatusConfirmed
	case "tentative":
		return model.EventStatusTentative
	case "cancelled":
		return model.EventStatusCancelled
	default:
		return model.EventStatusConfirmed
	}
}

func mapStatusToUpstream(status model.EventStatus) string {
	if status == "" {
		return "confirmed"
	}
	return string(status)
}

func mapAttendees(in []*calendar.EventAttendee) []model.Attendee {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Attendee, 0, len(in))
	for _, a := range in {
		out = append(out, model.Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			Optional:       a.Optional,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return out
}

func mapAttendeesToUpstream(in []model.Attendee) []*calendar.EventAttendee {
	if len(in) == 0 {
		return nil
	}
	out := make([]*calendar.EventAttendee, 0, len(in))
	for _, a := range in {
		out = append(out, &calendar.EventAttendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			Optional:       a.Optional,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return out
}
