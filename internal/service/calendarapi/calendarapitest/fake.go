// Package calendarapitest provides an in-memory double for calendarapi.Client,
// for use in tests of components that depend on it.
package calendarapitest

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/service/calendarapi"
)

type Credentials = calendarapi.Credentials
type FetchResult = calendarapi.FetchResult
type WatchResult = calendarapi.WatchResult

// Fake is an in-memory Client double for tests. Each field is a function
// a test can set to control that call's behavior; unset fields return zero
// values and a nil error.
type Fake struct {
	AuthCodeURLFunc  func(state string) string
	ExchangeFunc     func(ctx context.Context, code string) (*oauth2.Token, error)
	RefreshFunc      func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	FetchProfileFunc func(ctx context.Context, creds Credentials) (string, string, string, string, error)
	FullSyncFunc     func(ctx context.Context, creds Credentials, timeMin, timeMax *time.Time, maxResults int) (*FetchResult, error)
	IncrementalFunc  func(ctx context.Context, creds Credentials, syncToken string, maxResults int) (*FetchResult, error)
	CreateEventFunc  func(ctx context.Context, creds Credentials, e *model.Event) (*model.Event, error)
	UpdateEventFunc  func(ctx context.Context, creds Credentials, upstreamEventID string, e *model.Event) (*model.Event, error)
	DeleteEventFunc  func(ctx context.Context, creds Credentials, upstreamEventID string) error
	SubscribeFunc    func(ctx context.Context, creds Credentials, channelID, address string, ttl time.Duration) (*WatchResult, error)
	UnsubscribeFunc  func(ctx context.Context, creds Credentials, channelID, resourceID string) error
	RevokeFunc       func(ctx context.Context, accessToken string) error
}

var _ calendarapi.Client = (*Fake)(nil)

func (f *Fake) AuthCodeURL(state string) string {
	if f.AuthCodeURLFunc == nil {
		return ""
	}
	return f.AuthCodeURLFunc(state)
}

func (f *Fake) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if f.ExchangeFunc == nil {
		return &oauth2.Token{}, nil
	}
	return f.ExchangeFunc(ctx, code)
}

func (f *Fake) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if f.RefreshFunc == nil {
		return &oauth2.Token{}, nil
	}
	return f.RefreshFunc(ctx, refreshToken)
}

func (f *Fake) FetchProfile(ctx context.Context, creds Credentials) (string, string, string, string, error) {
	if f.FetchProfileFunc == nil {
		return "", "", "", "", nil
	}
	return f.FetchProfileFunc(ctx, creds)
}

func (f *Fake) FullSync(ctx context.Context, creds Credentials, timeMin, timeMax *time.Time, maxResults int) (*FetchResult, error) {
	if f.FullSyncFunc == nil {
		return &FetchResult{}, nil
	}
	return f.FullSyncFunc(ctx, creds, timeMin, timeMax, maxResults)
}

func (f *Fake) IncrementalSync(ctx context.Context, creds Credentials, syncToken string, maxResults int) (*FetchResult, error) {
	if f.IncrementalFunc == nil {
		return &FetchResult{}, nil
	}
	return f.IncrementalFunc(ctx, creds, syncToken, maxResults)
}

func (f *Fake) CreateEvent(ctx context.Context, creds Credentials, e *model.Event) (*model.Event, error) {
	if f.CreateEventFunc == nil {
		return e, nil
	}
	return f.CreateEventFunc(ctx, creds, e)
}

func (f *Fake) UpdateEvent(ctx context.Context, creds Credentials, upstreamEventID string, e *model.Event) (*model.Event, error) {
	if f.UpdateEventFunc == nil {
		return e, nil
	}
	return f.UpdateEventFunc(ctx, creds, upstreamEventID, e)
}

func (f *Fake) DeleteEvent(ctx context.Context, creds Credentials, upstreamEventID string) error {
	if f.DeleteEventFunc == nil {
		return nil
	}
	return f.DeleteEventFunc(ctx, creds, upstreamEventID)
}

func (f *Fake) Subscribe(ctx context.Context, creds Credentials, channelID, address string, ttl time.Duration) (*WatchResult, error) {
	if f.SubscribeFunc == nil {
		return &WatchResult{}, nil
	}
	return f.SubscribeFunc(ctx, creds, channelID, address, ttl)
}

func (f *Fake) Unsubscribe(ctx context.Context, creds Credentials, channelID, resourceID string) error {
	if f.UnsubscribeFunc == nil {
		return nil
	}
	return f.UnsubscribeFunc(ctx, creds, channelID, resourceID)
}

func (f *Fake) Revoke(ctx context.Context, accessToken string) error {
	if f.RevokeFunc == nil {
		return nil
	}
	return f.RevokeFunc(ctx, accessToken)
}
