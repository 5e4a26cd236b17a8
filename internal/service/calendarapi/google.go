package calendarapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/calensync/backend/internal/model"
)

const (
	primaryCalendarID = "primary"
	eventPageSize     = 250
	defaultTimezone   = "UTC"
)

// GoogleClient is the production Client backed by the Google Calendar and
// OAuth2 v2 APIs.
type GoogleClient struct {
	oauthConfig *oauth2.Config
}

var _ Client = (*GoogleClient)(nil)

// NewGoogleClient builds a GoogleClient from the application's registered
// OAuth client credentials.
func NewGoogleClient(clientID, clientSecret, redirectURL string) *GoogleClient {
	return &GoogleClient{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				calendar.CalendarScope,
				calendar.CalendarEventsScope,
				googleoauth2.UserinfoEmailScope,
				googleoauth2.UserinfoProfileScope,
			},
			Endpoint: googleoauth.Endpoint,
		},
	}
}

func (g *GoogleClient) AuthCodeURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *GoogleClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.oauthConfig.Exchange(ctx, code)
}

func (g *GoogleClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := g.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

func (g *GoogleClient) FetchProfile(ctx context.Context, creds Credentials) (string, string, string, string, error) {
	client := oauth2.NewClient(ctx, tokenSource(g.oauthConfig, creds))
	svc, err := googleoauth2.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", "", "", "", fmt.Errorf("calendarapi: build oauth2 service: %w", err)
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return "", "", "", "", err
	}
	return info.Id, info.Email, info.Name, info.Picture, nil
}

func (g *GoogleClient) calendarService(ctx context.Context, creds Credentials) (*calendar.Service, error) {
	client := oauth2.NewClient(ctx, tokenSource(g.oauthConfig, creds))
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("calendarapi: build calendar service: %w", err)
	}
	return svc, nil
}

func (g *GoogleClient) FullSync(ctx context.Context, creds Credentials, timeMin, timeMax *time.Time, maxResults int) (*FetchResult, error) {
	svc, err := g.calendarService(ctx, creds)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	min := now.AddDate(-1, 0, 0)
	if timeMin != nil {
		min = *timeMin
	}
	max := now.AddDate(1, 0, 0)
	if timeMax != nil {
		max = *timeMax
	}

	call := svc.Events.List(primaryCalendarID).
		SingleEvents(true).
		ShowDeleted(false).
		OrderBy("startTime").
		TimeMin(min.Format(time.RFC3339)).
		TimeMax(max.Format(time.RFC3339)).
		MaxResults(resultPageSize(maxResults))

	return g.drainEvents(ctx, call)
}

func (g *GoogleClient) IncrementalSync(ctx context.Context, creds Credentials, syncToken string, maxResults int) (*FetchResult, error) {
	svc, err := g.calendarService(ctx, creds)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(primaryCalendarID).
		SingleEvents(true).
		ShowDeleted(true).
		SyncToken(syncToken).
		MaxResults(resultPageSize(maxResults))

	result, err := g.drainEvents(ctx, call)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 410 {
			return &FetchResult{FullSyncRequired: true}, nil
		}
		return nil, err
	}
	return result, nil
}

// resultPageSize returns the per-page MaxResults to request: the caller's
// requested cap if positive, else the default page size.
func resultPageSize(maxResults int) int64 {
	if maxResults > 0 {
		return int64(maxResults)
	}
	return eventPageSize
}

func (g *GoogleClient) drainEvents(ctx context.Context, call *calendar.EventsListCall) (*FetchResult, error) {
	var all []model.Event
	pageToken := ""
	var nextSyncToken string

	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		for _, ev := range resp.Items {
			all = append(all, fromUpstreamEvent(ev))
		}
		pageToken = resp.NextPageToken
		if resp.NextSyncToken != "" {
			nextSyncToken = resp.NextSyncToken
		}
		if pageToken == "" {
			break
		}
	}

	return &FetchResult{Events: all, NextSyncToken: nextSyncToken}, nil
}

func (g *GoogleClient) CreateEvent(ctx context.Context, creds Credentials, e *model.Event) (*model.Event, error) {
	svc, err := g.calendarService(ctx, creds)
	if err != nil {
		return nil, err
	}
	created, err := svc.Events.Insert(primaryCalendarID, toUpstreamEvent(e)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := fromUpstreamEvent(created)
	return &out, nil
}

func (g *GoogleClient) UpdateEvent(ctx context.Context, creds Credentials, upstreamEventID string, e *model.Event) (*model.Event, error) {
	svc, err := g.calendarService(ctx, creds)
	if err != nil {
		return nil, err
	}
	updated, err := svc.Events.Update(primaryCalendarID, upstreamEventID, toUpstreamEvent(e)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := fromUpstreamEvent(updated)
	return &out, nil
}

func (g *GoogleClient) DeleteEvent(ctx context.Context, creds Credentials, upstreamEventID string) error {
	svc, err := g.calendarService(ctx, creds)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(primaryCalendarID, upstreamEventID).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 404 || gerr.Code == 410) {
		return nil
	}
	return err
}

func (g *GoogleClient) Subscribe(ctx context.Context, creds Credentials, channelID, address string, ttl time.Duration) (*WatchResult, error) {
	svc, err := g.calendarService(ctx, creds)
	if err != nil {
		return nil, err
	}

	verificationToken := channelID
	channel := &calendar.Channel{
		Id:         channelID,
		Type:       "web_hook",
		Address:    address,
		Token:      verificationToken,
		Expiration: time.Now().Add(ttl).UnixMilli(),
	}

	resp, err := svc.Events.Watch(primaryCalendarID, channel).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	return &WatchResult{
		ChannelID:         resp.Id,
		ResourceID:        resp.ResourceId,
		ResourceURI:       resp.ResourceUri,
		Expiration:        time.UnixMilli(resp.Expiration),
		VerificationToken: verificationToken,
	}, nil
}

func (g *GoogleClient) Unsubscribe(ctx context.Context, creds Credentials, channelID, resourceID string) error {
	svc, err := g.calendarService(ctx, creds)
	if err != nil {
		return err
	}
	return svc.Channels.Stop(&calendar.Channel{Id: channelID, ResourceId: resourceID}).Context(ctx).Do()
}

const revokeEndpoint = "https://oauth2.googleapis.com/revoke"

func (g *GoogleClient) Revoke(ctx context.Context, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("calendarapi: revoke returned status %s", resp.Status)
	}
	return nil
}

func fromUpstreamEvent(ev *calendar.Event) model.Event {
	id := ev.Id
	start, allDay, tz := fromUpstreamDateTime(ev.Start)
	end, _, _ := fromUpstreamDateTime(ev.End)

	var lastModified time.Time
	if ev.Updated != "" {
		if parsed, err := time.Parse(time.RFC3339, ev.Updated); err == nil {
			lastModified = parsed
		}
	}

	return model.Event{
		UpstreamEventID: &id,
		Title:           ev.Summary,
		Description:     ev.Description,
		Start:           start,
		End:             end,
		Location:        ev.Location,
		Attendees:       mapAttendees(ev.Attendees),
		AllDay:          allDay,
		Timezone:        tz,
		Status:          mapStatus(ev.Status),
		Source:          model.EventSourceUpstream,
		LastModified:    lastModified,
	}
}

func toUpstreamEvent(e *model.Event) *calendar.Event {
	out := &calendar.Event{
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		Attendees:   mapAttendeesToUpstream(e.Attendees),
		Status:      mapStatusToUpstream(e.Status),
	}
	if e.AllDay {
		out.Start = &calendar.EventDateTime{Date: e.Start.Format("2006-01-02")}
		out.End = &calendar.EventDateTime{Date: e.End.Format("2006-01-02")}
	} else {
		out.Start = &calendar.EventDateTime{DateTime: e.Start.Format(time.RFC3339), TimeZone: e.Timezone}
		out.End = &calendar.EventDateTime{DateTime: e.End.Format(time.RFC3339), TimeZone: e.Timezone}
	}
	return out
}

func fromUpstreamDateTime(dt *calendar.EventDateTime) (t time.Time, allDay bool, tz string) {
	if dt == nil {
		return time.Time{}, false, defaultTimezone
	}
	tz = dt.TimeZone
	if tz == "" {
		tz = defaultTimezone
	}
	if dt.Date != "" {
		parsed, err := time.Parse("2006-01-02", dt.Date)
		if err != nil {
			return time.Time{}, true, tz
		}
		return parsed, true, tz
	}
	parsed, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, false, tz
	}
	return parsed, false, tz
}
