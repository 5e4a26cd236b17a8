package calendarapi

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/calensync/backend/internal/model"
)

func TestFromUpstreamEventTimedInstant(t *testing.T) {
	ev := &calendar.Event{
		Id:      "evt123",
		Summary: "Standup",
		Status:  "confirmed",
		Start:   &calendar.EventDateTime{DateTime: "2026-03-05T09:00:00Z", TimeZone: "UTC"},
		End:     &calendar.EventDateTime{DateTime: "2026-03-05T09:30:00Z", TimeZone: "UTC"},
	}

	got := fromUpstreamEvent(ev)

	if got.UpstreamEventID == nil || *got.UpstreamEventID != "evt123" {
		t.Errorf("UpstreamEventID = %v, want evt123", got.UpstreamEventID)
	}
	if got.AllDay {
		t.Error("expected AllDay=false for a timed event")
	}
	if got.Status != model.EventStatusConfirmed {
		t.Errorf("Status = %v, want confirmed", got.Status)
	}
	want := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	if !got.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", got.Start, want)
	}
}

func TestFromUpstreamEventMapsLastModified(t *testing.T) {
	ev := &calendar.Event{
		Id:      "evt789",
		Start:   &calendar.EventDateTime{DateTime: "2026-03-05T09:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2026-03-05T09:30:00Z"},
		Updated: "2026-03-04T12:00:00Z",
	}

	got := fromUpstreamEvent(ev)

	want := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	if !got.LastModified.Equal(want) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, want)
	}
	if got.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", got.Timezone)
	}
}

func TestFromUpstreamEventAllDay(t *testing.T) {
	ev := &calendar.Event{
		Id:     "evt456",
		Start:  &calendar.EventDateTime{Date: "2026-03-05"},
		End:    &calendar.EventDateTime{Date: "2026-03-06"},
		Status: "tentative",
	}

	got := fromUpstreamEvent(ev)

	if !got.AllDay {
		t.Error("expected AllDay=true for a date-only event")
	}
	if got.Status != model.EventStatusTentative {
		t.Errorf("Status = %v, want tentative", got.Status)
	}
}

func TestToUpstreamEventRoundTripsAllDay(t *testing.T) {
	e := &model.Event{
		Title:  "Offsite",
		AllDay: true,
		Start:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	}

	out := toUpstreamEvent(e)

	if out.Start.Date != "2026-04-01" {
		t.Errorf("Start.Date = %q, want 2026-04-01", out.Start.Date)
	}
	if out.Start.DateTime != "" {
		t.Errorf("expected empty DateTime for all-day event, got %q", out.Start.DateTime)
	}
}

func TestToUpstreamEventRoundTripsTimed(t *testing.T) {
	e := &model.Event{
		Title:    "Review",
		Timezone: "America/New_York",
		Start:    time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC),
	}

	out := toUpstreamEvent(e)

	if out.Start.Date != "" {
		t.Errorf("expected empty Date for timed event, got %q", out.Start.Date)
	}
	if out.Start.TimeZone != "America/New_York" {
		t.Errorf("TimeZone = %q, want America/New_York", out.Start.TimeZone)
	}
}

func TestMapStatusDefaultsToConfirmed(t *testing.T) {
	if got := mapStatus(""); got != model.EventStatusConfirmed {
		t.Errorf("mapStatus(\"\") = %v, want confirmed", got)
	}
	if got := mapStatus("cancelled"); got != model.EventStatusCancelled {
		t.Errorf("mapStatus(cancelled) = %v, want cancelled", got)
	}
}

func TestMapAttendeesRoundTrip(t *testing.T) {
	attendees := []model.Attendee{
		{Email: "a@example.com", DisplayName: "A", ResponseStatus: "accepted"},
		{Email: "b@example.com", Optional: true},
	}

	upstream := mapAttendeesToUpstream(attendees)
	if len(upstream) != 2 {
		t.Fatalf("expected 2 upstream attendees, got %d", len(upstream))
	}

	back := mapAttendees(upstream)
	if len(back) != 2 || back[0].Email != "a@example.com" || !back[1].Optional {
		t.Errorf("attendee round trip mismatch: %+v", back)
	}
}

func TestMapAttendeesEmptyIsNil(t *testing.T) {
	if got := mapAttendees(nil); got != nil {
		t.Errorf("expected nil for no attendees, got %v", got)
	}
	if got := mapAttendeesToUpstream(nil); got != nil {
		t.Errorf("expected nil for no attendees, got %v", got)
	}
}
