package model

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle status of an Event, mirrored from upstream.
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusTentative EventStatus = "tentative"
	EventStatusCancelled EventStatus = "cancelled"
)

// EventSource identifies where an Event row originated.
type EventSource string

const (
	EventSourceUpstream EventSource = "upstream"
	EventSourceManual   EventSource = "manual"
	EventSourceImported EventSource = "imported"
)

// Attendee is one entry in an Event's attendee list. Stored as JSONB; a
// malformed or absent serialization must be read back as an empty list,
// never an error.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	Optional       bool   `json:"optional,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"` // "needsAction", "accepted", "declined", "tentative"
}

// Event is a local replica row for a single calendar event.
type Event struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	UserID          uuid.UUID   `json:"-" db:"user_id"`
	UpstreamEventID *string     `json:"-" db:"upstream_event_id"`
	Title           string      `json:"title" db:"title"`
	Description     string      `json:"description,omitempty" db:"description"`
	Start           time.Time   `json:"start" db:"start_at"`
	End             time.Time   `json:"end" db:"end_at"`
	Location        string      `json:"location,omitempty" db:"location"`
	Attendees       []Attendee  `json:"attendees,omitempty" db:"attendees"`
	AllDay          bool        `json:"allDay" db:"all_day"`
	Timezone        string      `json:"timezone" db:"timezone"`
	Status          EventStatus `json:"status" db:"status"`
	Source          EventSource `json:"source" db:"source"`
	CreatedAt       time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" db:"updated_at"`
	LastModified    time.Time   `json:"lastModified" db:"last_modified"`
}

// Validate enforces the Event Store Facade's local invariants: end≥start,
// well-formed attendee emails, and a recognized status.
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrValidation{Field: "title", Reason: "must not be empty"}
	}
	if e.End.Before(e.Start) {
		return ErrValidation{Field: "end", Reason: "must not be before start"}
	}
	switch e.Status {
	case EventStatusConfirmed, EventStatusTentative, EventStatusCancelled, "":
	default:
		return ErrValidation{Field: "status", Reason: "unrecognized status " + string(e.Status)}
	}
	for _, a := range e.Attendees {
		if !looksLikeEmail(a.Email) {
			return ErrValidation{Field: "attendees", Reason: "malformed email " + a.Email}
		}
	}
	return nil
}

func looksLikeEmail(s string) bool {
	at := -1
	for i, c := range s {
		if c == '@' {
			at = i
			break
		}
	}
	return at > 0 && at < len(s)-1
}

// EventFilter is the Event Store Facade's list query contract.
type EventFilter struct {
	Page      int
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
	Status    EventStatus
	Source    EventSource // "" or "all" means no source filter
	Search    string
}

// Normalize applies the facade's defaults and bounds: page≥1, limit in
// [1,100] defaulting to 50.
func (f *EventFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

// EventPage is a single page of a filtered event list, plus the total
// count under the same filter (ignoring pagination).
type EventPage struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}
