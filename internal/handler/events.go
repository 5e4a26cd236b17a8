package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/middleware"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/pkg/response"
	"github.com/calensync/backend/internal/service/eventstore"
)

// EventsHandler serves the calendar event surface: reads go through the
// Event Store Facade directly, mutations go through the Write-Through
// Mediator so they round-trip the upstream provider before the local row
// is considered committed.
type EventsHandler struct {
	store    eventService
	mediator writeThroughMediator
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(store eventService, mediator writeThroughMediator) *EventsHandler {
	return &EventsHandler{store: store, mediator: mediator}
}

func currentUserID(r *http.Request) (uuid.UUID, bool) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		return uuid.UUID{}, false
	}
	return claims.UserID, true
}

func requireAuth(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := currentUserID(r)
	if !ok {
		response.Error(w, apperr.New(apperr.Unauthenticated, "not authenticated"), r.URL.Path)
		return uuid.UUID{}, false
	}
	return userID, true
}

// List handles GET /api/v1/calendar/events
// @Summary List events
// @Description Paginated, filtered event list
// @Tags Calendar
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Router /calendar/events [get]
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	filter := parseEventFilter(r)
	page, err := h.store.List(r.Context(), userID, filter)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OK(w, page)
}

// Range handles GET /api/v1/calendar/events/range/{window}
// @Summary Bulk events within a canonical range
// @Tags Calendar
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Router /calendar/events/range/{window} [get]
func (h *EventsHandler) Range(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	window := chi.URLParam(r, "window")
	start, end, err := resolveRange(window, r)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}

	filter := model.EventFilter{StartDate: &start, EndDate: &end, Limit: 100}
	page, err := h.store.List(r.Context(), userID, filter)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OK(w, page)
}

// resolveRange computes the start and end bounds for a canonical range
// name; the event listing applies the end bound inclusively. "custom" requires explicit start/end query parameters in RFC3339.
func resolveRange(window string, r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	switch window {
	case "today":
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1), nil
	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // treat Sunday as the end of a Monday-start week
		}
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(weekday - 1))
		return start, start.AddDate(0, 0, 7), nil
	case "month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	case "custom":
		startStr := r.URL.Query().Get("start")
		endStr := r.URL.Query().Get("end")
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, apperr.New(apperr.Validation, "start must be RFC3339")
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, apperr.New(apperr.Validation, "end must be RFC3339")
		}
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, apperr.New(apperr.Validation, "unrecognized range "+window)
	}
}

// Get handles GET /api/v1/calendar/events/{id}
// @Summary Single event
// @Tags Calendar
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope "Event not found"
// @Router /calendar/events/{id} [get]
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apperr.New(apperr.Validation, "invalid event id"), r.URL.Path)
		return
	}

	event, err := h.store.Get(r.Context(), userID, id)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OK(w, event)
}

// Search handles GET /api/v1/calendar/search
// @Summary Free-text search
// @Tags Calendar
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope "Query too short"
// @Router /calendar/search [get]
func (h *EventsHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	if len(q) < 2 {
		response.Error(w, apperr.New(apperr.Validation, "q must be at least 2 characters"), r.URL.Path)
		return
	}

	filter := model.EventFilter{Search: q, Limit: 50}
	page, err := h.store.List(r.Context(), userID, filter)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OK(w, page)
}

// Create handles POST /api/v1/calendar/events
// @Summary Write-through create
// @Tags Calendar
// @Accept json
// @Security SessionCookie
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope "Invalid event body"
// @Router /calendar/events [post]
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var e model.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		response.Error(w, apperr.New(apperr.Validation, "invalid request body"), r.URL.Path)
		return
	}

	created, err := h.mediator.CreateEvent(r.Context(), userID, &e)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.Created(w, created)
}

// Update handles PUT /api/v1/calendar/events/{id}
// @Summary Write-through update (sparse body)
// @Tags Calendar
// @Accept json
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope "Event not found"
// @Router /calendar/events/{id} [put]
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apperr.New(apperr.Validation, "invalid event id"), r.URL.Path)
		return
	}

	var patch eventstore.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.Error(w, apperr.New(apperr.Validation, "invalid request body"), r.URL.Path)
		return
	}

	updated, err := h.mediator.UpdateEvent(r.Context(), userID, id, patch)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OK(w, updated)
}

// Delete handles DELETE /api/v1/calendar/events/{id}
// @Summary Write-through delete
// @Tags Calendar
// @Security SessionCookie
// @Success 204
// @Failure 404 {object} response.ErrorEnvelope "Event not found"
// @Router /calendar/events/{id} [delete]
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apperr.New(apperr.Validation, "invalid event id"), r.URL.Path)
		return
	}

	if err := h.mediator.DeleteEvent(r.Context(), userID, id); err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.NoContent(w)
}

func parseEventFilter(r *http.Request) model.EventFilter {
	q := r.URL.Query()
	filter := model.EventFilter{
		Status: model.EventStatus(q.Get("status")),
		Source: model.EventSource(q.Get("source")),
		Search: q.Get("q"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if start, err := time.Parse(time.RFC3339, q.Get("startDate")); err == nil {
		filter.StartDate = &start
	}
	if end, err := time.Parse(time.RFC3339, q.Get("endDate")); err == nil {
		filter.EndDate = &end
	}
	filter.Normalize()
	return filter
}
