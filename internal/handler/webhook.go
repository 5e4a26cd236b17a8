package handler

import (
	"net/http"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/pkg/response"
	"github.com/calensync/backend/internal/service/webhook"
)

// WebhookHandler serves the push-notification ingest endpoint and the
// subscribe/unsubscribe pair that creates and tears down the channels
// those notifications arrive on.
type WebhookHandler struct {
	demux  notificationHandler
	subs   webhookSubscriber
	lookup webhookSubscriptionLookup
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(demux notificationHandler, subs webhookSubscriber, lookup webhookSubscriptionLookup) *WebhookHandler {
	return &WebhookHandler{demux: demux, subs: subs, lookup: lookup}
}

// Notify handles POST /api/v1/calendar/webhook
// @Summary Inbound upstream push notification
// @Description Always answers 200 so the upstream provider does not retry
// @Tags Calendar
// @Success 200
// @Router /calendar/webhook [post]
func (h *WebhookHandler) Notify(w http.ResponseWriter, r *http.Request) {
	n := webhook.Notification{
		ChannelID:         r.Header.Get("channel-id"),
		ResourceID:        r.Header.Get("resource-id"),
		ResourceState:     r.Header.Get("resource-state"),
		VerificationToken: r.Header.Get("channel-token"),
	}
	h.demux.Handle(r.Context(), n)
	w.WriteHeader(http.StatusOK)
}

// Subscribe handles POST /api/v1/calendar/webhook/subscribe
// @Summary Open a push-notification channel for the current user
// @Tags Calendar
// @Security SessionCookie
// @Success 201 {object} response.Envelope
// @Router /calendar/webhook/subscribe [post]
func (h *WebhookHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	sub, err := h.subs.Subscribe(r.Context(), userID)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.Created(w, sub)
}

// Unsubscribe handles POST /api/v1/calendar/webhook/unsubscribe
// @Summary Tear down the current user's active push channel
// @Tags Calendar
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope "No active subscription"
// @Router /calendar/webhook/unsubscribe [post]
func (h *WebhookHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	sub, err := h.lookup.GetActiveByUser(r.Context(), userID)
	if err != nil {
		if err == model.ErrNotFound {
			response.NotFound(w, "webhook subscription")
			return
		}
		response.Error(w, err, r.URL.Path)
		return
	}

	if err := h.subs.Unsubscribe(r.Context(), userID, sub); err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OKMessage(w, "unsubscribed")
}
