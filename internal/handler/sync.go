package handler

import (
	"encoding/json"
	"net/http"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/pkg/response"
	"github.com/calensync/backend/internal/service/sync"
)

// SyncHandler drives the Sync Engine's on-demand surface: a single
// incremental-or-full pass and a wide-window batch backfill.
type SyncHandler struct {
	engine syncRunner
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(engine syncRunner) *SyncHandler {
	return &SyncHandler{engine: engine}
}

// Trigger handles POST /api/v1/calendar/sync
// @Summary Run one sync pass
// @Description Incremental sync if a cursor exists, otherwise full sync
// @Tags Calendar
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.ErrorEnvelope "Sync already running"
// @Router /calendar/sync [post]
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Run(r.Context(), userID, sync.Options{})
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OK(w, result)
}

// BatchSync handles POST /api/v1/calendar/batch-sync
// @Summary Run a forced full sync over an explicit or default window
// @Tags Calendar
// @Accept json
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.ErrorEnvelope "Sync already running"
// @Router /calendar/batch-sync [post]
func (h *SyncHandler) BatchSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req model.BatchSyncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, apperr.New(apperr.Validation, "invalid request body"), r.URL.Path)
			return
		}
	}

	result, err := h.engine.Run(r.Context(), userID, sync.Options{
		ForceFullSync: true,
		TimeMin:       req.StartDate,
		TimeMax:       req.EndDate,
	})
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	response.OK(w, result)
}
