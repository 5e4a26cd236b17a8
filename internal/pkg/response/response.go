package response

import (
	"encoding/json"
	"net/http"

	"github.com/calensync/backend/internal/apperr"
)

// Envelope is the success-shaped response body: { success: true, data, message? }.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ProblemDetail is the RFC7807-shaped error body nested under "error".
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ErrorEnvelope is the error-shaped response body: { success: false, error }.
type ErrorEnvelope struct {
	Success bool          `json:"success"`
	Error   ProblemDetail `json:"error"`
}

// JSON writes status and data as a raw JSON body, with no envelope wrapping.
// Handlers normally use OK/Created/Error instead; JSON is exposed for the
// few endpoints (health checks) that don't follow
// the success/error envelope shape.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// OKMessage writes a 200 success envelope with no data, just a message.
func OKMessage(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error renders err as the RFC7807-shaped error envelope. Classified
// *apperr.Error values drive the kind/title/status; anything else is
// treated as apperr.Internal, and its detail is never echoed to the
// caller.
func Error(w http.ResponseWriter, err error, instance string) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(apperr.Internal, "internal error", err)
	}

	status := apperr.HTTPStatus(ae.Kind)
	detail := ae.Detail
	if ae.Kind == apperr.Internal {
		detail = ""
	}

	JSON(w, status, ErrorEnvelope{
		Success: false,
		Error: ProblemDetail{
			Type:     apperr.TypeURI(ae.Kind),
			Title:    ae.Title,
			Status:   status,
			Detail:   detail,
			Instance: instance,
		},
	})
}

// ValidationFailed is a convenience wrapper for the common field/reason
// validation failure shape.
func ValidationFailed(w http.ResponseWriter, field, reason string) {
	Error(w, apperr.New(apperr.Validation, "validation failed").WithDetail(field+": "+reason), "")
}

// NotFound is a convenience wrapper naming the missing resource.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, apperr.New(apperr.NotFound, resource+" not found"), "")
}
