package handler

import (
	"net/http"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/middleware"
	"github.com/calensync/backend/internal/pkg/response"
	"github.com/calensync/backend/internal/service/oauthflow"
)

// AuthHandler drives the authorization-code flow's HTTP surface: the
// redirect-based initiate/callback pair, a forced-refresh endpoint, logout,
// and the two read-only identity endpoints the frontend polls.
type AuthHandler struct {
	orchestrator oauthOrchestrator
	tokens       credentialManager
	users        userLookup
	cookieName   string
	secureCookie bool
	frontendURL  string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(orchestrator oauthOrchestrator, tokens credentialManager, users userLookup, cookieName string, secureCookie bool, frontendURL string) *AuthHandler {
	return &AuthHandler{
		orchestrator: orchestrator,
		tokens:       tokens,
		users:        users,
		cookieName:   cookieName,
		secureCookie: secureCookie,
		frontendURL:  frontendURL,
	}
}

// InitiateGoogle handles GET /api/v1/auth/google
// @Summary Start the Google authorization-code flow
// @Description Redirects the browser to the upstream consent screen
// @Tags Auth
// @Success 302
// @Router /auth/google [get]
func (h *AuthHandler) InitiateGoogle(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.orchestrator.Initiate(r.Context())
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}
	oauthflow.SetStateCookie(w, state, h.secureCookie)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /api/v1/auth/google/callback
// @Summary Complete the Google authorization-code flow
// @Description Exchanges the code, issues a session cookie, redirects to the frontend
// @Tags Auth
// @Success 302
// @Failure 400 {object} response.ErrorEnvelope "Invalid or expired state"
// @Router /auth/google/callback [get]
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	var sessionState string
	if c, err := r.Cookie(oauthflow.StateCookieName); err == nil {
		sessionState = c.Value
	}
	oauthflow.ClearStateCookie(w, h.secureCookie)

	result, err := h.orchestrator.Callback(r.Context(), state, sessionState, code)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}

	oauthflow.SetSessionCookie(w, h.cookieName, result.SessionToken, result.ExpiresAt, h.secureCookie)
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// Refresh handles POST /api/v1/auth/refresh
// @Summary Force an upstream token refresh
// @Tags Auth
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope "Not authenticated"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.Error(w, apperr.New(apperr.Unauthenticated, "not authenticated"), r.URL.Path)
		return
	}

	tokens, err := h.tokens.Refresh(r.Context(), claims.UserID)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}

	response.OK(w, struct {
		ExpiresAt string `json:"expiresAt"`
	}{ExpiresAt: tokens.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")})
}

// Logout handles POST /api/v1/auth/logout
// @Summary Revoke upstream tokens and clear the session cookie
// @Tags Auth
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims != nil {
		if err := h.tokens.Revoke(r.Context(), claims.UserID); err != nil {
			response.Error(w, err, r.URL.Path)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.OKMessage(w, "logged out")
}

// Me handles GET /api/v1/auth/me
// @Summary Current user profile
// @Tags Auth
// @Security SessionCookie
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope "Not authenticated"
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.Error(w, apperr.New(apperr.Unauthenticated, "not authenticated"), r.URL.Path)
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		response.Error(w, err, r.URL.Path)
		return
	}

	response.OK(w, user)
}

// Status handles GET /api/v1/auth/status
// @Summary Session presence check
// @Tags Auth
// @Success 200 {object} response.Envelope
// @Router /auth/status [get]
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.OK(w, struct {
			Authenticated bool `json:"authenticated"`
		}{Authenticated: false})
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		response.OK(w, struct {
			Authenticated bool `json:"authenticated"`
		}{Authenticated: false})
		return
	}

	response.OK(w, struct {
		Authenticated bool        `json:"authenticated"`
		User          interface{} `json:"user"`
	}{Authenticated: true, User: user})
}
