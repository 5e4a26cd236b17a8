// Package oauthflow drives the authorization-code flow end to end:
// initiating a request to the upstream provider and completing it on
// callback, exchanging the code, upserting the local user, storing
// credentials through the Token Manager, and issuing a session cookie.
package oauthflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/service/auth"
	"github.com/calensync/backend/internal/service/calendarapi"
	"github.com/calensync/backend/internal/service/token"
)

const stateTokenBytes = 32

// StateCookieName is the short-lived cookie Initiate stashes the CSRF state
// nonce in, so Callback can compare it against the query-string state
// independently of the storage lookup.
const StateCookieName = "oauth_state"

// stateStore is the slice of OAuthStateRepository the orchestrator depends
// on, narrowed to an interface for testability.
type stateStore interface {
	Create(ctx context.Context, s *model.OAuthState) error
	ConsumeAndDelete(ctx context.Context, state string) (*model.OAuthState, error)
}

// userStore is the slice of UserRepository the orchestrator depends on.
type userStore interface {
	GetByUpstreamID(ctx context.Context, upstreamUserID string) (*model.User, error)
	Upsert(ctx context.Context, user *model.User) error
}

// Result is the outcome of a successful callback: the session cookie value
// to set, its expiry, and the local user it belongs to.
type Result struct {
	SessionToken string
	ExpiresAt    time.Time
	UserID       uuid.UUID
}

// Orchestrator implements the authorization-code flow.
type Orchestrator struct {
	states      stateStore
	users       userStore
	client      calendarapi.Client
	tokens      *token.Manager
	jwtService  *auth.JWTService
}

// NewOrchestrator builds an OAuth Orchestrator.
func NewOrchestrator(states stateStore, users userStore, client calendarapi.Client, tokens *token.Manager, jwtService *auth.JWTService) *Orchestrator {
	return &Orchestrator{states: states, users: users, client: client, tokens: tokens, jwtService: jwtService}
}

// Initiate generates a CSRF state nonce, persists it, and returns the
// upstream authorization URL the caller should redirect the browser to
// along with the state value, so the caller can also stash it in the
// browser's session (a cookie, in the HTTP handler) for Callback to
// compare against independently of the storage lookup.
func (o *Orchestrator) Initiate(ctx context.Context) (authURL, state string, err error) {
	state, err = randomState()
	if err != nil {
		return "", "", apperr.Wrap(apperr.Internal, "generate state token", err)
	}

	row := &model.OAuthState{
		State:     state,
		ExpiresAt: time.Now().UTC().Add(model.OAuthStateExpiry),
		CreatedAt: time.Now().UTC(),
	}
	if err := o.states.Create(ctx, row); err != nil {
		return "", "", apperr.Wrap(apperr.Internal, "persist oauth state", err)
	}

	return o.client.AuthCodeURL(state), state, nil
}

// Callback completes the flow: compares the query-string state against the
// caller's stashed session state, validates it against storage, exchanges
// the code, upserts the user, stores credentials, and issues a session
// token. sessionState is whatever the caller read back from its own state
// cookie; an empty or mismatched value is rejected before storage is ever
// consulted.
func (o *Orchestrator) Callback(ctx context.Context, state, sessionState, code string) (*Result, error) {
	if sessionState == "" || state != sessionState {
		return nil, apperr.New(apperr.Validation, "oauth state mismatch")
	}

	if _, err := o.states.ConsumeAndDelete(ctx, state); err != nil {
		if err == model.ErrNotFound {
			return nil, apperr.New(apperr.Validation, "oauth state absent or expired")
		}
		return nil, apperr.Wrap(apperr.Internal, "consume oauth state", err)
	}

	tok, err := o.client.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "exchange authorization code", err)
	}

	upstreamUserID, email, displayName, pictureURL, err := o.client.FetchProfile(ctx, calendarapi.Credentials{
		AccessToken: tok.AccessToken,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "fetch upstream profile", err)
	}

	existing, err := o.users.GetByUpstreamID(ctx, upstreamUserID)
	var userID uuid.UUID
	if err == nil {
		userID = existing.ID
	} else if err == model.ErrNotFound {
		userID = uuid.New()
	} else {
		return nil, apperr.Wrap(apperr.Internal, "look up user by upstream id", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:             userID,
		UpstreamUserID: &upstreamUserID,
		Email:          email,
		DisplayName:    displayName,
		PictureURL:     pictureURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.users.Upsert(ctx, user); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "upsert user", err)
	}

	if err := o.tokens.Store(ctx, userID, token.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}); err != nil {
		return nil, err
	}

	sessionToken, expiresAt, err := o.jwtService.GenerateSessionToken(userID, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "issue session token", err)
	}

	return &Result{SessionToken: sessionToken, ExpiresAt: expiresAt, UserID: userID}, nil
}

// SetSessionCookie writes the session cookie the way the callback handler
// hands it back to the browser: HttpOnly, SameSite=Lax, Secure outside dev.
func SetSessionCookie(w http.ResponseWriter, cookieName, value string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetStateCookie stashes the CSRF state nonce in a short-lived cookie for
// Callback to read back and compare against the query-string state.
func SetStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(model.OAuthStateExpiry / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie expires the state cookie once Callback has consumed it.
func ClearStateCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
