package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/pkg/response"
	"github.com/calensync/backend/internal/service/auth"
)

var errUnauthenticated = apperr.New(apperr.Unauthenticated, "authentication required")

// contextKey is a type for context keys
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"

	// SessionCookieName is the HTTP-only cookie carrying the session token.
	SessionCookieName = "auth_token"
)

// Auth is a middleware that validates the session cookie and checks the
// revocation blacklist.
func Auth(jwtService *auth.JWTService, blacklist *auth.TokenBlacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(r, jwtService, blacklist)
			if !ok {
				response.Error(w, errUnauthenticated, r.URL.Path)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth validates the session cookie if present, but never rejects
// the request; used by endpoints like /auth/status that behave differently
// for signed-in vs anonymous callers without requiring a session.
func OptionalAuth(jwtService *auth.JWTService, blacklist *auth.TokenBlacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(r, jwtService, blacklist)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, jwtService *auth.JWTService, blacklist *auth.TokenBlacklist) (*auth.Claims, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	claims, err := jwtService.ValidateSessionToken(cookie.Value)
	if err != nil {
		return nil, false
	}

	if blacklist == nil {
		return claims, true
	}

	revoked, err := blacklist.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		slog.Warn("failed to check token blacklist", "error", err, "tokenID", claims.ID)
	} else if revoked {
		return nil, false
	}

	if claims.IssuedAt != nil {
		userRevoked, err := blacklist.IsUserRevokedSince(r.Context(), claims.UserID.String(), claims.IssuedAt.Time)
		if err != nil {
			slog.Warn("failed to check user token revocation", "error", err, "userID", claims.UserID)
		} else if userRevoked {
			return nil, false
		}
	}

	return claims, true
}

// GetClaims retrieves the JWT claims from context
func GetClaims(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}
