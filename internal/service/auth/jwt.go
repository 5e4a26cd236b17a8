package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

const (
	issuer   = "calendar-app"
	audience = "calendar-users"
)

// Claims is the session token payload: {userId, email, iat, exp}, signed
// HS256, one bearer cookie per session (no access/refresh pair).
type Claims struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// JWTService issues and validates session tokens.
type JWTService struct {
	secretKey []byte
	lifetime  time.Duration
}

// NewJWTService creates a new session JWT service.
func NewJWTService(secretKey string, lifetime time.Duration) *JWTService {
	return &JWTService{secretKey: []byte(secretKey), lifetime: lifetime}
}

// GenerateSessionToken issues a signed session token for a user.
func (s *JWTService) GenerateSessionToken(userID uuid.UUID, email string) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(s.lifetime)

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	return signed, expiry, err
}

// ValidateSessionToken parses and validates a session token, checking
// signing method, issuer, and audience.
func (s *JWTService) ValidateSessionToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Issuer != issuer {
		return nil, ErrInvalidToken
	}
	if !hasAudience(claims.Audience, audience) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func hasAudience(claimed jwt.ClaimStrings, want string) bool {
	for _, a := range claimed {
		if a == want {
			return true
		}
	}
	return false
}
