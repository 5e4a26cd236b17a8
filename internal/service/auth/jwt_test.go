package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "test-secret-key-for-unit-testing-min-32-characters-long"

func TestNewJWTService(t *testing.T) {
	svc := NewJWTService(testSecret, 7*24*time.Hour)
	if svc == nil {
		t.Fatal("Expected non-nil service")
	}
}

func TestGenerateSessionToken(t *testing.T) {
	svc := NewJWTService(testSecret, 7*24*time.Hour)
	userID := uuid.New()

	token, expiry, err := svc.GenerateSessionToken(userID, "test@example.com")
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}
	if token == "" {
		t.Error("token should not be empty")
	}
	if expiry.Before(time.Now()) {
		t.Error("expiry should be in the future")
	}
}

func TestValidateSessionToken(t *testing.T) {
	svc := NewJWTService(testSecret, 7*24*time.Hour)
	userID := uuid.New()
	email := "test@example.com"

	token, _, err := svc.GenerateSessionToken(userID, email)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		claims, err := svc.ValidateSessionToken(token)
		if err != nil {
			t.Fatalf("ValidateSessionToken failed: %v", err)
		}
		if claims.UserID != userID {
			t.Errorf("Expected userID %s, got %s", userID, claims.UserID)
		}
		if claims.Email != email {
			t.Errorf("Expected email %s, got %s", email, claims.Email)
		}
		if claims.Issuer != issuer {
			t.Errorf("Expected issuer %s, got %s", issuer, claims.Issuer)
		}
	})

	t.Run("invalid token string", func(t *testing.T) {
		_, err := svc.ValidateSessionToken("invalid-token")
		if err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.ValidateSessionToken("")
		if err == nil {
			t.Error("Expected error for empty token")
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := svc.ValidateSessionToken("eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature")
		if err == nil {
			t.Error("Expected error for malformed token")
		}
	})
}

func TestSessionTokenExpiration(t *testing.T) {
	svc := NewJWTService(testSecret, 1*time.Millisecond)
	userID := uuid.New()

	token, _, err := svc.GenerateSessionToken(userID, "")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = svc.ValidateSessionToken(token)
	if err != ErrExpiredToken {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestWrongSecret(t *testing.T) {
	svc1 := NewJWTService("secret-one-is-very-long-at-least-32-chars", 7*24*time.Hour)
	svc2 := NewJWTService("secret-two-is-very-long-at-least-32-chars", 7*24*time.Hour)

	token, _, _ := svc1.GenerateSessionToken(uuid.New(), "")

	_, err := svc2.ValidateSessionToken(token)
	if err == nil {
		t.Error("Expected error when validating with wrong secret")
	}
}

func TestClaimsFields(t *testing.T) {
	svc := NewJWTService(testSecret, 7*24*time.Hour)
	userID := uuid.New()
	email := "claims@test.com"

	token, _, _ := svc.GenerateSessionToken(userID, email)
	claims, err := svc.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("ValidateSessionToken failed: %v", err)
	}

	if claims.UserID != userID {
		t.Error("UserID mismatch")
	}
	if claims.Email != email {
		t.Error("Email mismatch")
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != audience {
		t.Errorf("Audience mismatch: %v", claims.Audience)
	}
}

func BenchmarkGenerateSessionToken(b *testing.B) {
	svc := NewJWTService(testSecret, 7*24*time.Hour)
	userID := uuid.New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.GenerateSessionToken(userID, "test@example.com")
	}
}

func BenchmarkValidateSessionToken(b *testing.B) {
	svc := NewJWTService(testSecret, 7*24*time.Hour)
	token, _, _ := svc.GenerateSessionToken(uuid.New(), "")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.ValidateSessionToken(token)
	}
}
