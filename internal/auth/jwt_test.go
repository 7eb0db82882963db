package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "test-issuer", time.Minute, Claims{
		UserID:   "user-1",
		UserType: "driver",
	})
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", claims.UserID)
	}
	if claims.UserType != "driver" {
		t.Fatalf("expected driver, got %s", claims.UserType)
	}
	if claims.Issuer != "test-issuer" {
		t.Fatalf("expected issuer, got %s", claims.Issuer)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewAccessToken("secret", "test-issuer", time.Minute, Claims{
		UserID:   "user-1",
		UserType: "student",
	})
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if _, err := ParseToken("other-secret", token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestTokenExpired(t *testing.T) {
	token, err := NewAccessToken("secret", "test-issuer", -time.Minute, Claims{
		UserID:   "user-1",
		UserType: "admin",
	})
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
