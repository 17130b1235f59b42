package auth

import (
	"strings"
	"testing"
	"time"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	now := time.Unix(1766000000, 0).UTC()
	manager := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		TokenTTL:      15 * time.Minute,
		Clock:         func() time.Time { return now },
	})

	token, expiresIn, err := manager.Issue("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry: %d", expiresIn)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a compact JWT, got %q", token)
	}

	subject, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1766000000, 0).UTC()
	manager := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return now },
	})

	token, _, err := manager.Issue("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := manager.Validate(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager(TokenManagerConfig{SigningSecret: []byte("secret-a")})
	validator := NewTokenManager(TokenManagerConfig{SigningSecret: []byte("secret-b")})

	token, _, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := validator.Validate(token); err == nil {
		t.Fatalf("expected foreign-secret token to be rejected")
	}
}

func TestIssueRequiresSecretAndSubject(t *testing.T) {
	manager := NewTokenManager(TokenManagerConfig{})
	if _, _, err := manager.Issue("user-1"); err == nil {
		t.Fatalf("expected missing secret error")
	}

	manager = NewTokenManager(TokenManagerConfig{SigningSecret: []byte("secret")})
	if _, _, err := manager.Issue(""); err == nil {
		t.Fatalf("expected missing subject error")
	}
}
