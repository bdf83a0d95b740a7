package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Minute)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Issue("session-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sid, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sid != "session-1" {
		t.Fatalf("expected session-1, got %s", sid)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("secret-a", time.Minute)
	b, _ := NewTokenIssuer("secret-b", time.Minute)
	token, _ := a.Issue("session-1")
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _ := issuer.Issue("session-1")
	issuer.now = time.Now
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Minute); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
