package auth

import (
	"testing"
	"time"
)

func TestSessionIssuerTokensPassValidation(t *testing.T) {
	clockNow := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		TokenTTL:      15 * time.Minute,
		Clock:         func() time.Time { return clockNow },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	token, expiresAt, err := issuer.Issue(SessionIdentity{
		UserID:      "user-321",
		Email:       "lead@example.com",
		DisplayName: "Team Lead",
		Roles:       []string{"admin"},
	})
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	if !expiresAt.Equal(clockNow.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := newTestValidator(t, clockNow.Add(time.Minute)).ValidateToken(token)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if claims.UserID != "user-321" || claims.Subject != "user-321" {
		t.Fatalf("unexpected identity %+v", claims)
	}
	if len(claims.UserRoles) != 1 || claims.UserRoles[0] != "admin" {
		t.Fatalf("unexpected roles %v", claims.UserRoles)
	}

	if _, err := newTestValidator(t, clockNow.Add(time.Hour)).ValidateToken(token); err != ErrExpiredSessionToken {
		t.Fatalf("expected expiry after ttl, got %v", err)
	}
}

func TestSessionIssuerRequiresSecretAndUser(t *testing.T) {
	if _, err := NewSessionIssuer(SessionIssuerConfig{}); err == nil {
		t.Fatalf("expected constructor error for missing secret")
	}
	issuer, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, _, err := issuer.Issue(SessionIdentity{UserID: " "}); err == nil {
		t.Fatalf("expected error for blank user id")
	}
}
