package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"mynd/internal/models"
	"mynd/internal/security"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	return NewTokenService(setupTestDB(t), time.Hour, 5*time.Minute, 8000)
}

func TestTokenIssueDefaults(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, "cli-agent", "", 0, 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if !strings.HasPrefix(token.TokenID, security.TokenPrefix) {
		t.Errorf("Token id missing prefix: %q", token.TokenID)
	}
	if token.Scope != models.ScopeContextRead {
		t.Errorf("Expected default scope %q, got %q", models.ScopeContextRead, token.Scope)
	}
	if token.MaxContextTokens != 8000 {
		t.Errorf("Expected default budget 8000, got %d", token.MaxContextTokens)
	}

	ttl := token.ExpiresAt.Sub(token.IssuedAt)
	if ttl != 5*time.Minute {
		t.Errorf("Expected default ttl 5m, got %s", ttl)
	}
}

func TestTokenIssueClamps(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, "cli-agent", models.ScopeContextRead, 24*time.Hour, 100000)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if ttl := token.ExpiresAt.Sub(token.IssuedAt); ttl != time.Hour {
		t.Errorf("Expected ttl clamped to 1h, got %s", ttl)
	}
	if token.MaxContextTokens != 8000 {
		t.Errorf("Expected budget clamped to 8000, got %d", token.MaxContextTokens)
	}
}

func TestTokenIssueRejectsBadInput(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	if _, err := service.Issue(ctx, "", "", 0, 0); err == nil {
		t.Error("Expected error for missing client_id")
	}
	if _, err := service.Issue(ctx, "c", "root", 0, 0); err == nil {
		t.Error("Expected error for unknown scope")
	}
	if _, err := service.Issue(ctx, "c", "", -time.Minute, 0); err == nil {
		t.Error("Expected error for negative ttl")
	}
}

func TestTokenValidate(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	token, _ := service.Issue(ctx, "cli-agent", "", time.Minute, 0)

	got, err := service.Validate(ctx, token.TokenID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.ClientID != "cli-agent" {
		t.Errorf("Wrong client: %q", got.ClientID)
	}

	if _, err := service.Validate(ctx, "mynd_unknown"); err == nil {
		t.Error("Expected error for unknown token")
	}
	if _, err := service.Validate(ctx, ""); err == nil {
		t.Error("Expected error for empty token")
	}
}

func TestTokenValidateExpired(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	token, _ := service.Issue(ctx, "cli-agent", "", time.Millisecond, 0)
	time.Sleep(5 * time.Millisecond)

	_, err := service.Validate(ctx, token.TokenID)
	if err == nil {
		t.Fatal("Expected expired token to fail validation")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Expected expiry error, got %v", err)
	}
}

func TestTokenValidAtExpiryInstant(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, "cli-agent", "", time.Hour, 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// A token is valid strictly before expires_at and invalid at the
	// exact instant and beyond.
	if !token.Valid(token.ExpiresAt.Add(-time.Nanosecond)) {
		t.Error("Token should be valid one instant before expiry")
	}
	if token.Valid(token.ExpiresAt) {
		t.Error("Token should be invalid at the exact expiry instant")
	}
	if token.Valid(token.ExpiresAt.Add(time.Nanosecond)) {
		t.Error("Token should be invalid after expiry")
	}
}

func TestTokenRevokeSelf(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	token, _ := service.Issue(ctx, "cli-agent", "", time.Minute, 0)

	if err := service.Revoke(ctx, token.TokenID, token); err != nil {
		t.Fatalf("Self-revoke failed: %v", err)
	}

	// Revocation is immediate, including past the cache.
	_, err := service.Validate(ctx, token.TokenID)
	if err == nil {
		t.Fatal("Expected revoked token to fail validation")
	}
	if !strings.Contains(err.Error(), "revoked") {
		t.Errorf("Expected revocation error, got %v", err)
	}
}

func TestTokenRevokeOtherRequiresAdmin(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	victim, _ := service.Issue(ctx, "client-a", "", time.Minute, 0)
	peer, _ := service.Issue(ctx, "client-b", "", time.Minute, 0)
	admin, _ := service.Issue(ctx, "operator", models.ScopeAdmin, time.Minute, 0)

	if err := service.Revoke(ctx, victim.TokenID, peer); err == nil {
		t.Error("Non-admin should not revoke another client's token")
	}
	if err := service.Revoke(ctx, victim.TokenID, admin); err != nil {
		t.Errorf("Admin revoke failed: %v", err)
	}
}

func TestTokenRevokeUnknown(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	admin, _ := service.Issue(ctx, "operator", models.ScopeAdmin, time.Minute, 0)
	if err := service.Revoke(ctx, "mynd_missing", admin); err == nil {
		t.Error("Expected error revoking unknown token")
	}
}

func TestTokenSweep(t *testing.T) {
	service := newTestTokenService(t)
	ctx := context.Background()

	service.Issue(ctx, "short", "", time.Millisecond, 0)
	service.Issue(ctx, "long", "", time.Minute, 0)
	time.Sleep(5 * time.Millisecond)

	swept, err := service.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("Expected 1 swept token, got %d", swept)
	}

	active, _ := service.ActiveCount(ctx)
	if active != 1 {
		t.Errorf("Expected 1 active token, got %d", active)
	}
}
