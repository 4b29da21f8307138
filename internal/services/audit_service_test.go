package services

import (
	"context"
	"strings"
	"testing"

	"mynd/internal/models"
	"mynd/internal/security"
)

func TestAuditRecordHashesSecrets(t *testing.T) {
	service := NewAuditService(setupTestDB(t))
	ctx := context.Background()

	rawToken := "mynd_0123456789abcdef"
	rawQuery := "what did we decide about postgres"

	service.Record(ctx, models.AuditContextAccessed, "cli-agent", rawToken, rawQuery, 420)

	entries, err := service.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.EventKind != models.AuditContextAccessed {
		t.Errorf("Wrong kind: %q", e.EventKind)
	}
	if e.TokensServed != 420 {
		t.Errorf("Wrong token count: %d", e.TokensServed)
	}

	// Never the raw values, always the truncated digests.
	if strings.Contains(e.HashedTokenID, rawToken) || e.HashedTokenID == rawToken {
		t.Error("Raw token id reached the audit log")
	}
	if e.HashedQuery == rawQuery {
		t.Error("Raw query reached the audit log")
	}
	if len(e.HashedTokenID) != security.AuditDigestLen {
		t.Errorf("Expected %d-char token digest, got %d", security.AuditDigestLen, len(e.HashedTokenID))
	}
	if e.HashedTokenID != security.AuditDigest(rawToken) {
		t.Error("Token digest should be deterministic")
	}
}

func TestAuditRecentOrder(t *testing.T) {
	service := NewAuditService(setupTestDB(t))
	ctx := context.Background()

	service.Record(ctx, models.AuditTokenIssued, "a", "t1", "", 0)
	service.Record(ctx, models.AuditTokenRevoked, "a", "t1", "", 0)

	entries, _ := service.Recent(ctx, 10)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventKind != models.AuditTokenRevoked {
		t.Error("Expected newest entry first")
	}

	// Events without a query keep an empty digest, not a hash of "".
	if entries[0].HashedQuery != "" {
		t.Errorf("Expected empty query digest, got %q", entries[0].HashedQuery)
	}
}
