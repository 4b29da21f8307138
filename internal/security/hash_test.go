package security

import (
	"strings"
	"testing"
)

func TestNewTokenID(t *testing.T) {
	id, err := NewTokenID()
	if err != nil {
		t.Fatalf("Failed to generate token id: %v", err)
	}

	if !strings.HasPrefix(id, TokenPrefix) {
		t.Errorf("Expected token to start with %q, got %q", TokenPrefix, id)
	}

	expectedLen := len(TokenPrefix) + TokenBytes*2
	if len(id) != expectedLen {
		t.Errorf("Expected token length %d, got %d", expectedLen, len(id))
	}

	id2, err := NewTokenID()
	if err != nil {
		t.Fatalf("Failed to generate second token id: %v", err)
	}
	if id == id2 {
		t.Error("Generated token ids should be unique")
	}
}

func TestAuditDigest(t *testing.T) {
	digest := AuditDigest("mynd_deadbeef")

	if len(digest) != AuditDigestLen {
		t.Errorf("Expected digest length %d, got %d", AuditDigestLen, len(digest))
	}

	if digest == "mynd_deadbeef" {
		t.Error("Digest should not equal the input")
	}

	// Deterministic
	if AuditDigest("mynd_deadbeef") != digest {
		t.Error("Digest should be deterministic")
	}

	// Distinct inputs, distinct digests
	if AuditDigest("mynd_cafebabe") == digest {
		t.Error("Different inputs should produce different digests")
	}
}

func TestAuditDigestEmpty(t *testing.T) {
	if got := AuditDigest(""); got != "" {
		t.Errorf("Expected empty digest for empty input, got %q", got)
	}
}

func TestHashEqual(t *testing.T) {
	a := HashData([]byte("secret-value"))
	b := HashData([]byte("secret-value"))
	c := HashData([]byte("other-value"))

	if !a.Equal(b) {
		t.Error("Equal inputs should produce equal hashes")
	}
	if a.Equal(c) {
		t.Error("Different inputs should not produce equal hashes")
	}
	if len(a.String()) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a.String()))
	}
}
