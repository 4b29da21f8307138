package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	// TokenPrefix marks capability token ids so they are recognizable in
	// caller configuration without revealing anything about their contents.
	TokenPrefix = "mynd_"
	// TokenBytes is the entropy of the random part (32 bytes = 64 hex chars).
	TokenBytes = 32
	// AuditDigestLen is how many hex chars of a digest the audit log keeps.
	// Truncated for storage economy; 64 bits is plenty against casual
	// collision while staying non-reversible.
	AuditDigestLen = 16
)

// NewTokenID generates an unguessable capability token id.
func NewTokenID() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(buf), nil
}

// Hash represents a SHA-256 hash (32 bytes).
type Hash [32]byte

// HashData computes the SHA-256 hash of byte data.
func HashData(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// String returns the hash as a hex string.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Equal compares two hashes in constant time.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

// AuditDigest returns the truncated one-way digest stored in audit entries
// in place of raw token ids and raw query text.
func AuditDigest(s string) string {
	if s == "" {
		return ""
	}
	return HashData([]byte(s)).String()[:AuditDigestLen]
}
