package models

import "time"

// Token scopes. context_read grants context retrieval, context_write
// additionally grants ingestion, admin additionally grants revoking tokens
// other than the caller's own.
const (
	ScopeContextRead  = "context_read"
	ScopeContextWrite = "context_write"
	ScopeAdmin        = "admin"
)

// ValidScope reports whether s is one of the recognized token scopes.
func ValidScope(s string) bool {
	switch s {
	case ScopeContextRead, ScopeContextWrite, ScopeAdmin:
		return true
	}
	return false
}

// CapabilityToken is a short-lived, scope- and budget-bounded bearer
// credential. The token id is the secret: it is generated from crypto/rand
// and only ever stored server-side or held by the caller.
type CapabilityToken struct {
	TokenID          string    `json:"token_id"`
	ClientID         string    `json:"client_id"`
	Scope            string    `json:"scope"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	MaxContextTokens int       `json:"max_context_tokens"`
	Revoked          bool      `json:"revoked"`
}

// Valid reports whether the token can authorize a request right now.
// Expiry is always re-checked against the clock; the in-memory cache is an
// optimization, never the authority.
func (t *CapabilityToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// CanWrite reports whether the token's scope permits ingestion.
func (t *CapabilityToken) CanWrite() bool {
	return t.Scope == ScopeContextWrite || t.Scope == ScopeAdmin
}

// CanRevokeOther reports whether the token may revoke tokens other than
// itself.
func (t *CapabilityToken) CanRevokeOther() bool {
	return t.Scope == ScopeAdmin
}
