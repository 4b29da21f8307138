package models

import "time"

// Audit event kinds.
const (
	AuditTokenIssued     = "token_issued"
	AuditContextAccessed = "context_accessed"
	AuditTokenRevoked    = "token_revoked"
	AuditAccessRejected  = "access_rejected"
	AuditMemoryStored    = "memory_stored"
)

// AuditEntry is one append-only record of a security-relevant event. It
// carries one-way hashes only: raw token ids and raw query text never reach
// the audit table.
type AuditEntry struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	EventKind     string    `json:"event_kind"`
	ClientID      string    `json:"client_id"`
	HashedTokenID string    `json:"hashed_token_id"`
	HashedQuery   string    `json:"hashed_query,omitempty"`
	TokensServed  int       `json:"tokens_served"`
}
