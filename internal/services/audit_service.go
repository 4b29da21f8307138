package services

import (
	"context"
	"log"
	"time"

	"mynd/internal/database"
	"mynd/internal/models"
	"mynd/internal/security"
)

// AuditService appends security events to the audit log. Entries carry
// truncated one-way hashes in place of raw token ids and raw query text.
// Appends are best-effort: a failure is logged locally and never blocks the
// operation being audited.
type AuditService struct {
	db *database.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends one audit entry. rawTokenID and rawQuery are hashed here so
// no caller can accidentally persist them; pass "" when not applicable.
func (s *AuditService) Record(ctx context.Context, eventKind, clientID, rawTokenID, rawQuery string, tokensServed int) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, event_kind, client_id, hashed_token_id, hashed_query, tokens_served)
		VALUES (?, ?, ?, ?, ?, ?)
	`, time.Now().UTC().Format(time.RFC3339Nano), eventKind, clientID,
		security.AuditDigest(rawTokenID), security.AuditDigest(rawQuery), tokensServed)
	if err != nil {
		log.Printf("⚠️  [AUDIT] Failed to record %s event: %v", eventKind, err)
	}
}

// Recent returns the newest audit entries, for security review.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, event_kind, client_id, hashed_token_id, hashed_query, tokens_served
		FROM audit_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, &StorageError{Op: "audit_recent", Err: err}
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			e  models.AuditEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.EventKind, &e.ClientID, &e.HashedTokenID, &e.HashedQuery, &e.TokensServed); err != nil {
			return nil, &StorageError{Op: "audit_recent", Err: err}
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
