package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"mynd/internal/database"
	"mynd/internal/models"
	"mynd/internal/security"

	cache "github.com/patrickmn/go-cache"
)

// TokenService is the capability token manager. The capability_tokens table
// is the authority; the in-memory cache only short-circuits the common case
// and is never trusted for expiry or revocation — Validate re-checks both on
// every call.
type TokenService struct {
	db    *database.DB
	cache *cache.Cache

	maxTTL           time.Duration
	defaultTTL       time.Duration
	maxContextTokens int
}

// NewTokenService creates a token service with the configured ceilings.
func NewTokenService(db *database.DB, maxTTL, defaultTTL time.Duration, maxContextTokens int) *TokenService {
	return &TokenService{
		db:               db,
		cache:            cache.New(defaultTTL, time.Minute),
		maxTTL:           maxTTL,
		defaultTTL:       defaultTTL,
		maxContextTokens: maxContextTokens,
	}
}

// Issue creates a new capability token. ttl and maxContextTokens are clamped
// to the configured maxima; malformed inputs (unknown scope, negative ttl)
// are rejected.
func (s *TokenService) Issue(ctx context.Context, clientID, scope string, ttl time.Duration, maxContextTokens int) (*models.CapabilityToken, error) {
	if clientID == "" {
		return nil, &AuthError{Reason: "client_id is required"}
	}
	if scope == "" {
		scope = models.ScopeContextRead
	}
	if !models.ValidScope(scope) {
		return nil, &AuthError{Reason: "unknown scope: " + scope}
	}
	if ttl < 0 {
		return nil, &AuthError{Reason: "ttl must be positive"}
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	if maxContextTokens <= 0 || maxContextTokens > s.maxContextTokens {
		maxContextTokens = s.maxContextTokens
	}

	tokenID, err := security.NewTokenID()
	if err != nil {
		return nil, &StorageError{Op: "issue", Err: err}
	}

	now := time.Now().UTC()
	token := &models.CapabilityToken{
		TokenID:          tokenID,
		ClientID:         clientID,
		Scope:            scope,
		IssuedAt:         now,
		ExpiresAt:        now.Add(ttl),
		MaxContextTokens: maxContextTokens,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO capability_tokens
		(token_id, client_id, scope, issued_at, expires_at, max_context_tokens, revoked)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, token.TokenID, token.ClientID, token.Scope,
		token.IssuedAt.Format(time.RFC3339Nano), token.ExpiresAt.Format(time.RFC3339Nano),
		token.MaxContextTokens)
	if err != nil {
		return nil, &StorageError{Op: "issue", Err: err}
	}

	s.cache.Set(token.TokenID, token, ttl)
	log.Printf("🔑 [TOKENS] Issued %s token for client %q (ttl %s, budget %d)",
		scope, clientID, ttl, maxContextTokens)
	return token, nil
}

// Validate resolves a token id to an active token. It fails for unknown,
// expired, and revoked tokens, and re-checks expiry against the clock on
// every call regardless of what the cache says.
func (s *TokenService) Validate(ctx context.Context, tokenID string) (*models.CapabilityToken, error) {
	if tokenID == "" {
		return nil, &AuthError{Reason: "missing capability token"}
	}

	now := time.Now().UTC()

	if cached, ok := s.cache.Get(tokenID); ok {
		token := cached.(*models.CapabilityToken)
		if token.Valid(now) {
			return token, nil
		}
		s.cache.Delete(tokenID)
		// Fall through to the authority; the cached copy may be stale in
		// either direction.
	}

	token, err := s.load(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, &AuthError{Reason: "invalid capability token"}
	}
	if token.Revoked {
		return nil, &AuthError{Reason: "capability token revoked"}
	}
	if !now.Before(token.ExpiresAt) {
		return nil, &AuthError{Reason: "capability token expired"}
	}

	s.cache.Set(tokenID, token, time.Until(token.ExpiresAt))
	return token, nil
}

// Revoke permanently deactivates a token. A token may always revoke itself;
// revoking any other token requires admin scope. Revocation is immediate:
// the revoked flag is persisted and the cache entry evicted before return.
func (s *TokenService) Revoke(ctx context.Context, tokenID string, requester *models.CapabilityToken) error {
	if tokenID != requester.TokenID && !requester.CanRevokeOther() {
		return &AuthError{Reason: "cannot revoke other tokens without admin scope"}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE capability_tokens SET revoked = 1 WHERE token_id = ?`, tokenID)
	if err != nil {
		return &StorageError{Op: "revoke", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &AuthError{Reason: "invalid capability token"}
	}

	s.cache.Delete(tokenID)
	log.Printf("🔒 [TOKENS] Revoked token for client %q", requester.ClientID)
	return nil
}

// Sweep purges expired tokens from persistent storage. It is a cleanup
// optimization only: Validate never depends on it having run. Returns the
// number of rows removed.
func (s *TokenService) Sweep(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM capability_tokens WHERE expires_at < ?`, now)
	if err != nil {
		return 0, &StorageError{Op: "sweep", Err: err}
	}
	deleted, _ := result.RowsAffected()
	// Cache entries carry their own TTLs; go-cache evicts them on its own
	// cleanup interval.
	return deleted, nil
}

// ActiveCount reports how many unexpired, unrevoked tokens exist.
func (s *TokenService) ActiveCount(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM capability_tokens WHERE revoked = 0 AND expires_at > ?`, now,
	).Scan(&count)
	if err != nil {
		return 0, &StorageError{Op: "active_count", Err: err}
	}
	return count, nil
}

func (s *TokenService) load(ctx context.Context, tokenID string) (*models.CapabilityToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_id, client_id, scope, issued_at, expires_at, max_context_tokens, revoked
		FROM capability_tokens WHERE token_id = ?
	`, tokenID)

	var (
		token             models.CapabilityToken
		issuedAt, expires string
		revoked           int
	)
	err := row.Scan(&token.TokenID, &token.ClientID, &token.Scope,
		&issuedAt, &expires, &token.MaxContextTokens, &revoked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}

	token.IssuedAt, _ = time.Parse(time.RFC3339Nano, issuedAt)
	token.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires)
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	token.Revoked = revoked != 0

	return &token, nil
}
