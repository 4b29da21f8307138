package handlers

import (
	"errors"
	"log"
	"time"

	"mynd/internal/middleware"
	"mynd/internal/models"
	"mynd/internal/services"

	"github.com/gofiber/fiber/v2"
)

// TokenHandler manages the capability token lifecycle over HTTP.
type TokenHandler struct {
	tokens  *services.TokenService
	audit   *services.AuditService
	limiter *services.IssueLimiter
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(tokens *services.TokenService, audit *services.AuditService, limiter *services.IssueLimiter) *TokenHandler {
	return &TokenHandler{tokens: tokens, audit: audit, limiter: limiter}
}

// Issue handles POST /api/tokens. Issuance is open by design: tokens are
// the gate, not a secret behind another gate. The rate limiter keeps a
// misbehaving client from minting tokens in a tight loop.
func (h *TokenHandler) Issue(c *fiber.Ctx) error {
	var req models.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("Invalid request body"))
	}

	if req.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("client_id is required"))
	}

	if !h.limiter.Allow(c.Context(), req.ClientID) {
		return c.Status(fiber.StatusTooManyRequests).JSON(models.Fail("Token issuance rate limit exceeded"))
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	token, err := h.tokens.Issue(c.Context(), req.ClientID, req.Scope, ttl, req.MaxTokens)
	if err != nil {
		var authErr *services.AuthError
		if errors.As(err, &authErr) {
			return c.Status(fiber.StatusBadRequest).JSON(models.Fail(authErr.Reason))
		}
		log.Printf("❌ [TOKENS] Issue failed for %s: %v", req.ClientID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Failed to issue token"))
	}

	h.audit.Record(c.Context(), models.AuditTokenIssued, token.ClientID, token.TokenID, "", 0)
	if m := services.GetMetrics(); m != nil {
		m.TokensIssued.Inc()
	}

	log.Printf("✅ [TOKENS] Issued %s token for %s (ttl: %s)", token.Scope, token.ClientID, time.Until(token.ExpiresAt).Round(time.Second))

	// The full token id crosses the wire exactly once, here.
	return c.Status(fiber.StatusCreated).JSON(models.OK(token, "Token issued"))
}

// Revoke handles DELETE /api/tokens/:id. A token may always revoke itself;
// revoking another client's token requires admin scope.
func (h *TokenHandler) Revoke(c *fiber.Ctx) error {
	requester := middleware.TokenFromContext(c)
	targetID := c.Params("id")
	if targetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("Token id is required"))
	}

	if err := h.tokens.Revoke(c.Context(), targetID, requester); err != nil {
		var authErr *services.AuthError
		if errors.As(err, &authErr) {
			return c.Status(fiber.StatusForbidden).JSON(models.Fail(authErr.Reason))
		}
		log.Printf("❌ [TOKENS] Revoke failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Failed to revoke token"))
	}

	h.audit.Record(c.Context(), models.AuditTokenRevoked, requester.ClientID, targetID, "", 0)
	if m := services.GetMetrics(); m != nil {
		m.TokensRevoked.Inc()
	}

	log.Printf("🔒 [TOKENS] Token revoked by %s", requester.ClientID)
	return c.JSON(models.OK(nil, "Token revoked"))
}
