package middleware

import (
	"errors"
	"log"
	"strings"

	"mynd/internal/models"
	"mynd/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BearerAuth validates the capability token on every protected route.
// Validation always consults the token authority, so a token revoked a
// moment ago is rejected here even if a cache still remembers it. Every
// rejection is recorded in the audit log as a rejected access attempt.
func BearerAuth(tokens *services.TokenService, audit *services.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenID := bearerToken(c)
		if tokenID == "" {
			recordRejection(c, audit, "", "missing")
			return c.Status(fiber.StatusUnauthorized).JSON(models.Fail("Missing capability token. Include Authorization: Bearer header."))
		}

		token, err := tokens.Validate(c.Context(), tokenID)
		if err != nil {
			reason := rejectionReason(err)
			log.Printf("❌ [AUTH] Rejected token for %s: %v", c.Path(), err)
			recordRejection(c, audit, tokenID, reason)
			return c.Status(fiber.StatusUnauthorized).JSON(models.Fail("Invalid, expired, or revoked capability token"))
		}

		c.Locals("token", token)
		c.Locals("client_id", token.ClientID)

		return c.Next()
	}
}

// RequireWriteScope gates ingestion routes behind the write scope. Runs
// after BearerAuth.
func RequireWriteScope(audit *services.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("token").(*models.CapabilityToken)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(models.Fail("Missing capability token"))
		}
		if !token.CanWrite() {
			recordRejection(c, audit, token.TokenID, "scope")
			return c.Status(fiber.StatusForbidden).JSON(models.Fail("Token scope does not permit writes"))
		}
		return c.Next()
	}
}

// TokenFromContext returns the validated token stored by BearerAuth.
func TokenFromContext(c *fiber.Ctx) *models.CapabilityToken {
	token, _ := c.Locals("token").(*models.CapabilityToken)
	return token
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func recordRejection(c *fiber.Ctx, audit *services.AuditService, tokenID, reason string) {
	clientID, _ := c.Locals("client_id").(string)
	if clientID == "" {
		clientID = c.IP()
	}
	audit.Record(c.Context(), models.AuditAccessRejected, clientID, tokenID, "", 0)
	if m := services.GetMetrics(); m != nil {
		m.AuthRejected.WithLabelValues(reason).Inc()
	}
}

func rejectionReason(err error) string {
	var authErr *services.AuthError
	if errors.As(err, &authErr) {
		switch {
		case strings.Contains(authErr.Reason, "expired"):
			return "expired"
		case strings.Contains(authErr.Reason, "revoked"):
			return "revoked"
		default:
			return "unknown"
		}
	}
	return "error"
}
