package handlers

import (
	"log"
	"net/url"
	"time"

	"mynd/internal/logging"
	"mynd/internal/middleware"
	"mynd/internal/models"
	"mynd/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ContextHandler serves context assembly and the read-side stats surface.
type ContextHandler struct {
	assembler *services.ContextService
	fragments *services.FragmentService
	audit     *services.AuditService
	maxTokens int
}

// NewContextHandler creates a new context handler
func NewContextHandler(assembler *services.ContextService, fragments *services.FragmentService, audit *services.AuditService, maxTokens int) *ContextHandler {
	return &ContextHandler{
		assembler: assembler,
		fragments: fragments,
		audit:     audit,
		maxTokens: maxTokens,
	}
}

// Assemble handles POST /api/context.
func (h *ContextHandler) Assemble(c *fiber.Ctx) error {
	var q models.ContextQuery
	if err := c.BodyParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("Invalid request body"))
	}
	return h.serveContext(c, q)
}

// Search handles GET /api/search/:query, the GET form of context assembly
// for callers that cannot send a body. The budget arrives as ?max_tokens=.
// Route params arrive percent-encoded; multi-word queries must be decoded
// before search and audit see them.
func (h *ContextHandler) Search(c *fiber.Ctx) error {
	query, err := url.PathUnescape(c.Params("query"))
	if err != nil {
		query = c.Params("query")
	}
	q := models.ContextQuery{
		Query:     query,
		MaxTokens: c.QueryInt("max_tokens", 0),
	}
	return h.serveContext(c, q)
}

// serveContext runs the assembly shared by both read endpoints. The
// effective budget is the smallest of the request's max_tokens, the token's
// issued ceiling, and the server limit; a caller can never talk itself into
// a bigger window than its token allows.
func (h *ContextHandler) serveContext(c *fiber.Ctx, q models.ContextQuery) error {
	token := middleware.TokenFromContext(c)

	if q.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("query is required"))
	}

	budget := h.maxTokens
	if token.MaxContextTokens > 0 && token.MaxContextTokens < budget {
		budget = token.MaxContextTokens
	}
	if q.MaxTokens > 0 && q.MaxTokens < budget {
		budget = q.MaxTokens
	}

	start := time.Now()
	result, err := h.assembler.Assemble(c.Context(), q, budget)
	if err != nil {
		log.Printf("❌ [CONTEXT] Assembly failed for %s: %v", token.ClientID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Context assembly failed"))
	}

	// The audit row gets a one-way hash of the query and the aggregate
	// token count, never the query text or the assembled context.
	h.audit.Record(c.Context(), models.AuditContextAccessed, token.ClientID, token.TokenID, q.Query, result.TokensUsed)

	if m := services.GetMetrics(); m != nil {
		m.ContextRequests.Inc()
		m.ContextLatency.Observe(time.Since(start).Seconds())
		m.ContextTokens.Observe(float64(result.TokensUsed))
	}

	logging.WithRequest(result.QueryID, token.ClientID).Debug("context assembled",
		"tokens_used", result.TokensUsed,
		"budget", budget,
		"sources", len(result.Sources),
	)
	log.Printf("🧠 [CONTEXT] Served %d tokens to %s (query %s)", result.TokensUsed, token.ClientID, result.QueryID)

	return c.JSON(models.OK(fiber.Map{
		"context":          result.Text,
		"tokens_used":      result.TokensUsed,
		"sources":          result.Sources,
		"query_id":         result.QueryID,
		"capability_token": token.TokenID,
		"expires_at":       token.ExpiresAt,
	}, "Context assembled"))
}

// Stats handles GET /api/stats: the caller's token alongside store totals.
func (h *ContextHandler) Stats(c *fiber.Ctx) error {
	token := middleware.TokenFromContext(c)

	stats, err := h.fragments.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Failed to read stats"))
	}

	return c.JSON(models.OK(fiber.Map{
		"token": fiber.Map{
			"client_id":          token.ClientID,
			"scope":              token.Scope,
			"expires_at":         token.ExpiresAt,
			"max_context_tokens": token.MaxContextTokens,
		},
		"store": stats,
	}, "Store statistics"))
}
