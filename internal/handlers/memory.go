package handlers

import (
	"errors"
	"log"

	"mynd/internal/middleware"
	"mynd/internal/models"
	"mynd/internal/services"

	"github.com/gofiber/fiber/v2"
)

// MemoryHandler serves the ingestion surface.
type MemoryHandler struct {
	ingest *services.IngestService
	audit  *services.AuditService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(ingest *services.IngestService, audit *services.AuditService) *MemoryHandler {
	return &MemoryHandler{ingest: ingest, audit: audit}
}

// Ingest handles POST /api/memories. Content is redacted, gated for
// relevance, distilled, and dual-written. An index failure after the record
// write still returns 201 with indexed=false; the repair job finishes the
// wiring later.
func (h *MemoryHandler) Ingest(c *fiber.Ctx) error {
	token := middleware.TokenFromContext(c)

	var req models.MemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("Invalid request body"))
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("content is required"))
	}
	if req.SourceKind == "" {
		req.SourceKind = models.SourceManual
	}

	fragment, indexed, err := h.ingest.Ingest(c.Context(), req.SourceKind, req.SourceLocator, req.Content, req.Attributes)
	if err != nil {
		if errors.Is(err, services.ErrNotRelevant) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(models.Fail("Content too short or not substantive enough to remember"))
		}
		log.Printf("❌ [MEMORIES] Ingest failed for %s: %v", token.ClientID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Failed to store memory"))
	}

	if m := services.GetMetrics(); m != nil {
		m.FragmentsIngested.WithLabelValues(fragment.SourceKind).Inc()
		if !indexed {
			m.IndexFailures.Inc()
		}
	}

	h.audit.Record(c.Context(), models.AuditMemoryStored, token.ClientID, token.TokenID, "", 0)

	message := "Memory stored"
	if !indexed {
		message = "Memory stored; indexing deferred"
	}

	log.Printf("💾 [MEMORIES] Stored fragment %s from %s (indexed: %v)", fragment.ID, token.ClientID, indexed)
	return c.Status(fiber.StatusCreated).JSON(models.OK(fiber.Map{
		"fragment": fragment,
		"indexed":  indexed,
	}, message))
}

// Recent handles GET /api/memories, listing the newest fragments.
func (h *MemoryHandler) Recent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sourceKind := c.Query("source_type")

	fragments, err := h.ingest.Fragments().Recent(c.Context(), limit, sourceKind)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Failed to list memories"))
	}

	return c.JSON(models.OK(fiber.Map{
		"memories": fragments,
		"count":    len(fragments),
	}, "Recent memories"))
}

// Delete handles DELETE /api/memories/:id, removing a fragment from both
// the record store and the index.
func (h *MemoryHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("id is required"))
	}

	if err := h.ingest.Remove(c.Context(), id); err != nil {
		log.Printf("❌ [MEMORIES] Delete failed for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Failed to delete memory"))
	}

	return c.JSON(models.OK(nil, "Memory deleted"))
}
