package api

import (
	"crypto/subtle"
	"net"

	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/services/cache"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ManageHandler exposes cache management operations on the operator
// surface.
type ManageHandler struct {
	cache *cache.Hierarchy
}

func NewManageHandler(hierarchy *cache.Hierarchy) *ManageHandler {
	return &ManageHandler{cache: hierarchy}
}

// AdminGuard restricts the operator surface to loopback callers, or to
// anyone presenting the configured admin token.
func AdminGuard(adminToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminToken != "" {
			presented := c.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) == 1 {
				return c.Next()
			}
		}

		if ip := net.ParseIP(c.IP()); ip != nil && ip.IsLoopback() {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "admin access required",
		})
	}
}

// Cleanup sweeps expired entries from the in-process store. Redis
// expires keys on its own, so against a Redis store this is a no-op.
func (h *ManageHandler) Cleanup(c *fiber.Ctx) error {
	removed := h.cache.Cleanup()
	fiberlog.Infof("Cache cleanup removed %d expired entries", removed)
	return c.JSON(fiber.Map{"removed": removed})
}

// Clear drops cache entries. The optional scope query parameter limits
// the purge to one level (exact, semantic, partial); empty clears all.
func (h *ManageHandler) Clear(c *fiber.Ctx) error {
	scope := c.Query("scope")
	switch scope {
	case "", string(models.CacheLevelExact), string(models.CacheLevelSemantic), string(models.CacheLevelPartial):
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "scope must be one of exact, semantic, partial",
		})
	}

	removed, err := h.cache.Clear(c.Context(), scope)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to clear cache",
		})
	}

	fiberlog.Infof("Cache clear (scope: %q) removed %d entries", scope, removed)
	return c.JSON(fiber.Map{"removed": removed, "scope": scope})
}

// Warmup pre-populates the cache from a list of representative queries
// and answers.
func (h *ManageHandler) Warmup(c *fiber.Ctx) error {
	var body struct {
		Queries []models.WarmupQuery `json:"queries"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if len(body.Queries) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "queries must not be empty",
		})
	}

	stored := h.cache.Warmup(c.Context(), body.Queries)
	fiberlog.Infof("Cache warmup stored %d of %d queries", stored, len(body.Queries))
	return c.JSON(fiber.Map{"stored": stored, "submitted": len(body.Queries)})
}
