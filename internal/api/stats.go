package api

import (
	"time"

	"github.com/advisorai/admission-gate/internal/services/cache"
	"github.com/advisorai/admission-gate/internal/services/gate"
	"github.com/advisorai/admission-gate/internal/services/quota"
	"github.com/advisorai/admission-gate/internal/services/usage"

	"github.com/gofiber/fiber/v2"
)

// StatsHandler serves the operator statistics surface.
type StatsHandler struct {
	cache  *cache.Hierarchy
	gate   *gate.Gate
	ledger *quota.Ledger
	usage  *usage.Service
}

// NewStatsHandler creates a stats handler. The usage service may be nil
// when no audit database is configured.
func NewStatsHandler(hierarchy *cache.Hierarchy, g *gate.Gate, ledger *quota.Ledger, usageService *usage.Service) *StatsHandler {
	return &StatsHandler{
		cache:  hierarchy,
		gate:   g,
		ledger: ledger,
		usage:  usageService,
	}
}

// Stats returns cache, gate and optionally usage statistics in one
// snapshot.
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	response := fiber.Map{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"cache":     h.cache.Stats(c.Context()),
		"gate":      h.gate.Stats(),
		"quota": fiber.Map{
			"degraded": h.ledger.Degraded(),
		},
	}

	if h.usage != nil {
		since := time.Now().Add(-24 * time.Hour)
		if stats, err := h.usage.GetUsageStats(c.Context(), "", since, time.Time{}); err == nil {
			response["usage_24h"] = stats
		}
		if reasons, err := h.usage.GetRejectionsByReason(c.Context(), since, time.Time{}); err == nil {
			response["rejections_24h"] = reasons
		}
	}

	return c.JSON(response)
}

// ClientUsage returns recent audit rows for one client identity.
func (h *StatsHandler) ClientUsage(c *fiber.Ctx) error {
	if h.usage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "usage audit log is not configured",
		})
	}

	clientID := c.Params("id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client id is required",
		})
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	rows, err := h.usage.GetUsageByClient(c.Context(), clientID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read usage",
		})
	}

	return c.JSON(fiber.Map{
		"client_id": clientID,
		"usage":     rows,
	})
}

// ClientQuota returns the live window counters for one client identity.
func (h *StatsHandler) ClientQuota(c *fiber.Ctx) error {
	clientID := c.Params("id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client id is required",
		})
	}

	return c.JSON(fiber.Map{
		"client_id": clientID,
		"windows":   h.ledger.Snapshot(c.Context(), clientID),
		"degraded":  h.ledger.Degraded(),
	})
}
