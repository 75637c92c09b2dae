package api

import (
	"context"
	"time"

	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/services/quota"
	"github.com/advisorai/admission-gate/internal/services/store"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store  store.Store
	ledger *quota.Ledger
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(st store.Store, ledger *quota.Ledger) *HealthHandler {
	return &HealthHandler{store: st, ledger: ledger}
}

// HealthCheck returns the health status of the service and its dependencies
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	storeErr := h.checkStore()

	storeStatus := "healthy"
	if storeErr != nil {
		storeStatus = "unhealthy"
	}

	quotaStatus := "healthy"
	if h.ledger != nil && h.ledger.Degraded() {
		quotaStatus = "degraded"
	}

	response := fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"store": storeStatus,
			"quota": quotaStatus,
		},
	}

	// Quota degradation is survivable (in-process fallback), a dead
	// store is not.
	if storeErr != nil {
		appErr := models.NewStoreUnavailableError(storeErr)
		response["status"] = "degraded"
		response["error"] = models.SanitizeError(appErr)
		return c.Status(appErr.GetStatusCode()).JSON(response)
	}
	if quotaStatus != "healthy" {
		response["status"] = "degraded"
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// checkStore verifies durable store connectivity
func (h *HealthHandler) checkStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return h.store.Ping(ctx)
}
