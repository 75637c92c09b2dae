package api

import (
	"time"

	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/services/admission"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// AdmissionHandler exposes the decide/complete pair over HTTP.
type AdmissionHandler struct {
	controller *admission.Controller
}

func NewAdmissionHandler(controller *admission.Controller) *AdmissionHandler {
	return &AdmissionHandler{controller: controller}
}

// completeRequest is the body of the completion callback. The caller
// echoes the estimate it was handed at decision time so the ledger can
// true the cost up without server-side decision state.
type completeRequest struct {
	Request       models.AdmissionRequest `json:"request"`
	Value         []byte                  `json:"value"`
	ActualCost    float64                 `json:"actual_cost"`
	EstimatedCost float64                 `json:"estimated_cost"`
}

// Decide runs the admission state machine for one request.
func (h *AdmissionHandler) Decide(c *fiber.Ctx) error {
	var req models.AdmissionRequest
	if err := c.BodyParser(&req); err != nil {
		appErr := models.NewValidationError("invalid request body", err)
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{"error": models.SanitizeError(appErr)})
	}

	fillTransportFields(c, &req)

	decision := h.controller.Decide(c.Context(), &req)
	for k, v := range decision.Headers {
		c.Set(k, v)
	}

	status := fiber.StatusOK
	if !decision.Allowed {
		status = statusForReason(decision.Reason)
	}
	return c.Status(status).JSON(decision)
}

// Complete receives the finished advisory result for an admitted
// request: the payload enters the cache hierarchy and the cost ledger
// is trued up.
func (h *AdmissionHandler) Complete(c *fiber.Ctx) error {
	var body completeRequest
	if err := c.BodyParser(&body); err != nil {
		appErr := models.NewValidationError("invalid request body", err)
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{"error": models.SanitizeError(appErr)})
	}
	if body.Request.Input == "" {
		appErr := models.NewValidationError("request.input must not be empty", nil)
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{"error": models.SanitizeError(appErr)})
	}
	if len(body.Value) == 0 {
		appErr := models.NewValidationError("value must not be empty", nil)
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{"error": models.SanitizeError(appErr)})
	}

	fillTransportFields(c, &body.Request)

	decision := &models.Decision{
		ClientID:      admission.DeriveClientID(body.Request.IP, body.Request.UserAgent, body.Request.AcceptLanguage),
		EstimatedCost: body.EstimatedCost,
		State:         models.StateCompleted,
		Allowed:       true,
	}
	h.controller.Complete(&body.Request, decision, body.Value, body.ActualCost, time.Now())

	fiberlog.Debugf("[%s] Completion accepted (actual cost: %.6f)", body.Request.RequestID, body.ActualCost)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"state": decision.State,
	})
}

func fillTransportFields(c *fiber.Ctx, req *models.AdmissionRequest) {
	req.Origin = c.Get(fiber.HeaderOrigin)
	req.IP = c.IP()
	req.UserAgent = c.Get(fiber.HeaderUserAgent)
	req.AcceptLanguage = c.Get(fiber.HeaderAcceptLanguage)
	if req.RequestID == "" {
		req.RequestID = c.Get(fiber.HeaderXRequestID)
	}
}

func statusForReason(reason models.ErrorType) int {
	return (&models.AppError{Type: reason}).GetStatusCode()
}
