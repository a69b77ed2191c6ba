package handler

import (
	"errors"

	"shipping-gateway/internal/features/labels/domain"
	"shipping-gateway/internal/features/labels/ports"
	"shipping-gateway/internal/features/labels/service"

	"github.com/gofiber/fiber/v2"
)

// LabelHandler handles HTTP requests for the shipping label lifecycle.
type LabelHandler struct {
	labelService *service.LabelService
}

// NewLabelHandler creates a new LabelHandler.
func NewLabelHandler(labelService *service.LabelService) *LabelHandler {
	return &LabelHandler{labelService: labelService}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// Create godoc
// @Summary Create a draft shipping label for an order
// @Description Validates the order is shippable and the addresses and package are complete, then stores the label in DRAFT
// @Tags labels
// @Accept json
// @Produce json
// @Param request body service.CreateRequest true "Label request"
// @Success 201 {object} domain.ShippingLabel
// @Failure 400 {object} ErrorResponse
// @Router /labels [post]
func (h *LabelHandler) Create(c *fiber.Ctx) error {
	var req service.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	label, err := h.labelService.Create(c.Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(label)
}

// Get godoc
// @Summary Get a shipping label
// @Tags labels
// @Produce json
// @Param id path string true "Label ID"
// @Success 200 {object} domain.ShippingLabel
// @Failure 404 {object} ErrorResponse
// @Router /labels/{id} [get]
func (h *LabelHandler) Get(c *fiber.Ctx) error {
	label, err := h.labelService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(label)
}

// Generate godoc
// @Summary Generate a draft label
// @Description Books the shipment at the carrier when one is integrated, assigns the tracking number, and moves the label to GENERATED
// @Tags labels
// @Produce json
// @Param id path string true "Label ID"
// @Success 200 {object} domain.ShippingLabel
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /labels/{id}/generate [post]
func (h *LabelHandler) Generate(c *fiber.Ctx) error {
	label, err := h.labelService.Generate(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(label)
}

// labelActorRequest carries the acting user for print/attach operations.
type labelActorRequest struct {
	UserID string `json:"user_id"`
}

// Print godoc
// @Summary Mark a label as printed
// @Tags labels
// @Accept json
// @Produce json
// @Param id path string true "Label ID"
// @Param request body labelActorRequest true "Acting user"
// @Success 200 {object} domain.ShippingLabel
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /labels/{id}/print [post]
func (h *LabelHandler) Print(c *fiber.Ctx) error {
	var req labelActorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	label, err := h.labelService.MarkPrinted(c.Context(), c.Params("id"), req.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(label)
}

// Attach godoc
// @Summary Mark a label as attached to its package
// @Tags labels
// @Accept json
// @Produce json
// @Param id path string true "Label ID"
// @Param request body labelActorRequest true "Acting user"
// @Success 200 {object} domain.ShippingLabel
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /labels/{id}/attach [post]
func (h *LabelHandler) Attach(c *fiber.Ctx) error {
	var req labelActorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	label, err := h.labelService.MarkAttached(c.Context(), c.Params("id"), req.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(label)
}

// cancelRequest carries the caller's cancellation reason.
type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel godoc
// @Summary Cancel a shipping label
// @Description Cancels the carrier booking first when one exists, then moves the label to CANCELLED. Labels already shipped cannot be cancelled
// @Tags labels
// @Accept json
// @Produce json
// @Param id path string true "Label ID"
// @Param request body cancelRequest true "Cancellation reason"
// @Success 200 {object} domain.ShippingLabel
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /labels/{id}/cancel [post]
func (h *LabelHandler) Cancel(c *fiber.Ctx) error {
	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	label, err := h.labelService.Cancel(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(label)
}

// fail maps service errors onto HTTP statuses.
func (h *LabelHandler) fail(c *fiber.Ctx, err error) error {
	rayID := c.Locals("requestid").(string)

	var validationErr *domain.ValidationError
	var conflictErr *domain.StateConflictError
	switch {
	case errors.Is(err, ports.ErrLabelNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Message: "label not found", RayID: rayID})
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Message: err.Error(), RayID: rayID})
	case errors.As(err, &conflictErr):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Message: err.Error(), RayID: rayID})
	}
	return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Message: err.Error(), RayID: rayID})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Message: message,
		RayID:   c.Locals("requestid").(string),
	})
}
