package handler

import (
	cdomain "shipping-gateway/internal/features/couriers/domain"
	cservice "shipping-gateway/internal/features/couriers/service"
	"shipping-gateway/internal/features/quoting/service"

	"github.com/gofiber/fiber/v2"
)

// QuoteHandler handles HTTP requests for shipping quotes.
type QuoteHandler struct {
	staticEngine *service.StaticEngine
	aggregator   *cservice.Aggregator
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(staticEngine *service.StaticEngine, aggregator *cservice.Aggregator) *QuoteHandler {
	return &QuoteHandler{
		staticEngine: staticEngine,
		aggregator:   aggregator,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// QuoteStatic godoc
// @Summary Quote a shipment against the static rate table
// @Description Evaluates every configured rate for the route and returns priced quotes sorted by total cost, with excluded rates and their reasons
// @Tags quotes
// @Accept json
// @Produce json
// @Param request body service.StaticQuoteRequest true "Quote request"
// @Success 200 {object} domain.QuoteResult
// @Failure 400 {object} ErrorResponse
// @Router /quotes/static [post]
func (h *QuoteHandler) QuoteStatic(c *fiber.Ctx) error {
	var req service.StaticQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	if req.Route.Origin.City == "" || req.Route.Destination.City == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "route origin and destination cities are required",
			RayID:   c.Locals("requestid").(string),
		})
	}

	result, err := h.staticEngine.Quote(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(result)
}

// QuoteInstant godoc
// @Summary Quote a shipment across live instant-courier providers
// @Description Fans out to every registered provider concurrently and returns merged quotes ranked by weighted cost and time, with per-provider failures
// @Tags quotes
// @Accept json
// @Produce json
// @Param request body domain.QuoteRequest true "Quote request"
// @Success 200 {object} service.AggregateResult
// @Failure 400 {object} ErrorResponse
// @Router /quotes/instant [post]
func (h *QuoteHandler) QuoteInstant(c *fiber.Ctx) error {
	var req cdomain.QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	result, err := h.aggregator.Quote(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(result)
}
