package handler

import (
	cdomain "shipping-gateway/internal/features/couriers/domain"
	cports "shipping-gateway/internal/features/couriers/ports"
	"shipping-gateway/internal/features/tracking/domain"
	"shipping-gateway/internal/features/tracking/service"

	"github.com/gofiber/fiber/v2"
)

// TrackingHandler handles HTTP requests for tracking timelines and provider
// webhooks.
type TrackingHandler struct {
	normalizer *service.Normalizer
	registry   *cports.Registry
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(normalizer *service.Normalizer, registry *cports.Registry) *TrackingHandler {
	return &TrackingHandler{
		normalizer: normalizer,
		registry:   registry,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// timelineResponse is the tracking timeline payload.
type timelineResponse struct {
	TrackingNumber string                 `json:"tracking_number"`
	Progress       int                    `json:"progress"`
	Events         []domain.TrackingEvent `json:"events"`
}

// webhookResponse reports what a webhook delivery became.
type webhookResponse struct {
	TrackingNumber string `json:"tracking_number"`
	Accepted       int    `json:"accepted"`
	Duplicates     int    `json:"duplicates"`
}

// GetTimeline godoc
// @Summary Get the canonical tracking timeline for a shipment
// @Description Returns the ordered, deduplicated event history and the current delivery progress percentage
// @Tags tracking
// @Produce json
// @Param number path string true "Tracking Number"
// @Success 200 {object} timelineResponse
// @Failure 400 {object} ErrorResponse
// @Router /tracking/{number} [get]
func (h *TrackingHandler) GetTimeline(c *fiber.Ctx) error {
	trackingNumber := c.Params("number")
	if trackingNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "tracking number is required",
			RayID:   c.Locals("requestid").(string),
		})
	}

	events, progress, err := h.normalizer.Timeline(c.Context(), trackingNumber)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(timelineResponse{
		TrackingNumber: trackingNumber,
		Progress:       progress,
		Events:         events,
	})
}

// ReceiveWebhook godoc
// @Summary Receive a status webhook from a courier provider
// @Description Parses the provider payload with the matching adapter, normalizes the events, and ingests them idempotently
// @Tags tracking
// @Accept json
// @Produce json
// @Param provider path string true "Provider ID (gosend, grab, lalamove, borzo)"
// @Success 200 {object} webhookResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tracking/webhooks/{provider} [post]
func (h *TrackingHandler) ReceiveWebhook(c *fiber.Ctx) error {
	providerID := cdomain.ProviderID(c.Params("provider"))
	provider, ok := h.registry.Get(providerID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Message: "unknown provider",
			RayID:   c.Locals("requestid").(string),
		})
	}

	snapshot, err := provider.ParseWebhook(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "unparseable webhook payload",
			RayID:   c.Locals("requestid").(string),
		})
	}

	results, err := h.normalizer.IngestSnapshot(c.Context(), providerID, snapshot.Ref.TrackingNumber, snapshot)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	resp := webhookResponse{TrackingNumber: snapshot.Ref.TrackingNumber}
	for _, result := range results {
		if result.Duplicate {
			resp.Duplicates++
		} else {
			resp.Accepted++
		}
	}
	return c.JSON(resp)
}
