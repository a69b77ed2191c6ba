package ports

import (
	"context"
	"time"

	"shipping-gateway/internal/features/tracking/domain"
)

// EventRepository is the persistence port for tracking events.
type EventRepository interface {
	// AppendIfNew stores the event with the next dense sequence number for
	// its tracking number unless an event with the same dedupe key already
	// exists. It reports whether the event was stored and fills in
	// event.Sequence on success. The dedupe check and sequence assignment
	// are a single atomic unit per tracking number.
	AppendIfNew(ctx context.Context, event *domain.TrackingEvent) (bool, error)

	// ListByTrackingNumber returns a tracking number's events in sequence
	// order.
	ListByTrackingNumber(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, error)
}

// CustomerContact is the customer channel the notification collaborator
// delivers to.
type CustomerContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// NotificationRequest asks the notification collaborator to tell the
// customer about a status change. Channel selection and delivery are the
// collaborator's concern; the engine only decides whether to ask.
type NotificationRequest struct {
	TrackingNumber string                `json:"tracking_number"`
	Status         domain.TrackingStatus `json:"status"`
	Description    string                `json:"description"`
	Contact        CustomerContact       `json:"contact"`
}

// NotificationClient is the notification collaborator port.
type NotificationClient interface {
	Notify(ctx context.Context, req NotificationRequest) error
}

// LabelPropagator receives canonical status milestones that must reflect on
// the owning shipping label.
type LabelPropagator interface {
	// MarkShipped moves the owning label to SHIPPED and stamps the pickup
	// time. Repeated calls for the same tracking number are no-ops.
	MarkShipped(ctx context.Context, trackingNumber string, pickedUpAt time.Time) error

	// MarkDelivered stamps the delivery time and reports the outcome to the
	// order system. Repeated calls are no-ops.
	MarkDelivered(ctx context.Context, trackingNumber string, deliveredAt time.Time) error

	// Recipient returns the customer contact for a tracking number.
	Recipient(ctx context.Context, trackingNumber string) (CustomerContact, error)
}

// ActiveShipment is one shipment the polling source still watches.
type ActiveShipment struct {
	// TrackingNumber is the public tracking number.
	TrackingNumber string `json:"tracking_number"`
	// ProviderRef is the provider's internal reference, when different.
	ProviderRef string `json:"provider_ref,omitempty"`
	// Carrier is the carrier or provider id the shipment was booked with.
	Carrier string `json:"carrier"`
}

// ShipmentSource lists the shipments whose timelines still need polling.
type ShipmentSource interface {
	ActiveShipments(ctx context.Context) ([]ActiveShipment, error)
}

// Scheduler is the queue/scheduler collaborator port. The engine enqueues
// work; delay, backoff, and retry bookkeeping live behind this port.
type Scheduler interface {
	// After runs fn once after the delay.
	After(delay time.Duration, fn func()) error

	// Every runs fn repeatedly at the interval until the scheduler stops.
	Every(interval time.Duration, fn func()) error

	// Stop cancels all scheduled work.
	Stop()
}
