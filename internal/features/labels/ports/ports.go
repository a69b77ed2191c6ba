package ports

import (
	"context"
	"errors"
	"time"

	"shipping-gateway/internal/features/labels/domain"
)

// ErrLabelNotFound is returned when no label exists for the given key.
var ErrLabelNotFound = errors.New("label not found")

// ErrStatusChanged is returned by Update when the label's stored status no
// longer matches the expected one, meaning a concurrent writer won.
var ErrStatusChanged = errors.New("label status changed concurrently")

// LabelRepository is the persistence port for shipping labels.
type LabelRepository interface {
	// Create stores a new label. The label id must not already exist.
	Create(ctx context.Context, label *domain.ShippingLabel) error

	// Get returns the label with the given id, or ErrLabelNotFound.
	Get(ctx context.Context, id string) (*domain.ShippingLabel, error)

	// FindByTrackingNumber returns the label owning a tracking number, or
	// ErrLabelNotFound.
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.ShippingLabel, error)

	// Update writes the label back only if its stored status still equals
	// expected, returning ErrStatusChanged otherwise.
	Update(ctx context.Context, label *domain.ShippingLabel, expected domain.LabelStatus) error

	// ListActive returns labels whose shipments still need tracking polls:
	// generated with a tracking number and not yet delivered or cancelled.
	ListActive(ctx context.Context) ([]*domain.ShippingLabel, error)
}

// CustomerContact is the order's customer channel information.
type CustomerContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Order is the slice of an order the label lifecycle needs.
type Order struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	ShippingAddress domain.Address  `json:"shipping_address"`
	CustomerContact CustomerContact `json:"customer_contact"`
}

// ShippingOutcome is what the order system learns back from shipping.
type ShippingOutcome struct {
	Carrier           string     `json:"carrier"`
	Cost              float64    `json:"cost"`
	TrackingNumber    string     `json:"tracking_number"`
	EstimatedDelivery time.Time  `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
}

// OrderClient is the order-system collaborator port. The shipping engine
// only ever reads an order's shippability and writes its shipping outcome.
type OrderClient interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	UpdateShippingOutcome(ctx context.Context, id string, outcome ShippingOutcome) error
}
