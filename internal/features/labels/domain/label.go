package domain

import (
	"encoding/json"
	"time"

	qdomain "shipping-gateway/internal/features/quoting/domain"
)

// LabelStatus is a shipping label's lifecycle state.
type LabelStatus string

const (
	StatusDraft     LabelStatus = "DRAFT"
	StatusGenerated LabelStatus = "GENERATED"
	StatusPrinted   LabelStatus = "PRINTED"
	StatusAttached  LabelStatus = "ATTACHED"
	StatusShipped   LabelStatus = "SHIPPED"
	StatusCancelled LabelStatus = "CANCELLED"
)

// transitions lists the legal next states per current state. SHIPPED is
// reachable only through tracking propagation; CANCELLED only before the
// package leaves the warehouse.
var transitions = map[LabelStatus][]LabelStatus{
	StatusDraft:     {StatusGenerated, StatusCancelled},
	StatusGenerated: {StatusPrinted, StatusShipped, StatusCancelled},
	StatusPrinted:   {StatusAttached, StatusShipped, StatusCancelled},
	StatusAttached:  {StatusShipped},
	StatusShipped:   {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to LabelStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address is a point-in-time address snapshot attached to a label. Labels
// copy addresses at creation so later order edits never change a shipment.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Email      string `json:"email,omitempty"`

	// Coordinate is required for instant-courier bookings, optional
	// otherwise.
	Coordinate *qdomain.Coordinate `json:"coordinate,omitempty"`
}

// Validate checks address completeness.
func (a Address) Validate(field string) error {
	missing := ""
	switch {
	case a.Name == "":
		missing = "name"
	case a.Phone == "":
		missing = "phone"
	case a.Street == "":
		missing = "street"
	case a.City == "":
		missing = "city"
	case a.Province == "":
		missing = "province"
	case a.PostalCode == "":
		missing = "postal_code"
	}
	if missing != "" {
		return NewValidationError(field+"."+missing, "must not be empty")
	}
	return nil
}

// LabelArtifact points at the printable label document.
type LabelArtifact struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// ShippingLabel identifies exactly one shipment for exactly one order. It is
// created in DRAFT and only ever mutated through guarded transitions; it is
// never deleted, only moved to CANCELLED.
type ShippingLabel struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`

	CarrierID   string            `json:"carrier_id"`
	CarrierName string            `json:"carrier_name"`
	ServiceCode string            `json:"service_code"`
	ServiceName string            `json:"service_name"`
	Class       qdomain.RateClass `json:"class"`

	Status LabelStatus `json:"status"`

	Sender    Address             `json:"sender"`
	Recipient Address             `json:"recipient"`
	Package   qdomain.PackageSpec `json:"package"`

	Cost          qdomain.CostBreakdown `json:"cost"`
	WithInsurance bool                  `json:"with_insurance"`
	InsuredValue  float64               `json:"insured_value,omitempty"`
	WithCOD       bool                  `json:"with_cod"`
	CODAmount     float64               `json:"cod_amount,omitempty"`

	RequiresSignature bool `json:"requires_signature"`

	// SourceRef is the quote's booking handle: a rate record id for static
	// carriers, a provider quotation token for dynamic couriers.
	SourceRef string `json:"source_ref,omitempty"`

	PickupEstimate     time.Time  `json:"pickup_estimate,omitempty"`
	DeliveryEstimate   time.Time  `json:"delivery_estimate,omitempty"`
	ActualPickupDate   *time.Time `json:"actual_pickup_date,omitempty"`
	ActualDeliveryDate *time.Time `json:"actual_delivery_date,omitempty"`

	TrackingNumber string          `json:"tracking_number,omitempty"`
	ProviderRef    string          `json:"provider_ref,omitempty"`
	Artifact       *LabelArtifact  `json:"artifact,omitempty"`
	ProviderPayload json.RawMessage `json:"provider_payload,omitempty"`

	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	PrintedAt   *time.Time `json:"printed_at,omitempty"`
	PrintedBy   string     `json:"printed_by,omitempty"`
	AttachedAt  *time.Time `json:"attached_at,omitempty"`
	AttachedBy  string     `json:"attached_by,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the label's addresses and package before creation.
func (l *ShippingLabel) Validate() error {
	if l.OrderID == "" {
		return NewValidationError("order_id", "must not be empty")
	}
	if err := l.Sender.Validate("sender"); err != nil {
		return err
	}
	if err := l.Recipient.Validate("recipient"); err != nil {
		return err
	}
	return validatePackage(l.Package)
}

func validatePackage(pkg qdomain.PackageSpec) error {
	switch {
	case pkg.WeightGrams <= 0:
		return NewValidationError("package.weight_grams", "must be greater than zero")
	case pkg.LengthCm <= 0:
		return NewValidationError("package.length_cm", "must be greater than zero")
	case pkg.WidthCm <= 0:
		return NewValidationError("package.width_cm", "must be greater than zero")
	case pkg.HeightCm <= 0:
		return NewValidationError("package.height_cm", "must be greater than zero")
	case pkg.Content == "":
		return NewValidationError("package.content", "must not be empty")
	}
	return nil
}
