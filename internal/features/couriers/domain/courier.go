package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	qdomain "shipping-gateway/internal/features/quoting/domain"
	tdomain "shipping-gateway/internal/features/tracking/domain"
)

// ProviderID identifies one instant-courier integration.
type ProviderID string

const (
	ProviderGoSend      ProviderID = "gosend"
	ProviderGrabExpress ProviderID = "grabexpress"
	ProviderLalamove    ProviderID = "lalamove"
	ProviderBorzo       ProviderID = "borzo"
)

// ServiceType is the provider-neutral delivery speed requested from an
// instant courier.
type ServiceType string

const (
	ServiceInstant ServiceType = "INSTANT"
	ServiceSameDay ServiceType = "SAME_DAY"
)

// AllServiceTypes is the default service set when the caller does not narrow it.
var AllServiceTypes = []ServiceType{ServiceInstant, ServiceSameDay}

// Contact is a pickup or drop-off party.
type Contact struct {
	// Name is the contact person's name.
	Name string `json:"name"`
	// Phone is the local-format phone number; adapters convert to their
	// provider's expected format.
	Phone string `json:"phone"`
	// Address is the street address.
	Address string `json:"address"`
	// City is the city name.
	City string `json:"city"`
	// Province is the province name.
	Province string `json:"province"`
	// PostalCode is the postal code.
	PostalCode string `json:"postal_code"`
	// Coordinate is the geolocation instant couriers route by.
	Coordinate qdomain.Coordinate `json:"coordinate"`
	// Instructions are free-text notes for the driver.
	Instructions string `json:"instructions,omitempty"`
}

// QuoteRequest asks a provider for live price/time offers.
type QuoteRequest struct {
	// Pickup is the pickup point.
	Pickup Contact `json:"pickup"`
	// Dropoff is the delivery point.
	Dropoff Contact `json:"dropoff"`
	// Package is the package being moved.
	Package qdomain.PackageSpec `json:"package"`
	// ServiceTypes narrows the services requested; empty means all known.
	ServiceTypes []ServiceType `json:"service_types,omitempty"`
	// Providers narrows the fan-out to the named providers; empty means
	// every registered provider.
	Providers []ProviderID `json:"providers,omitempty"`
}

// BookingRequest asks a provider to create a shipment.
type BookingRequest struct {
	// OrderID is the owning order, passed through for provider references.
	OrderID string `json:"order_id"`
	// Pickup and Dropoff are the shipment endpoints.
	Pickup  Contact `json:"pickup"`
	Dropoff Contact `json:"dropoff"`
	// Package is the package being shipped.
	Package qdomain.PackageSpec `json:"package"`
	// ServiceType selects the provider service tier.
	ServiceType ServiceType `json:"service_type"`
	// QuoteRef is the provider session token from a prior quote, when the
	// provider requires booking against a quotation.
	QuoteRef string `json:"quote_ref,omitempty"`
	// CODAmount is the cash to collect on delivery, 0 when not COD.
	CODAmount float64 `json:"cod_amount,omitempty"`
	// InsuredValue is the declared value to insure, 0 when uninsured.
	InsuredValue float64 `json:"insured_value,omitempty"`
}

// BookingResult is the provider's acknowledgment of a created shipment.
type BookingResult struct {
	// TrackingNumber is the provider's public tracking number.
	TrackingNumber string `json:"tracking_number"`
	// ProviderRef is the provider's internal order reference.
	ProviderRef string `json:"provider_ref"`
	// Cost is the booked price.
	Cost float64 `json:"cost"`
	// PickupEstimate and DeliveryEstimate are the provider's time promises.
	PickupEstimate   time.Time `json:"pickup_estimate"`
	DeliveryEstimate time.Time `json:"delivery_estimate"`
	// LabelURL points at the printable label artifact, if the provider
	// produces one.
	LabelURL string `json:"label_url,omitempty"`
	// Raw is the provider response kept for audit.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// ShipmentRef identifies a booked shipment at a provider.
type ShipmentRef struct {
	// TrackingNumber is the public tracking number.
	TrackingNumber string `json:"tracking_number"`
	// ProviderRef is the provider's internal reference, when different.
	ProviderRef string `json:"provider_ref,omitempty"`
}

// CourierEvent is one provider tracking update already mapped into the
// canonical vocabulary by the adapter's lookup table.
type CourierEvent struct {
	// Status is the canonical status the provider status mapped to.
	Status tdomain.TrackingStatus `json:"status"`
	// Unmapped flags statuses with no lookup entry; the adapter buckets
	// them as IN_TRANSIT rather than dropping the event.
	Unmapped bool `json:"unmapped,omitempty"`
	// ProviderStatus is the provider's native status string.
	ProviderStatus string `json:"provider_status"`
	// EventTime is the provider's event timestamp.
	EventTime time.Time `json:"event_time"`
	// Description is the provider's event text.
	Description string `json:"description"`
	// LocalizedDescription keeps the provider's local-language wording.
	LocalizedDescription string `json:"localized_description,omitempty"`
	// City is the event location, if known.
	City string `json:"city,omitempty"`
	// Raw is the provider payload for audit.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// TrackingSnapshot is the normalized result of a provider track call.
type TrackingSnapshot struct {
	// Ref identifies the shipment.
	Ref ShipmentRef `json:"ref"`
	// Events are the provider's updates in the order it reported them.
	Events []CourierEvent `json:"events"`
}

// Provider error codes shared across adapters. Adapters translate their
// native error vocabularies into these.
const (
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeAuthExpired     = "AUTH_EXPIRED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeNoDriver        = "NO_DRIVER_AVAILABLE"
	ErrCodeOutOfArea       = "OUT_OF_SERVICE_AREA"
	ErrCodeExceedsLimits   = "EXCEEDS_SERVICE_LIMITS"
	ErrCodeDuplicateOrder  = "DUPLICATE_BOOKING"
	ErrCodeInsufficientBal = "INSUFFICIENT_BALANCE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnavailable     = "PROVIDER_UNAVAILABLE"
	ErrCodeTimeout         = "PROVIDER_TIMEOUT"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
)

// ProviderError is a typed failure raised by a provider adapter. Retryable
// marks transient conditions so the scheduler collaborator can requeue; the
// flag must be preserved end-to-end.
type ProviderError struct {
	// Provider is the adapter that raised the error.
	Provider ProviderID
	// Code is the shared error code.
	Code string
	// Message is the human-readable detail.
	Message string
	// Retryable marks transient conditions.
	Retryable bool
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s, retryable=%t)", e.Provider, e.Message, e.Code, e.Retryable)
}

// NewProviderError creates a typed provider failure.
func NewProviderError(provider ProviderID, code, message string, retryable bool) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Message: message, Retryable: retryable}
}

// IsRetryable reports whether err is a ProviderError flagged transient.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
