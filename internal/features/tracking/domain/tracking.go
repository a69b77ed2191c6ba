package domain

import (
	"encoding/json"
	"time"
)

// TrackingStatus is the engine's canonical shipment-state vocabulary,
// independent of any carrier's native wording. Provider adapters own the
// lookup tables that translate into it.
type TrackingStatus string

const (
	StatusOrderReceived     TrackingStatus = "ORDER_RECEIVED"
	StatusOrderConfirmed    TrackingStatus = "ORDER_CONFIRMED"
	StatusPickedUp          TrackingStatus = "PICKED_UP"
	StatusInTransit         TrackingStatus = "IN_TRANSIT"
	StatusOutForDelivery    TrackingStatus = "OUT_FOR_DELIVERY"
	StatusDeliveryAttempted TrackingStatus = "DELIVERY_ATTEMPTED"
	StatusDelivered         TrackingStatus = "DELIVERED"
	StatusDelayed           TrackingStatus = "DELAYED"
	StatusException         TrackingStatus = "EXCEPTION"
	StatusOnHold            TrackingStatus = "ON_HOLD"
	StatusDamaged           TrackingStatus = "DAMAGED"
	StatusLost              TrackingStatus = "LOST"
	StatusCancelled         TrackingStatus = "CANCELLED"
	StatusReturnedToSender  TrackingStatus = "RETURNED_TO_SENDER"
)

// AllStatuses lists every canonical status. Kept in sync with the constants;
// the progress table test iterates over it.
var AllStatuses = []TrackingStatus{
	StatusOrderReceived,
	StatusOrderConfirmed,
	StatusPickedUp,
	StatusInTransit,
	StatusOutForDelivery,
	StatusDeliveryAttempted,
	StatusDelivered,
	StatusDelayed,
	StatusException,
	StatusOnHold,
	StatusDamaged,
	StatusLost,
	StatusCancelled,
	StatusReturnedToSender,
}

// EventType categorizes what kind of update a tracking event carries.
type EventType string

const (
	EventTypeStatusUpdate    EventType = "STATUS_UPDATE"
	EventTypeLocationUpdate  EventType = "LOCATION_UPDATE"
	EventTypeDelay           EventType = "DELAY"
	EventTypeException       EventType = "EXCEPTION"
	EventTypeDeliveryAttempt EventType = "DELIVERY_ATTEMPT"
	EventTypeMilestone       EventType = "MILESTONE"
)

// progressTable maps happy-path milestones to completion percentages.
var progressTable = map[TrackingStatus]int{
	StatusOrderReceived:  5,
	StatusOrderConfirmed: 10,
	StatusPickedUp:       25,
	StatusInTransit:      50,
	StatusOutForDelivery: 75,
	StatusDelivered:      100,
}

// retainProgress holds the statuses that keep the percentage of the last
// non-exception milestone instead of mapping to a value of their own.
var retainProgress = map[TrackingStatus]bool{
	StatusDeliveryAttempted: true,
	StatusDelayed:           true,
	StatusException:         true,
	StatusOnHold:            true,
}

// terminalFailure holds the statuses that report 0% progress.
var terminalFailure = map[TrackingStatus]bool{
	StatusDamaged:          true,
	StatusLost:             true,
	StatusCancelled:        true,
	StatusReturnedToSender: true,
}

// ProgressFor returns the completion percentage for a status.
// lastMilestonePct is the percentage of the most recent non-exception
// milestone, used by exception-like statuses; terminal failures always
// report 0.
func ProgressFor(status TrackingStatus, lastMilestonePct int) int {
	if terminalFailure[status] {
		return 0
	}
	if retainProgress[status] {
		return lastMilestonePct
	}
	if pct, ok := progressTable[status]; ok {
		return pct
	}
	return lastMilestonePct
}

// IsMilestone reports whether the status carries its own progress value.
func (s TrackingStatus) IsMilestone() bool {
	_, ok := progressTable[s]
	return ok
}

// IsTerminalFailure reports whether the status ends the shipment unsuccessfully.
func (s TrackingStatus) IsTerminalFailure() bool {
	return terminalFailure[s]
}

// notifiableStatuses is the fixed subset of statuses worth telling the
// customer about. Internal/diagnostic statuses never notify.
var notifiableStatuses = map[TrackingStatus]bool{
	StatusOrderConfirmed:    true,
	StatusPickedUp:          true,
	StatusInTransit:         true,
	StatusOutForDelivery:    true,
	StatusDelivered:         true,
	StatusDeliveryAttempted: true,
	StatusDelayed:           true,
	StatusException:         true,
}

// ShouldNotifyCustomer decides whether an event warrants a customer
// notification: the status must be in the notifiable subset AND the event
// must be marked customer-visible.
func ShouldNotifyCustomer(status TrackingStatus, customerVisible bool) bool {
	return customerVisible && notifiableStatuses[status]
}

// Location is where a tracking event happened.
type Location struct {
	// City is the city name.
	City string `json:"city,omitempty"`
	// Facility is the hub/facility name.
	Facility string `json:"facility,omitempty"`
	// Coordinate is the optional geolocation.
	Lat float64 `json:"lat,omitempty"`
	Lng float64 `json:"lng,omitempty"`
}

// DeliveryProof carries the provider's proof-of-delivery payload.
type DeliveryProof struct {
	// ReceiverName is who signed for the package.
	ReceiverName string `json:"receiver_name,omitempty"`
	// SignatureURL points at the captured signature image.
	SignatureURL string `json:"signature_url,omitempty"`
	// PhotoURL points at the delivery photo.
	PhotoURL string `json:"photo_url,omitempty"`
}

// ExceptionDetail carries the provider's exception payload.
type ExceptionDetail struct {
	Code       string `json:"code,omitempty"`
	Category   string `json:"category,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// TrackingEvent is one normalized entry in a shipment's timeline.
// Events are append-only: never mutated or deleted. Sequence numbers are
// strictly increasing and dense per tracking number in ingestion order,
// independent of EventTime.
type TrackingEvent struct {
	// ID is the unique event id.
	ID string `json:"id"`
	// TrackingNumber ties the event to its shipping label.
	TrackingNumber string `json:"tracking_number"`
	// Sequence is the dense per-tracking-number ingestion order.
	Sequence int64 `json:"sequence"`
	// Status is the canonical status.
	Status TrackingStatus `json:"status"`
	// Type categorizes the event.
	Type EventType `json:"type"`
	// EventTime is when the event happened at the provider, which may arrive
	// out of chronological order.
	EventTime time.Time `json:"event_time"`
	// Description is the human-readable event text.
	Description string `json:"description"`
	// LocalizedDescription is the provider's local-language text, if any.
	LocalizedDescription string `json:"localized_description,omitempty"`
	// Location is where the event happened, if known.
	Location *Location `json:"location,omitempty"`
	// Proof is the delivery-proof payload, if any.
	Proof *DeliveryProof `json:"proof,omitempty"`
	// Exception is the exception payload, if any.
	Exception *ExceptionDetail `json:"exception,omitempty"`
	// Progress is the computed completion percentage at this event.
	Progress int `json:"progress"`
	// CustomerVisible marks the event as shown to the customer.
	CustomerVisible bool `json:"customer_visible"`
	// NotifiedCustomer records whether a notification request was emitted.
	NotifiedCustomer bool `json:"notified_customer"`
	// Unmapped flags events whose provider status had no lookup entry; they
	// are bucketed, not dropped, and flagged for monitoring.
	Unmapped bool `json:"unmapped,omitempty"`
	// Provider identifies the source courier.
	Provider string `json:"provider,omitempty"`
	// Raw is the provider payload kept for audit.
	Raw json.RawMessage `json:"raw,omitempty"`
	// CreatedAt is the ingestion timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// DedupeKey identifies an event for idempotent re-ingestion: polling and
// webhooks can both deliver the same underlying update.
func (e TrackingEvent) DedupeKey() string {
	return e.TrackingNumber + "|" + e.EventTime.UTC().Format(time.RFC3339) + "|" + e.Description
}
