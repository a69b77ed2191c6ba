package ports

import (
	"context"

	"shipping-gateway/internal/features/couriers/domain"
	qdomain "shipping-gateway/internal/features/quoting/domain"
)

// CourierProvider is the provider-neutral capability contract every instant
// courier adapter implements. Authentication, unit conversion, and status
// vocabularies are adapter-private concerns behind this interface.
type CourierProvider interface {
	// ID returns the provider identifier used for registry selection.
	ID() domain.ProviderID

	// Quote returns live offers for the pickup/dropoff pair. Failures are
	// typed ProviderErrors so the aggregator can degrade gracefully.
	Quote(ctx context.Context, req domain.QuoteRequest) ([]qdomain.Quote, error)

	// Book creates a shipment at the provider.
	Book(ctx context.Context, req domain.BookingRequest) (*domain.BookingResult, error)

	// Track fetches the provider's updates for a booked shipment, already
	// mapped into the canonical status vocabulary.
	Track(ctx context.Context, ref domain.ShipmentRef) (*domain.TrackingSnapshot, error)

	// Cancel voids a booked shipment at the provider. The caller must not
	// mark anything cancelled locally until this acknowledges.
	Cancel(ctx context.Context, ref domain.ShipmentRef, reason string) error

	// ParseWebhook translates a provider webhook payload into canonical
	// events using the adapter's lookup tables.
	ParseWebhook(body []byte) (*domain.TrackingSnapshot, error)
}

// Registry selects provider adapters by id. Adapters are independent
// implementations; there is no shared carrier base type.
type Registry struct {
	providers map[domain.ProviderID]CourierProvider
	order     []domain.ProviderID
}

// NewRegistry creates a Registry holding the given providers, preserving
// registration order for deterministic iteration.
func NewRegistry(providers ...CourierProvider) *Registry {
	r := &Registry{providers: make(map[domain.ProviderID]CourierProvider, len(providers))}
	for _, p := range providers {
		if _, exists := r.providers[p.ID()]; !exists {
			r.order = append(r.order, p.ID())
		}
		r.providers[p.ID()] = p
	}
	return r
}

// Get returns the provider registered under id.
func (r *Registry) Get(id domain.ProviderID) (CourierProvider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// All returns every registered provider in registration order.
func (r *Registry) All() []CourierProvider {
	out := make([]CourierProvider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// IDs returns the registered provider ids in registration order.
func (r *Registry) IDs() []domain.ProviderID {
	return append([]domain.ProviderID(nil), r.order...)
}
