package ports

import (
	"context"

	"shipping-gateway/internal/features/quoting/domain"
)

// RateRepository defines access to the rate table store. Records are written
// by the external rate-sync job; the quote engine only reads.
type RateRepository interface {
	// FindByRoute returns the candidate rate records covering the route.
	// An empty slice means the route is not covered; that is not an error.
	FindByRoute(ctx context.Context, route domain.Route) ([]domain.RateRecord, error)

	// Save upserts a rate record for its route bucket.
	Save(ctx context.Context, record domain.RateRecord) error
}
