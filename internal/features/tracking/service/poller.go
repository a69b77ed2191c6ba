package service

import (
	"context"
	"time"

	"shipping-gateway/internal/core/logger"
	cdomain "shipping-gateway/internal/features/couriers/domain"
	cports "shipping-gateway/internal/features/couriers/ports"
	"shipping-gateway/internal/features/tracking/ports"

	"go.uber.org/zap"
)

// pollTimeout caps one full polling sweep.
const pollTimeout = 5 * time.Minute

// retryDelay is how long a failed poll waits for its single retry before the
// next sweep picks the shipment up again.
const retryDelay = 2 * time.Minute

// TimelineSource fetches a provider-shaped timeline snapshot for a tracking
// number. Carriers without an API go through here, e.g. the page scraper.
type TimelineSource interface {
	Track(ctx context.Context, trackingNumber string) (*cdomain.TrackingSnapshot, error)
}

// Poller periodically refreshes the timelines of shipments still in motion.
// Webhooks remain the primary source; polling backfills providers that drop
// deliveries and carriers that never push.
type Poller struct {
	shipments  ports.ShipmentSource
	registry   *cports.Registry
	sources    map[string]TimelineSource
	normalizer *Normalizer
	scheduler  ports.Scheduler
	logger     *zap.Logger
}

// NewPoller creates a Poller. sources maps carrier ids without a registered
// provider adapter to their scraping source.
func NewPoller(shipments ports.ShipmentSource, registry *cports.Registry, sources map[string]TimelineSource, normalizer *Normalizer, scheduler ports.Scheduler) *Poller {
	return &Poller{
		shipments:  shipments,
		registry:   registry,
		sources:    sources,
		normalizer: normalizer,
		scheduler:  scheduler,
		logger:     logger.Get(),
	}
}

// Start schedules the recurring sweep.
func (p *Poller) Start(interval time.Duration) error {
	return p.scheduler.Every(interval, p.Sweep)
}

// Sweep polls every active shipment once. Failures are per-shipment: one
// unreachable provider never stalls the rest.
func (p *Poller) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	shipments, err := p.shipments.ActiveShipments(ctx)
	if err != nil {
		p.logger.Error("Failed to list active shipments for polling", zap.Error(err))
		return
	}

	for _, shipment := range shipments {
		if err := p.poll(ctx, shipment); err != nil {
			p.logger.Warn("Tracking poll failed, scheduling retry",
				zap.String("tracking_number", shipment.TrackingNumber),
				zap.String("carrier", shipment.Carrier),
				zap.Error(err),
			)
			p.scheduleRetry(shipment)
		}
	}
}

// scheduleRetry queues one short-delay re-poll for a shipment whose poll
// failed. A failing retry waits for the next sweep instead of looping.
func (p *Poller) scheduleRetry(shipment ports.ActiveShipment) {
	err := p.scheduler.After(retryDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()

		if err := p.poll(ctx, shipment); err != nil {
			p.logger.Warn("Tracking poll retry failed",
				zap.String("tracking_number", shipment.TrackingNumber),
				zap.String("carrier", shipment.Carrier),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		p.logger.Warn("Failed to schedule poll retry",
			zap.String("tracking_number", shipment.TrackingNumber),
			zap.Error(err),
		)
	}
}

func (p *Poller) poll(ctx context.Context, shipment ports.ActiveShipment) error {
	providerID := cdomain.ProviderID(shipment.Carrier)

	var snapshot *cdomain.TrackingSnapshot
	var err error
	if provider, ok := p.registry.Get(providerID); ok {
		snapshot, err = provider.Track(ctx, cdomain.ShipmentRef{
			TrackingNumber: shipment.TrackingNumber,
			ProviderRef:    shipment.ProviderRef,
		})
	} else if source, ok := p.sources[shipment.Carrier]; ok {
		snapshot, err = source.Track(ctx, shipment.TrackingNumber)
	} else {
		// Static carriers with no tracking surface are skipped.
		return nil
	}
	if err != nil {
		return err
	}

	_, err = p.normalizer.IngestSnapshot(ctx, providerID, shipment.TrackingNumber, snapshot)
	return err
}
