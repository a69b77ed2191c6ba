package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shipping-gateway/internal/core/logger"
	cdomain "shipping-gateway/internal/features/couriers/domain"
	"shipping-gateway/internal/features/tracking/domain"
	"shipping-gateway/internal/features/tracking/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Normalizer turns provider tracking updates into the canonical, ordered,
// deduplicated event timeline and drives the side effects a status change
// implies: notification requests and label propagation.
type Normalizer struct {
	events   ports.EventRepository
	labels   ports.LabelPropagator
	notifier ports.NotificationClient
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(events ports.EventRepository, labels ports.LabelPropagator, notifier ports.NotificationClient) *Normalizer {
	return &Normalizer{
		events:   events,
		labels:   labels,
		notifier: notifier,
		logger:   logger.Get(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// IngestResult reports what one raw event became.
type IngestResult struct {
	Event     *domain.TrackingEvent
	Duplicate bool
	Notified  bool
}

// Ingest normalizes one provider event for a tracking number. Re-ingesting
// the same underlying update is a no-op, which tolerates webhooks and
// polling delivering the same fact twice.
func (n *Normalizer) Ingest(ctx context.Context, provider cdomain.ProviderID, trackingNumber string, raw cdomain.CourierEvent) (*IngestResult, error) {
	if trackingNumber == "" {
		return nil, errors.New("tracking number is required")
	}

	if raw.Unmapped {
		// Integration gap: the adapter saw a status it has no table entry
		// for. Ingestion proceeds with the fallback bucket.
		n.logger.Warn("Ingesting event with unmapped provider status",
			zap.String("provider", string(provider)),
			zap.String("tracking_number", trackingNumber),
			zap.String("provider_status", raw.ProviderStatus),
		)
	}

	eventTime := raw.EventTime
	if eventTime.IsZero() {
		eventTime = n.now()
	}

	event := &domain.TrackingEvent{
		ID:                   n.newID(),
		TrackingNumber:       trackingNumber,
		Status:               raw.Status,
		Type:                 eventTypeFor(raw.Status),
		EventTime:            eventTime,
		Description:          raw.Description,
		LocalizedDescription: raw.LocalizedDescription,
		CustomerVisible:      !raw.Unmapped,
		Unmapped:             raw.Unmapped,
		Provider:             string(provider),
		Raw:                  raw.Raw,
		CreatedAt:            n.now(),
	}
	if raw.City != "" {
		event.Location = &domain.Location{City: raw.City}
	}
	event.Progress = domain.ProgressFor(raw.Status, n.lastMilestonePct(ctx, trackingNumber))

	stored, err := n.events.AppendIfNew(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to append tracking event: %w", err)
	}
	if !stored {
		return &IngestResult{Event: event, Duplicate: true}, nil
	}

	result := &IngestResult{Event: event}
	result.Notified = n.maybeNotify(ctx, event)
	n.propagate(ctx, event)
	return result, nil
}

// IngestSnapshot ingests every event in a provider snapshot. One bad event
// never aborts the rest of the batch.
func (n *Normalizer) IngestSnapshot(ctx context.Context, provider cdomain.ProviderID, trackingNumber string, snapshot *cdomain.TrackingSnapshot) ([]IngestResult, error) {
	if snapshot == nil {
		return nil, errors.New("snapshot is required")
	}
	if trackingNumber == "" {
		trackingNumber = snapshot.Ref.TrackingNumber
	}

	var results []IngestResult
	var failures int
	for _, raw := range snapshot.Events {
		result, err := n.Ingest(ctx, provider, trackingNumber, raw)
		if err != nil {
			failures++
			n.logger.Error("Failed to ingest tracking event",
				zap.String("provider", string(provider)),
				zap.String("tracking_number", trackingNumber),
				zap.Error(err),
			)
			continue
		}
		results = append(results, *result)
	}
	if failures > 0 && len(results) == 0 {
		return nil, fmt.Errorf("all %d events failed to ingest", failures)
	}
	return results, nil
}

// Timeline returns the ordered canonical history for a tracking number plus
// the current progress percentage.
func (n *Normalizer) Timeline(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, int, error) {
	events, err := n.events.ListByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, 0, err
	}
	progress := 0
	if len(events) > 0 {
		progress = events[len(events)-1].Progress
	}
	return events, progress, nil
}

// lastMilestonePct finds the highest progress among already-stored milestone
// events, so exception states can retain it instead of resetting.
func (n *Normalizer) lastMilestonePct(ctx context.Context, trackingNumber string) int {
	events, err := n.events.ListByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		n.logger.Warn("Failed to load events for progress computation",
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
		return 0
	}
	last := 0
	for _, e := range events {
		if e.Status.IsMilestone() && e.Progress > last {
			last = e.Progress
		}
	}
	return last
}

func (n *Normalizer) maybeNotify(ctx context.Context, event *domain.TrackingEvent) bool {
	if !domain.ShouldNotifyCustomer(event.Status, event.CustomerVisible) {
		return false
	}

	contact, err := n.labels.Recipient(ctx, event.TrackingNumber)
	if err != nil {
		n.logger.Warn("Failed to resolve customer contact for notification",
			zap.String("tracking_number", event.TrackingNumber),
			zap.Error(err),
		)
		return false
	}

	req := ports.NotificationRequest{
		TrackingNumber: event.TrackingNumber,
		Status:         event.Status,
		Description:    event.Description,
		Contact:        contact,
	}
	if err := n.notifier.Notify(ctx, req); err != nil {
		n.logger.Warn("Failed to emit customer notification",
			zap.String("tracking_number", event.TrackingNumber),
			zap.String("status", string(event.Status)),
			zap.Error(err),
		)
		return false
	}
	event.NotifiedCustomer = true
	return true
}

// propagate reflects pickup and delivery milestones onto the owning label.
// Propagation failures are logged, never surfaced: the event itself is
// already stored and a later event retries the same transition.
func (n *Normalizer) propagate(ctx context.Context, event *domain.TrackingEvent) {
	var err error
	switch event.Status {
	case domain.StatusPickedUp:
		err = n.labels.MarkShipped(ctx, event.TrackingNumber, event.EventTime)
	case domain.StatusDelivered:
		err = n.labels.MarkDelivered(ctx, event.TrackingNumber, event.EventTime)
	default:
		return
	}
	if err != nil {
		n.logger.Warn("Failed to propagate tracking status to label",
			zap.String("tracking_number", event.TrackingNumber),
			zap.String("status", string(event.Status)),
			zap.Error(err),
		)
	}
}

// eventTypeFor categorizes an event by its canonical status.
func eventTypeFor(status domain.TrackingStatus) domain.EventType {
	switch status {
	case domain.StatusDelayed:
		return domain.EventTypeDelay
	case domain.StatusDeliveryAttempted:
		return domain.EventTypeDeliveryAttempt
	case domain.StatusException, domain.StatusDamaged, domain.StatusLost:
		return domain.EventTypeException
	}
	if status.IsMilestone() {
		return domain.EventTypeMilestone
	}
	return domain.EventTypeStatusUpdate
}
