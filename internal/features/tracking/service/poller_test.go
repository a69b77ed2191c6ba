package service

import (
	"context"
	"errors"
	"testing"
	"time"

	cdomain "shipping-gateway/internal/features/couriers/domain"
	cports "shipping-gateway/internal/features/couriers/ports"
	qdomain "shipping-gateway/internal/features/quoting/domain"
	"shipping-gateway/internal/features/tracking/domain"
	"shipping-gateway/internal/features/tracking/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubShipmentSource struct {
	shipments []ports.ActiveShipment
	err       error
}

func (s *stubShipmentSource) ActiveShipments(context.Context) ([]ports.ActiveShipment, error) {
	return s.shipments, s.err
}

// trackProvider is a CourierProvider whose Track returns a fixed snapshot.
type trackProvider struct {
	id         cdomain.ProviderID
	snapshot   *cdomain.TrackingSnapshot
	trackErr   error
	trackCalls int
}

func (p *trackProvider) ID() cdomain.ProviderID { return p.id }

func (p *trackProvider) Quote(context.Context, cdomain.QuoteRequest) ([]qdomain.Quote, error) {
	return nil, nil
}

func (p *trackProvider) Book(context.Context, cdomain.BookingRequest) (*cdomain.BookingResult, error) {
	return nil, nil
}

func (p *trackProvider) Track(context.Context, cdomain.ShipmentRef) (*cdomain.TrackingSnapshot, error) {
	p.trackCalls++
	return p.snapshot, p.trackErr
}

func (p *trackProvider) Cancel(context.Context, cdomain.ShipmentRef, string) error { return nil }

func (p *trackProvider) ParseWebhook([]byte) (*cdomain.TrackingSnapshot, error) { return nil, nil }

type stubTimelineSource struct {
	snapshot *cdomain.TrackingSnapshot
	calls    int
}

func (s *stubTimelineSource) Track(context.Context, string) (*cdomain.TrackingSnapshot, error) {
	s.calls++
	return s.snapshot, nil
}

// recordingScheduler captures scheduled work without running it.
type recordingScheduler struct {
	delays []time.Duration
	jobs   []func()
}

func (s *recordingScheduler) After(delay time.Duration, fn func()) error {
	s.delays = append(s.delays, delay)
	s.jobs = append(s.jobs, fn)
	return nil
}

func (s *recordingScheduler) Every(time.Duration, func()) error { return nil }

func (s *recordingScheduler) Stop() {}

func snapshotWith(trackingNumber string, status domain.TrackingStatus) *cdomain.TrackingSnapshot {
	return &cdomain.TrackingSnapshot{
		Ref: cdomain.ShipmentRef{TrackingNumber: trackingNumber},
		Events: []cdomain.CourierEvent{{
			Status:      status,
			EventTime:   time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC),
			Description: string(status),
		}},
	}
}

func newPollerFixture(shipments []ports.ActiveShipment, registry *cports.Registry, sources map[string]TimelineSource) (*Poller, *memEventRepository) {
	events := newMemEventRepository()
	normalizer := &Normalizer{
		events:   events,
		labels:   &mockPropagator{},
		notifier: &mockNotifier{},
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    func() string { return "evt" },
	}
	poller := &Poller{
		shipments:  &stubShipmentSource{shipments: shipments},
		registry:   registry,
		sources:    sources,
		normalizer: normalizer,
		scheduler:  &recordingScheduler{},
		logger:     zap.NewNop(),
	}
	return poller, events
}

func TestPoller_SweepIngestsProviderSnapshots(t *testing.T) {
	provider := &trackProvider{id: "gosend", snapshot: snapshotWith("GK-1", domain.StatusInTransit)}
	poller, events := newPollerFixture(
		[]ports.ActiveShipment{{TrackingNumber: "GK-1", ProviderRef: "ref-1", Carrier: "gosend"}},
		cports.NewRegistry(provider),
		nil,
	)

	poller.Sweep()

	assert.Equal(t, 1, provider.trackCalls)
	stored, err := events.ListByTrackingNumber(context.Background(), "GK-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.StatusInTransit, stored[0].Status)
}

func TestPoller_SweepIsIdempotentAcrossRuns(t *testing.T) {
	provider := &trackProvider{id: "gosend", snapshot: snapshotWith("GK-1", domain.StatusInTransit)}
	poller, events := newPollerFixture(
		[]ports.ActiveShipment{{TrackingNumber: "GK-1", Carrier: "gosend"}},
		cports.NewRegistry(provider),
		nil,
	)

	poller.Sweep()
	poller.Sweep()

	stored, err := events.ListByTrackingNumber(context.Background(), "GK-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestPoller_SweepUsesScrapingSourceForUnregisteredCarrier(t *testing.T) {
	source := &stubTimelineSource{snapshot: snapshotWith("KL-1", domain.StatusOutForDelivery)}
	poller, events := newPollerFixture(
		[]ports.ActiveShipment{{TrackingNumber: "KL-1", Carrier: "kurirlokal"}},
		cports.NewRegistry(),
		map[string]TimelineSource{"kurirlokal": source},
	)

	poller.Sweep()

	assert.Equal(t, 1, source.calls)
	stored, err := events.ListByTrackingNumber(context.Background(), "KL-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestPoller_SweepSkipsCarriersWithoutSource(t *testing.T) {
	poller, events := newPollerFixture(
		[]ports.ActiveShipment{{TrackingNumber: "JNE-1", Carrier: "jne"}},
		cports.NewRegistry(),
		nil,
	)

	poller.Sweep()

	stored, err := events.ListByTrackingNumber(context.Background(), "JNE-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPoller_FailedPollSchedulesOneRetry(t *testing.T) {
	flaky := &trackProvider{id: "gosend", trackErr: errors.New("upstream 502")}
	poller, events := newPollerFixture(
		[]ports.ActiveShipment{{TrackingNumber: "GK-1", Carrier: "gosend"}},
		cports.NewRegistry(flaky),
		nil,
	)

	poller.Sweep()

	sched := poller.scheduler.(*recordingScheduler)
	require.Len(t, sched.jobs, 1)
	assert.Equal(t, retryDelay, sched.delays[0])

	// Provider recovers before the retry fires.
	flaky.trackErr = nil
	flaky.snapshot = snapshotWith("GK-1", domain.StatusInTransit)
	sched.jobs[0]()

	assert.Equal(t, 2, flaky.trackCalls)
	stored, err := events.ListByTrackingNumber(context.Background(), "GK-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestPoller_RetryFailureDoesNotLoop(t *testing.T) {
	broken := &trackProvider{id: "gosend", trackErr: errors.New("upstream down")}
	poller, _ := newPollerFixture(
		[]ports.ActiveShipment{{TrackingNumber: "GK-1", Carrier: "gosend"}},
		cports.NewRegistry(broken),
		nil,
	)

	poller.Sweep()

	sched := poller.scheduler.(*recordingScheduler)
	require.Len(t, sched.jobs, 1)

	sched.jobs[0]()

	// The failed retry waits for the next sweep instead of rescheduling.
	assert.Len(t, sched.jobs, 1)
	assert.Equal(t, 2, broken.trackCalls)
}

func TestPoller_OneFailingProviderDoesNotStallOthers(t *testing.T) {
	failing := &trackProvider{id: "grabexpress", trackErr: errors.New("timeout")}
	healthy := &trackProvider{id: "gosend", snapshot: snapshotWith("GK-2", domain.StatusDelivered)}
	poller, events := newPollerFixture(
		[]ports.ActiveShipment{
			{TrackingNumber: "GR-1", Carrier: "grabexpress"},
			{TrackingNumber: "GK-2", Carrier: "gosend"},
		},
		cports.NewRegistry(failing, healthy),
		nil,
	)

	poller.Sweep()

	stored, err := events.ListByTrackingNumber(context.Background(), "GK-2")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
