package service

import (
	"context"
	"testing"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/features/couriers/domain"
	"shipping-gateway/internal/features/couriers/ports"
	qdomain "shipping-gateway/internal/features/quoting/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable CourierProvider for aggregation tests.
type fakeProvider struct {
	id        domain.ProviderID
	quotes    []qdomain.Quote
	err       error
	waitOnCtx bool
}

func (f *fakeProvider) ID() domain.ProviderID { return f.id }

func (f *fakeProvider) Quote(ctx context.Context, req domain.QuoteRequest) ([]qdomain.Quote, error) {
	if f.waitOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.quotes, f.err
}

func (f *fakeProvider) Book(ctx context.Context, req domain.BookingRequest) (*domain.BookingResult, error) {
	return nil, nil
}

func (f *fakeProvider) Track(ctx context.Context, ref domain.ShipmentRef) (*domain.TrackingSnapshot, error) {
	return nil, nil
}

func (f *fakeProvider) Cancel(ctx context.Context, ref domain.ShipmentRef, reason string) error {
	return nil
}

func (f *fakeProvider) ParseWebhook(body []byte) (*domain.TrackingSnapshot, error) {
	return nil, nil
}

func fakeQuote(carrier, service string, total float64, minutes int) qdomain.Quote {
	return qdomain.Quote{
		CarrierID:   carrier,
		ServiceCode: service,
		Class:       qdomain.RateClassInstant,
		Cost:        qdomain.CostBreakdown{Total: total},
		Timeframe:   qdomain.Timeframe{EstimatedMinutes: minutes},
	}
}

func aggregateRequest() domain.QuoteRequest {
	return domain.QuoteRequest{
		Pickup:  domain.Contact{Coordinate: qdomain.Coordinate{Lat: -6.2088, Lng: 106.8456}},
		Dropoff: domain.Contact{Coordinate: qdomain.Coordinate{Lat: -6.1944, Lng: 106.8229}},
		Package: qdomain.PackageSpec{WeightGrams: 1500},
	}
}

func newTestAggregator(providers ...ports.CourierProvider) *Aggregator {
	return NewAggregator(
		ports.NewRegistry(providers...),
		qdomain.DefaultRankingPolicy,
		config.AggregatorConfig{ProviderTimeoutSeconds: 1, GlobalTimeoutSeconds: 3},
	)
}

func TestAggregatorMergesAndRanks(t *testing.T) {
	agg := newTestAggregator(
		&fakeProvider{id: domain.ProviderGoSend, quotes: []qdomain.Quote{fakeQuote("gosend", "INSTANT", 25000, 60)}},
		&fakeProvider{id: domain.ProviderGrabExpress, quotes: []qdomain.Quote{fakeQuote("grabexpress", "INSTANT", 32000, 45)}},
	)

	result, err := agg.Quote(context.Background(), aggregateRequest())
	require.NoError(t, err)
	require.Len(t, result.Quotes, 2)
	assert.Empty(t, result.Failures)

	require.NotNil(t, result.Recommended)
	assert.Equal(t, result.Quotes[0].CarrierID, result.Recommended.CarrierID)
	for _, q := range result.Quotes {
		assert.Greater(t, q.Score, 0.0)
	}
}

func TestAggregatorToleratesSlowProvider(t *testing.T) {
	agg := newTestAggregator(
		&fakeProvider{id: domain.ProviderGoSend, waitOnCtx: true},
		&fakeProvider{id: domain.ProviderGrabExpress, quotes: []qdomain.Quote{
			fakeQuote("grabexpress", "INSTANT", 32000, 45),
			fakeQuote("grabexpress", "SAME_DAY", 18000, 300),
		}},
	)

	result, err := agg.Quote(context.Background(), aggregateRequest())
	require.NoError(t, err)

	assert.Len(t, result.Quotes, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, domain.ProviderGoSend, result.Failures[0].Provider)
	assert.Equal(t, domain.ErrCodeTimeout, result.Failures[0].Code)
	assert.True(t, result.Failures[0].Retryable)
}

func TestAggregatorHonorsRequestedProviderSubset(t *testing.T) {
	gosend := &fakeProvider{id: domain.ProviderGoSend, quotes: []qdomain.Quote{fakeQuote("gosend", "INSTANT", 25000, 60)}}
	grab := &fakeProvider{id: domain.ProviderGrabExpress, quotes: []qdomain.Quote{fakeQuote("grabexpress", "INSTANT", 32000, 45)}}
	agg := newTestAggregator(gosend, grab)

	req := aggregateRequest()
	req.Providers = []domain.ProviderID{domain.ProviderGrabExpress}

	result, err := agg.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Quotes, 1)
	assert.Equal(t, "grabexpress", result.Quotes[0].CarrierID)
	assert.Empty(t, result.Failures)
}

func TestAggregatorRejectsUnknownRequestedProvider(t *testing.T) {
	agg := newTestAggregator(
		&fakeProvider{id: domain.ProviderGoSend, quotes: []qdomain.Quote{fakeQuote("gosend", "INSTANT", 25000, 60)}},
	)

	req := aggregateRequest()
	req.Providers = []domain.ProviderID{"ninja-van"}

	_, err := agg.Quote(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider requested")
}

func TestAggregatorCapturesProviderErrors(t *testing.T) {
	agg := newTestAggregator(
		&fakeProvider{id: domain.ProviderGoSend, err: domain.NewProviderError(
			domain.ProviderGoSend, domain.ErrCodeNoDriver, "no driver nearby", true)},
		&fakeProvider{id: domain.ProviderBorzo, quotes: []qdomain.Quote{fakeQuote("borzo", "STANDARD", 28000, 50)}},
	)

	result, err := agg.Quote(context.Background(), aggregateRequest())
	require.NoError(t, err)

	assert.Len(t, result.Quotes, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, domain.ErrCodeNoDriver, result.Failures[0].Code)
	assert.True(t, result.Failures[0].Retryable)
}

func TestAggregatorAllProvidersFail(t *testing.T) {
	agg := newTestAggregator(
		&fakeProvider{id: domain.ProviderGoSend, err: domain.NewProviderError(
			domain.ProviderGoSend, domain.ErrCodeUnavailable, "upstream down", true)},
		&fakeProvider{id: domain.ProviderLalamove, err: domain.NewProviderError(
			domain.ProviderLalamove, domain.ErrCodeAuthFailed, "bad key", false)},
	)

	result, err := agg.Quote(context.Background(), aggregateRequest())
	require.NoError(t, err)

	assert.Empty(t, result.Quotes)
	assert.Nil(t, result.Recommended)
	assert.Len(t, result.Failures, 2)
}

func TestAggregatorRejectsMissingCoordinates(t *testing.T) {
	agg := newTestAggregator(&fakeProvider{id: domain.ProviderGoSend})

	req := aggregateRequest()
	req.Pickup.Coordinate = qdomain.Coordinate{}
	_, err := agg.Quote(context.Background(), req)
	require.Error(t, err)
}

func TestAggregatorEmptyProviderAnswerIsNotAFailure(t *testing.T) {
	agg := newTestAggregator(
		&fakeProvider{id: domain.ProviderLalamove},
		&fakeProvider{id: domain.ProviderGoSend, quotes: []qdomain.Quote{fakeQuote("gosend", "INSTANT", 25000, 60)}},
	)

	result, err := agg.Quote(context.Background(), aggregateRequest())
	require.NoError(t, err)

	assert.Len(t, result.Quotes, 1)
	assert.Empty(t, result.Failures)
}
