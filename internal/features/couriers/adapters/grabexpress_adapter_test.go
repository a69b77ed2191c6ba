package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/features/couriers/domain"
	tdomain "shipping-gateway/internal/features/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grabTestServer serves the token endpoint plus whatever delivery handler the
// test provides, counting token exchanges.
func grabTestServer(t *testing.T, tokenCalls *int32, handler http.HandlerFunc) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/grabid/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "test-id", body["client_id"])
		assert.Equal(t, "test-secret", body["client_secret"])

		w.Write([]byte(`{"access_token": "tok-1", "token_type": "Bearer", "expires_in": 3600}`))
	})
	mux.HandleFunc("/", handler)
	return httptest.NewServer(mux)
}

func newGrabAdapter(baseURL string) *GrabExpressAdapter {
	return NewGrabExpressAdapter(config.GrabExpressConfig{
		BaseURL:      baseURL,
		ClientID:     "test-id",
		ClientSecret: "test-secret",
	})
}

func TestGrabExpressQuote(t *testing.T) {
	var tokenCalls int32
	server := grabTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/deliveries/quotes", r.URL.Path)
		w.Write([]byte(`{
			"quotes": [
				{
					"service": {"id": 1, "type": "INSTANT", "name": "GrabExpress Instant"},
					"amount": 32000,
					"currency": {"code": "IDR", "exponent": 0},
					"distance": 4200,
					"estimatedTimeline": {"deliverMinutes": 45}
				},
				{
					"service": {"id": 2, "type": "SAME_DAY", "name": "GrabExpress Same Day"},
					"amount": 18000,
					"currency": {"code": "IDR", "exponent": 0},
					"distance": 4200,
					"estimatedTimeline": {"deliverMinutes": 300}
				}
			]
		}`))
	})
	defer server.Close()

	adapter := newGrabAdapter(server.URL)
	quotes, err := adapter.Quote(context.Background(), instantQuoteRequest())
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "grabexpress", quotes[0].CarrierID)
	assert.Equal(t, 32000.0, quotes[0].Cost.Total)
	assert.InDelta(t, 4.2, quotes[0].DistanceKm, 0.001)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestGrabExpressTokenIsCached(t *testing.T) {
	var tokenCalls int32
	server := grabTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quotes": []}`))
	})
	defer server.Close()

	adapter := newGrabAdapter(server.URL)
	for i := 0; i < 3; i++ {
		_, err := adapter.Quote(context.Background(), instantQuoteRequest())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestGrabExpressExpiredTokenIsRefreshed(t *testing.T) {
	var tokenCalls, apiCalls int32
	server := grabTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&apiCalls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code": "TOKEN_EXPIRED", "message": "access token expired"}`))
			return
		}
		w.Write([]byte(`{"quotes": []}`))
	})
	defer server.Close()

	adapter := newGrabAdapter(server.URL)

	_, err := adapter.Quote(context.Background(), instantQuoteRequest())
	require.Error(t, err)
	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, domain.ErrCodeAuthExpired, provErr.Code)
	assert.True(t, provErr.Retryable)

	// the retry exchanges credentials again
	_, err = adapter.Quote(context.Background(), instantQuoteRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestGrabExpressBook(t *testing.T) {
	var tokenCalls int32
	server := grabTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/deliveries", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-1", body["merchantOrderID"])
		sender := body["sender"].(map[string]interface{})
		assert.Equal(t, "+628111111111", sender["phone"])

		w.Write([]byte(`{
			"deliveryID": "DLV-9",
			"trackingID": "GE-555",
			"status": "ALLOCATING",
			"quote": {"amount": 32000},
			"timeline": {"pickup": "2026-06-15T10:00:00Z", "dropoff": "2026-06-15T10:45:00Z"},
			"trackingURL": "https://grab.com/track/GE-555"
		}`))
	})
	defer server.Close()

	adapter := newGrabAdapter(server.URL)
	result, err := adapter.Book(context.Background(), domain.BookingRequest{
		OrderID:     "order-1",
		Pickup:      instantQuoteRequest().Pickup,
		Dropoff:     instantQuoteRequest().Dropoff,
		Package:     instantQuoteRequest().Package,
		ServiceType: domain.ServiceInstant,
		QuoteRef:    "quote-7",
	})
	require.NoError(t, err)

	assert.Equal(t, "GE-555", result.TrackingNumber)
	assert.Equal(t, "DLV-9", result.ProviderRef)
	assert.Equal(t, 32000.0, result.Cost)
}

func TestGrabExpressTrackMapsStatuses(t *testing.T) {
	var tokenCalls int32
	server := grabTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/deliveries/DLV-9", r.URL.Path)
		w.Write([]byte(`{
			"deliveryID": "DLV-9",
			"trackingID": "GE-555",
			"status": "IN_DELIVERY",
			"statusHistory": [
				{"status": "QUEUEING", "description": "Looking for a driver", "updatedAt": "2026-06-15T09:00:00Z"},
				{"status": "PICKED_UP", "description": "Driver picked up the package", "updatedAt": "2026-06-15T09:30:00Z"},
				{"status": "IN_DELIVERY", "description": "On the way", "updatedAt": "2026-06-15T09:35:00Z"}
			]
		}`))
	})
	defer server.Close()

	adapter := newGrabAdapter(server.URL)
	snapshot, err := adapter.Track(context.Background(), domain.ShipmentRef{ProviderRef: "DLV-9"})
	require.NoError(t, err)
	require.Len(t, snapshot.Events, 3)

	assert.Equal(t, tdomain.StatusOrderReceived, snapshot.Events[0].Status)
	assert.Equal(t, tdomain.StatusPickedUp, snapshot.Events[1].Status)
	assert.Equal(t, tdomain.StatusOutForDelivery, snapshot.Events[2].Status)
}

func TestGrabExpressParseWebhook(t *testing.T) {
	adapter := newGrabAdapter("http://unused")

	snapshot, err := adapter.ParseWebhook([]byte(`{
		"deliveryID": "DLV-9",
		"trackingID": "GE-555",
		"status": "FAILED",
		"failedReason": "recipient unreachable",
		"timestamp": 1780000000
	}`))
	require.NoError(t, err)
	require.Len(t, snapshot.Events, 1)

	assert.Equal(t, tdomain.StatusException, snapshot.Events[0].Status)
	assert.Equal(t, "recipient unreachable", snapshot.Events[0].Description)
	assert.Equal(t, "GE-555", snapshot.Ref.TrackingNumber)
	assert.Equal(t, "DLV-9", snapshot.Ref.ProviderRef)
}

func TestGrabPhone(t *testing.T) {
	assert.Equal(t, "+628111111111", grabPhone("08111111111"))
	assert.Equal(t, "+628111111111", grabPhone("628111111111"))
	assert.Equal(t, "+628111111111", grabPhone("+628111111111"))
}
