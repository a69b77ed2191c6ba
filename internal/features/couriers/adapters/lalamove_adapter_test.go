package adapters

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/features/couriers/domain"
	tdomain "shipping-gateway/internal/features/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLalamoveAdapter(baseURL string) *LalamoveAdapter {
	return NewLalamoveAdapter(config.LalamoveConfig{
		BaseURL: baseURL,
		APIKey:  "pk_test_key",
		Secret:  "sk_test_secret",
		Market:  "ID",
	})
}

func TestLalamoveSign(t *testing.T) {
	// signature over "ts\r\nMETHOD\r\npath\r\n\r\nbody" must be stable for
	// identical inputs and differ when any component changes
	sig := lalamoveSign("secret", 1700000000000, "POST", "/v3/quotations", `{"data":{}}`)
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, lalamoveSign("secret", 1700000000000, "POST", "/v3/quotations", `{"data":{}}`))
	assert.NotEqual(t, sig, lalamoveSign("secret", 1700000000001, "POST", "/v3/quotations", `{"data":{}}`))
	assert.NotEqual(t, sig, lalamoveSign("other", 1700000000000, "POST", "/v3/quotations", `{"data":{}}`))
}

func TestLalamoveQuoteSignsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ID", r.Header.Get("Market"))

		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "hmac pk_test_key:"))
		parts := strings.Split(strings.TrimPrefix(auth, "hmac "), ":")
		require.Len(t, parts, 3)
		ts, err := strconv.ParseInt(parts[1], 10, 64)
		require.NoError(t, err)

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, lalamoveSign("sk_test_secret", ts, http.MethodPost, "/v3/quotations", string(body)), parts[2])

		w.Write([]byte(`{
			"data": {
				"quotationId": "Q-77",
				"priceBreakdown": {"base": "20000", "total": "23000", "currency": "IDR"},
				"distance": {"value": "4200", "unit": "m"}
			}
		}`))
	}))
	defer server.Close()

	adapter := newLalamoveAdapter(server.URL)
	quotes, err := adapter.Quote(context.Background(), instantQuoteRequest())
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	assert.Equal(t, "lalamove", quotes[0].CarrierID)
	assert.Equal(t, "MOTORCYCLE", quotes[0].ServiceCode)
	assert.Equal(t, 23000.0, quotes[0].Cost.Total)
	assert.Equal(t, "Q-77", quotes[0].SourceRef)
	assert.InDelta(t, 4.2, quotes[0].DistanceKm, 0.001)
}

func TestLalamoveQuoteSkipsSameDayOnly(t *testing.T) {
	adapter := newLalamoveAdapter("http://unused")
	req := instantQuoteRequest()
	req.ServiceTypes = []domain.ServiceType{domain.ServiceSameDay}

	quotes, err := adapter.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestLalamoveServiceFor(t *testing.T) {
	assert.Equal(t, "MOTORCYCLE", lalamoveServiceFor(2))
	assert.Equal(t, "MOTORCYCLE", lalamoveServiceFor(20))
	assert.Equal(t, "SEDAN", lalamoveServiceFor(35))
}

func TestLalamoveBookRequiresQuoteRef(t *testing.T) {
	adapter := newLalamoveAdapter("http://unused")

	_, err := adapter.Book(context.Background(), domain.BookingRequest{OrderID: "order-1"})
	require.Error(t, err)
	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, domain.ErrCodeInvalidRequest, provErr.Code)
	assert.False(t, provErr.Retryable)
}

func TestLalamoveBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/orders", r.URL.Path)

		var body struct {
			Data struct {
				QuotationID string `json:"quotationId"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Q-77", body.Data.QuotationID)

		w.Write([]byte(`{
			"data": {
				"orderId": "LLM-321",
				"status": "ASSIGNING_DRIVER",
				"shareLink": "https://share.lalamove.com/LLM-321",
				"priceBreakdown": {"total": "23000"}
			}
		}`))
	}))
	defer server.Close()

	adapter := newLalamoveAdapter(server.URL)
	result, err := adapter.Book(context.Background(), domain.BookingRequest{
		OrderID:     "order-1",
		Pickup:      instantQuoteRequest().Pickup,
		Dropoff:     instantQuoteRequest().Dropoff,
		Package:     instantQuoteRequest().Package,
		ServiceType: domain.ServiceInstant,
		QuoteRef:    "Q-77",
	})
	require.NoError(t, err)

	assert.Equal(t, "LLM-321", result.TrackingNumber)
	assert.Equal(t, 23000.0, result.Cost)
	assert.Equal(t, "https://share.lalamove.com/LLM-321", result.LabelURL)
}

func TestLalamoveTrack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/orders/LLM-321", r.URL.Path)
		w.Write([]byte(`{"data": {"orderId": "LLM-321", "status": "PICKED_UP", "driverId": "drv-1"}}`))
	}))
	defer server.Close()

	adapter := newLalamoveAdapter(server.URL)
	adapter.now = func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) }

	snapshot, err := adapter.Track(context.Background(), domain.ShipmentRef{TrackingNumber: "LLM-321"})
	require.NoError(t, err)
	require.Len(t, snapshot.Events, 1)

	assert.Equal(t, tdomain.StatusPickedUp, snapshot.Events[0].Status)
	assert.Equal(t, "PICKED_UP", snapshot.Events[0].ProviderStatus)
	assert.Equal(t, 2026, snapshot.Events[0].EventTime.Year())
}

func TestLalamoveParseWebhook(t *testing.T) {
	adapter := newLalamoveAdapter("http://unused")

	snapshot, err := adapter.ParseWebhook([]byte(`{
		"eventType": "ORDER_STATUS_CHANGED",
		"data": {"order": {"orderId": "LLM-321", "status": "COMPLETED"}},
		"timestamp": 1780000000
	}`))
	require.NoError(t, err)
	require.Len(t, snapshot.Events, 1)

	assert.Equal(t, tdomain.StatusDelivered, snapshot.Events[0].Status)
	assert.Equal(t, "LLM-321", snapshot.Ref.TrackingNumber)

	_, err = adapter.ParseWebhook([]byte(`{"eventType": "ORDER_STATUS_CHANGED", "data": {}}`))
	require.Error(t, err)
}

func TestLalamoveErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantCode   string
		retryable  bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, domain.ErrCodeAuthFailed, false},
		{"not found", http.StatusNotFound, `{}`, domain.ErrCodeNotFound, false},
		{"insufficient credit", http.StatusPaymentRequired, `{"errors":[{"id":"ERR_INSUFFICIENT_CREDIT","message":"wallet empty"}]}`, domain.ErrCodeInsufficientBal, false},
		{"out of area", http.StatusBadRequest, `{"errors":[{"id":"ERR_OUT_OF_SERVICE_AREA","message":"not covered"}]}`, domain.ErrCodeOutOfArea, false},
		{"server error", http.StatusBadGateway, `{}`, domain.ErrCodeUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter := newLalamoveAdapter(server.URL)
			_, err := adapter.Quote(context.Background(), instantQuoteRequest())
			require.Error(t, err)

			var provErr *domain.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.wantCode, provErr.Code)
			assert.Equal(t, tt.retryable, provErr.Retryable)
		})
	}
}

func TestLalamovePhone(t *testing.T) {
	assert.Equal(t, "+628222222222", lalamovePhone("08222222222"))
	assert.Equal(t, "+628222222222", lalamovePhone("628222222222"))
	assert.Equal(t, "+628222222222", lalamovePhone("+628222222222"))
}
