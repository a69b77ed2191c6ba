package adapters

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/core/httpclient"
	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/features/couriers/domain"
	qdomain "shipping-gateway/internal/features/quoting/domain"
	tdomain "shipping-gateway/internal/features/tracking/domain"

	"go.uber.org/zap"
)

// lalamoveVolumetricDivisor converts cm³ to billable kg for Lalamove.
const lalamoveVolumetricDivisor = 5000

// LalamoveAdapter integrates the Lalamove API. Every request carries an
// hmac token: HMAC-SHA256 over "timestamp\r\nMETHOD\r\npath\r\n\r\nbody"
// keyed with the account secret.
type LalamoveAdapter struct {
	cfg    config.LalamoveConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewLalamoveAdapter creates a LalamoveAdapter with the given credentials.
func NewLalamoveAdapter(cfg config.LalamoveConfig) *LalamoveAdapter {
	return &LalamoveAdapter{
		cfg:    cfg,
		client: httpclient.NewClient(15 * time.Second),
		logger: logger.Get(),
		now:    time.Now,
	}
}

// ID implements CourierProvider.
func (a *LalamoveAdapter) ID() domain.ProviderID {
	return domain.ProviderLalamove
}

// lalamoveStatusTable maps Lalamove order statuses to canonical statuses.
var lalamoveStatusTable = map[string]tdomain.TrackingStatus{
	"ASSIGNING_DRIVER": tdomain.StatusOrderReceived,
	"ON_GOING":         tdomain.StatusOrderConfirmed,
	"PICKED_UP":        tdomain.StatusPickedUp,
	"COMPLETED":        tdomain.StatusDelivered,
	"CANCELED":         tdomain.StatusCancelled,
	"REJECTED":         tdomain.StatusException,
	"EXPIRED":          tdomain.StatusException,
}

// lalamovePhone converts a phone number to Lalamove's E.164 +62 format.
func lalamovePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		return "+62" + phone[1:]
	}
	if strings.HasPrefix(phone, "62") {
		return "+" + phone
	}
	return phone
}

func (a *LalamoveAdapter) mapLalamoveStatus(raw string) (tdomain.TrackingStatus, bool) {
	if status, ok := lalamoveStatusTable[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return status, true
	}
	a.logger.Warn("Unknown Lalamove status encountered", zap.String("status", raw))
	return tdomain.StatusInTransit, false
}

// lalamoveSign computes the request token for the given timestamp, method,
// path and body.
func lalamoveSign(secret string, timestamp int64, method, path, body string) string {
	payload := fmt.Sprintf("%d\r\n%s\r\n%s\r\n\r\n%s", timestamp, method, path, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// lalamoveServiceFor picks the vehicle service matching the package weight.
// MOTORCYCLE carries up to 20 kg, larger loads ride SEDAN.
func lalamoveServiceFor(billableKg float64) string {
	if billableKg <= 20 {
		return "MOTORCYCLE"
	}
	return "SEDAN"
}

type lalamoveQuoteResponse struct {
	Data struct {
		QuotationID string `json:"quotationId"`
		ExpiresAt   string `json:"expiresAt"`
		PriceBreakdown struct {
			Base         string `json:"base"`
			TotalExclPriorityFee string `json:"totalExcludePriorityFee"`
			Total        string `json:"total"`
			Currency     string `json:"currency"`
		} `json:"priceBreakdown"`
		Distance struct {
			Value string `json:"value"`
			Unit  string `json:"unit"`
		} `json:"distance"`
	} `json:"data"`
}

// Quote implements CourierProvider using POST /v3/quotations.
func (a *LalamoveAdapter) Quote(ctx context.Context, req domain.QuoteRequest) ([]qdomain.Quote, error) {
	wanted := serviceTypeSet(req.ServiceTypes)
	if !wanted[domain.ServiceInstant] {
		// Lalamove only runs on-demand deliveries.
		return nil, nil
	}

	billable := req.Package.ChargeableWeightKg(lalamoveVolumetricDivisor)
	service := lalamoveServiceFor(billable)

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"serviceType": service,
			"language":    "id_ID",
			"stops": []map[string]interface{}{
				{
					"coordinates": map[string]string{
						"lat": strconv.FormatFloat(req.Pickup.Coordinate.Lat, 'f', 6, 64),
						"lng": strconv.FormatFloat(req.Pickup.Coordinate.Lng, 'f', 6, 64),
					},
					"address": req.Pickup.Address,
				},
				{
					"coordinates": map[string]string{
						"lat": strconv.FormatFloat(req.Dropoff.Coordinate.Lat, 'f', 6, 64),
						"lng": strconv.FormatFloat(req.Dropoff.Coordinate.Lng, 'f', 6, 64),
					},
					"address": req.Dropoff.Address,
				},
			},
		},
	}

	var quoted lalamoveQuoteResponse
	if err := a.do(ctx, http.MethodPost, "/v3/quotations", payload, &quoted); err != nil {
		return nil, err
	}

	total, err := strconv.ParseFloat(quoted.Data.PriceBreakdown.Total, 64)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeUnavailable,
			fmt.Sprintf("unparseable quote total %q", quoted.Data.PriceBreakdown.Total), true)
	}
	distanceM, _ := strconv.ParseFloat(quoted.Data.Distance.Value, 64)

	return []qdomain.Quote{{
		CarrierID:   string(domain.ProviderLalamove),
		CarrierName: "Lalamove",
		ServiceCode: service,
		ServiceName: "Lalamove " + service,
		Class:       qdomain.RateClassInstant,
		Cost: qdomain.CostBreakdown{
			Base:  total,
			Total: total,
		},
		Timeframe: qdomain.Timeframe{
			EstimatedMinutes: int(distanceM / 1000 * 4),
			DeliveryEstimate: a.now().Add(time.Duration(distanceM/1000*4) * time.Minute),
		},
		DistanceKm: distanceM / 1000,
		SourceRef:  quoted.Data.QuotationID,
	}}, nil
}

type lalamoveOrderResponse struct {
	Data struct {
		OrderID  string `json:"orderId"`
		Status   string `json:"status"`
		ShareLink string `json:"shareLink"`
		PriceBreakdown struct {
			Total string `json:"total"`
		} `json:"priceBreakdown"`
	} `json:"data"`
}

// Book implements CourierProvider using POST /v3/orders. Booking requires
// the quotationId from a prior Quote call.
func (a *LalamoveAdapter) Book(ctx context.Context, req domain.BookingRequest) (*domain.BookingResult, error) {
	if req.QuoteRef == "" {
		return nil, domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInvalidRequest,
			"booking requires a quotation reference", false)
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"quotationId": req.QuoteRef,
			"sender": map[string]string{
				"name":  req.Pickup.Name,
				"phone": lalamovePhone(req.Pickup.Phone),
			},
			"recipients": []map[string]string{
				{
					"name":    req.Dropoff.Name,
					"phone":   lalamovePhone(req.Dropoff.Phone),
					"remarks": req.Dropoff.Instructions,
				},
			},
			"isPODEnabled": true,
			"metadata":     map[string]string{"orderId": req.OrderID},
		},
	}

	var booked lalamoveOrderResponse
	if err := a.do(ctx, http.MethodPost, "/v3/orders", payload, &booked); err != nil {
		return nil, err
	}

	total, _ := strconv.ParseFloat(booked.Data.PriceBreakdown.Total, 64)
	raw, _ := json.Marshal(booked.Data)
	return &domain.BookingResult{
		TrackingNumber: booked.Data.OrderID,
		ProviderRef:    booked.Data.OrderID,
		Cost:           total,
		LabelURL:       booked.Data.ShareLink,
		Raw:            raw,
	}, nil
}

type lalamoveOrderDetail struct {
	Data struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
		DriverID string `json:"driverId"`
	} `json:"data"`
}

// Track implements CourierProvider using GET /v3/orders/{id}. Lalamove only
// exposes the current status, so the snapshot carries a single event.
func (a *LalamoveAdapter) Track(ctx context.Context, ref domain.ShipmentRef) (*domain.TrackingSnapshot, error) {
	orderID := ref.ProviderRef
	if orderID == "" {
		orderID = ref.TrackingNumber
	}

	var detail lalamoveOrderDetail
	if err := a.do(ctx, http.MethodGet, "/v3/orders/"+orderID, nil, &detail); err != nil {
		return nil, err
	}

	status, mapped := a.mapLalamoveStatus(detail.Data.Status)
	raw, _ := json.Marshal(detail.Data)
	return &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: ref.TrackingNumber, ProviderRef: detail.Data.OrderID},
		Events: []domain.CourierEvent{{
			Status:         status,
			Unmapped:       !mapped,
			ProviderStatus: detail.Data.Status,
			EventTime:      a.now(),
			Description:    detail.Data.Status,
			Raw:            raw,
		}},
	}, nil
}

// Cancel implements CourierProvider using DELETE /v3/orders/{id}.
func (a *LalamoveAdapter) Cancel(ctx context.Context, ref domain.ShipmentRef, reason string) error {
	orderID := ref.ProviderRef
	if orderID == "" {
		orderID = ref.TrackingNumber
	}
	return a.do(ctx, http.MethodDelete, "/v3/orders/"+orderID, nil, nil)
}

// lalamoveWebhook is the order status callback payload.
type lalamoveWebhook struct {
	EventType string `json:"eventType"`
	Data      struct {
		Order struct {
			OrderID string `json:"orderId"`
			Status  string `json:"status"`
		} `json:"order"`
	} `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// ParseWebhook implements CourierProvider.
func (a *LalamoveAdapter) ParseWebhook(body []byte) (*domain.TrackingSnapshot, error) {
	var hook lalamoveWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse webhook: %v", err), false)
	}
	if hook.Data.Order.OrderID == "" {
		return nil, domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInvalidRequest,
			"webhook missing order id", false)
	}

	status, mapped := a.mapLalamoveStatus(hook.Data.Order.Status)
	eventTime := a.now()
	if hook.Timestamp > 0 {
		eventTime = time.Unix(hook.Timestamp, 0)
	}

	return &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: hook.Data.Order.OrderID, ProviderRef: hook.Data.Order.OrderID},
		Events: []domain.CourierEvent{{
			Status:         status,
			Unmapped:       !mapped,
			ProviderStatus: hook.Data.Order.Status,
			EventTime:      eventTime,
			Description:    hook.Data.Order.Status,
			Raw:            body,
		}},
	}, nil
}

type lalamoveErrorResponse struct {
	Errors []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

// do executes a signed request and decodes the JSON response.
func (a *LalamoveAdapter) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var bodyText string
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInvalidRequest, err.Error(), false)
		}
		bodyText = string(data)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInvalidRequest, err.Error(), false)
	}

	timestamp := a.now().UnixMilli()
	signature := lalamoveSign(a.cfg.Secret, timestamp, method, path, bodyText)
	req.Header.Set("Authorization", fmt.Sprintf("hmac %s:%d:%s", a.cfg.APIKey, timestamp, signature))
	req.Header.Set("Market", a.cfg.Market)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeTimeout, err.Error(), true)
		}
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeUnavailable, err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return a.errorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeUnavailable,
			fmt.Sprintf("failed to decode response: %v", err), true)
	}
	return nil
}

func (a *LalamoveAdapter) errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var envelope lalamoveErrorResponse
	message := strings.TrimSpace(string(data))
	code := ""
	if json.Unmarshal(data, &envelope) == nil && len(envelope.Errors) > 0 {
		code = envelope.Errors[0].ID
		message = envelope.Errors[0].Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeAuthFailed, message, false)
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeNotFound, message, false)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeRateLimited, message, true)
	case resp.StatusCode >= 500:
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeUnavailable, message, true)
	}

	switch code {
	case "ERR_OUT_OF_SERVICE_AREA":
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeOutOfArea, message, false)
	case "ERR_INSUFFICIENT_CREDIT":
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInsufficientBal, message, false)
	case "ERR_INSUFFICIENT_STOPS", "ERR_INVALID_PAYLOAD":
		return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInvalidRequest, message, false)
	}
	return domain.NewProviderError(domain.ProviderLalamove, domain.ErrCodeInvalidRequest, message, false)
}
