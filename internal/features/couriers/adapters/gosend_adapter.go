package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
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

// gosendVolumetricDivisor converts cm³ to billable kg for GoSend.
const gosendVolumetricDivisor = 6000

// GoSendAdapter integrates the GoSend (GoKilat) instant-courier API.
// Authentication is a Client-ID/Pass-Key header pair on every request.
type GoSendAdapter struct {
	cfg    config.GoSendConfig
	client *http.Client
	logger *zap.Logger
}

// NewGoSendAdapter creates a GoSendAdapter with the given credentials.
func NewGoSendAdapter(cfg config.GoSendConfig) *GoSendAdapter {
	return &GoSendAdapter{
		cfg:    cfg,
		client: httpclient.NewClient(15 * time.Second),
		logger: logger.Get(),
	}
}

// ID implements CourierProvider.
func (a *GoSendAdapter) ID() domain.ProviderID {
	return domain.ProviderGoSend
}

// gosendStatusTable maps GoSend booking statuses, including the Indonesian
// app wording delivered on webhooks, to canonical statuses.
var gosendStatusTable = map[string]tdomain.TrackingStatus{
	"confirmed":            tdomain.StatusOrderConfirmed,
	"pesanan dikonfirmasi": tdomain.StatusOrderConfirmed,
	"allocated":            tdomain.StatusOrderConfirmed,
	"driver ditemukan":     tdomain.StatusOrderConfirmed,
	"out_for_pickup":       tdomain.StatusOrderConfirmed,
	"enroute pickup":       tdomain.StatusOrderConfirmed,
	"picked":               tdomain.StatusPickedUp,
	"paket sudah diambil":  tdomain.StatusPickedUp,
	"out_for_delivery":     tdomain.StatusOutForDelivery,
	"paket sedang diantar": tdomain.StatusOutForDelivery,
	"on_hold":              tdomain.StatusOnHold,
	"delivered":            tdomain.StatusDelivered,
	"paket terkirim":       tdomain.StatusDelivered,
	"cancelled":            tdomain.StatusCancelled,
	"pesanan dibatalkan":   tdomain.StatusCancelled,
	"no_driver":            tdomain.StatusException,
	"driver tidak ditemukan": tdomain.StatusException,
}

// mapGosendStatus translates a raw status through the adapter table.
// Unmapped values bucket to IN_TRANSIT and are flagged, never dropped.
func (a *GoSendAdapter) mapGosendStatus(raw string) (tdomain.TrackingStatus, bool) {
	if status, ok := gosendStatusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status, true
	}
	a.logger.Warn("Unknown GoSend status encountered", zap.String("status", raw))
	return tdomain.StatusInTransit, false
}

// gosendPhone converts a phone number to GoSend's national 08xx format.
func gosendPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "+62") {
		return "0" + phone[3:]
	}
	if strings.HasPrefix(phone, "62") {
		return "0" + phone[2:]
	}
	return phone
}

// gosendPriceResponse is the calculate_price payload: one block per service.
type gosendPriceResponse struct {
	Instant *gosendServicePrice `json:"Instant"`
	SameDay *gosendServicePrice `json:"SameDay"`
}

type gosendServicePrice struct {
	Serviceable     bool    `json:"serviceable"`
	Price           float64 `json:"price"`
	Distance        float64 `json:"distance"`
	EstimatedMinutes int    `json:"serviceable_eta_minutes"`
	ErrorMessage    string  `json:"error_message"`
}

// Quote implements CourierProvider using GET /gokilat/v10/calculate_price.
func (a *GoSendAdapter) Quote(ctx context.Context, req domain.QuoteRequest) ([]qdomain.Quote, error) {
	url := fmt.Sprintf("%s/gokilat/v10/calculate_price?origin=%f,%f&destination=%f,%f&weight=%d&paymentType=3",
		a.cfg.BaseURL,
		req.Pickup.Coordinate.Lat, req.Pickup.Coordinate.Lng,
		req.Dropoff.Coordinate.Lat, req.Dropoff.Coordinate.Lng,
		int(req.Package.ChargeableWeightKg(gosendVolumetricDivisor)*1000),
	)

	var priced gosendPriceResponse
	if err := a.do(ctx, http.MethodGet, url, nil, &priced); err != nil {
		return nil, err
	}

	wanted := serviceTypeSet(req.ServiceTypes)
	now := time.Now()
	var quotes []qdomain.Quote

	if priced.Instant != nil && priced.Instant.Serviceable && wanted[domain.ServiceInstant] {
		quotes = append(quotes, a.toQuote("Instant", "INSTANT", qdomain.RateClassInstant, priced.Instant, now))
	}
	if priced.SameDay != nil && priced.SameDay.Serviceable && wanted[domain.ServiceSameDay] {
		quotes = append(quotes, a.toQuote("Same Day", "SAMEDAY", qdomain.RateClassSameDay, priced.SameDay, now))
	}

	return quotes, nil
}

func (a *GoSendAdapter) toQuote(name, code string, class qdomain.RateClass, price *gosendServicePrice, now time.Time) qdomain.Quote {
	return qdomain.Quote{
		CarrierID:   string(domain.ProviderGoSend),
		CarrierName: "GoSend",
		ServiceCode: code,
		ServiceName: name,
		Class:       class,
		Cost: qdomain.CostBreakdown{
			Base:  price.Price,
			Total: price.Price,
		},
		Timeframe: qdomain.Timeframe{
			EstimatedMinutes: price.EstimatedMinutes,
			DeliveryEstimate: now.Add(time.Duration(price.EstimatedMinutes) * time.Minute),
		},
		DistanceKm: price.Distance,
		SourceRef:  code,
	}
}

// gosendBookingResponse is the booking creation payload.
type gosendBookingResponse struct {
	OrderNo          string  `json:"orderNo"`
	Price            float64 `json:"price"`
	LiveTrackingURL  string  `json:"liveTrackingUrl"`
	PickupETA        string  `json:"pickupEta"`
	DeliveryETA      string  `json:"deliveryEta"`
}

// Book implements CourierProvider using POST /gokilat/v10/booking.
func (a *GoSendAdapter) Book(ctx context.Context, req domain.BookingRequest) (*domain.BookingResult, error) {
	shipmentMethod := "Instant"
	if req.ServiceType == domain.ServiceSameDay {
		shipmentMethod = "SameDay"
	}

	payload := map[string]interface{}{
		"paymentType":    3,
		"collection_location": "pickup",
		"shipment_method":     shipmentMethod,
		"routes": []map[string]interface{}{
			{
				"originName":           req.Pickup.Name,
				"originNote":           req.Pickup.Instructions,
				"originContactName":    req.Pickup.Name,
				"originContactPhone":   gosendPhone(req.Pickup.Phone),
				"originLatLong":        fmt.Sprintf("%f,%f", req.Pickup.Coordinate.Lat, req.Pickup.Coordinate.Lng),
				"originAddress":        req.Pickup.Address,
				"destinationName":      req.Dropoff.Name,
				"destinationNote":      req.Dropoff.Instructions,
				"destinationContactName":  req.Dropoff.Name,
				"destinationContactPhone": gosendPhone(req.Dropoff.Phone),
				"destinationLatLong":   fmt.Sprintf("%f,%f", req.Dropoff.Coordinate.Lat, req.Dropoff.Coordinate.Lng),
				"destinationAddress":   req.Dropoff.Address,
				"item":                 req.Package.Content,
				"storeOrderId":         req.OrderID,
				"insuranceDetails":     map[string]interface{}{"applied": req.InsuredValue > 0, "fee": req.InsuredValue},
			},
		},
	}

	var booked gosendBookingResponse
	if err := a.do(ctx, http.MethodPost, a.cfg.BaseURL+"/gokilat/v10/booking", payload, &booked); err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(booked)
	result := &domain.BookingResult{
		TrackingNumber: booked.OrderNo,
		ProviderRef:    booked.OrderNo,
		Cost:           booked.Price,
		LabelURL:       booked.LiveTrackingURL,
		Raw:            raw,
	}
	if eta, err := time.Parse(time.RFC3339, booked.PickupETA); err == nil {
		result.PickupEstimate = eta
	}
	if eta, err := time.Parse(time.RFC3339, booked.DeliveryETA); err == nil {
		result.DeliveryEstimate = eta
	}
	return result, nil
}

// gosendTrackResponse is the booking status payload.
type gosendTrackResponse struct {
	OrderNo string `json:"orderNo"`
	Status  string `json:"status"`
	History []struct {
		Status      string `json:"status"`
		Description string `json:"keterangan"`
		Timestamp   string `json:"timestamp"`
	} `json:"statusHistory"`
}

// Track implements CourierProvider using GET /gokilat/v10/booking/orderno/{id}.
func (a *GoSendAdapter) Track(ctx context.Context, ref domain.ShipmentRef) (*domain.TrackingSnapshot, error) {
	orderNo := ref.ProviderRef
	if orderNo == "" {
		orderNo = ref.TrackingNumber
	}

	var tracked gosendTrackResponse
	if err := a.do(ctx, http.MethodGet, a.cfg.BaseURL+"/gokilat/v10/booking/orderno/"+orderNo, nil, &tracked); err != nil {
		return nil, err
	}

	snapshot := &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: ref.TrackingNumber, ProviderRef: tracked.OrderNo},
	}
	for _, item := range tracked.History {
		status, mapped := a.mapGosendStatus(item.Status)
		eventTime, _ := time.Parse(time.RFC3339, item.Timestamp)
		raw, _ := json.Marshal(item)
		snapshot.Events = append(snapshot.Events, domain.CourierEvent{
			Status:               status,
			Unmapped:             !mapped,
			ProviderStatus:       item.Status,
			EventTime:            eventTime,
			Description:          item.Description,
			LocalizedDescription: item.Description,
			Raw:                  raw,
		})
	}
	return snapshot, nil
}

// Cancel implements CourierProvider using PUT /gokilat/v10/booking/cancel.
func (a *GoSendAdapter) Cancel(ctx context.Context, ref domain.ShipmentRef, reason string) error {
	orderNo := ref.ProviderRef
	if orderNo == "" {
		orderNo = ref.TrackingNumber
	}
	payload := map[string]string{"orderNo": orderNo, "reason": reason}
	return a.do(ctx, http.MethodPut, a.cfg.BaseURL+"/gokilat/v10/booking/cancel", payload, nil)
}

// gosendWebhook is the booking status callback payload.
type gosendWebhook struct {
	OrderNo     string `json:"booking_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// ParseWebhook implements CourierProvider.
func (a *GoSendAdapter) ParseWebhook(body []byte) (*domain.TrackingSnapshot, error) {
	var hook gosendWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse webhook: %v", err), false)
	}
	if hook.OrderNo == "" {
		return nil, domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeInvalidRequest,
			"webhook missing booking_id", false)
	}

	status, mapped := a.mapGosendStatus(hook.Status)
	eventTime, err := time.Parse(time.RFC3339, hook.Timestamp)
	if err != nil {
		eventTime = time.Now()
	}

	return &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: hook.OrderNo, ProviderRef: hook.OrderNo},
		Events: []domain.CourierEvent{{
			Status:               status,
			Unmapped:             !mapped,
			ProviderStatus:       hook.Status,
			EventTime:            eventTime,
			Description:          hook.Description,
			LocalizedDescription: hook.Description,
			Raw:                  body,
		}},
	}, nil
}

// gosendErrorResponse is GoSend's error envelope.
type gosendErrorResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// do executes an authenticated request and decodes the JSON response.
func (a *GoSendAdapter) do(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeInvalidRequest, err.Error(), false)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeInvalidRequest, err.Error(), false)
	}
	req.Header.Set("Client-ID", a.cfg.ClientID)
	req.Header.Set("Pass-Key", a.cfg.PassKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeTimeout, err.Error(), true)
		}
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeUnavailable, err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return a.errorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeUnavailable,
			fmt.Sprintf("failed to decode response: %v", err), true)
	}
	return nil
}

// errorFromResponse translates an HTTP failure into a typed ProviderError.
func (a *GoSendAdapter) errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var envelope gosendErrorResponse
	message := strings.TrimSpace(string(data))
	code := ""
	if json.Unmarshal(data, &envelope) == nil && len(envelope.Errors) > 0 {
		code = envelope.Errors[0].Code
		message = envelope.Errors[0].Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeAuthFailed, message, false)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeRateLimited, message, true)
	case resp.StatusCode >= 500:
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeUnavailable, message, true)
	}

	switch code {
	case "NO_DRIVER":
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeNoDriver, message, true)
	case "OUT_OF_COVERAGE":
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeOutOfArea, message, false)
	case "EXCEEDED_LIMIT":
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeExceedsLimits, message, false)
	case "DUPLICATE_ORDER":
		return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeDuplicateOrder, message, false)
	}
	return domain.NewProviderError(domain.ProviderGoSend, domain.ErrCodeInvalidRequest, message, false)
}

// serviceTypeSet expands the requested service filter, defaulting to all.
func serviceTypeSet(types []domain.ServiceType) map[domain.ServiceType]bool {
	if len(types) == 0 {
		types = domain.AllServiceTypes
	}
	set := make(map[domain.ServiceType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
