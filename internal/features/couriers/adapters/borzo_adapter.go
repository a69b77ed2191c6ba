package adapters

import (
	"bytes"
	"context"
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

// BorzoAdapter integrates the Borzo (formerly Mr Speedy) business API.
// Authentication is a static token in the X-DV-Auth-Token header. Borzo
// takes weights in whole kilograms, not grams.
type BorzoAdapter struct {
	cfg    config.BorzoConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewBorzoAdapter creates a BorzoAdapter with the given credentials.
func NewBorzoAdapter(cfg config.BorzoConfig) *BorzoAdapter {
	return &BorzoAdapter{
		cfg:    cfg,
		client: httpclient.NewClient(15 * time.Second),
		logger: logger.Get(),
		now:    time.Now,
	}
}

// ID implements CourierProvider.
func (a *BorzoAdapter) ID() domain.ProviderID {
	return domain.ProviderBorzo
}

// borzoStatusTable maps Borzo order and point statuses to canonical statuses.
var borzoStatusTable = map[string]tdomain.TrackingStatus{
	"new":              tdomain.StatusOrderReceived,
	"available":        tdomain.StatusOrderReceived,
	"planned":          tdomain.StatusOrderConfirmed,
	"courier_assigned": tdomain.StatusOrderConfirmed,
	"courier_departed": tdomain.StatusOrderConfirmed,
	"parcel_picked_up": tdomain.StatusPickedUp,
	"active":           tdomain.StatusOutForDelivery,
	"courier_arrived":  tdomain.StatusOutForDelivery,
	"delivered":        tdomain.StatusDelivered,
	"completed":        tdomain.StatusDelivered,
	"finished":         tdomain.StatusDelivered,
	"delayed":          tdomain.StatusDelayed,
	"canceled":         tdomain.StatusCancelled,
	"reactivated":      tdomain.StatusInTransit,
}

func (a *BorzoAdapter) mapBorzoStatus(raw string) (tdomain.TrackingStatus, bool) {
	if status, ok := borzoStatusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status, true
	}
	a.logger.Warn("Unknown Borzo status encountered", zap.String("status", raw))
	return tdomain.StatusInTransit, false
}

// borzoWeightKg rounds a package weight up to Borzo's whole-kg unit.
// borzoPhone converts a phone number to Borzo's +62 contact format.
func borzoPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		return "+62" + phone[1:]
	}
	if strings.HasPrefix(phone, "62") {
		return "+" + phone
	}
	return phone
}

func borzoWeightKg(pkg qdomain.PackageSpec) int {
	kg := int(pkg.WeightKg())
	if float64(kg) < pkg.WeightKg() || kg == 0 {
		kg++
	}
	return kg
}

type borzoPoint struct {
	Address       string `json:"address"`
	ContactPerson struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"contact_person"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
	Note      string `json:"note,omitempty"`
	TakingAmount string `json:"taking_amount,omitempty"`
}

type borzoOrder struct {
	OrderID        int    `json:"order_id"`
	OrderName      string `json:"order_name"`
	Status         string `json:"status"`
	StatusDescription string `json:"status_description"`
	PaymentAmount  string `json:"payment_amount"`
	CreatedDatetime string `json:"created_datetime"`
	FinishDatetime  string `json:"finish_datetime"`
	Points         []struct {
		Address string `json:"address"`
	} `json:"points"`
}

type borzoOrderEnvelope struct {
	IsSuccessful bool       `json:"is_successful"`
	Order        borzoOrder `json:"order"`
	Errors       []string   `json:"errors"`
	Warnings     []string   `json:"warnings"`
}

func (a *BorzoAdapter) buildOrderPayload(pickup, dropoff domain.Contact, pkg qdomain.PackageSpec, codAmount float64, insured float64) map[string]interface{} {
	points := []borzoPoint{
		{
			Address:   pickup.Address,
			Latitude:  strconv.FormatFloat(pickup.Coordinate.Lat, 'f', 6, 64),
			Longitude: strconv.FormatFloat(pickup.Coordinate.Lng, 'f', 6, 64),
			Note:      pickup.Instructions,
		},
		{
			Address:   dropoff.Address,
			Latitude:  strconv.FormatFloat(dropoff.Coordinate.Lat, 'f', 6, 64),
			Longitude: strconv.FormatFloat(dropoff.Coordinate.Lng, 'f', 6, 64),
			Note:      dropoff.Instructions,
		},
	}
	points[0].ContactPerson.Name = pickup.Name
	points[0].ContactPerson.Phone = borzoPhone(pickup.Phone)
	points[1].ContactPerson.Name = dropoff.Name
	points[1].ContactPerson.Phone = borzoPhone(dropoff.Phone)
	if codAmount > 0 {
		points[1].TakingAmount = strconv.FormatFloat(codAmount, 'f', 2, 64)
	}

	payload := map[string]interface{}{
		"matter":             pkg.Content,
		"vehicle_type_id":    8,
		"total_weight_kg":    borzoWeightKg(pkg),
		"points":             points,
		"is_client_notification_enabled": true,
	}
	if insured > 0 {
		payload["insurance_amount"] = strconv.FormatFloat(insured, 'f', 2, 64)
	}
	return payload
}

// Quote implements CourierProvider using POST /api/business/1.6/calculate-order.
func (a *BorzoAdapter) Quote(ctx context.Context, req domain.QuoteRequest) ([]qdomain.Quote, error) {
	wanted := serviceTypeSet(req.ServiceTypes)
	if !wanted[domain.ServiceInstant] {
		// Borzo only runs on-demand motorbike deliveries.
		return nil, nil
	}

	payload := a.buildOrderPayload(req.Pickup, req.Dropoff, req.Package, 0, 0)

	var envelope borzoOrderEnvelope
	if err := a.do(ctx, http.MethodPost, "/api/business/1.6/calculate-order", payload, &envelope); err != nil {
		return nil, err
	}
	if err := a.envelopeError(envelope); err != nil {
		return nil, err
	}

	amount, err := strconv.ParseFloat(envelope.Order.PaymentAmount, 64)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeUnavailable,
			fmt.Sprintf("unparseable payment amount %q", envelope.Order.PaymentAmount), true)
	}

	distance := qdomain.Route{
		Origin:      qdomain.RouteEndpoint{Coordinate: &req.Pickup.Coordinate},
		Destination: qdomain.RouteEndpoint{Coordinate: &req.Dropoff.Coordinate},
	}.DistanceKm()

	minutes := int(distance * 5)
	if minutes == 0 {
		minutes = 45
	}
	return []qdomain.Quote{{
		CarrierID:   string(domain.ProviderBorzo),
		CarrierName: "Borzo",
		ServiceCode: "STANDARD",
		ServiceName: "Borzo Standard",
		Class:       qdomain.RateClassInstant,
		Cost: qdomain.CostBreakdown{
			Base:  amount,
			Total: amount,
		},
		Timeframe: qdomain.Timeframe{
			EstimatedMinutes: minutes,
			DeliveryEstimate: a.now().Add(time.Duration(minutes) * time.Minute),
		},
		DistanceKm: distance,
		SourceRef:  "STANDARD",
	}}, nil
}

// Book implements CourierProvider using POST /api/business/1.6/create-order.
func (a *BorzoAdapter) Book(ctx context.Context, req domain.BookingRequest) (*domain.BookingResult, error) {
	payload := a.buildOrderPayload(req.Pickup, req.Dropoff, req.Package, req.CODAmount, req.InsuredValue)
	payload["client_order_id"] = req.OrderID

	var envelope borzoOrderEnvelope
	if err := a.do(ctx, http.MethodPost, "/api/business/1.6/create-order", payload, &envelope); err != nil {
		return nil, err
	}
	if err := a.envelopeError(envelope); err != nil {
		return nil, err
	}

	amount, _ := strconv.ParseFloat(envelope.Order.PaymentAmount, 64)
	raw, _ := json.Marshal(envelope.Order)
	return &domain.BookingResult{
		TrackingNumber: strconv.Itoa(envelope.Order.OrderID),
		ProviderRef:    strconv.Itoa(envelope.Order.OrderID),
		Cost:           amount,
		Raw:            raw,
	}, nil
}

type borzoOrdersResponse struct {
	IsSuccessful bool         `json:"is_successful"`
	Orders       []borzoOrder `json:"orders"`
	Errors       []string     `json:"errors"`
}

// Track implements CourierProvider using GET /api/business/1.6/orders.
func (a *BorzoAdapter) Track(ctx context.Context, ref domain.ShipmentRef) (*domain.TrackingSnapshot, error) {
	orderID := ref.ProviderRef
	if orderID == "" {
		orderID = ref.TrackingNumber
	}

	var listed borzoOrdersResponse
	if err := a.do(ctx, http.MethodGet, "/api/business/1.6/orders?order_id="+orderID, nil, &listed); err != nil {
		return nil, err
	}
	if !listed.IsSuccessful || len(listed.Orders) == 0 {
		return nil, domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeNotFound,
			fmt.Sprintf("order %s not found", orderID), false)
	}

	order := listed.Orders[0]
	status, mapped := a.mapBorzoStatus(order.Status)
	eventTime := a.now()
	if t, err := time.Parse(time.RFC3339, order.FinishDatetime); err == nil {
		eventTime = t
	}
	raw, _ := json.Marshal(order)
	return &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: ref.TrackingNumber, ProviderRef: strconv.Itoa(order.OrderID)},
		Events: []domain.CourierEvent{{
			Status:         status,
			Unmapped:       !mapped,
			ProviderStatus: order.Status,
			EventTime:      eventTime,
			Description:    order.StatusDescription,
			Raw:            raw,
		}},
	}, nil
}

// Cancel implements CourierProvider using POST /api/business/1.6/cancel-order.
func (a *BorzoAdapter) Cancel(ctx context.Context, ref domain.ShipmentRef, reason string) error {
	orderID := ref.ProviderRef
	if orderID == "" {
		orderID = ref.TrackingNumber
	}
	payload := map[string]string{"order_id": orderID}

	var envelope borzoOrderEnvelope
	if err := a.do(ctx, http.MethodPost, "/api/business/1.6/cancel-order", payload, &envelope); err != nil {
		return err
	}
	return a.envelopeError(envelope)
}

// borzoWebhook is the order status callback payload.
type borzoWebhook struct {
	EventType string     `json:"event_type"`
	Order     borzoOrder `json:"order"`
	EventDatetime string `json:"event_datetime"`
}

// ParseWebhook implements CourierProvider.
func (a *BorzoAdapter) ParseWebhook(body []byte) (*domain.TrackingSnapshot, error) {
	var hook borzoWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse webhook: %v", err), false)
	}
	if hook.Order.OrderID == 0 {
		return nil, domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeInvalidRequest,
			"webhook missing order id", false)
	}

	status, mapped := a.mapBorzoStatus(hook.Order.Status)
	eventTime := a.now()
	if t, err := time.Parse(time.RFC3339, hook.EventDatetime); err == nil {
		eventTime = t
	}

	orderID := strconv.Itoa(hook.Order.OrderID)
	return &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: orderID, ProviderRef: orderID},
		Events: []domain.CourierEvent{{
			Status:         status,
			Unmapped:       !mapped,
			ProviderStatus: hook.Order.Status,
			EventTime:      eventTime,
			Description:    hook.Order.StatusDescription,
			Raw:            body,
		}},
	}, nil
}

// envelopeError translates Borzo's is_successful/errors envelope into a
// typed error. Borzo reports business failures with HTTP 200.
func (a *BorzoAdapter) envelopeError(envelope borzoOrderEnvelope) error {
	if envelope.IsSuccessful {
		return nil
	}
	message := strings.Join(envelope.Errors, "; ")
	for _, code := range envelope.Errors {
		switch code {
		case "order_cannot_be_created", "courier_not_available":
			return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeNoDriver, message, true)
		case "address_not_recognized", "out_of_delivery_area":
			return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeOutOfArea, message, false)
		case "total_weight_too_large":
			return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeExceedsLimits, message, false)
		case "insufficient_funds":
			return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeInsufficientBal, message, false)
		case "duplicate_client_order_id":
			return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeDuplicateOrder, message, false)
		}
	}
	return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeInvalidRequest, message, false)
}

// do executes a token-authenticated request and decodes the JSON response.
func (a *BorzoAdapter) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeInvalidRequest, err.Error(), false)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeInvalidRequest, err.Error(), false)
	}
	req.Header.Set("X-DV-Auth-Token", a.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeTimeout, err.Error(), true)
		}
		return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeUnavailable, err.Error(), true)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeAuthFailed, "authentication rejected", false)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeRateLimited, "rate limited", true)
	case resp.StatusCode >= 500:
		return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeUnavailable,
			fmt.Sprintf("upstream status %d", resp.StatusCode), true)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewProviderError(domain.ProviderBorzo, domain.ErrCodeUnavailable,
			fmt.Sprintf("failed to decode response: %v", err), true)
	}
	return nil
}
