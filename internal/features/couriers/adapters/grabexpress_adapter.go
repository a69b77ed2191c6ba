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
	"sync"
	"time"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/core/httpclient"
	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/features/couriers/domain"
	qdomain "shipping-gateway/internal/features/quoting/domain"
	tdomain "shipping-gateway/internal/features/tracking/domain"

	"go.uber.org/zap"
)

// tokenExpiryMargin is subtracted from the advertised token lifetime so a
// token is refreshed before it can expire mid-request.
const tokenExpiryMargin = 60 * time.Second

// GrabExpressAdapter integrates the GrabExpress deliveries API. Requests are
// authenticated with an OAuth client-credentials bearer token that the
// adapter obtains and caches until shortly before expiry.
type GrabExpressAdapter struct {
	cfg    config.GrabExpressConfig
	client *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGrabExpressAdapter creates a GrabExpressAdapter with the given credentials.
func NewGrabExpressAdapter(cfg config.GrabExpressConfig) *GrabExpressAdapter {
	return &GrabExpressAdapter{
		cfg:    cfg,
		client: httpclient.NewClient(15 * time.Second),
		logger: logger.Get(),
	}
}

// ID implements CourierProvider.
func (a *GrabExpressAdapter) ID() domain.ProviderID {
	return domain.ProviderGrabExpress
}

// grabStatusTable maps GrabExpress delivery statuses to canonical statuses.
var grabStatusTable = map[string]tdomain.TrackingStatus{
	"QUEUEING":    tdomain.StatusOrderReceived,
	"ALLOCATING":  tdomain.StatusOrderConfirmed,
	"PICKING_UP":  tdomain.StatusOrderConfirmed,
	"PICKED_UP":   tdomain.StatusPickedUp,
	"IN_DELIVERY": tdomain.StatusOutForDelivery,
	"IN_RETURN":   tdomain.StatusReturnedToSender,
	"RETURNED":    tdomain.StatusReturnedToSender,
	"COMPLETED":   tdomain.StatusDelivered,
	"CANCELED":    tdomain.StatusCancelled,
	"FAILED":      tdomain.StatusException,
}

func (a *GrabExpressAdapter) mapGrabStatus(raw string) (tdomain.TrackingStatus, bool) {
	if status, ok := grabStatusTable[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return status, true
	}
	a.logger.Warn("Unknown GrabExpress status encountered", zap.String("status", raw))
	return tdomain.StatusInTransit, false
}

// grabPhone converts a phone number to Grab's international +62 format.
func grabPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		return "+62" + phone[1:]
	}
	if strings.HasPrefix(phone, "62") {
		return "+" + phone
	}
	return phone
}

type grabTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid bearer token, exchanging credentials when the cached
// one is missing or close to expiry.
func (a *GrabExpressAdapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
		"grant_type":    "client_credentials",
		"scope":         "grab_express.deliveries",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/grabid/v1/oauth2/token", bytes.NewReader(payload))
	if err != nil {
		return "", domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeInvalidRequest, err.Error(), false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeTimeout, err.Error(), true)
		}
		return "", domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeUnavailable, err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeAuthFailed,
			fmt.Sprintf("token exchange failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), false)
	}

	var token grabTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeUnavailable,
			fmt.Sprintf("failed to decode token response: %v", err), true)
	}

	a.accessToken = token.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenExpiryMargin)
	return a.accessToken, nil
}

// invalidateToken drops the cached token after a 401 so the next call
// re-exchanges credentials.
func (a *GrabExpressAdapter) invalidateToken() {
	a.mu.Lock()
	a.accessToken = ""
	a.mu.Unlock()
}

type grabContact struct {
	FirstName string `json:"firstName"`
	Phone     string `json:"phone"`
	SMSEnabled bool  `json:"smsEnabled"`
}

type grabWaypoint struct {
	Address     string          `json:"address"`
	Coordinates grabCoordinates `json:"coordinates"`
}

type grabCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type grabQuoteResponse struct {
	Quotes []struct {
		Service struct {
			ID   int    `json:"id"`
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"service"`
		Amount        float64 `json:"amount"`
		Currency      grabCurrency `json:"currency"`
		Distance      float64 `json:"distance"`
		EstimatedTimeline struct {
			DeliverMinutes int `json:"deliverMinutes"`
		} `json:"estimatedTimeline"`
	} `json:"quotes"`
}

type grabCurrency struct {
	Code     string `json:"code"`
	Exponent int    `json:"exponent"`
}

// Quote implements CourierProvider using POST /v1/deliveries/quotes.
func (a *GrabExpressAdapter) Quote(ctx context.Context, req domain.QuoteRequest) ([]qdomain.Quote, error) {
	payload := map[string]interface{}{
		"origin":      grabWaypoint{Address: req.Pickup.Address, Coordinates: grabCoordinates{req.Pickup.Coordinate.Lat, req.Pickup.Coordinate.Lng}},
		"destination": grabWaypoint{Address: req.Dropoff.Address, Coordinates: grabCoordinates{req.Dropoff.Coordinate.Lat, req.Dropoff.Coordinate.Lng}},
		"packages": []map[string]interface{}{
			{
				"name":     req.Package.Content,
				"quantity": max(req.Package.Pieces, 1),
				"dimensions": map[string]interface{}{
					"height": req.Package.HeightCm,
					"width":  req.Package.WidthCm,
					"depth":  req.Package.LengthCm,
					"weight": req.Package.WeightGrams,
				},
			},
		},
	}

	var quoted grabQuoteResponse
	if err := a.do(ctx, http.MethodPost, "/v1/deliveries/quotes", payload, &quoted); err != nil {
		return nil, err
	}

	wanted := serviceTypeSet(req.ServiceTypes)
	now := time.Now()
	var quotes []qdomain.Quote
	for _, q := range quoted.Quotes {
		class, svc := grabServiceClass(q.Service.Type)
		if !wanted[svc] {
			continue
		}
		quotes = append(quotes, qdomain.Quote{
			CarrierID:   string(domain.ProviderGrabExpress),
			CarrierName: "GrabExpress",
			ServiceCode: q.Service.Type,
			ServiceName: q.Service.Name,
			Class:       class,
			Cost: qdomain.CostBreakdown{
				Base:  q.Amount,
				Total: q.Amount,
			},
			Timeframe: qdomain.Timeframe{
				EstimatedMinutes: q.EstimatedTimeline.DeliverMinutes,
				DeliveryEstimate: now.Add(time.Duration(q.EstimatedTimeline.DeliverMinutes) * time.Minute),
			},
			DistanceKm: q.Distance / 1000,
			SourceRef:  fmt.Sprintf("%d", q.Service.ID),
		})
	}
	return quotes, nil
}

// grabServiceClass splits Grab's service taxonomy into the service tiers the
// aggregator filters on.
func grabServiceClass(serviceType string) (qdomain.RateClass, domain.ServiceType) {
	if strings.EqualFold(serviceType, "SAME_DAY") {
		return qdomain.RateClassSameDay, domain.ServiceSameDay
	}
	return qdomain.RateClassInstant, domain.ServiceInstant
}

type grabDeliveryResponse struct {
	DeliveryID string `json:"deliveryID"`
	TrackingID string `json:"trackingID"`
	Status     string `json:"status"`
	Quote      struct {
		Amount float64 `json:"amount"`
	} `json:"quote"`
	Timeline struct {
		Pickup  string `json:"pickup"`
		Dropoff string `json:"dropoff"`
	} `json:"timeline"`
	TrackingURL string `json:"trackingURL"`
	StatusHistory []struct {
		Status      string `json:"status"`
		Description string `json:"description"`
		UpdatedAt   string `json:"updatedAt"`
	} `json:"statusHistory"`
}

// Book implements CourierProvider using POST /v1/deliveries.
func (a *GrabExpressAdapter) Book(ctx context.Context, req domain.BookingRequest) (*domain.BookingResult, error) {
	serviceType := "INSTANT"
	if req.ServiceType == domain.ServiceSameDay {
		serviceType = "SAME_DAY"
	}

	payload := map[string]interface{}{
		"merchantOrderID": req.OrderID,
		"serviceType":     serviceType,
		"quoteID":         req.QuoteRef,
		"sender": grabContact{
			FirstName:  req.Pickup.Name,
			Phone:      grabPhone(req.Pickup.Phone),
			SMSEnabled: true,
		},
		"recipient": grabContact{
			FirstName:  req.Dropoff.Name,
			Phone:      grabPhone(req.Dropoff.Phone),
			SMSEnabled: true,
		},
		"origin":      grabWaypoint{Address: req.Pickup.Address, Coordinates: grabCoordinates{req.Pickup.Coordinate.Lat, req.Pickup.Coordinate.Lng}},
		"destination": grabWaypoint{Address: req.Dropoff.Address, Coordinates: grabCoordinates{req.Dropoff.Coordinate.Lat, req.Dropoff.Coordinate.Lng}},
		"packages": []map[string]interface{}{
			{
				"name":     req.Package.Content,
				"quantity": max(req.Package.Pieces, 1),
				"price":    req.Package.DeclaredValue,
			},
		},
	}
	if req.CODAmount > 0 {
		payload["cashOnDelivery"] = map[string]interface{}{"amount": req.CODAmount}
	}

	var booked grabDeliveryResponse
	if err := a.do(ctx, http.MethodPost, "/v1/deliveries", payload, &booked); err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(booked)
	result := &domain.BookingResult{
		TrackingNumber: booked.TrackingID,
		ProviderRef:    booked.DeliveryID,
		Cost:           booked.Quote.Amount,
		LabelURL:       booked.TrackingURL,
		Raw:            raw,
	}
	if eta, err := time.Parse(time.RFC3339, booked.Timeline.Pickup); err == nil {
		result.PickupEstimate = eta
	}
	if eta, err := time.Parse(time.RFC3339, booked.Timeline.Dropoff); err == nil {
		result.DeliveryEstimate = eta
	}
	return result, nil
}

// Track implements CourierProvider using GET /v1/deliveries/{id}.
func (a *GrabExpressAdapter) Track(ctx context.Context, ref domain.ShipmentRef) (*domain.TrackingSnapshot, error) {
	deliveryID := ref.ProviderRef
	if deliveryID == "" {
		deliveryID = ref.TrackingNumber
	}

	var tracked grabDeliveryResponse
	if err := a.do(ctx, http.MethodGet, "/v1/deliveries/"+deliveryID, nil, &tracked); err != nil {
		return nil, err
	}

	snapshot := &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: tracked.TrackingID, ProviderRef: tracked.DeliveryID},
	}
	for _, item := range tracked.StatusHistory {
		status, mapped := a.mapGrabStatus(item.Status)
		eventTime, _ := time.Parse(time.RFC3339, item.UpdatedAt)
		raw, _ := json.Marshal(item)
		snapshot.Events = append(snapshot.Events, domain.CourierEvent{
			Status:         status,
			Unmapped:       !mapped,
			ProviderStatus: item.Status,
			EventTime:      eventTime,
			Description:    item.Description,
			Raw:            raw,
		})
	}
	return snapshot, nil
}

// Cancel implements CourierProvider using DELETE /v1/deliveries/{id}.
func (a *GrabExpressAdapter) Cancel(ctx context.Context, ref domain.ShipmentRef, reason string) error {
	deliveryID := ref.ProviderRef
	if deliveryID == "" {
		deliveryID = ref.TrackingNumber
	}
	return a.do(ctx, http.MethodDelete, "/v1/deliveries/"+deliveryID, nil, nil)
}

// grabWebhook is the delivery status callback payload.
type grabWebhook struct {
	DeliveryID string `json:"deliveryID"`
	TrackingID string `json:"trackingID"`
	Status     string `json:"status"`
	FailedReason string `json:"failedReason,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// ParseWebhook implements CourierProvider.
func (a *GrabExpressAdapter) ParseWebhook(body []byte) (*domain.TrackingSnapshot, error) {
	var hook grabWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse webhook: %v", err), false)
	}
	if hook.DeliveryID == "" && hook.TrackingID == "" {
		return nil, domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeInvalidRequest,
			"webhook missing delivery identifiers", false)
	}

	status, mapped := a.mapGrabStatus(hook.Status)
	eventTime := time.Now()
	if hook.Timestamp > 0 {
		eventTime = time.Unix(hook.Timestamp, 0)
	}
	description := hook.Status
	if hook.FailedReason != "" {
		description = hook.FailedReason
	}

	return &domain.TrackingSnapshot{
		Ref: domain.ShipmentRef{TrackingNumber: hook.TrackingID, ProviderRef: hook.DeliveryID},
		Events: []domain.CourierEvent{{
			Status:         status,
			Unmapped:       !mapped,
			ProviderStatus: hook.Status,
			EventTime:      eventTime,
			Description:    description,
			Raw:            body,
		}},
	}, nil
}

type grabErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do executes a bearer-authenticated request against the deliveries API. A
// 401 invalidates the cached token and surfaces as a retryable error so the
// caller's retry re-authenticates.
func (a *GrabExpressAdapter) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeInvalidRequest, err.Error(), false)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeInvalidRequest, err.Error(), false)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeTimeout, err.Error(), true)
		}
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeUnavailable, err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return a.errorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeUnavailable,
			fmt.Sprintf("failed to decode response: %v", err), true)
	}
	return nil
}

func (a *GrabExpressAdapter) errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var envelope grabErrorResponse
	message := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &envelope) == nil && envelope.Message != "" {
		message = envelope.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		a.invalidateToken()
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeAuthExpired, message, true)
	case resp.StatusCode == http.StatusForbidden:
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeAuthFailed, message, false)
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeNotFound, message, false)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeRateLimited, message, true)
	case resp.StatusCode >= 500:
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeUnavailable, message, true)
	}

	switch envelope.Code {
	case "NO_DRIVERS_AVAILABLE":
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeNoDriver, message, true)
	case "OUT_OF_SERVICE_AREA":
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeOutOfArea, message, false)
	case "PACKAGE_TOO_LARGE":
		return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeExceedsLimits, message, false)
	}
	return domain.NewProviderError(domain.ProviderGrabExpress, domain.ErrCodeInvalidRequest, message, false)
}
