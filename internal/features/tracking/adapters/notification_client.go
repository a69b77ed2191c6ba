package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/core/httpclient"
	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/features/tracking/ports"

	"go.uber.org/zap"
)

// HTTPNotificationClient delivers customer notifications through the
// notification service's REST API. Channel selection (WhatsApp, SMS, email)
// happens on the service side; this client only hands over the request.
type HTTPNotificationClient struct {
	client *http.Client
	cfg    config.NotificationsConfig
}

// NewHTTPNotificationClient creates an HTTPNotificationClient.
func NewHTTPNotificationClient(cfg config.NotificationsConfig) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		client: httpclient.NewClient(10 * time.Second),
		cfg:    cfg,
	}
}

// Notify implements NotificationClient.
func (c *HTTPNotificationClient) Notify(ctx context.Context, notification ports.NotificationRequest) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := c.cfg.URL + "/api/v1/notifications"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status: %d", resp.StatusCode)
	}
	return nil
}

// LogNotificationClient records notification requests in the log instead of
// delivering them. Used when the notification service is disabled, e.g. in
// development environments.
type LogNotificationClient struct {
	logger *zap.Logger
}

// NewLogNotificationClient creates a LogNotificationClient.
func NewLogNotificationClient() *LogNotificationClient {
	return &LogNotificationClient{logger: logger.Get()}
}

// Notify implements NotificationClient.
func (c *LogNotificationClient) Notify(_ context.Context, notification ports.NotificationRequest) error {
	c.logger.Info("Customer notification suppressed (delivery disabled)",
		zap.String("tracking_number", notification.TrackingNumber),
		zap.String("status", string(notification.Status)),
		zap.String("phone", notification.Contact.Phone),
	)
	return nil
}
