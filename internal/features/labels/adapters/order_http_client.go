package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/core/httpclient"
	"shipping-gateway/internal/features/labels/domain"
	"shipping-gateway/internal/features/labels/ports"
)

// OrderHTTPClient implements the OrderClient port against the order-management
// REST API using basic auth.
type OrderHTTPClient struct {
	client *http.Client
	cfg    config.OrdersConfig
}

// NewOrderHTTPClient creates an OrderHTTPClient.
func NewOrderHTTPClient(cfg config.OrdersConfig) *OrderHTTPClient {
	return &OrderHTTPClient{
		client: httpclient.NewClient(10 * time.Second),
		cfg:    cfg,
	}
}

// orderResponse is the order API's order shape, reduced to the fields the
// shipping engine reads.
type orderResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Shipping struct {
		Name       string `json:"name"`
		Phone      string `json:"phone"`
		Address1   string `json:"address_1"`
		City       string `json:"city"`
		Province   string `json:"province"`
		PostalCode string `json:"postal_code"`
	} `json:"shipping"`
	Customer struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"customer"`
}

// GetOrder implements OrderClient.
func (c *OrderHTTPClient) GetOrder(ctx context.Context, id string) (*ports.Order, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%s", c.cfg.URL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("order not found: %s", id)
		}
		return nil, fmt.Errorf("order API returned status: %d", resp.StatusCode)
	}

	var order orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &ports.Order{
		ID:     order.ID,
		Status: order.Status,
		ShippingAddress: domain.Address{
			Name:       order.Shipping.Name,
			Phone:      order.Shipping.Phone,
			Street:     order.Shipping.Address1,
			City:       order.Shipping.City,
			Province:   order.Shipping.Province,
			PostalCode: order.Shipping.PostalCode,
		},
		CustomerContact: ports.CustomerContact{
			Name:  order.Customer.Name,
			Phone: order.Customer.Phone,
			Email: order.Customer.Email,
		},
	}, nil
}

// UpdateShippingOutcome implements OrderClient.
func (c *OrderHTTPClient) UpdateShippingOutcome(ctx context.Context, id string, outcome ports.ShippingOutcome) error {
	url := fmt.Sprintf("%s/api/v1/orders/%s/shipping", c.cfg.URL, id)

	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping outcome: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("order API returned status: %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck verifies that the order API is reachable and the credentials
// are valid.
func (c *OrderHTTPClient) HealthCheck() error {
	url := fmt.Sprintf("%s/api/v1/orders?per_page=1", c.cfg.URL)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed to reach order API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("order API health check returned status: %d", resp.StatusCode)
	}
	return nil
}

func (c *OrderHTTPClient) authorize(req *http.Request) {
	authVal := make([]byte, 0, len(c.cfg.APIKey)+len(c.cfg.APISecret)+1)
	authVal = fmt.Appendf(authVal, "%s:%s", c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Add("Authorization", "Basic "+base64.StdEncoding.EncodeToString(authVal))
}
