package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the WooCommerce REST API (wp-json/wc/v3) using HTTP Basic
// auth with the store's consumer key and secret.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

// NewClient creates a WooCommerce API client.
// baseURL is the store root, e.g. https://shop.example.com
func NewClient(baseURL, consumerKey, consumerSecret string) *Client {
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RemoteError is a non-2xx response from WooCommerce. Body is the upstream
// response body verbatim so callers can surface exactly what the store said.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("woocommerce: API request failed: %d - %s", e.StatusCode, e.Body)
}

// CreateOrder creates a new order.
func (c *Client) CreateOrder(ctx context.Context, order CreateOrderRequest) (*Order, error) {
	var created Order
	if err := c.do(ctx, http.MethodPost, "/wp-json/wc/v3/orders", order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateOrder updates an existing order.
func (c *Client) UpdateOrder(ctx context.Context, orderID string, update UpdateOrderRequest) (*Order, error) {
	var updated Order
	path := "/wp-json/wc/v3/orders/" + orderID
	if err := c.do(ctx, http.MethodPut, path, update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	path := "/wp-json/wc/v3/orders/" + orderID
	if err := c.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus changes only the status of an order.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, status string) (*Order, error) {
	return c.UpdateOrder(ctx, orderID, UpdateOrderRequest{Status: status})
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
