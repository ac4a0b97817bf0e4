// Package client is the HTTP client of the marketplace API used by the
// shopper CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imrishuroy/digital-marketplace/internal/catalog"
	"github.com/imrishuroy/digital-marketplace/internal/orders"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned for 401 responses.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Order status values reported by the API.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Code, e.Body)
}

// OrderStatus is the body of GET /orders/:orderId/status.
type OrderStatus struct {
	Status   string            `json:"status"`
	Order    *orders.Order     `json:"order,omitempty"`
	Products []catalog.Product `json:"products,omitempty"`
}

// CheckoutSession is the body of POST /checkout.
type CheckoutSession struct {
	URL     string `json:"url"`
	OrderID string `json:"orderId"`
}

// Client calls the marketplace API with a bearer token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New returns a Client. token may be empty for public endpoints.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Product fetches a purchasable product.
func (c *Client) Product(ctx context.Context, productID string) (*catalog.Product, error) {
	var p catalog.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Checkout starts a checkout for the given products.
func (c *Client) Checkout(ctx context.Context, productIDs []string) (*CheckoutSession, error) {
	var s CheckoutSession
	body := map[string][]string{"productIds": productIDs}
	if err := c.do(ctx, http.MethodPost, "/checkout", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// OrderStatus asks whether the caller's order is paid. Orders that do not
// exist or belong to someone else yield ErrNotFound.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	var s OrderStatus
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthenticated
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
