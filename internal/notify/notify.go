// Package notify sends the order-received notification to the notification
// endpoint, which queues it for email delivery.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenHeader carries the optional shared secret of the notification endpoint.
const TokenHeader = "X-Notify-Token"

// EmailData is the order-received notification payload.
type EmailData struct {
	OrderID                   string `json:"orderId" validate:"required"`
	EmailTo                   string `json:"emailTo" validate:"required,email"`
	OrderDate                 string `json:"orderDate" validate:"required"`
	ShippingAddressName       string `json:"shippingAddressName"`
	ShippingAddressCity       string `json:"shippingAddressCity" validate:"required"`
	ShippingAddressCountry    string `json:"shippingAddressCountry" validate:"required"`
	ShippingAddressPostalCode string `json:"shippingAddressPostalCode"`
	ShippingAddressStreet     string `json:"shippingAddressStreet"`
	ShippingAddressState      string `json:"shippingAddressState"`
}

// Notifier delivers the order-received notification.
type Notifier interface {
	OrderReceived(ctx context.Context, data EmailData) error
}

// HTTPNotifier POSTs EmailData as JSON to a URL.
type HTTPNotifier struct {
	client *http.Client
	url    string
	token  string
}

// NewHTTPNotifier returns a notifier posting to url. token may be empty.
func NewHTTPNotifier(url, token string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		client: &http.Client{Timeout: timeout},
		url:    url,
		token:  token,
	}
}

// OrderReceived implements Notifier. Any non-2xx response is an error.
func (n *HTTPNotifier) OrderReceived(ctx context.Context, data EmailData) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set(TokenHeader, n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post notification: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
