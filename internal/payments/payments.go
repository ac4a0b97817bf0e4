// Package payments wraps the hosted payment provider: checkout session
// creation and authenticity checks of its webhook events.
package payments

import (
	"context"
	"errors"
)

// EventCheckoutCompleted is the only event type that moves an order to paid.
const EventCheckoutCompleted = "checkout.session.completed"

// ErrInvalidSignature is returned when a webhook payload is not authentic.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// SessionRequest describes a hosted checkout session for one order.
type SessionRequest struct {
	OrderID          string
	UserID           string
	AmountMinor      int64 // total in minor currency units
	Currency         string
	ProductName      string
	SuccessURL       string
	CancelURL        string
	AllowedCountries []string
	PaymentMethods   []string
}

// Session is the provider-issued checkout session.
type Session struct {
	ID  string
	URL string
}

// Provider creates hosted checkout sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// Address as collected by the provider's checkout page.
type Address struct {
	Name       string
	Line1      string
	City       string
	Country    string
	PostalCode string
	State      string
}

// CheckoutCompleted carries the data of a completed checkout session.
type CheckoutCompleted struct {
	SessionID     string
	Metadata      map[string]string
	CustomerEmail string
	Billing       Address
	Shipping      Address
}

// Event is a webhook event whose authenticity was verified.
type Event struct {
	ID       string
	Type     string
	Checkout *CheckoutCompleted // set when Type is EventCheckoutCompleted
}

// EventVerifier checks a raw webhook body against its signature header and
// only then decodes it. Implementations return ErrInvalidSignature (wrapped)
// for a missing or mismatching signature.
type EventVerifier interface {
	Verify(rawBody []byte, signature, secret string) (*Event, error)
}
