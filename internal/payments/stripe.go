package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProvider creates Stripe Checkout sessions.
type StripeProvider struct {
	sessions checkoutSessions
}

// NewStripeProvider returns a provider using the given secret API key.
func NewStripeProvider(secretKey string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProvider{sessions: sc.CheckoutSessions}
}

// CreateCheckoutSession requests a payment-mode session with a single line
// item carrying the whole order total.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := checkoutParams(req)
	params.Context = ctx
	s, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func checkoutParams(req SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(req.PaymentMethods),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedCountries),
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("userId", req.UserID)
	params.AddMetadata("orderId", req.OrderID)
	return params
}

// StripeVerifier checks the Stripe-Signature header.
type StripeVerifier struct{}

// Verify implements EventVerifier.
func (StripeVerifier) Verify(rawBody []byte, signature, secret string) (*Event, error) {
	if signature == "" || secret == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	evt, err := webhook.ConstructEventWithOptions(rawBody, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return fromStripeEvent(evt)
}

// decodeStripeEvent parses an already authenticated Stripe event body.
func decodeStripeEvent(rawBody []byte) (*Event, error) {
	var evt stripe.Event
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return fromStripeEvent(evt)
}

func fromStripeEvent(evt stripe.Event) (*Event, error) {
	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}
	if evt.Data == nil {
		return nil, fmt.Errorf("decode event %s: no data", evt.ID)
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	c := &CheckoutCompleted{SessionID: s.ID, Metadata: s.Metadata}
	if s.CustomerDetails != nil {
		c.CustomerEmail = s.CustomerDetails.Email
		c.Billing = fromStripeAddress(s.CustomerDetails.Name, s.CustomerDetails.Address)
	}
	if c.CustomerEmail == "" {
		c.CustomerEmail = s.CustomerEmail
	}
	if s.ShippingDetails != nil && s.ShippingDetails.Address != nil {
		c.Shipping = fromStripeAddress(s.ShippingDetails.Name, s.ShippingDetails.Address)
	} else {
		c.Shipping = c.Billing
	}
	out.Checkout = c
	return out, nil
}

func fromStripeAddress(name string, a *stripe.Address) Address {
	if a == nil {
		return Address{Name: name}
	}
	return Address{
		Name:       name,
		Line1:      a.Line1,
		City:       a.City,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		State:      a.State,
	}
}
