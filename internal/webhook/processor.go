// Package webhook applies verified payment provider events to orders.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/imrishuroy/digital-marketplace/internal/metrics"
	"github.com/imrishuroy/digital-marketplace/internal/notify"
	"github.com/imrishuroy/digital-marketplace/internal/orders"
	"github.com/imrishuroy/digital-marketplace/internal/payments"
)

var (
	// ErrInvalidMetadata is returned when the session lacks userId or orderId.
	ErrInvalidMetadata = errors.New("invalid metadata")
	// ErrMissingCustomerEmail is returned when the session has no customer email.
	ErrMissingCustomerEmail = errors.New("missing customer email")
	// ErrNotificationFailed is returned when the order was paid but the
	// order-received notification could not be delivered.
	ErrNotificationFailed = errors.New("notification failed")
)

// Outcome of processing one event.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomePaid      Outcome = "paid"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// OrderUpdater performs the paid transition.
type OrderUpdater interface {
	MarkPaid(ctx context.Context, orderID string, d orders.PaidDetails) (*orders.Order, error)
	MarkNotified(ctx context.Context, orderID string) error
}

// Result describes a processed event.
type Result struct {
	EventID   string  `json:"id"`
	EventType string  `json:"type"`
	OrderID   string  `json:"orderId,omitempty"`
	Outcome   Outcome `json:"outcome"`
}

// Processor verifies and applies webhook deliveries.
type Processor struct {
	verifier payments.EventVerifier
	secret   string
	orders   OrderUpdater
	notifier notify.Notifier
	metrics  metrics.Recorder
}

// NewProcessor wires a Processor. rec may be nil.
func NewProcessor(verifier payments.EventVerifier, secret string, orderStore OrderUpdater, notifier notify.Notifier, rec metrics.Recorder) *Processor {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Processor{
		verifier: verifier,
		secret:   secret,
		orders:   orderStore,
		notifier: notifier,
		metrics:  rec,
	}
}

// Handle processes one delivery. The signature is checked before the body is
// decoded. Deliveries for an order that is already paid do not touch it again;
// they only retry a notification that never went out.
func (p *Processor) Handle(ctx context.Context, rawBody []byte, signature string) (*Result, error) {
	evt, err := p.verifier.Verify(rawBody, signature, p.secret)
	if err != nil {
		p.count(ctx, OutcomeRejected)
		if errors.Is(err, payments.ErrInvalidSignature) {
			log.Printf("[webhook] rejected delivery: %v", err)
		}
		return nil, err
	}

	res := &Result{EventID: evt.ID, EventType: evt.Type}
	if evt.Type != payments.EventCheckoutCompleted || evt.Checkout == nil {
		res.Outcome = OutcomeIgnored
		p.count(ctx, res.Outcome)
		return res, nil
	}

	cs := evt.Checkout
	userID, orderID := cs.Metadata["userId"], cs.Metadata["orderId"]
	if userID == "" || orderID == "" {
		p.count(ctx, OutcomeFailed)
		return nil, fmt.Errorf("%w: event %s session %s", ErrInvalidMetadata, evt.ID, cs.SessionID)
	}
	if cs.CustomerEmail == "" {
		p.count(ctx, OutcomeFailed)
		return nil, fmt.Errorf("%w: event %s order %s", ErrMissingCustomerEmail, evt.ID, orderID)
	}
	res.OrderID = orderID

	order, err := p.orders.MarkPaid(ctx, orderID, orders.PaidDetails{
		CustomerEmail:   cs.CustomerEmail,
		BillingAddress:  toOrderAddress(cs.Billing),
		ShippingAddress: toOrderAddress(cs.Shipping),
	})
	switch {
	case err == nil:
		res.Outcome = OutcomePaid
		log.Printf("[webhook] order paid order=%s user=%s event=%s", orderID, userID, evt.ID)
	case errors.Is(err, orders.ErrAlreadyPaid):
		res.Outcome = OutcomeDuplicate
		if order.NotifiedAt != nil {
			log.Printf("[webhook] duplicate delivery order=%s event=%s", orderID, evt.ID)
			p.count(ctx, res.Outcome)
			return res, nil
		}
		log.Printf("[webhook] duplicate delivery order=%s event=%s: retrying notification", orderID, evt.ID)
	default:
		p.count(ctx, OutcomeFailed)
		return nil, fmt.Errorf("mark order %s paid: %w", orderID, err)
	}

	if err := p.notifier.OrderReceived(ctx, emailData(order)); err != nil {
		log.Printf("[webhook] notification failed order=%s: %v", orderID, err)
		p.count(ctx, OutcomeFailed)
		return nil, fmt.Errorf("%w: order %s: %v", ErrNotificationFailed, orderID, err)
	}
	if err := p.orders.MarkNotified(ctx, orderID); err != nil {
		log.Printf("[webhook] mark notified failed order=%s: %v", orderID, err)
	}

	p.count(ctx, res.Outcome)
	return res, nil
}

func (p *Processor) count(ctx context.Context, o Outcome) {
	p.metrics.Count(ctx, metrics.WebhookEvent, map[string]string{"Outcome": string(o)})
}

func toOrderAddress(a payments.Address) orders.Address {
	return orders.Address{
		Name:       a.Name,
		Street:     a.Line1,
		City:       a.City,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		State:      a.State,
	}
}

// emailData builds the order-received payload. The order date is the day the
// order was created, not the day it was paid.
func emailData(o *orders.Order) notify.EmailData {
	d := notify.EmailData{
		OrderID:   o.OrderID,
		EmailTo:   o.CustomerEmail,
		OrderDate: o.CreatedAt.UTC().Format("2006-01-02"),
	}
	if s := o.ShippingAddress; s != nil {
		d.ShippingAddressName = s.Name
		d.ShippingAddressCity = s.City
		d.ShippingAddressCountry = s.Country
		d.ShippingAddressPostalCode = s.PostalCode
		d.ShippingAddressStreet = s.Street
		d.ShippingAddressState = s.State
	}
	return d
}
