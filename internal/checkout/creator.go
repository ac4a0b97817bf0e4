// Package checkout turns a cart into an unpaid order and a hosted payment
// session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/digital-marketplace/internal/auth"
	"github.com/imrishuroy/digital-marketplace/internal/catalog"
	"github.com/imrishuroy/digital-marketplace/internal/metrics"
	"github.com/imrishuroy/digital-marketplace/internal/orders"
	"github.com/imrishuroy/digital-marketplace/internal/payments"
)

var (
	// ErrNoProducts is returned for an empty product list.
	ErrNoProducts = errors.New("no products")
	// ErrDuplicateProduct is returned when a product id is repeated.
	ErrDuplicateProduct = errors.New("duplicate product")
	// ErrProductUnavailable is returned for unknown, unapproved or terminated products.
	ErrProductUnavailable = errors.New("product unavailable")
)

// ProductLookup resolves current product state by id.
type ProductLookup interface {
	BatchGet(ctx context.Context, productIDs []string) (map[string]catalog.Product, error)
}

// OrderCreator persists an order with its line items atomically.
type OrderCreator interface {
	CreateWithLineItems(ctx context.Context, order orders.Order, productIDs []string) (*orders.Order, error)
}

// Config holds the pricing and redirect settings of the checkout.
type Config struct {
	BaseURL          string
	Fee              decimal.Decimal
	Currency         string
	AllowedCountries []string
	PaymentMethods   []string
	ProductName      string
}

// Result is returned to the buyer, who is redirected to URL.
type Result struct {
	URL         string          `json:"url"`
	OrderID     string          `json:"orderId"`
	Total       decimal.Decimal `json:"total"`
	AmountMinor int64           `json:"-"`
}

// Creator creates checkout sessions.
type Creator struct {
	products ProductLookup
	orders   OrderCreator
	provider payments.Provider
	metrics  metrics.Recorder
	cfg      Config
	newID    func() string
}

// NewCreator wires a Creator.
func NewCreator(products ProductLookup, orderStore OrderCreator, provider payments.Provider, rec metrics.Recorder, cfg Config) *Creator {
	if cfg.ProductName == "" {
		cfg.ProductName = "Digital Product"
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Creator{
		products: products,
		orders:   orderStore,
		provider: provider,
		metrics:  rec,
		cfg:      cfg,
		newID:    uuid.NewString,
	}
}

// Create prices productIDs server-side, stores an unpaid order and requests
// a payment session for it. Every call is a new purchase attempt.
func (c *Creator) Create(ctx context.Context, id *auth.Identity, productIDs []string) (*Result, error) {
	if id == nil || id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	if len(productIDs) == 0 {
		return nil, ErrNoProducts
	}
	seen := make(map[string]struct{}, len(productIDs))
	for _, pid := range productIDs {
		if pid == "" {
			return nil, fmt.Errorf("%w: empty id", ErrProductUnavailable)
		}
		if _, dup := seen[pid]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProduct, pid)
		}
		seen[pid] = struct{}{}
	}

	subtotal, err := c.subtotal(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	total := subtotal.Add(c.cfg.Fee)
	amount := MinorUnits(total)

	order, err := c.orders.CreateWithLineItems(ctx, orders.Order{
		OrderID: c.newID(),
		UserID:  id.UserID,
		Total:   total.StringFixed(2),
	}, productIDs)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	session, err := c.provider.CreateCheckoutSession(ctx, payments.SessionRequest{
		OrderID:          order.OrderID,
		UserID:           id.UserID,
		AmountMinor:      amount,
		Currency:         c.cfg.Currency,
		ProductName:      c.cfg.ProductName,
		SuccessURL:       c.successURL(order.OrderID),
		CancelURL:        strings.TrimRight(c.cfg.BaseURL, "/") + "/cart",
		AllowedCountries: c.cfg.AllowedCountries,
		PaymentMethods:   c.cfg.PaymentMethods,
	})
	if err != nil {
		log.Printf("[checkout] session failed order=%s user=%s: %v", order.OrderID, id.UserID, err)
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	log.Printf("[checkout] session created order=%s user=%s items=%d amount=%d", order.OrderID, id.UserID, len(productIDs), amount)
	c.metrics.Count(ctx, metrics.CheckoutSessionCreated, nil)
	return &Result{URL: session.URL, OrderID: order.OrderID, Total: total, AmountMinor: amount}, nil
}

func (c *Creator) subtotal(ctx context.Context, productIDs []string) (decimal.Decimal, error) {
	found, err := c.products.BatchGet(ctx, productIDs)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load products: %w", err)
	}
	sum := decimal.Zero
	for _, pid := range productIDs {
		p, ok := found[pid]
		if !ok || !p.Purchasable() {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrProductUnavailable, pid)
		}
		price, err := p.PriceDecimal()
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(price)
	}
	return sum, nil
}

func (c *Creator) successURL(orderID string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/thank-you?orderId=" + url.QueryEscape(orderID)
}

// MinorUnits converts an amount to minor currency units, rounding half away
// from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
