// Package poller waits for an order to become paid by asking the API on a
// fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/imrishuroy/digital-marketplace/internal/client"
)

// Defaults used for zero Config fields.
const (
	DefaultInterval     = time.Second
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultMaxAttempts  = 3
)

// ErrUnavailable is returned when every attempt of a tick failed.
var ErrUnavailable = errors.New("order status unavailable")

// State is what the shopper is shown.
type State string

const (
	StateNotFound        State = "not_found"
	StatePending         State = "pending"
	StatePaid            State = "paid"
	StateUnauthenticated State = "unauthenticated"
)

// StatusFetcher asks for the caller's order status once.
type StatusFetcher interface {
	OrderStatus(ctx context.Context, orderID string) (*client.OrderStatus, error)
}

// Update is the result of one tick. Status is set for pending and paid orders.
type Update struct {
	State  State
	Status *client.OrderStatus
}

// Config tunes the loop.
type Config struct {
	Interval     time.Duration
	RetryBackoff time.Duration
	MaxAttempts  int
}

// Poller runs status checks one at a time.
type Poller struct {
	fetcher StatusFetcher
	cfg     Config
}

// New returns a Poller; zero Config fields take the defaults.
func New(fetcher StatusFetcher, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Poller{fetcher: fetcher, cfg: cfg}
}

// Poll checks orderID immediately and then once per interval until the order
// is paid, not found or the caller is unauthenticated, and returns that last
// update. onUpdate, if non-nil, sees every update including the last.
//
// There is no overall deadline: a pending order is polled until ctx is done.
// A tick whose attempts all fail ends the poll with ErrUnavailable.
func (p *Poller) Poll(ctx context.Context, orderID string, onUpdate func(Update)) (Update, error) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		u, err := p.check(ctx, orderID)
		if err != nil {
			return Update{}, err
		}
		if onUpdate != nil {
			onUpdate(u)
		}
		if u.State != StatePending {
			return u, nil
		}

		select {
		case <-ctx.Done():
			return u, ctx.Err()
		case <-ticker.C:
		}
	}
}

// check performs one tick, retrying transport and server errors.
func (p *Poller) check(ctx context.Context, orderID string) (Update, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		s, err := p.fetcher.OrderStatus(ctx, orderID)
		switch {
		case err == nil:
			return toUpdate(s)
		case errors.Is(err, client.ErrNotFound):
			return Update{State: StateNotFound}, nil
		case errors.Is(err, client.ErrUnauthenticated):
			return Update{State: StateUnauthenticated}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Update{}, ctxErr
		}
		lastErr = err
		log.Printf("[poller] status check failed order=%s attempt=%d/%d: %v", orderID, attempt, p.cfg.MaxAttempts, err)

		if attempt == p.cfg.MaxAttempts {
			break
		}
		t := time.NewTimer(p.cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return Update{}, ctx.Err()
		case <-t.C:
		}
	}
	return Update{}, fmt.Errorf("%w: order %s after %d attempts: %v", ErrUnavailable, orderID, p.cfg.MaxAttempts, lastErr)
}

func toUpdate(s *client.OrderStatus) (Update, error) {
	if s == nil {
		return Update{}, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	switch s.Status {
	case client.StatusPaid:
		return Update{State: StatePaid, Status: s}, nil
	case client.StatusPending:
		return Update{State: StatePending, Status: s}, nil
	default:
		return Update{}, fmt.Errorf("%w: unexpected status %q", ErrUnavailable, s.Status)
	}
}
