// Package moderation holds the admin status actions for products and sellers.
// Each kind has its own status enum, action set and transition table.
package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAction is returned when parsing an action name fails.
	ErrUnknownAction = errors.New("unknown moderation action")
	// ErrInvalidTransition is returned when an action does not apply to the
	// current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ProductStatus is the listing status of a product.
type ProductStatus string

const (
	ProductPending  ProductStatus = "pending"
	ProductApproved ProductStatus = "approved"
	ProductDenied   ProductStatus = "denied"
)

// ProductStatusAction is an admin action on a product listing.
type ProductStatusAction string

const (
	ProductApprove ProductStatusAction = "approve"
	ProductDeny    ProductStatusAction = "deny"
	ProductReset   ProductStatusAction = "reset"
)

type productTransition struct {
	from []ProductStatus
	to   ProductStatus
}

var productTransitions = map[ProductStatusAction]productTransition{
	ProductApprove: {from: []ProductStatus{ProductPending, ProductDenied}, to: ProductApproved},
	ProductDeny:    {from: []ProductStatus{ProductPending, ProductApproved}, to: ProductDenied},
	ProductReset:   {from: []ProductStatus{ProductApproved, ProductDenied}, to: ProductPending},
}

// ParseProductStatusAction validates an action name.
func ParseProductStatusAction(s string) (ProductStatusAction, error) {
	a := ProductStatusAction(s)
	if _, ok := productTransitions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Apply returns the status reached by applying a to current.
func (a ProductStatusAction) Apply(current ProductStatus) (ProductStatus, error) {
	t, ok := productTransitions[a]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, string(a))
	}
	for _, f := range t.from {
		if f == current {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a %s product", ErrInvalidTransition, a, current)
}

// SellerStatus is a user's seller status.
type SellerStatus string

const (
	SellerNone     SellerStatus = "none"
	SellerPending  SellerStatus = "pending"
	SellerApproved SellerStatus = "approved"
	SellerDenied   SellerStatus = "denied"
)

// SellerStatusAction is an admin action on a seller.
type SellerStatusAction string

const (
	SellerApprove   SellerStatusAction = "approve"
	SellerDeny      SellerStatusAction = "deny"
	SellerRevoke    SellerStatusAction = "revoke"
	SellerReinstate SellerStatusAction = "reinstate"
)

type sellerTransition struct {
	from SellerStatus
	to   SellerStatus
}

var sellerTransitions = map[SellerStatusAction]sellerTransition{
	SellerApprove:   {from: SellerPending, to: SellerApproved},
	SellerDeny:      {from: SellerPending, to: SellerDenied},
	SellerRevoke:    {from: SellerApproved, to: SellerDenied},
	SellerReinstate: {from: SellerDenied, to: SellerApproved},
}

// ParseSellerStatusAction validates an action name.
func ParseSellerStatusAction(s string) (SellerStatusAction, error) {
	a := SellerStatusAction(s)
	if _, ok := sellerTransitions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Apply returns the status reached by applying a to current.
func (a SellerStatusAction) Apply(current SellerStatus) (SellerStatus, error) {
	t, ok := sellerTransitions[a]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, string(a))
	}
	if current == "" {
		current = SellerNone
	}
	if t.from != current {
		return "", fmt.Errorf("%w: cannot %s a %s seller", ErrInvalidTransition, a, current)
	}
	return t.to, nil
}
