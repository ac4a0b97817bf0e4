package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/digital-marketplace/internal/moderation"
)

// Category of a digital product.
type Category string

const (
	CategoryUIKits Category = "ui_kits"
	CategoryIcons  Category = "icons"
)

// Product represents the item stored in the products table.
type Product struct {
	ProductID   string                   `dynamodbav:"product_id" json:"id"` // PK
	SellerID    string                   `dynamodbav:"seller_id" json:"sellerId"`
	Name        string                   `dynamodbav:"name" json:"name"`
	Description string                   `dynamodbav:"description" json:"description"`
	Price       string                   `dynamodbav:"price" json:"price"` // decimal string, authoritative
	Category    Category                 `dynamodbav:"category" json:"category"`
	ProductFile string                   `dynamodbav:"product_file" json:"productFile,omitempty"`
	Images      []string                 `dynamodbav:"images" json:"images"`
	Status      moderation.ProductStatus `dynamodbav:"status" json:"status"`
	Terminated  bool                     `dynamodbav:"terminated" json:"terminated"`
	CreatedAt   time.Time                `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt   time.Time                `dynamodbav:"updated_at" json:"updatedAt"`
}

// PriceDecimal parses the stored price.
func (p Product) PriceDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(p.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("product %s has invalid price %q: %w", p.ProductID, p.Price, err)
	}
	return d, nil
}

// Purchasable reports whether the product can be bought.
func (p Product) Purchasable() bool {
	return p.Status == moderation.ProductApproved && !p.Terminated
}

// Public returns a copy without the downloadable file, for listings.
func (p Product) Public() Product {
	p.ProductFile = ""
	return p
}

// SortOrder orders listings by creation time.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery filters the approved product listing.
type ListQuery struct {
	Category Category
	Sort     SortOrder
	Limit    int
}

// DefaultListLimit is used when ListQuery.Limit is zero.
const DefaultListLimit = 4
