package orders

import "time"

// Address is a billing or shipping address captured by the payment provider.
type Address struct {
	Name       string `dynamodbav:"name" json:"name"`
	Street     string `dynamodbav:"street" json:"street"`
	City       string `dynamodbav:"city" json:"city"`
	Country    string `dynamodbav:"country" json:"country"`
	PostalCode string `dynamodbav:"postal_code" json:"postalCode"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
}

// Order represents the item stored in the orders table.
// Addresses, CustomerEmail and PaidAt are present iff IsPaid.
type Order struct {
	OrderID         string     `dynamodbav:"order_id" json:"orderId"` // PK
	UserID          string     `dynamodbav:"user_id" json:"userId"`
	IsPaid          bool       `dynamodbav:"is_paid" json:"isPaid"`
	Total           string     `dynamodbav:"total" json:"total"` // decimal, subtotal + fee
	CustomerEmail   string     `dynamodbav:"customer_email,omitempty" json:"customerEmail,omitempty"`
	BillingAddress  *Address   `dynamodbav:"billing_address,omitempty" json:"billingAddress,omitempty"`
	ShippingAddress *Address   `dynamodbav:"shipping_address,omitempty" json:"shippingAddress,omitempty"`
	CreatedAt       time.Time  `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `dynamodbav:"updated_at" json:"updatedAt"`
	PaidAt          *time.Time `dynamodbav:"paid_at,omitempty" json:"paidAt,omitempty"`
	NotifiedAt      *time.Time `dynamodbav:"notified_at,omitempty" json:"-"`
}

// LineItem links an order to one product. Stored in the order_items table
// (PK order_id, SK product_id).
type LineItem struct {
	OrderID   string `dynamodbav:"order_id" json:"-"`
	ProductID string `dynamodbav:"product_id" json:"productId"`
	Position  int    `dynamodbav:"position" json:"position"`
}

// PaidDetails is everything recorded with the unpaid -> paid transition.
type PaidDetails struct {
	CustomerEmail   string
	BillingAddress  Address
	ShippingAddress Address
}
