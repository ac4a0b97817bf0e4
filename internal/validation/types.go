package validation

// CheckoutRequest is the payload for POST /checkout. Prices are never taken
// from the client.
type CheckoutRequest struct {
	ProductIDs []string `json:"productIds" validate:"required,min=1,max=99,unique,dive,required"`
}

// CreateProductRequest is the payload for POST /products
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Description string   `json:"description" validate:"required,min=1,max=350"`
	Price       string   `json:"price" validate:"required,decimal_gt0"` // decimal string, e.g. "12.50"
	Category    string   `json:"category" validate:"required,oneof=ui_kits icons"`
	ProductFile string   `json:"productFile" validate:"required,url"`
	Images      []string `json:"images" validate:"required,min=1,max=3,dive,url"`
}

// RenameProductRequest is the payload for PATCH /products/:productId/name
type RenameProductRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// StatusActionRequest is the payload of the admin status endpoints.
type StatusActionRequest struct {
	Action string `json:"action" validate:"required"`
}
