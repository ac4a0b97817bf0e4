package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/digital-marketplace/internal/auth"
	"github.com/imrishuroy/digital-marketplace/internal/checkout"
	"github.com/imrishuroy/digital-marketplace/internal/validation"
)

// createCheckout handles POST /checkout.
func (h *routes) createCheckout(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	res, err := h.cfg.Checkout.Create(c.Request.Context(), auth.FromGin(c), req.ProductIDs)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"url": res.URL, "orderId": res.OrderID})
	case errors.Is(err, auth.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, checkout.ErrNoProducts):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_products"})
	case errors.Is(err, checkout.ErrDuplicateProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate_product"})
	case errors.Is(err, checkout.ErrProductUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_unavailable", "detail": err.Error()})
	default:
		log.Printf("[checkout] create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout_failed"})
	}
}
