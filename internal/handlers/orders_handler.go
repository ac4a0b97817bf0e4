package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/digital-marketplace/internal/auth"
	"github.com/imrishuroy/digital-marketplace/internal/catalog"
	"github.com/imrishuroy/digital-marketplace/internal/orders"
)

// Order status values returned by GET /orders/:orderId/status.
const (
	StatusNotFound = "not_found"
	StatusPending  = "pending"
	StatusPaid     = "paid"
)

// OrderStatusResponse is the body of GET /orders/:orderId/status.
type OrderStatusResponse struct {
	Status   string            `json:"status"`
	Order    *orders.Order     `json:"order,omitempty"`
	Products []catalog.Product `json:"products,omitempty"`
}

// orderStatus handles GET /orders/:orderId/status. The lookup is scoped to
// the caller: someone else's order is reported as not found.
func (h *routes) orderStatus(c *gin.Context) {
	ctx := c.Request.Context()
	id := auth.FromGin(c)
	orderID := c.Param("orderId")

	order, err := h.cfg.Orders.GetForUser(ctx, orderID, id.UserID)
	if err != nil {
		log.Printf("[orders] status lookup failed order=%s: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, OrderStatusResponse{Status: StatusNotFound})
		return
	}
	if !order.IsPaid {
		c.JSON(http.StatusOK, OrderStatusResponse{Status: StatusPending, Order: order})
		return
	}

	items, err := h.cfg.Orders.LineItems(ctx, orderID)
	if err != nil {
		log.Printf("[orders] line items failed order=%s: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed"})
		return
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	found, err := h.cfg.Products.BatchGet(ctx, ids)
	if err != nil {
		log.Printf("[orders] products failed order=%s: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed"})
		return
	}
	products := make([]catalog.Product, 0, len(items))
	for _, pid := range ids {
		if p, ok := found[pid]; ok {
			products = append(products, p)
		}
	}
	c.JSON(http.StatusOK, OrderStatusResponse{Status: StatusPaid, Order: order, Products: products})
}
