package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/digital-marketplace/internal/accounts"
	"github.com/imrishuroy/digital-marketplace/internal/catalog"
	"github.com/imrishuroy/digital-marketplace/internal/moderation"
	"github.com/imrishuroy/digital-marketplace/internal/validation"
)

// setProductStatus handles POST /admin/products/:productId/status.
func (h *routes) setProductStatus(c *gin.Context) {
	var req validation.StatusActionRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	action, err := moderation.ParseProductStatusAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_action"})
		return
	}

	ctx := c.Request.Context()
	productID := c.Param("productId")
	p, err := h.cfg.Products.Get(ctx, productID)
	if err != nil {
		log.Printf("[admin] product lookup failed id=%s: %v", productID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if p.Terminated {
		c.JSON(http.StatusConflict, gin.H{"error": "product_terminated"})
		return
	}
	next, err := action.Apply(p.Status)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "status": p.Status})
		return
	}

	err = h.cfg.Products.UpdateStatus(ctx, productID, p.Status, next)
	switch {
	case err == nil:
		log.Printf("[admin] product status id=%s %s -> %s", productID, p.Status, next)
		c.JSON(http.StatusOK, gin.H{"productId": productID, "status": next})
	case errors.Is(err, catalog.ErrStatusMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "status_changed"})
	default:
		log.Printf("[admin] product status failed id=%s: %v", productID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
	}
}

// terminateProduct handles DELETE /admin/products/:productId.
func (h *routes) terminateProduct(c *gin.Context) {
	productID := c.Param("productId")
	err := h.cfg.Products.Terminate(c.Request.Context(), productID)
	switch {
	case err == nil:
		log.Printf("[admin] product terminated id=%s", productID)
		c.Status(http.StatusNoContent)
	case errors.Is(err, catalog.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		log.Printf("[admin] terminate failed id=%s: %v", productID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
	}
}

// setSellerStatus handles POST /admin/sellers/:userId/status.
func (h *routes) setSellerStatus(c *gin.Context) {
	var req validation.StatusActionRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	action, err := moderation.ParseSellerStatusAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_action"})
		return
	}

	ctx := c.Request.Context()
	userID := c.Param("userId")
	u, err := h.cfg.Accounts.Get(ctx, userID)
	if err != nil {
		log.Printf("[admin] user lookup failed id=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	next, err := action.Apply(u.SellerStatus)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "status": u.SellerStatus})
		return
	}

	err = h.cfg.Accounts.UpdateSellerStatus(ctx, userID, u.SellerStatus, next)
	switch {
	case err == nil:
		log.Printf("[admin] seller status id=%s %s -> %s", userID, u.SellerStatus, next)
		c.JSON(http.StatusOK, gin.H{"userId": userID, "sellerStatus": next})
	case errors.Is(err, accounts.ErrStatusMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "status_changed"})
	case errors.Is(err, accounts.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		log.Printf("[admin] seller status failed id=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
	}
}
