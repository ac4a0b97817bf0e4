package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/digital-marketplace/internal/auth"
	"github.com/imrishuroy/digital-marketplace/internal/catalog"
	"github.com/imrishuroy/digital-marketplace/internal/validation"
)

const maxListLimit = 50

// listProducts handles GET /products?category=&sort=&limit=.
func (h *routes) listProducts(c *gin.Context) {
	q := catalog.ListQuery{
		Category: catalog.Category(c.Query("category")),
		Sort:     catalog.SortOrder(c.DefaultQuery("sort", string(catalog.SortDesc))),
	}
	switch q.Category {
	case "", catalog.CategoryUIKits, catalog.CategoryIcons:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_category"})
		return
	}
	if q.Sort != catalog.SortAsc && q.Sort != catalog.SortDesc {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_sort"})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		q.Limit = n
	}

	products, err := h.cfg.Products.ListApproved(c.Request.Context(), q)
	if err != nil {
		log.Printf("[catalog] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		out = append(out, p.Public())
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

// getProduct handles GET /products/:productId. Only purchasable products are visible.
func (h *routes) getProduct(c *gin.Context) {
	p, err := h.cfg.Products.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		log.Printf("[catalog] get failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	if p == nil || !p.Purchasable() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, p.Public())
}

// createProduct handles POST /products for approved sellers and admins.
func (h *routes) createProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := auth.FromGin(c)

	if !id.Admin {
		u, err := h.cfg.Accounts.Get(ctx, id.UserID)
		if err != nil {
			log.Printf("[catalog] seller lookup failed user=%s: %v", id.UserID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
			return
		}
		if u == nil || !u.IsSeller() {
			c.JSON(http.StatusForbidden, gin.H{"error": "not_a_seller"})
			return
		}
	}

	var req validation.CreateProductRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p, err := h.cfg.Products.Create(ctx, catalog.Product{
		SellerID:    id.UserID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    catalog.Category(req.Category),
		ProductFile: req.ProductFile,
		Images:      req.Images,
	})
	if err != nil {
		log.Printf("[catalog] create failed user=%s: %v", id.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.Header("Location", "/products/"+p.ProductID)
	c.JSON(http.StatusCreated, p)
}

// renameProduct handles PATCH /products/:productId/name for the owning seller.
func (h *routes) renameProduct(c *gin.Context) {
	var req validation.RenameProductRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	id := auth.FromGin(c)
	err := h.cfg.Products.Rename(c.Request.Context(), c.Param("productId"), id.UserID, req.Name)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, catalog.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		log.Printf("[catalog] rename failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rename_failed"})
	}
}

// me handles POST /me: the caller's user row is created on first sight.
func (h *routes) me(c *gin.Context) {
	id := auth.FromGin(c)
	u, err := h.cfg.Accounts.Ensure(c.Request.Context(), id.UserID, id.Email)
	if err != nil {
		log.Printf("[accounts] ensure failed user=%s: %v", id.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "admin": id.Admin})
}
