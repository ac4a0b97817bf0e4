package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/digital-marketplace/internal/payments"
)

// stripeWebhook handles POST /api/webhooks/stripe. The body is read raw: the
// signature covers the exact bytes sent.
func (h *routes) stripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unreadable body", "ok": false})
		return
	}

	res, err := h.cfg.Webhook.Handle(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Webhook Error: invalid signature", "ok": false})
			return
		}
		log.Printf("[webhook] processing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Webhook Error: " + err.Error(), "ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "ok": true})
}
