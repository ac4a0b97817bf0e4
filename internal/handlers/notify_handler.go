package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/digital-marketplace/internal/notify"
	"github.com/imrishuroy/digital-marketplace/internal/validation"
)

// sendNotification handles POST /api/send: the notification is validated and
// queued for the email worker. The route stays disabled unless both a
// publisher and a shared token are configured.
func (h *routes) sendNotification(c *gin.Context) {
	if h.cfg.Publisher == nil || h.cfg.NotifyToken == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications_disabled"})
		return
	}
	got := c.GetHeader(notify.TokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.NotifyToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var data notify.EmailData
	if err := validation.BindAndValidate(c, &data, h.v); err != nil {
		return
	}

	msgID, err := h.cfg.Publisher.PublishJSON(c.Request.Context(), data, map[string]string{
		"kind":           "order-received",
		"order_id":       data.OrderID,
		"correlation_id": c.GetHeader("X-Request-Id"),
	})
	if err != nil {
		log.Printf("[notify] enqueue failed order=%s: %v", data.OrderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"messageId": msgID})
}
