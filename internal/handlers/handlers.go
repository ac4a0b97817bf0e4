package handlers

import (
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/digital-marketplace/internal/accounts"
	"github.com/imrishuroy/digital-marketplace/internal/auth"
	"github.com/imrishuroy/digital-marketplace/internal/aws"
	"github.com/imrishuroy/digital-marketplace/internal/catalog"
	"github.com/imrishuroy/digital-marketplace/internal/checkout"
	"github.com/imrishuroy/digital-marketplace/internal/orders"
	"github.com/imrishuroy/digital-marketplace/internal/validation"
	"github.com/imrishuroy/digital-marketplace/internal/webhook"
)

// SignatureHeader is where the payment provider puts the webhook signature.
const SignatureHeader = "Stripe-Signature"

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// HandlerConfig groups dependencies for the HTTP routes.
type HandlerConfig struct {
	Auth        *auth.Verifier
	Checkout    *checkout.Creator
	Webhook     *webhook.Processor
	Orders      *orders.Store
	Products    *catalog.Store
	Accounts    *accounts.Store
	Publisher   *aws.Publisher // nil disables POST /api/send
	NotifyToken string
}

type routes struct {
	cfg HandlerConfig
	v   *validatorv10.Validate
}

// RegisterRoutes registers every API route on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &routes{cfg: cfg, v: validation.New()}
	authed := cfg.Auth.Middleware()

	r.POST("/api/webhooks/stripe", h.stripeWebhook)
	r.POST("/api/send", h.sendNotification)

	r.GET("/products", h.listProducts)
	r.GET("/products/:productId", h.getProduct)

	user := r.Group("/", authed)
	user.POST("/me", h.me)
	user.POST("/checkout", h.createCheckout)
	user.GET("/orders/:orderId/status", h.orderStatus)
	user.POST("/products", h.createProduct)
	user.PATCH("/products/:productId/name", h.renameProduct)

	admin := r.Group("/admin", authed, auth.RequireAdmin())
	admin.POST("/products/:productId/status", h.setProductStatus)
	admin.DELETE("/products/:productId", h.terminateProduct)
	admin.POST("/sellers/:userId/status", h.setSellerStatus)
}
