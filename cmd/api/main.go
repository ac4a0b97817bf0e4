package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/digital-marketplace/internal/accounts"
	"github.com/imrishuroy/digital-marketplace/internal/auth"
	"github.com/imrishuroy/digital-marketplace/internal/aws"
	"github.com/imrishuroy/digital-marketplace/internal/catalog"
	"github.com/imrishuroy/digital-marketplace/internal/checkout"
	"github.com/imrishuroy/digital-marketplace/internal/config"
	"github.com/imrishuroy/digital-marketplace/internal/handlers"
	"github.com/imrishuroy/digital-marketplace/internal/metrics"
	"github.com/imrishuroy/digital-marketplace/internal/notify"
	"github.com/imrishuroy/digital-marketplace/internal/orders"
	"github.com/imrishuroy/digital-marketplace/internal/payments"
	"github.com/imrishuroy/digital-marketplace/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func setupRouter(cfg handlers.HandlerConfig, local bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if local {
		r.Use(gin.Logger())
	}

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func buildHandlerConfig(cfg *config.Config, clients *aws.AWSClients) handlers.HandlerConfig {
	rec := metrics.NewCloudWatch(clients.CloudWatch, cfg.MetricsNamespace)
	orderStore := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.OrderItems)
	productStore := catalog.NewStore(clients.DynamoDB, cfg.Tables.Products)

	var verifier payments.EventVerifier = payments.StripeVerifier{}
	if cfg.API.WebhookVerifier == "hmac" {
		verifier = payments.HMACVerifier{}
	}

	var publisher *aws.Publisher
	switch {
	case cfg.API.NotifyQueueURL == "":
		log.Printf("[api] NOTIFY_QUEUE_URL not set: POST /api/send disabled")
	case cfg.API.NotifyToken == "":
		log.Printf("[api] NOTIFY_TOKEN not set: POST /api/send disabled")
	default:
		publisher = aws.NewPublisher(clients.SQS, cfg.API.NotifyQueueURL)
	}

	return handlers.HandlerConfig{
		Auth: auth.NewVerifier(cfg.API.JWTSecret, cfg.API.AdminEmail),
		Checkout: checkout.NewCreator(productStore, orderStore, payments.NewStripeProvider(cfg.API.StripeSecretKey), rec, checkout.Config{
			BaseURL:          cfg.API.BaseURL,
			Fee:              cfg.API.TransactionFee,
			Currency:         cfg.API.Currency,
			AllowedCountries: cfg.API.AllowedCountries,
			PaymentMethods:   cfg.API.PaymentMethods,
		}),
		Webhook: webhook.NewProcessor(
			verifier,
			cfg.API.StripeWebhookSecret,
			orderStore,
			notify.NewHTTPNotifier(cfg.API.NotifyURL, cfg.API.NotifyToken, cfg.API.NotifyTimeout),
			rec,
		),
		Orders:      orderStore,
		Products:    productStore,
		Accounts:    accounts.NewStore(clients.DynamoDB, cfg.Tables.Users),
		Publisher:   publisher,
		NotifyToken: cfg.API.NotifyToken,
	}
}

// runLocal serves r until SIGINT/SIGTERM, then drains in-flight requests.
func runLocal(r *gin.Engine, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("running local server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Printf("shutting down local server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.Region)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	r := setupRouter(buildHandlerConfig(cfg, clients), cfg.API.RunLocal)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.API.RunLocal {
		if err := runLocal(r, cfg.API.Addr); err != nil {
			log.Fatalf("local server failed: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
