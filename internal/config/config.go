// Package config reads process configuration from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Tables names the DynamoDB tables.
type Tables struct {
	Orders      string `validate:"required"`
	OrderItems  string `validate:"required"`
	Products    string `validate:"required"`
	Users       string `validate:"required"`
	Idempotency string `validate:"required"`
}

// API configures cmd/api.
type API struct {
	BaseURL             string   `validate:"required,url"`
	StripeSecretKey     string   `validate:"required"`
	StripeWebhookSecret string   `validate:"required"`
	WebhookVerifier     string   `validate:"oneof=stripe hmac"`
	JWTSecret           string   `validate:"required"`
	AdminEmail          string   `validate:"omitempty,email"`
	Currency            string   `validate:"required,len=3"`
	AllowedCountries    []string `validate:"required,min=1,dive,len=2"`
	PaymentMethods      []string `validate:"required,min=1"`
	TransactionFee      decimal.Decimal
	NotifyURL           string `validate:"required,url"`
	NotifyToken         string        `validate:"required_with=NotifyQueueURL"`
	NotifyTimeout       time.Duration `validate:"gt=0"`
	NotifyQueueURL      string        `validate:"omitempty,url"`
	RunLocal            bool
	Addr                string `validate:"required"`
}

// Worker configures cmd/worker.
type Worker struct {
	SESFromAddress string        `validate:"required,email"`
	IdempotencyTTL time.Duration `validate:"gt=0"`
}

// Config is the full process configuration.
type Config struct {
	Region           string
	EndpointOverride string
	MetricsNamespace string
	Tables           Tables
	API              API
	Worker           Worker
}

// Load reads .env files (missing files are ignored) and then the
// environment. Variables already set in the environment win over .env files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	fee, err := decimal.NewFromString(getenv("TRANSACTION_FEE", "1.00"))
	if err != nil {
		return nil, fmt.Errorf("TRANSACTION_FEE: %w", err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("TRANSACTION_FEE: must not be negative, got %s", fee)
	}
	notifyTimeout, err := time.ParseDuration(getenv("NOTIFY_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("NOTIFY_TIMEOUT: %w", err)
	}
	ttl, err := time.ParseDuration(getenv("IDEMPOTENCY_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("IDEMPOTENCY_TTL: %w", err)
	}
	runLocal, _ := strconv.ParseBool(os.Getenv("RUN_LOCAL"))

	baseURL := strings.TrimRight(os.Getenv("BASE_URL"), "/")
	return &Config{
		Region:           os.Getenv("AWS_REGION"),
		EndpointOverride: os.Getenv("AWS_ENDPOINT_OVERRIDE"),
		MetricsNamespace: getenv("METRICS_NAMESPACE", "DigitalMarketplace"),
		Tables: Tables{
			Orders:      getenv("ORDERS_TABLE", "orders"),
			OrderItems:  getenv("ORDER_ITEMS_TABLE", "order_items"),
			Products:    getenv("PRODUCTS_TABLE", "products"),
			Users:       getenv("USERS_TABLE", "users"),
			Idempotency: getenv("IDEMPOTENCY_TABLE", "idempotency"),
		},
		API: API{
			BaseURL:             baseURL,
			StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			WebhookVerifier:     getenv("WEBHOOK_VERIFIER", "stripe"),
			JWTSecret:           os.Getenv("JWT_SECRET"),
			AdminEmail:          os.Getenv("ADMIN_EMAIL"),
			Currency:            strings.ToLower(getenv("CURRENCY", "usd")),
			AllowedCountries:    splitList(getenv("ALLOWED_COUNTRIES", "DE,US,NL")),
			PaymentMethods:      splitList(getenv("PAYMENT_METHODS", "card,paypal")),
			TransactionFee:      fee,
			NotifyURL:           getenv("NOTIFY_URL", baseURL+"/api/send"),
			NotifyToken:         os.Getenv("NOTIFY_TOKEN"),
			NotifyTimeout:       notifyTimeout,
			NotifyQueueURL:      os.Getenv("NOTIFY_QUEUE_URL"),
			RunLocal:            runLocal,
			Addr:                getenv("ADDR", ":8080"),
		},
		Worker: Worker{
			SESFromAddress: os.Getenv("SES_FROM_ADDRESS"),
			IdempotencyTTL: ttl,
		},
	}, nil
}

// ValidateAPI checks the settings cmd/api needs.
func (c *Config) ValidateAPI() error {
	v := validatorv10.New()
	if err := v.Struct(c.Tables); err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	if err := v.Struct(c.API); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// ValidateWorker checks the settings cmd/worker needs.
func (c *Config) ValidateWorker() error {
	v := validatorv10.New()
	if err := v.Struct(c.Tables); err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	if err := v.Struct(c.Worker); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
