package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAPIEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_URL", "https://shop.example.com/")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_1")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setAPIEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", cfg.API.BaseURL)
	assert.Equal(t, "1", cfg.API.TransactionFee.String())
	assert.Equal(t, "usd", cfg.API.Currency)
	assert.Equal(t, []string{"DE", "US", "NL"}, cfg.API.AllowedCountries)
	assert.Equal(t, []string{"card", "paypal"}, cfg.API.PaymentMethods)
	assert.Equal(t, "https://shop.example.com/api/send", cfg.API.NotifyURL)
	assert.Equal(t, 5*time.Second, cfg.API.NotifyTimeout)
	assert.Equal(t, "stripe", cfg.API.WebhookVerifier)
	assert.Equal(t, "orders", cfg.Tables.Orders)
	assert.Equal(t, "order_items", cfg.Tables.OrderItems)
	assert.Equal(t, 7*24*time.Hour, cfg.Worker.IdempotencyTTL)
	assert.NoError(t, cfg.ValidateAPI())
}

func TestLoad_EnvFile(t *testing.T) {
	setAPIEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TRANSACTION_FEE=2.50\nSES_FROM_ADDRESS=shop@example.com\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("TRANSACTION_FEE")
		os.Unsetenv("SES_FROM_ADDRESS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2.5", cfg.API.TransactionFee.String())
	assert.Equal(t, "shop@example.com", cfg.Worker.SESFromAddress)
	assert.NoError(t, cfg.ValidateWorker())
}

func TestValidateAPI_MissingSecrets(t *testing.T) {
	t.Setenv("BASE_URL", "https://shop.example.com")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateAPI())
}

func TestLoad_BadFee(t *testing.T) {
	setAPIEnv(t)
	t.Setenv("TRANSACTION_FEE", "-1")
	_, err := Load(filepath.Join(t.TempDir(), "none.env"))
	assert.Error(t, err)
}

func TestValidateWorker_RequiresSender(t *testing.T) {
	t.Setenv("SES_FROM_ADDRESS", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateWorker())
}

func TestValidateAPI_QueueRequiresNotifyToken(t *testing.T) {
	setAPIEnv(t)
	t.Setenv("NOTIFY_QUEUE_URL", "https://sqs.eu-central-1.amazonaws.com/123/notify")
	t.Setenv("NOTIFY_TOKEN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	require.Error(t, cfg.ValidateAPI())

	cfg.API.NotifyToken = "shared"
	assert.NoError(t, cfg.ValidateAPI())
}
