package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Checkout.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.Checkout.AttemptTimeout)
	assert.Equal(t, 3, cfg.Checkout.MaxAttempts)
	assert.Equal(t, 5, cfg.Checkout.LowStockThreshold)
	assert.Equal(t, 1.0, cfg.Observ.TraceSampleRatio)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CHECKOUT_LOCK_TIMEOUT_MS", "250")
	t.Setenv("CHECKOUT_MAX_ATTEMPTS", "5")
	t.Setenv("STOCK_CACHE_TTL_SECONDS", "60")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Checkout.LockTimeout)
	assert.Equal(t, 5, cfg.Checkout.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Redis.StockCacheTTL)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 0.25, cfg.Observ.TraceSampleRatio)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CHECKOUT_MAX_ATTEMPTS", "many")
	t.Setenv("TRACE_SAMPLE_RATIO", "half")

	cfg := Load()

	assert.Equal(t, 3, cfg.Checkout.MaxAttempts)
	assert.Equal(t, 1.0, cfg.Observ.TraceSampleRatio)
}
