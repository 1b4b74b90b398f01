package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "cp_session", cfg.SessionCookie)
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.Equal(t, 15*time.Minute, cfg.Payment.CheckoutTimeout)
	assert.False(t, cfg.Casdoor.Enabled())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BACKEND_URL", "https://api.example.com/api/")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("PAYMENT_KEY_ID", "rzp_test_123")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CASDOOR_ENDPOINT", "https://sso.example")
	t.Setenv("CASDOOR_CLIENT_ID", "portal")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "https://api.example.com/api", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "rzp_test_123", cfg.Payment.KeyID)
	assert.Equal(t, "USD", cfg.Payment.Currency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Casdoor.Enabled())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "BACKEND_TIMEOUT", value: "soon"},
		{name: "negative duration", key: "CHECKOUT_TIMEOUT", value: "-1m"},
		{name: "bad level", key: "LOG_LEVEL", value: "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
