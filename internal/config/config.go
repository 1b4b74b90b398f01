package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment    string
	Port           string
	LogLevel       slog.Level
	AllowedOrigins []string

	BackendURL     string
	BackendTimeout time.Duration

	RedisURL      string
	SessionTTL    time.Duration
	SessionCookie string
	CookieSecure  bool

	Payment PaymentConfig
	Casdoor CasdoorConfig
	Kafka   KafkaConfig

	RollbarToken string
}

// PaymentConfig carries the checkout widget settings. An empty KeyID is allowed at
// startup; the orchestrator reports it as a configuration error per attempt.
type PaymentConfig struct {
	KeyID           string
	Currency        string
	ScriptURL       string
	MerchantName    string
	ThemeColor      string
	CallTimeout     time.Duration
	CheckoutTimeout time.Duration
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
	RedirectURL  string
}

// Enabled reports whether SSO login should be offered.
func (c CasdoorConfig) Enabled() bool {
	return c.Endpoint != "" && c.ClientID != ""
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	level, err := parseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	durations := map[string]time.Duration{}
	for _, key := range []string{"BACKEND_TIMEOUT", "SESSION_TTL", "PAYMENT_CALL_TIMEOUT", "CHECKOUT_TIMEOUT"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", key)
		}
		durations[key] = d
	}

	backendURL := strings.TrimRight(v.GetString("BACKEND_URL"), "/")
	if backendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}

	cfg := &Config{
		Environment:    v.GetString("ENVIRONMENT"),
		Port:           v.GetString("PORT"),
		LogLevel:       level,
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		BackendURL:     backendURL,
		BackendTimeout: durations["BACKEND_TIMEOUT"],
		RedisURL:       v.GetString("REDIS_URL"),
		SessionTTL:     durations["SESSION_TTL"],
		SessionCookie:  v.GetString("SESSION_COOKIE"),
		CookieSecure:   v.GetBool("COOKIE_SECURE"),
		Payment: PaymentConfig{
			KeyID:           v.GetString("PAYMENT_KEY_ID"),
			Currency:        strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
			ScriptURL:       v.GetString("PAYMENT_SCRIPT_URL"),
			MerchantName:    v.GetString("PAYMENT_MERCHANT_NAME"),
			ThemeColor:      v.GetString("PAYMENT_THEME_COLOR"),
			CallTimeout:     durations["PAYMENT_CALL_TIMEOUT"],
			CheckoutTimeout: durations["CHECKOUT_TIMEOUT"],
		},
		Casdoor: CasdoorConfig{
			Endpoint:     v.GetString("CASDOOR_ENDPOINT"),
			ClientID:     v.GetString("CASDOOR_CLIENT_ID"),
			ClientSecret: v.GetString("CASDOOR_CLIENT_SECRET"),
			Cert:         v.GetString("CASDOOR_CERT"),
			Organization: v.GetString("CASDOOR_ORGANIZATION"),
			Application:  v.GetString("CASDOOR_APPLICATION"),
			RedirectURL:  v.GetString("CASDOOR_REDIRECT_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			Topic:         v.GetString("KAFKA_TOPIC"),
			ConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
		},
		RollbarToken: v.GetString("ROLLBAR_TOKEN"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:8080")
	v.SetDefault("BACKEND_URL", "http://localhost:5000/api")
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("SESSION_COOKIE", "cp_session")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("PAYMENT_CURRENCY", "INR")
	v.SetDefault("PAYMENT_SCRIPT_URL", "https://checkout.razorpay.com/v1/checkout.js")
	v.SetDefault("PAYMENT_MERCHANT_NAME", "Course Portal")
	v.SetDefault("PAYMENT_THEME_COLOR", "#3399cc")
	v.SetDefault("PAYMENT_CALL_TIMEOUT", "15s")
	v.SetDefault("CHECKOUT_TIMEOUT", "15m")
	v.SetDefault("KAFKA_TOPIC", "course-portal.checkout")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "course-portal")
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
