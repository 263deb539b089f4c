package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	ProviderSnap    = "snap"
	ProviderStripe  = "stripe"
	ProviderSandbox = "sandbox"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	LogLevel           string
	HTTPAddr           string
	CORSOrigins        []string
	StorageDriver      string
	MongoURI           string
	MongoDB            string
	PostgresDSN        string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	OutboxEnabled      bool
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	Currency           string
	PaymentProvider    string
	SnapServerKey      string
	SnapProduction     bool
	SandboxReturnURL   string
	StripeSecretKey    string
	StripeWebhookKey   string
	StripeSuccessURL   string
	StripeCancelURL    string
	GatewayTimeout     time.Duration
	JWTSecret          string
	JWTIssuer          string
	TokenTTL           time.Duration
	CheckoutTTL        time.Duration
	ReaperInterval     time.Duration
	PropertyCacheTTL   time.Duration
	PropertyCacheSize  int64
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3UseSSL           bool
}

// Load reads optional .env files and then parses configuration from the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "villabook"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "villabook-notifier"),
		Currency:         strings.ToUpper(getEnv("CURRENCY", "USD")),
		PaymentProvider:  strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderSandbox)),
		SnapServerKey:    os.Getenv("SNAP_SERVER_KEY"),
		SandboxReturnURL: os.Getenv("SANDBOX_RETURN_URL"),
		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSuccessURL: getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		StripeCancelURL:  getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/cart"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        getEnv("JWT_ISSUER", "villabook"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:         getEnv("S3_BUCKET", "villabook-webhooks"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "http://localhost:3000"))

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"IDEMP_TTL", 168 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"GATEWAY_TIMEOUT", 10 * time.Second, &cfg.GatewayTimeout},
		{"TOKEN_TTL", 24 * time.Hour, &cfg.TokenTTL},
		{"CHECKOUT_TTL", 24 * time.Hour, &cfg.CheckoutTTL},
		{"REAPER_INTERVAL", 10 * time.Minute, &cfg.ReaperInterval},
		{"PROPERTY_CACHE_TTL", 30 * time.Second, &cfg.PropertyCacheTTL},
	}
	for _, d := range durations {
		if *d.dst, err = parseDurationEnv(d.key, d.def); err != nil {
			return Config{}, err
		}
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.SnapProduction, err = parseBoolEnv("SNAP_PRODUCTION", false); err != nil {
		return Config{}, err
	}
	if cfg.OutboxEnabled, err = parseBoolEnv("OUTBOX_ENABLED", len(cfg.KafkaBrokers) > 0); err != nil {
		return Config{}, err
	}
	var size int
	if _, err := fmt.Sscan(getEnv("PROPERTY_CACHE_SIZE", "1000"), &size); err != nil || size <= 0 {
		return Config{}, fmt.Errorf("invalid PROPERTY_CACHE_SIZE: %q", os.Getenv("PROPERTY_CACHE_SIZE"))
	}
	cfg.PropertyCacheSize = int64(size)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values each selected driver and provider depends on.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for storage driver %q", c.StorageDriver)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.PaymentProvider {
	case ProviderSandbox:
		if !c.IsDev() {
			return fmt.Errorf("payment provider %q is only allowed in dev, got APP_ENV %q", c.PaymentProvider, c.Env)
		}
	case ProviderSnap:
		if c.SnapServerKey == "" {
			return fmt.Errorf("SNAP_SERVER_KEY is required for payment provider %q", c.PaymentProvider)
		}
	case ProviderStripe:
		if c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required for payment provider %q", c.PaymentProvider)
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	if c.OutboxEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when OUTBOX_ENABLED is set")
	}
	if c.JWTSecret == "" && !c.IsDev() {
		return fmt.Errorf("JWT_SECRET is required outside dev")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("invalid CURRENCY %q", c.Currency)
	}
	return nil
}

// IsDev reports whether the process runs in a local or test environment.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "local", "test":
		return true
	}
	return false
}

// SandboxEnabled reports whether self-signed sandbox payments are accepted.
func (c Config) SandboxEnabled() bool {
	return c.PaymentProvider == ProviderSandbox && c.IsDev()
}

// SandboxServerKey signs sandbox notifications; it falls back to a fixed key in dev.
func (c Config) SandboxServerKey() string {
	if c.SnapServerKey == "" {
		return "villabook-sandbox-key"
	}
	return c.SnapServerKey
}

// Secret returns the JWT signing key, falling back to a fixed key in dev.
func (c Config) Secret() []byte {
	if c.JWTSecret == "" {
		return []byte("villabook-dev-secret")
	}
	return []byte(c.JWTSecret)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
