package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Numbering schemes.
const (
	NumberSchemeSequential = "sequential"
	NumberSchemeDaily      = "daily"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	DBAutoMigrate      bool

	Invoice InvoiceConfig
	Webhook WebhookConfig

	IdempotencyTTL          time.Duration
	PaymentWebhookReplayTTL time.Duration
	RateLimitPerMinute      int
	LoginRateLimitPerMinute int
	BodyLimitBytes          int64
	SecurityHeadersEnabled  bool
	AuditEnabled            bool
}

// InvoiceConfig controls invoice numbering and validation.
type InvoiceConfig struct {
	NumberScheme  string
	NumberPrefix  string
	RequireItems  bool
	NumberLockTTL time.Duration
}

// WebhookConfig controls outbound webhook delivery.
type WebhookConfig struct {
	Timeout          time.Duration
	AllowInsecureTLS bool
}

// Load reads configuration from environment variables and optional .env files.
// Only DATABASE_URL is mandatory here; the HTTP server additionally calls
// RequireServer.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "60m"),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE"), false),
		Invoice: InvoiceConfig{
			NumberScheme:  strings.ToLower(valueOrDefault(k.String("INVOICE_NUMBER_SCHEME"), NumberSchemeSequential)),
			NumberPrefix:  strings.ToUpper(valueOrDefault(k.String("INVOICE_NUMBER_PREFIX"), "INV")),
			RequireItems:  parseBool(k.String("INVOICE_REQUIRE_ITEMS"), false),
			NumberLockTTL: parseDuration(k.String("INVOICE_NUMBER_LOCK_TTL"), "5s"),
		},
		Webhook: WebhookConfig{
			Timeout:          parseDuration(k.String("WEBHOOK_TIMEOUT"), "5s"),
			AllowInsecureTLS: parseBool(k.String("WEBHOOK_ALLOW_INSECURE_TLS"), false),
		},
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		PaymentWebhookReplayTTL: parseDuration(k.String("PAYMENT_WEBHOOK_REPLAY_TTL"), "72h"),
		RateLimitPerMinute:      parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		LoginRateLimitPerMinute: parseInt(k.String("LOGIN_RATE_LIMIT_PER_MINUTE"), 10),
		BodyLimitBytes:          int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeadersEnabled:  parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
		AuditEnabled:            parseBool(k.String("AUDIT_ENABLED"), true),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	switch cfg.Invoice.NumberScheme {
	case NumberSchemeSequential, NumberSchemeDaily:
	default:
		return nil, fmt.Errorf("INVOICE_NUMBER_SCHEME must be %q or %q", NumberSchemeSequential, NumberSchemeDaily)
	}
	if strings.ContainsAny(cfg.Invoice.NumberPrefix, "-% _") {
		return nil, errors.New("INVOICE_NUMBER_PREFIX must not contain '-', '%', '_' or spaces")
	}

	return cfg, nil
}

// RequireServer checks the settings the HTTP server cannot start without.
func (c *Config) RequireServer() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "prod", "production":
		return true
	}
	return false
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
