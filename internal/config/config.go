// Package config reads the service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AuthRequired       bool
	CORSAllowedOrigins []string
	DefaultLocale      string
	ShutdownTimeout    time.Duration

	LogFormat          string
	LogLevel           string
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampleRatio float64

	Tolerance           decimal.Decimal
	VATRate             decimal.Decimal
	CraneFee            decimal.Decimal
	UnverifiableCeiling decimal.Decimal
	LookupConcurrency   int

	StoreCacheTTL         time.Duration
	ShippingRulesCacheTTL time.Duration
	StoreBreakerMinReq    int
	StoreBreakerFailRatio float64
	StoreBreakerOpenFor   time.Duration
	StoreRetryAttempts    int
	StoreRetryBase        time.Duration
	StoreQueryTimeout     time.Duration

	RateLimitStrategy string
	RateLimitWindow   time.Duration
	RateLimitMax      int
	BodyLimitBytes    int64

	ReviewQueueEnabled bool
	ReviewQueueName    string
	WorkerConcurrency  int
}

// Load reads configuration from the process environment, after applying any .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	k, err := environment()
	if err != nil {
		return nil, err
	}
	return build(reader{k})
}

// LoadForTests reads the environment with overrides layered on top. An empty override
// removes the variable. The process environment is left untouched.
func LoadForTests(overrides map[string]string) (*Config, error) {
	k, err := environment()
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if value == "" {
			k.Delete(key)
			continue
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}
	return build(reader{k})
}

func environment() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return k, nil
}

func build(r reader) (*Config, error) {
	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		DatabaseURL:        r.str("DATABASE_URL", ""),
		RedisURL:           r.str("REDIS_URL", ""),
		JWTSecret:          r.str("JWT_SECRET", ""),
		JWTIssuer:          r.str("JWT_ISSUER", "toko-api"),
		JWTAudience:        r.str("JWT_AUDIENCE", "toko-clients"),
		AuthRequired:       r.boolean("AUTH_REQUIRED", false),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS"),
		DefaultLocale:      r.str("DEFAULT_LOCALE", "en"),
		ShutdownTimeout:    r.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogFormat:          r.str("OBS_LOG_FORMAT", "json"),
		LogLevel:           r.str("OBS_LOG_LEVEL", "info"),
		TracingExporter:    strings.ToLower(r.str("OBS_TRACING_EXPORTER", "none")),
		OTLPEndpoint:       r.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TracingSampleRatio: r.float("OBS_TRACING_SAMPLE_RATIO", 1),

		Tolerance:           r.decimal("INTEGRITY_TOLERANCE", "0.5"),
		VATRate:             r.decimal("INTEGRITY_VAT_RATE", "0.18"),
		CraneFee:            r.decimal("INTEGRITY_CRANE_FEE", "250"),
		UnverifiableCeiling: r.decimal("INTEGRITY_UNVERIFIABLE_CEILING", "0"),
		LookupConcurrency:   r.integer("INTEGRITY_LOOKUP_CONCURRENCY", 8),

		StoreCacheTTL:         r.duration("STORE_CACHE_TTL", 30*time.Second),
		ShippingRulesCacheTTL: r.duration("SHIPPING_RULES_CACHE_TTL", time.Minute),
		StoreBreakerMinReq:    r.integer("STORE_BREAKER_MIN_REQUESTS", 20),
		StoreBreakerFailRatio: r.float("STORE_BREAKER_FAILURE_RATIO", 0.5),
		StoreBreakerOpenFor:   r.duration("STORE_BREAKER_OPEN_FOR", 15*time.Second),
		StoreRetryAttempts:    r.integer("STORE_RETRY_ATTEMPTS", 2),
		StoreRetryBase:        r.duration("STORE_RETRY_BASE", 50*time.Millisecond),
		StoreQueryTimeout:     r.duration("STORE_QUERY_TIMEOUT", 2*time.Second),

		RateLimitStrategy: strings.ToLower(r.str("RATE_LIMIT_STRATEGY", "sliding")),
		RateLimitWindow:   r.duration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:      r.integer("RATE_LIMIT_MAX", 60),
		BodyLimitBytes:    int64(r.integer("BODY_LIMIT_BYTES", 1<<20)),

		ReviewQueueEnabled: r.boolean("REVIEW_QUEUE_ENABLED", true),
		ReviewQueueName:    r.str("REVIEW_QUEUE_NAME", "integrity-review"),
		WorkerConcurrency:  r.integer("WORKER_CONCURRENCY", 4),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("DATABASE_URL is required")
	case c.RedisURL == "":
		return errors.New("REDIS_URL is required")
	case !c.Tolerance.IsPositive():
		return errors.New("INTEGRITY_TOLERANCE must be positive")
	case !c.VATRate.IsPositive():
		return errors.New("INTEGRITY_VAT_RATE must be positive")
	case c.AuthRequired && c.JWTSecret == "":
		return errors.New("AUTH_REQUIRED needs JWT_SECRET")
	}
	switch c.RateLimitStrategy {
	case "sliding", "fixed", "off":
		return nil
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_STRATEGY %q", c.RateLimitStrategy)
	}
}

// HTTPAddr is the listen address derived from PORT.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	switch {
	case port == "":
		return ":8080"
	case strings.HasPrefix(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// reader falls back to the default whenever a variable is blank or malformed.
type reader struct{ k *koanf.Koanf }

func (r reader) raw(key string) string { return strings.TrimSpace(r.k.String(key)) }

func (r reader) str(key, def string) string {
	if v := r.raw(key); v != "" {
		return v
	}
	return def
}

func (r reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.raw(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r reader) duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(r.raw(key)); err == nil {
		return d
	}
	return def
}

func (r reader) decimal(key, def string) decimal.Decimal {
	if d, err := decimal.NewFromString(r.raw(key)); err == nil {
		return d
	}
	return decimal.RequireFromString(def)
}

func (r reader) integer(key string, def int) int {
	if n, err := strconv.Atoi(r.raw(key)); err == nil {
		return n
	}
	return def
}

func (r reader) float(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(r.raw(key), 64); err == nil {
		return f
	}
	return def
}

func (r reader) boolean(key string, def bool) bool {
	switch strings.ToLower(r.raw(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
