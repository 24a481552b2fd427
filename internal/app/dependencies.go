// Package app composes the validation service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/noah-isme/toko-priceguard/internal/auth"
	"github.com/noah-isme/toko-priceguard/internal/cache"
	"github.com/noah-isme/toko-priceguard/internal/catalog"
	"github.com/noah-isme/toko-priceguard/internal/checkout"
	"github.com/noah-isme/toko-priceguard/internal/config"
	"github.com/noah-isme/toko-priceguard/internal/entitlement"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
	"github.com/noah-isme/toko-priceguard/internal/obs"
	"github.com/noah-isme/toko-priceguard/internal/ratelimit"
	"github.com/noah-isme/toko-priceguard/internal/resilience"
	"github.com/noah-isme/toko-priceguard/internal/review"
	"github.com/noah-isme/toko-priceguard/internal/shipping"
)

// Store names used for breakers, cache metrics and readiness output.
const (
	StoreCatalog      = "catalog"
	StoreEntitlements = "entitlements"
	StoreShipping     = "shipping"
)

// Dependencies enumerates the services shared by the API process.
type Dependencies struct {
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Breakers map[string]*resilience.Breaker
	Engine   *integrity.Engine
	Checkout *checkout.Service
	Reviews  *review.Client
	Tokens   *auth.Tokens
	Limiter  ratelimit.Allower
}

// OpenDatabase connects a pgx pool with query tracing enabled.
func OpenDatabase(ctx context.Context, cfg *config.Config, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis connects a Redis client instrumented with OpenTelemetry. A failed ping is
// logged rather than fatal: caches and rate limits degrade without Redis.
func OpenRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, caches disabled until it recovers")
	}
	return client, nil
}

// NewStorePolicy builds the guard applied to every query against one backing store.
func NewStorePolicy(cfg *config.Config, store string, logger zerolog.Logger) *resilience.Policy {
	breaker := resilience.NewBreaker(cfg.StoreBreakerMinReq, cfg.StoreBreakerFailRatio, cfg.StoreBreakerOpenFor).
		WithTarget(store).
		WithLogger(logger)
	return &resilience.Policy{
		Breaker:     breaker,
		MaxAttempts: cfg.StoreRetryAttempts,
		BaseBackoff: cfg.StoreRetryBase,
		Jitter:      0.2,
		Timeout:     cfg.StoreQueryTimeout,
		Expected:    func(err error) bool { return errors.Is(err, integrity.ErrNotFound) },
	}
}

// NewLimiter selects the rate limit strategy. A nil Allower disables rate limiting.
func NewLimiter(cfg *config.Config, client redis.UniversalClient) (ratelimit.Allower, error) {
	const prefix = "priceguard:rl:"
	switch cfg.RateLimitStrategy {
	case "off":
		return nil, nil
	case "fixed":
		return ratelimit.NewFixedLimiter(client, prefix)
	default:
		return ratelimit.SlidingLimiter{Client: client, Prefix: prefix}, nil
	}
}

// EngineSources are the stores the engine reads from.
type EngineSources struct {
	Catalog      integrity.Catalog
	Entitlements integrity.Entitlements
	Shipping     integrity.ShippingRules
}

// NewEngine builds the integrity engine from configuration.
func NewEngine(cfg *config.Config, src EngineSources) (*integrity.Engine, error) {
	locale, err := language.Parse(cfg.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("parse DEFAULT_LOCALE: %w", err)
	}
	return integrity.NewEngine(integrity.Config{
		Catalog:             src.Catalog,
		Entitlements:        src.Entitlements,
		Shipping:            src.Shipping,
		Tolerance:           cfg.Tolerance,
		VATRate:             cfg.VATRate,
		CraneFee:            cfg.CraneFee,
		UnverifiableCeiling: cfg.UnverifiableCeiling,
		LookupConcurrency:   cfg.LookupConcurrency,
		Locale:              locale,
	})
}

// Build wires stores, caches, the engine and the checkout service.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	pool, err := OpenDatabase(ctx, cfg, "toko-priceguard")
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	deps := &Dependencies{DB: pool, Redis: rdb, Breakers: map[string]*resilience.Breaker{}}

	policy := func(store string) *resilience.Policy {
		p := NewStorePolicy(cfg, store, logger)
		deps.Breakers[store] = p.Breaker
		return p
	}
	storeCache := cache.New(rdb, cfg.StoreCacheTTL)
	src := EngineSources{
		Catalog:      catalog.NewCached(catalog.NewStore(pool, policy(StoreCatalog)), storeCache, logger),
		Entitlements: entitlement.NewCached(entitlement.NewStore(pool, policy(StoreEntitlements)), storeCache, logger),
		Shipping:     shipping.NewCached(shipping.NewStore(pool, policy(StoreShipping)), cache.New(rdb, cfg.ShippingRulesCacheTTL), logger),
	}
	if deps.Engine, err = NewEngine(cfg, src); err != nil {
		deps.Close()
		return nil, err
	}

	var reviews checkout.ReviewQueue
	if cfg.ReviewQueueEnabled {
		if deps.Reviews, err = review.NewClient(cfg.RedisURL, cfg.ReviewQueueName); err != nil {
			deps.Close()
			return nil, fmt.Errorf("init review queue: %w", err)
		}
		reviews = deps.Reviews
	}
	deps.Checkout = checkout.NewService(checkout.ServiceConfig{
		Engine:  deps.Engine,
		Reviews: reviews,
		Logger:  logger.With().Str("component", "checkout").Logger(),
	})

	if cfg.JWTSecret != "" {
		deps.Tokens, err = auth.NewTokens(cfg.JWTSecret, auth.TokenValidator{Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
		if err != nil {
			deps.Close()
			return nil, err
		}
	} else {
		logger.Warn().Msg("JWT_SECRET not set, every request is validated anonymously")
	}

	if deps.Limiter, err = NewLimiter(cfg, rdb); err != nil {
		deps.Close()
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	return deps, nil
}

// Close releases network resources held by the dependencies.
func (d *Dependencies) Close() {
	if d.Reviews != nil {
		_ = d.Reviews.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
