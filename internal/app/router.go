package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-priceguard/internal/auth"
	"github.com/noah-isme/toko-priceguard/internal/checkout"
	"github.com/noah-isme/toko-priceguard/internal/config"
	"github.com/noah-isme/toko-priceguard/internal/health"
	"github.com/noah-isme/toko-priceguard/internal/obs"
	"github.com/noah-isme/toko-priceguard/internal/ratelimit"
	"github.com/noah-isme/toko-priceguard/internal/security"
)

// RouterConfig collects the handlers mounted on the API router.
type RouterConfig struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Checkout *checkout.Handler
	Health   health.Handler
	Tokens   auth.TokenParser
	Limiter  ratelimit.Allower
	Metrics  *obs.HTTPMetrics
}

// NewRouter builds the chi router for the validation API.
func NewRouter(rc RouterConfig) http.Handler {
	cfg := rc.Config
	logger := rc.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.TracingMiddleware)
	if rc.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: rc.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{HSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", rc.Health.Live)
	r.Get("/health/ready", rc.Health.Ready)

	authMiddleware := auth.Middleware{Tokens: rc.Tokens}
	limits := ratelimit.Handler{
		Limiter: rc.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.BuyerOrIPKey,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable, request allowed")
		},
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/checkout", func(c chi.Router) {
			c.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
			switch {
			case cfg.AuthRequired:
				c.Use(authMiddleware.RequireAuth)
			case rc.Tokens != nil:
				c.Use(authMiddleware.Authenticate)
			}
			c.Use(limits.Middleware)
			c.Post("/validate", rc.Checkout.ValidateCart)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
