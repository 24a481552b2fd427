package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-priceguard/internal/auth"
	"github.com/noah-isme/toko-priceguard/internal/checkout"
	"github.com/noah-isme/toko-priceguard/internal/config"
	"github.com/noah-isme/toko-priceguard/internal/health"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
	"github.com/noah-isme/toko-priceguard/internal/obs"
)

type fixedCatalog map[string]integrity.CatalogProduct

func (c fixedCatalog) ProductBySKU(_ context.Context, sku string) (integrity.CatalogProduct, error) {
	if p, ok := c[sku]; ok {
		return p, nil
	}
	return integrity.CatalogProduct{}, integrity.ErrNotFound
}

func (fixedCatalog) ProductByID(context.Context, int64) (integrity.CatalogProduct, error) {
	return integrity.CatalogProduct{}, integrity.ErrNotFound
}

type fixedEntitlements map[string]integrity.BuyerEntitlement

func (f fixedEntitlements) BuyerEntitlement(_ context.Context, buyerID string) (integrity.BuyerEntitlement, error) {
	if e, ok := f[buyerID]; ok {
		return e, nil
	}
	return integrity.BuyerEntitlement{}, integrity.ErrNotFound
}

func (fixedEntitlements) AgentProfile(context.Context, string) (integrity.AgentProfile, error) {
	return integrity.AgentProfile{}, integrity.ErrNotFound
}

type fixedRules []integrity.ShippingRule

func (f fixedRules) ShippingRules(context.Context) ([]integrity.ShippingRule, error) { return f, nil }

type okChecker struct{}

func (okChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (okChecker) PingRedis(context.Context, time.Duration) error { return nil }

func testConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()
	env := map[string]string{
		"DATABASE_URL":        "postgres://localhost/priceguard",
		"REDIS_URL":           "redis://localhost:6379/0",
		"RATE_LIMIT_STRATEGY": "sliding",
		"RATE_LIMIT_MAX":      "2",
		"DEFAULT_LOCALE":      "en",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	return cfg
}

type testServer struct {
	handler http.Handler
	tokens  *auth.Tokens
}

func newTestServer(t *testing.T, cfg *config.Config) testServer {
	t.Helper()
	engine, err := NewEngine(cfg, EngineSources{
		Catalog: fixedCatalog{
			"P-100": {ID: 1, SKU: "P-100", Name: "Interior Paint 10L", BasePrice: decimal.NewFromInt(100), MaterialGroup: integrity.GroupPaints},
		},
		Entitlements: fixedEntitlements{
			"buyer-10": {BuyerID: "buyer-10", ProductDiscounts: map[string]decimal.Decimal{"P-100": decimal.NewFromInt(10)}},
		},
		Shipping: fixedRules{
			{Group: integrity.GroupPaints, MinimumOrderValue: decimal.NewFromInt(500), TransportationFee: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter, err := NewLimiter(cfg, rdb)
	require.NoError(t, err)

	tokens, err := auth.NewTokens("router-secret", auth.TokenValidator{Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
	require.NoError(t, err)

	svc := checkout.NewService(checkout.ServiceConfig{Engine: engine, Logger: zerolog.Nop()})
	handler := NewRouter(RouterConfig{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Checkout: checkout.NewHandler(svc),
		Health:   health.Handler{Checker: okChecker{}},
		Tokens:   tokens,
		Limiter:  limiter,
		Metrics:  obs.NewHTTPMetrics("priceguard_test", prometheus.NewRegistry()),
	})
	return testServer{handler: handler, tokens: tokens}
}

const routerCart = `{"lines":[
	{"catalogNumber":"P-100","quantity":2,"unitPrice":"100"},
	{"catalogNumber":"SHIPPING","quantity":1,"unitPrice":"50"},
	{"catalogNumber":"VAT","quantity":1,"unitPrice":"45"}
]}`

func (s testServer) post(body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterValidatesCart(t *testing.T) {
	srv := newTestServer(t, testConfig(t, nil))
	rec := srv.post(routerCart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"accepted":true`)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
}

func TestRouterAppliesBuyerDiscountFromToken(t *testing.T) {
	srv := newTestServer(t, testConfig(t, nil))
	token, err := srv.tokens.Sign("buyer-10", time.Hour)
	require.NoError(t, err)

	discounted := `{"lines":[
		{"catalogNumber":"P-100","quantity":2,"unitPrice":"90"},
		{"catalogNumber":"SHIPPING","quantity":1,"unitPrice":"50"},
		{"catalogNumber":"VAT","quantity":1,"unitPrice":"41.40"}
	]}`
	rec := srv.post(discounted, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.post(discounted)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRouterRejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t, testConfig(t, nil))
	rec := srv.post(routerCart, func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-token") })
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRequiresTokenWhenConfigured(t *testing.T) {
	srv := newTestServer(t, testConfig(t, map[string]string{"AUTH_REQUIRED": "true", "JWT_SECRET": "router-secret"}))
	rec := srv.post(routerCart)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "UNAUTHORIZED")

	token, err := srv.tokens.Sign("buyer-anon", time.Hour)
	require.NoError(t, err)
	rec = srv.post(routerCart, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouterRateLimitsPerClient(t *testing.T) {
	srv := newTestServer(t, testConfig(t, nil))
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, srv.post(routerCart).Code)
	}
	rec := srv.post(routerCart)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")

	other := srv.post(routerCart, func(r *http.Request) { r.RemoteAddr = "192.0.2.99:5555" })
	require.Equal(t, http.StatusOK, other.Code)
}

func TestRouterEnforcesBodyLimit(t *testing.T) {
	srv := newTestServer(t, testConfig(t, map[string]string{"BODY_LIMIT_BYTES": "64"}))
	rec := srv.post(routerCart)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, testConfig(t, map[string]string{"RATE_LIMIT_STRATEGY": "off"}))
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestNewLimiterStrategies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	off, err := NewLimiter(testConfig(t, map[string]string{"RATE_LIMIT_STRATEGY": "off"}), rdb)
	require.NoError(t, err)
	require.Nil(t, off)

	fixed, err := NewLimiter(testConfig(t, map[string]string{"RATE_LIMIT_STRATEGY": "fixed"}), rdb)
	require.NoError(t, err)
	allowed, remaining, _, err := fixed.Allow(context.Background(), "k", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 2, remaining)
}

func TestNewStorePolicyTreatsNotFoundAsHealthy(t *testing.T) {
	cfg := testConfig(t, map[string]string{"STORE_BREAKER_MIN_REQUESTS": "1"})
	policy := NewStorePolicy(cfg, StoreCatalog, zerolog.Nop())
	require.True(t, policy.Expected(integrity.ErrNotFound))
	require.False(t, policy.Expected(context.DeadlineExceeded))
	require.Equal(t, cfg.StoreRetryAttempts, policy.MaxAttempts)
}
