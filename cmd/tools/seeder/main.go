package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-priceguard/internal/auth"
	"github.com/noah-isme/toko-priceguard/internal/cache"
	"github.com/noah-isme/toko-priceguard/internal/config"
	"github.com/noah-isme/toko-priceguard/internal/migrations"
	"github.com/noah-isme/toko-priceguard/internal/obs"
)

type product struct {
	SKU       string
	Name      string
	BasePrice string
	SalePrice *string
	Group     string
	Variants  []variant
}

type variant struct {
	Axis      string
	Label     string
	Surcharge string
}

func ptr(s string) *string { return &s }

var products = []product{
	{SKU: "P-100", Name: "Interior Paint 10L", BasePrice: "100", Group: "paints", Variants: []variant{
		{"Color", "White", "0"}, {"Color", "Red", "15"}, {"Color", "Anthracite", "22.5"},
		{"Finish", "Matte", "0"}, {"Finish", "Satin", "8"},
	}},
	{SKU: "P-300", Name: "Exterior Paint 18L", BasePrice: "240", SalePrice: ptr("219.9"), Group: "paints", Variants: []variant{
		{"Color", "White", "0"}, {"Color", "Sand", "12"},
	}},
	{SKU: "G-200", Name: "Tile Adhesive 25kg", BasePrice: "45", Group: "powders"},
	{SKU: "G-210", Name: "Gypsum Plaster 30kg", BasePrice: "38", SalePrice: ptr("0"), Group: "powders"},
	{SKU: "TRACK", Name: "Drywall Track", BasePrice: "18", Group: "gypsum_tracks", Variants: []variant{
		{"Length", "3M", "0"}, {"Length", "4M", "6"},
		{"Coating", "Galvanized", "2.5"},
	}},
}

var (
	sampleBuyers = []string{"buyer-discount", "buyer-agent", "buyer-dormant"}
	sampleAgents = []string{"agent-north", "agent-dormant"}
)

var shippingRules = [][3]string{
	{"paints", "500", "50"},
	{"powders", "500", "50"},
	{"gypsum_tracks", "1000", "120"},
}

func main() {
	applySchema := flag.Bool("migrate", false, "apply pending migrations before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	if *applySchema {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	var productIDs []int64
	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var err error
		productIDs, err = seed(ctx, tx, logger)
		return err
	}); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}
	logger.Info().Int("products", len(products)).Msg("seeding completed")

	if err := invalidateCache(ctx, cfg.RedisURL, productIDs); err != nil {
		logger.Warn().Err(err).Msg("cached store entries not invalidated, they expire with STORE_CACHE_TTL")
	}

	if cfg.JWTSecret == "" {
		return
	}
	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.TokenValidator{Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
	if err != nil {
		logger.Error().Err(err).Msg("init tokens")
		return
	}
	for _, buyer := range sampleBuyers {
		token, err := tokens.Sign(buyer, 24*time.Hour)
		if err != nil {
			logger.Error().Err(err).Str("buyer_id", buyer).Msg("sign sample token")
			continue
		}
		logger.Info().Str("buyer_id", buyer).Str("token", token).Msg("sample buyer token")
	}
}

// invalidateCache drops every cached record the seed may have changed.
func invalidateCache(ctx context.Context, redisURL string, productIDs []int64) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)
	defer client.Close()

	keys := []string{cache.KeyShippingRules()}
	for _, p := range products {
		keys = append(keys, cache.KeyProductSKU(p.SKU))
	}
	for _, id := range productIDs {
		keys = append(keys, cache.KeyProductID(id))
	}
	for _, b := range sampleBuyers {
		keys = append(keys, cache.KeyBuyerEntitlement(b))
	}
	for _, a := range sampleAgents {
		keys = append(keys, cache.KeyAgent(a))
	}
	return cache.New(client, time.Minute).Delete(ctx, keys...)
}

func seed(ctx context.Context, tx pgx.Tx, logger zerolog.Logger) ([]int64, error) {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO products (sku, name, base_price, sale_price, material_group)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5)
			ON CONFLICT (upper(sku)) DO UPDATE
			SET name = EXCLUDED.name, base_price = EXCLUDED.base_price,
			    sale_price = EXCLUDED.sale_price, material_group = EXCLUDED.material_group,
			    active = TRUE, updated_at = now()
			RETURNING id`, p.SKU, p.Name, p.BasePrice, p.SalePrice, p.Group).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM product_variations WHERE product_id = $1`, id)
		for i, v := range p.Variants {
			batch.Queue(`
				INSERT INTO product_variations (product_id, axis, label, surcharge, position)
				VALUES ($1, $2, $3, $4::numeric, $5)`, id, v.Axis, v.Label, v.Surcharge, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, err
		}
		logger.Debug().Str("sku", p.SKU).Int64("id", id).Int("variations", len(p.Variants)).Msg("product seeded")
	}

	batch := &pgx.Batch{}
	for _, r := range shippingRules {
		batch.Queue(`
			INSERT INTO shipping_rules (material_group, minimum_order_value, transportation_fee)
			VALUES ($1, $2::numeric, $3::numeric)
			ON CONFLICT (material_group) DO UPDATE
			SET minimum_order_value = EXCLUDED.minimum_order_value,
			    transportation_fee = EXCLUDED.transportation_fee`, r[0], r[1], r[2])
	}
	batch.Queue(`
		INSERT INTO agents (id, name, cart_discount_pct)
		VALUES ('agent-north', 'North Region Agent', 5), ('agent-dormant', 'Dormant Agent', 10)
		ON CONFLICT (id) DO UPDATE SET cart_discount_pct = EXCLUDED.cart_discount_pct`)
	batch.Queue(`UPDATE agents SET active = FALSE WHERE id = 'agent-dormant'`)
	batch.Queue(`
		INSERT INTO buyers (id, agent_id)
		VALUES ('buyer-discount', NULL), ('buyer-agent', 'agent-north'), ('buyer-dormant', 'agent-dormant')
		ON CONFLICT (id) DO UPDATE SET agent_id = EXCLUDED.agent_id`)
	batch.Queue(`
		INSERT INTO buyer_product_discounts (buyer_id, product_key, discount_pct)
		VALUES ('buyer-discount', 'P-100', 10), ('buyer-discount', 'G-200', 5), ('buyer-agent', 'TRACK', 3)
		ON CONFLICT (buyer_id, product_key) DO UPDATE SET discount_pct = EXCLUDED.discount_pct`)
	return ids, tx.SendBatch(ctx, batch).Close()
}
