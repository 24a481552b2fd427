package entitlement_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-priceguard/internal/cache"
	"github.com/noah-isme/toko-priceguard/internal/entitlement"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
	"github.com/noah-isme/toko-priceguard/internal/pgxfake"
)

type fakeDB struct {
	buyers    map[string]string
	discounts map[string][][]any
	agents    map[string]string
	err       error
	calls     int
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.calls++
	if db.err != nil {
		return pgxfake.Row{Err: db.err}
	}
	id := args[0].(string)
	if pct, ok := db.agents[id]; ok && isAgentQuery(sql) {
		return pgxfake.Row{Values: []any{id, pct}}
	}
	if agent, ok := db.buyers[id]; ok && !isAgentQuery(sql) {
		return pgxfake.Row{Values: []any{agent}}
	}
	return pgxfake.NoRows()
}

func (db *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.calls++
	return pgxfake.NewRows(db.discounts[args[0].(string)]...), nil
}

func isAgentQuery(sql string) bool {
	return strings.Contains(sql, "FROM agents")
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		buyers: map[string]string{"buyer-1": "agent-5", "buyer-2": ""},
		discounts: map[string][][]any{
			"buyer-1": {{"P-100", "10.00"}, {"4242", "2.50"}},
		},
		agents: map[string]string{"agent-5": "5.00"},
	}
}

func TestBuyerEntitlementLoadsDiscountsAndAgent(t *testing.T) {
	ent, err := entitlement.NewStore(newFakeDB(), nil).BuyerEntitlement(context.Background(), "buyer-1")
	require.NoError(t, err)
	require.Equal(t, "agent-5", ent.AgentID)
	require.True(t, ent.ProductDiscounts["P-100"].Equal(decimal.NewFromInt(10)))
	require.True(t, ent.DiscountFor(integrity.CatalogProduct{ID: 4242, SKU: "LEGACY-4242"}).Equal(decimal.RequireFromString("2.5")))
}

func TestBuyerEntitlementWithoutDiscounts(t *testing.T) {
	ent, err := entitlement.NewStore(newFakeDB(), nil).BuyerEntitlement(context.Background(), "buyer-2")
	require.NoError(t, err)
	require.Empty(t, ent.AgentID)
	require.Empty(t, ent.ProductDiscounts)
}

func TestUnknownBuyerAndAgentAreNotFound(t *testing.T) {
	store := entitlement.NewStore(newFakeDB(), nil)
	_, err := store.BuyerEntitlement(context.Background(), "ghost")
	require.ErrorIs(t, err, integrity.ErrNotFound)
	_, err = store.AgentProfile(context.Background(), "agent-missing")
	require.ErrorIs(t, err, integrity.ErrNotFound)
}

func TestAgentProfile(t *testing.T) {
	agent, err := entitlement.NewStore(newFakeDB(), nil).AgentProfile(context.Background(), "agent-5")
	require.NoError(t, err)
	require.True(t, agent.CartDiscountPct.Equal(decimal.NewFromInt(5)))
}

func TestCachedEntitlements(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := newFakeDB()
	cached := entitlement.NewCached(entitlement.NewStore(db, nil), cache.New(client, time.Minute), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ent, err := cached.BuyerEntitlement(ctx, "buyer-1")
		require.NoError(t, err)
		require.True(t, ent.ProductDiscounts["P-100"].Equal(decimal.NewFromInt(10)))
		_, err = cached.AgentProfile(ctx, "agent-missing")
		require.ErrorIs(t, err, integrity.ErrNotFound)
	}
	require.Equal(t, 3, db.calls)

	db.err = errors.New("db down")
	_, err := cached.BuyerEntitlement(ctx, "buyer-1")
	require.NoError(t, err)
}
