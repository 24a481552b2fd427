package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-priceguard/internal/catalog"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
	"github.com/noah-isme/toko-priceguard/internal/pgxfake"
	"github.com/noah-isme/toko-priceguard/internal/resilience"
)

type fakeDB struct {
	products   map[string][]any
	variations map[int64][][]any
	err        error
	queries    []string
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.queries = append(db.queries, sql)
	if db.err != nil {
		return pgxfake.Row{Err: db.err}
	}
	row, ok := db.products[fmt.Sprint(args[0])]
	if !ok {
		return pgxfake.NoRows()
	}
	return pgxfake.Row{Values: row}
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.queries = append(db.queries, sql)
	return pgxfake.NewRows(db.variations[args[0].(int64)]...), nil
}

func newFakeDB() *fakeDB {
	sale := "80.00"
	return &fakeDB{
		products: map[string][]any{
			"P-200": {int64(7), "P-200", "Designer Paint", "100.00", sale, "paints"},
			"7":     {int64(7), "P-200", "Designer Paint", "100.00", sale, "paints"},
			"W-150": {int64(9), "W-150", "Wall Powder", "150.00", nil, "powders"},
			"BAD":   {int64(11), "BAD", "Broken", "1.00", nil, "lumber"},
		},
		variations: map[int64][][]any{
			7: {
				{"Color", "Red", "10.00"},
				{"Color", "White", "0.00"},
				{"Finish", "Matte", "-5.00"},
			},
		},
	}
}

func TestStoreProductBySKU(t *testing.T) {
	db := newFakeDB()
	store := catalog.NewStore(db, nil)

	p, err := store.ProductBySKU(context.Background(), "P-200")
	require.NoError(t, err)
	require.Equal(t, int64(7), p.ID)
	require.Equal(t, integrity.GroupPaints, p.MaterialGroup)
	require.True(t, p.EffectivePrice().Equal(decimal.NewFromInt(80)))
	require.Len(t, p.Variations, 2)
	require.Equal(t, "Color", p.Variations[0].Name)
	require.Len(t, p.Variations[0].Values, 2)
	surcharge, ok := p.Surcharge("Finish", "Matte")
	require.True(t, ok)
	require.True(t, surcharge.Equal(decimal.NewFromInt(-5)))
}

func TestStoreProductByIDWithoutSale(t *testing.T) {
	db := newFakeDB()
	db.products["9"] = db.products["W-150"]
	p, err := catalog.NewStore(db, nil).ProductByID(context.Background(), 9)
	require.NoError(t, err)
	require.False(t, p.SalePrice.Valid)
	require.Empty(t, p.Variations)
}

func TestStoreMapsNoRowsToNotFound(t *testing.T) {
	_, err := catalog.NewStore(newFakeDB(), nil).ProductBySKU(context.Background(), "NOPE")
	require.ErrorIs(t, err, integrity.ErrNotFound)
}

func TestStoreMatchesSKUExactly(t *testing.T) {
	store := catalog.NewStore(newFakeDB(), nil)
	for _, sku := range []string{"p-200", "P-200 ", "p-200 - Red"} {
		_, err := store.ProductBySKU(context.Background(), sku)
		require.ErrorIs(t, err, integrity.ErrNotFound, sku)
	}
}

func TestStoreRejectsUnknownMaterialGroup(t *testing.T) {
	_, err := catalog.NewStore(newFakeDB(), nil).ProductBySKU(context.Background(), "BAD")
	require.Error(t, err)
	require.NotErrorIs(t, err, integrity.ErrNotFound)
}

func TestStoreWrapsDriverErrors(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("conn refused")
	_, err := catalog.NewStore(db, nil).ProductBySKU(context.Background(), "P-200")
	require.ErrorContains(t, err, "conn refused")
	require.NotErrorIs(t, err, integrity.ErrNotFound)
}

func TestStoreBreakerIgnoresMissingProducts(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	policy := &resilience.Policy{
		Breaker:     breaker,
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		Expected:    func(err error) bool { return errors.Is(err, integrity.ErrNotFound) },
	}
	db := newFakeDB()
	store := catalog.NewStore(db, policy)

	_, err := store.ProductBySKU(context.Background(), "NOPE")
	require.ErrorIs(t, err, integrity.ErrNotFound)
	require.Equal(t, resilience.Closed, breaker.State())

	db.err = errors.New("too many connections")
	_, err = store.ProductBySKU(context.Background(), "P-200")
	require.Error(t, err)
	require.Equal(t, resilience.Open, breaker.State())

	db.err = nil
	_, err = store.ProductBySKU(context.Background(), "P-200")
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
}
