// Package catalog resolves authoritative product prices and variation surcharges from Postgres.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-priceguard/internal/integrity"
	"github.com/noah-isme/toko-priceguard/internal/resilience"
)

// Querier is the subset of pgxpool.Pool used by the store.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	productColumns = `id, sku, name, base_price::text, sale_price::text, material_group`

	queryProductBySKU = `SELECT ` + productColumns + `
FROM products
WHERE sku = $1 AND active`

	queryProductByID = `SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND active`

	queryVariations = `SELECT axis, label, surcharge::text
FROM product_variations
WHERE product_id = $1
ORDER BY axis, position, label`
)

// Store implements integrity.Catalog on top of Postgres.
type Store struct {
	db     Querier
	policy *resilience.Policy
}

// NewStore constructs a catalog store. policy may be nil.
func NewStore(db Querier, policy *resilience.Policy) *Store {
	return &Store{db: db, policy: policy}
}

// ProductBySKU resolves an active product whose SKU equals sku exactly.
func (s *Store) ProductBySKU(ctx context.Context, sku string) (integrity.CatalogProduct, error) {
	return resilience.Do(ctx, s.policy, func(ctx context.Context) (integrity.CatalogProduct, error) {
		return s.load(ctx, queryProductBySKU, sku)
	})
}

// ProductByID resolves an active product by numeric id.
func (s *Store) ProductByID(ctx context.Context, id int64) (integrity.CatalogProduct, error) {
	return resilience.Do(ctx, s.policy, func(ctx context.Context) (integrity.CatalogProduct, error) {
		return s.load(ctx, queryProductByID, id)
	})
}

func (s *Store) load(ctx context.Context, query string, arg any) (integrity.CatalogProduct, error) {
	var (
		p     integrity.CatalogProduct
		base  string
		sale  *string
		group string
	)
	err := s.db.QueryRow(ctx, query, arg).Scan(&p.ID, &p.SKU, &p.Name, &base, &sale, &group)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return integrity.CatalogProduct{}, integrity.ErrNotFound
		}
		return integrity.CatalogProduct{}, fmt.Errorf("query product: %w", err)
	}
	if p.BasePrice, err = decimal.NewFromString(base); err != nil {
		return integrity.CatalogProduct{}, fmt.Errorf("product %d base price: %w", p.ID, err)
	}
	if sale != nil {
		v, err := decimal.NewFromString(*sale)
		if err != nil {
			return integrity.CatalogProduct{}, fmt.Errorf("product %d sale price: %w", p.ID, err)
		}
		p.SalePrice = decimal.NewNullDecimal(v)
	}
	p.MaterialGroup = integrity.MaterialGroup(group)
	if !p.MaterialGroup.Valid() {
		return integrity.CatalogProduct{}, fmt.Errorf("product %d: unknown material group %q", p.ID, group)
	}

	p.Variations, err = s.variations(ctx, p.ID)
	if err != nil {
		return integrity.CatalogProduct{}, err
	}
	return p, nil
}

func (s *Store) variations(ctx context.Context, productID int64) ([]integrity.VariationAxis, error) {
	rows, err := s.db.Query(ctx, queryVariations, productID)
	if err != nil {
		return nil, fmt.Errorf("query variations: %w", err)
	}
	defer rows.Close()

	var axes []integrity.VariationAxis
	index := map[string]int{}
	for rows.Next() {
		var axis, label, surcharge string
		if err := rows.Scan(&axis, &label, &surcharge); err != nil {
			return nil, fmt.Errorf("scan variation: %w", err)
		}
		amount, err := decimal.NewFromString(surcharge)
		if err != nil {
			return nil, fmt.Errorf("variation %s/%s surcharge: %w", axis, label, err)
		}
		i, ok := index[axis]
		if !ok {
			i = len(axes)
			index[axis] = i
			axes = append(axes, integrity.VariationAxis{Name: axis})
		}
		axes[i].Values = append(axes[i].Values, integrity.VariationValue{Label: label, Surcharge: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variations: %w", err)
	}
	return axes, nil
}
