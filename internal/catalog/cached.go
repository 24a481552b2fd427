package catalog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-priceguard/internal/cache"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
)

// Cached is a read-through Redis cache in front of a catalog.
type Cached struct {
	next     integrity.Catalog
	products cache.ReadThrough[integrity.CatalogProduct]
}

// NewCached wraps next with a read-through cache.
func NewCached(next integrity.Catalog, c *cache.Cache, logger zerolog.Logger) *Cached {
	return &Cached{
		next: next,
		products: cache.ReadThrough[integrity.CatalogProduct]{
			Store:    "catalog",
			Cache:    c,
			NotFound: integrity.ErrNotFound,
			Logger:   logger,
		},
	}
}

// ProductBySKU implements integrity.Catalog.
func (c *Cached) ProductBySKU(ctx context.Context, sku string) (integrity.CatalogProduct, error) {
	return c.products.Get(ctx, cache.KeyProductSKU(sku), func(ctx context.Context) (integrity.CatalogProduct, error) {
		return c.next.ProductBySKU(ctx, sku)
	})
}

// ProductByID implements integrity.Catalog.
func (c *Cached) ProductByID(ctx context.Context, id int64) (integrity.CatalogProduct, error) {
	return c.products.Get(ctx, cache.KeyProductID(id), func(ctx context.Context) (integrity.CatalogProduct, error) {
		return c.next.ProductByID(ctx, id)
	})
}
