// Package shipping loads the per material group transportation rules.
package shipping

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-priceguard/internal/cache"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
	"github.com/noah-isme/toko-priceguard/internal/resilience"
)

// Querier is the subset of pgxpool.Pool used by the store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const queryRules = `SELECT material_group, minimum_order_value::text, transportation_fee::text
FROM shipping_rules
ORDER BY material_group`

// Store implements integrity.ShippingRules on top of Postgres.
type Store struct {
	db     Querier
	policy *resilience.Policy
}

// NewStore constructs a shipping rules store. policy may be nil.
func NewStore(db Querier, policy *resilience.Policy) *Store {
	return &Store{db: db, policy: policy}
}

// ShippingRules returns every configured rule. Groups without a row owe no shipping.
func (s *Store) ShippingRules(ctx context.Context) ([]integrity.ShippingRule, error) {
	return resilience.Do(ctx, s.policy, s.load)
}

func (s *Store) load(ctx context.Context) ([]integrity.ShippingRule, error) {
	rows, err := s.db.Query(ctx, queryRules)
	if err != nil {
		return nil, fmt.Errorf("query shipping rules: %w", err)
	}
	defer rows.Close()

	var rules []integrity.ShippingRule
	for rows.Next() {
		var group, minimum, fee string
		if err := rows.Scan(&group, &minimum, &fee); err != nil {
			return nil, fmt.Errorf("scan shipping rule: %w", err)
		}
		rule := integrity.ShippingRule{Group: integrity.MaterialGroup(group)}
		if !rule.Group.Valid() {
			return nil, fmt.Errorf("shipping rule: unknown material group %q", group)
		}
		if rule.MinimumOrderValue, err = decimal.NewFromString(minimum); err != nil {
			return nil, fmt.Errorf("shipping rule %s minimum: %w", group, err)
		}
		if rule.TransportationFee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("shipping rule %s fee: %w", group, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipping rules: %w", err)
	}
	return rules, nil
}

// Cached is a read-through Redis cache in front of a rules source.
type Cached struct {
	next  integrity.ShippingRules
	rules cache.ReadThrough[[]integrity.ShippingRule]
}

// NewCached wraps next with a read-through cache.
func NewCached(next integrity.ShippingRules, c *cache.Cache, logger zerolog.Logger) *Cached {
	return &Cached{
		next:  next,
		rules: cache.ReadThrough[[]integrity.ShippingRule]{Store: "shipping", Cache: c, Logger: logger},
	}
}

// ShippingRules implements integrity.ShippingRules.
func (c *Cached) ShippingRules(ctx context.Context) ([]integrity.ShippingRule, error) {
	return c.rules.Get(ctx, cache.KeyShippingRules(), c.next.ShippingRules)
}
