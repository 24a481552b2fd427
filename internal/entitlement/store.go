// Package entitlement resolves buyer discount entitlements and referring agents.
package entitlement

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
	queryBuyer = `SELECT coalesce(agent_id, '') FROM buyers WHERE id = $1`

	queryDiscounts = `SELECT product_key, discount_pct::text
FROM buyer_product_discounts
WHERE buyer_id = $1`

	queryAgent = `SELECT id, cart_discount_pct::text FROM agents WHERE id = $1 AND active`
)

// Store implements integrity.Entitlements on top of Postgres.
type Store struct {
	db     Querier
	policy *resilience.Policy
}

// NewStore constructs an entitlement store. policy may be nil.
func NewStore(db Querier, policy *resilience.Policy) *Store {
	return &Store{db: db, policy: policy}
}

// BuyerEntitlement loads the buyer's per-product discounts and referring agent.
func (s *Store) BuyerEntitlement(ctx context.Context, buyerID string) (integrity.BuyerEntitlement, error) {
	return resilience.Do(ctx, s.policy, func(ctx context.Context) (integrity.BuyerEntitlement, error) {
		return s.loadBuyer(ctx, buyerID)
	})
}

// AgentProfile loads an active agent.
func (s *Store) AgentProfile(ctx context.Context, agentID string) (integrity.AgentProfile, error) {
	return resilience.Do(ctx, s.policy, func(ctx context.Context) (integrity.AgentProfile, error) {
		var (
			agent integrity.AgentProfile
			pct   string
		)
		err := s.db.QueryRow(ctx, queryAgent, agentID).Scan(&agent.ID, &pct)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return integrity.AgentProfile{}, integrity.ErrNotFound
			}
			return integrity.AgentProfile{}, fmt.Errorf("query agent: %w", err)
		}
		if agent.CartDiscountPct, err = decimal.NewFromString(pct); err != nil {
			return integrity.AgentProfile{}, fmt.Errorf("agent %s discount: %w", agent.ID, err)
		}
		return agent, nil
	})
}

func (s *Store) loadBuyer(ctx context.Context, buyerID string) (integrity.BuyerEntitlement, error) {
	ent := integrity.BuyerEntitlement{BuyerID: buyerID}
	if err := s.db.QueryRow(ctx, queryBuyer, buyerID).Scan(&ent.AgentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return integrity.BuyerEntitlement{}, integrity.ErrNotFound
		}
		return integrity.BuyerEntitlement{}, fmt.Errorf("query buyer: %w", err)
	}

	rows, err := s.db.Query(ctx, queryDiscounts, buyerID)
	if err != nil {
		return integrity.BuyerEntitlement{}, fmt.Errorf("query discounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, pct string
		if err := rows.Scan(&key, &pct); err != nil {
			return integrity.BuyerEntitlement{}, fmt.Errorf("scan discount: %w", err)
		}
		v, err := decimal.NewFromString(pct)
		if err != nil {
			return integrity.BuyerEntitlement{}, fmt.Errorf("discount %s/%s: %w", buyerID, key, err)
		}
		if ent.ProductDiscounts == nil {
			ent.ProductDiscounts = make(map[string]decimal.Decimal)
		}
		ent.ProductDiscounts[key] = v
	}
	if err := rows.Err(); err != nil {
		return integrity.BuyerEntitlement{}, fmt.Errorf("iterate discounts: %w", err)
	}
	return ent, nil
}
