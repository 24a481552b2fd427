package entitlement

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-priceguard/internal/cache"
	"github.com/noah-isme/toko-priceguard/internal/integrity"
)

// Cached is a read-through Redis cache in front of an entitlement source.
type Cached struct {
	next   integrity.Entitlements
	buyers cache.ReadThrough[integrity.BuyerEntitlement]
	agents cache.ReadThrough[integrity.AgentProfile]
}

// NewCached wraps next with a read-through cache.
func NewCached(next integrity.Entitlements, c *cache.Cache, logger zerolog.Logger) *Cached {
	return &Cached{
		next:   next,
		buyers: cache.ReadThrough[integrity.BuyerEntitlement]{Store: "entitlement", Cache: c, NotFound: integrity.ErrNotFound, Logger: logger},
		agents: cache.ReadThrough[integrity.AgentProfile]{Store: "agent", Cache: c, NotFound: integrity.ErrNotFound, Logger: logger},
	}
}

// BuyerEntitlement implements integrity.Entitlements.
func (c *Cached) BuyerEntitlement(ctx context.Context, buyerID string) (integrity.BuyerEntitlement, error) {
	return c.buyers.Get(ctx, cache.KeyBuyerEntitlement(buyerID), func(ctx context.Context) (integrity.BuyerEntitlement, error) {
		return c.next.BuyerEntitlement(ctx, buyerID)
	})
}

// AgentProfile implements integrity.Entitlements.
func (c *Cached) AgentProfile(ctx context.Context, agentID string) (integrity.AgentProfile, error) {
	return c.agents.Get(ctx, cache.KeyAgent(agentID), func(ctx context.Context) (integrity.AgentProfile, error) {
		return c.next.AgentProfile(ctx, agentID)
	})
}
