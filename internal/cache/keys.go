package cache

import (
	"strconv"
	"strings"
)

const keyPrefix = "priceguard:v1:"

// KeyProductSKU returns the cache key for a catalog lookup by SKU. SKUs match exactly,
// so the key keeps the caller's casing.
func KeyProductSKU(sku string) string {
	return keyPrefix + "product:sku:" + sku
}

// KeyProductID returns the cache key for a catalog lookup by numeric id.
func KeyProductID(id int64) string {
	return keyPrefix + "product:id:" + strconv.FormatInt(id, 10)
}

// KeyBuyerEntitlement returns the cache key for a buyer's discount entitlements.
func KeyBuyerEntitlement(buyerID string) string {
	return keyPrefix + "entitlement:" + strings.TrimSpace(buyerID)
}

// KeyAgent returns the cache key for an agent profile.
func KeyAgent(agentID string) string {
	return keyPrefix + "agent:" + strings.TrimSpace(agentID)
}

// KeyShippingRules is the cache key for the full shipping rule set.
func KeyShippingRules() string {
	return keyPrefix + "shipping:rules"
}
