package integrity

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaterialGroup is the coarse product classification used for per-group shipping thresholds.
type MaterialGroup string

const (
	// GroupPaints covers paints and coatings.
	GroupPaints MaterialGroup = "paints"
	// GroupPowders covers powders and dry mixes.
	GroupPowders MaterialGroup = "powders"
	// GroupGypsumTracks covers gypsum boards and metal tracks. Crane unloading only applies here.
	GroupGypsumTracks MaterialGroup = "gypsum_tracks"
)

// MaterialGroups lists every known material group.
var MaterialGroups = []MaterialGroup{GroupPaints, GroupPowders, GroupGypsumTracks}

// Valid reports whether g is one of the known material groups.
func (g MaterialGroup) Valid() bool {
	for _, known := range MaterialGroups {
		if g == known {
			return true
		}
	}
	return false
}

// VariationValue is a selectable value of a variation axis with its price surcharge.
type VariationValue struct {
	Label     string          `json:"label"`
	Surcharge decimal.Decimal `json:"surcharge"`
}

// VariationAxis is a named product attribute such as "Color".
type VariationAxis struct {
	Name   string           `json:"name"`
	Values []VariationValue `json:"values"`
}

// CatalogProduct is a read-only snapshot of a catalog entry.
type CatalogProduct struct {
	ID            int64               `json:"id,omitempty"`
	SKU           string              `json:"sku"`
	Name          string              `json:"name"`
	BasePrice     decimal.Decimal     `json:"basePrice"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	MaterialGroup MaterialGroup       `json:"materialGroup"`
	Variations    []VariationAxis     `json:"variations,omitempty"`
}

// EffectivePrice returns the sale price when present and nonzero, otherwise the base price.
func (p CatalogProduct) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid && !p.SalePrice.Decimal.IsZero() {
		return p.SalePrice.Decimal
	}
	return p.BasePrice
}

// Surcharge looks up the surcharge for an exact axis name and value label match.
func (p CatalogProduct) Surcharge(axis, value string) (decimal.Decimal, bool) {
	for _, a := range p.Variations {
		if a.Name != axis {
			continue
		}
		for _, v := range a.Values {
			if v.Label == value {
				return v.Surcharge, true
			}
		}
	}
	return decimal.Zero, false
}

// DisplayName returns the buyer-facing product name.
func (p CatalogProduct) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return p.SKU
}

// BuyerEntitlement holds the discounts a buyer is entitled to.
type BuyerEntitlement struct {
	BuyerID          string                     `json:"buyerId"`
	ProductDiscounts map[string]decimal.Decimal `json:"productDiscounts,omitempty"`
	AgentID          string                     `json:"agentId,omitempty"`
}

// DiscountFor returns the buyer's discount percentage for p, clamped to [0, 100].
// Discounts are keyed by SKU; a numeric product id is accepted as a fallback key.
func (e BuyerEntitlement) DiscountFor(p CatalogProduct) decimal.Decimal {
	pct, ok := e.ProductDiscounts[p.SKU]
	if !ok && p.ID != 0 {
		pct, ok = e.ProductDiscounts[strconv.FormatInt(p.ID, 10)]
	}
	if !ok || !pct.IsPositive() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// AgentProfile is a referring agent whose buyers receive a cart-wide discount.
type AgentProfile struct {
	ID              string          `json:"id"`
	CartDiscountPct decimal.Decimal `json:"cartDiscountPct"`
}

// ShippingRule describes when a material group owes a transportation fee.
type ShippingRule struct {
	Group             MaterialGroup   `json:"group"`
	MinimumOrderValue decimal.Decimal `json:"minimumOrderValue"`
	TransportationFee decimal.Decimal `json:"transportationFee"`
}

// SubmittedLine is a cart line as declared by the client. It is never mutated.
type SubmittedLine struct {
	CatalogToken      string              `json:"catalogNumber"`
	Quantity          *int                `json:"quantity"`
	DeclaredUnitPrice decimal.NullDecimal `json:"unitPrice"`
	Description       string              `json:"description"`
}

// Breakdown is the reconciled order total returned for an accepted cart.
type Breakdown struct {
	ProductTotal decimal.Decimal `json:"productTotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	CraneFee     decimal.Decimal `json:"craneFee"`
	CartDiscount decimal.Decimal `json:"cartDiscount"`
	VAT          decimal.Decimal `json:"vat"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
}

// UnverifiableLine is a product line whose catalog number could not be resolved.
type UnverifiableLine struct {
	Line              int             `json:"line"`
	CatalogToken      string          `json:"catalogNumber"`
	Quantity          int             `json:"quantity"`
	DeclaredUnitPrice decimal.Decimal `json:"unitPrice"`
	Amount            decimal.Decimal `json:"amount"`
}

// Anomaly is a soft finding that does not reject the cart.
type Anomaly struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

const (
	// AnomalyDuplicateMetaLine marks a meta-line type submitted more than once.
	AnomalyDuplicateMetaLine = "duplicate_meta_line"
	// AnomalyDiscountDeclined marks a zero cart discount despite an agent entitlement.
	AnomalyDiscountDeclined = "discount_declined"
)

// Result is the verdict of a single validation.
type Result struct {
	Accepted     bool               `json:"accepted"`
	Stage        Stage              `json:"stage"`
	Code         Code               `json:"code,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	Line         int                `json:"line"`
	Params       []any              `json:"-"`
	Breakdown    *Breakdown         `json:"breakdown,omitempty"`
	Unverifiable []UnverifiableLine `json:"unverifiable,omitempty"`
	Anomalies    []Anomaly          `json:"anomalies,omitempty"`
}
