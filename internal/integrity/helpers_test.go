package integrity_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-priceguard/internal/integrity"
)

var errStoreDown = errors.New("store unavailable")

type stubCatalog struct {
	bySKU map[string]integrity.CatalogProduct
	byID  map[int64]integrity.CatalogProduct
	err   error
	calls atomic.Int64
}

func (s *stubCatalog) ProductBySKU(_ context.Context, sku string) (integrity.CatalogProduct, error) {
	s.calls.Add(1)
	if s.err != nil {
		return integrity.CatalogProduct{}, s.err
	}
	if p, ok := s.bySKU[sku]; ok {
		return p, nil
	}
	return integrity.CatalogProduct{}, integrity.ErrNotFound
}

func (s *stubCatalog) ProductByID(_ context.Context, id int64) (integrity.CatalogProduct, error) {
	s.calls.Add(1)
	if s.err != nil {
		return integrity.CatalogProduct{}, s.err
	}
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return integrity.CatalogProduct{}, integrity.ErrNotFound
}

type stubEntitlements struct {
	buyers   map[string]integrity.BuyerEntitlement
	agents   map[string]integrity.AgentProfile
	err      error
	agentErr error
}

func (s *stubEntitlements) BuyerEntitlement(_ context.Context, buyerID string) (integrity.BuyerEntitlement, error) {
	if s.err != nil {
		return integrity.BuyerEntitlement{}, s.err
	}
	if e, ok := s.buyers[buyerID]; ok {
		return e, nil
	}
	return integrity.BuyerEntitlement{}, integrity.ErrNotFound
}

func (s *stubEntitlements) AgentProfile(_ context.Context, agentID string) (integrity.AgentProfile, error) {
	if s.agentErr != nil {
		return integrity.AgentProfile{}, s.agentErr
	}
	if a, ok := s.agents[agentID]; ok {
		return a, nil
	}
	return integrity.AgentProfile{}, integrity.ErrNotFound
}

type stubRules struct {
	rules []integrity.ShippingRule
	err   error
}

func (s stubRules) ShippingRules(context.Context) ([]integrity.ShippingRule, error) {
	return s.rules, s.err
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func price(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(v))
}

func qty(n int) *int {
	return &n
}

func line(token string, quantity int, unitPrice, description string) integrity.SubmittedLine {
	return integrity.SubmittedLine{
		CatalogToken:      token,
		Quantity:          qty(quantity),
		DeclaredUnitPrice: price(unitPrice),
		Description:       description,
	}
}

func meta(token string, value decimal.Decimal) integrity.SubmittedLine {
	return integrity.SubmittedLine{CatalogToken: token, Quantity: qty(1), DeclaredUnitPrice: decimal.NewNullDecimal(value)}
}

// balanced appends shipping, crane, discount and a VAT line computed from the declared values.
func balanced(lines []integrity.SubmittedLine, shipping, crane, discount string) []integrity.SubmittedLine {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(integrity.Round(l.DeclaredUnitPrice.Decimal.Mul(decimal.NewFromInt(int64(*l.Quantity)))))
	}
	preVAT := total.Add(integrity.Round(dec(discount))).Add(integrity.Round(dec(shipping))).Add(integrity.Round(dec(crane)))
	out := append([]integrity.SubmittedLine{}, lines...)
	out = append(out,
		meta("SHIPPING", dec(shipping)),
		meta("CRANE_UNLOAD", dec(crane)),
		meta("CART_DISCOUNT", dec(discount)),
		meta("VAT", integrity.ExpectedVAT(preVAT, integrity.DefaultVATRate)),
	)
	return out
}

func defaultRules() []integrity.ShippingRule {
	return []integrity.ShippingRule{
		{Group: integrity.GroupPaints, MinimumOrderValue: dec("500"), TransportationFee: dec("50")},
		{Group: integrity.GroupPowders, MinimumOrderValue: dec("500"), TransportationFee: dec("50")},
		{Group: integrity.GroupGypsumTracks, MinimumOrderValue: dec("1000"), TransportationFee: dec("120")},
	}
}

func defaultCatalog() *stubCatalog {
	paint := integrity.CatalogProduct{
		ID: 101, SKU: "P-100", Name: "Interior Paint 10L",
		BasePrice: dec("100"), MaterialGroup: integrity.GroupPaints,
	}
	tinted := integrity.CatalogProduct{
		ID: 102, SKU: "P-200", Name: "Tinted Paint 4L",
		BasePrice: dec("100"), SalePrice: price("80"), MaterialGroup: integrity.GroupPaints,
		Variations: []integrity.VariationAxis{
			{Name: "Color", Values: []integrity.VariationValue{{Label: "Red", Surcharge: dec("10")}, {Label: "White", Surcharge: dec("0")}}},
			{Name: "Finish", Values: []integrity.VariationValue{{Label: "Matte", Surcharge: dec("-5")}}},
		},
	}
	powder := integrity.CatalogProduct{
		ID: 201, SKU: "W-150", Name: "Wall Putty 25kg",
		BasePrice: dec("150"), MaterialGroup: integrity.GroupPowders,
	}
	gypsum := integrity.CatalogProduct{
		ID: 301, SKU: "G-200", Name: "Gypsum Board 12.5mm",
		BasePrice: dec("200"), MaterialGroup: integrity.GroupGypsumTracks,
	}
	track := integrity.CatalogProduct{
		ID: 302, SKU: "TRACK - 3M", Name: "Metal Track 3m",
		BasePrice: dec("30"), MaterialGroup: integrity.GroupGypsumTracks,
	}
	numbered := integrity.CatalogProduct{
		ID: 4242, SKU: "LEGACY-4242", Name: "Legacy Primer",
		BasePrice: dec("12.34"), MaterialGroup: integrity.GroupPaints,
	}
	c := &stubCatalog{bySKU: map[string]integrity.CatalogProduct{}, byID: map[int64]integrity.CatalogProduct{}}
	for _, p := range []integrity.CatalogProduct{paint, tinted, powder, gypsum, track, numbered} {
		c.bySKU[p.SKU] = p
		c.byID[p.ID] = p
	}
	return c
}

type fixture struct {
	catalog      *stubCatalog
	entitlements *stubEntitlements
	rules        stubRules
}

func newFixture() *fixture {
	return &fixture{
		catalog: defaultCatalog(),
		entitlements: &stubEntitlements{
			buyers: map[string]integrity.BuyerEntitlement{
				"buyer-discount": {BuyerID: "buyer-discount", ProductDiscounts: map[string]decimal.Decimal{"P-100": dec("10")}},
				"buyer-agent":    {BuyerID: "buyer-agent", AgentID: "agent-5"},
				"buyer-orphan":   {BuyerID: "buyer-orphan", AgentID: "agent-missing"},
			},
			agents: map[string]integrity.AgentProfile{
				"agent-5": {ID: "agent-5", CartDiscountPct: dec("5")},
			},
		},
		rules: stubRules{rules: defaultRules()},
	}
}

func (f *fixture) engine(t testing.TB, mutate ...func(*integrity.Config)) *integrity.Engine {
	t.Helper()
	cfg := integrity.Config{
		Catalog:      f.catalog,
		Entitlements: f.entitlements,
		Shipping:     f.rules,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	engine, err := integrity.NewEngine(cfg)
	require.NoError(t, err)
	return engine
}
