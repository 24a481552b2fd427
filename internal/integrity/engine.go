package integrity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

// ErrNotFound is returned by collaborators when a record does not exist.
var ErrNotFound = errors.New("integrity: record not found")

// Catalog resolves products by SKU or numeric id.
type Catalog interface {
	ProductBySKU(ctx context.Context, sku string) (CatalogProduct, error)
	ProductByID(ctx context.Context, id int64) (CatalogProduct, error)
}

// Entitlements resolves buyer discounts and referring agents.
type Entitlements interface {
	BuyerEntitlement(ctx context.Context, buyerID string) (BuyerEntitlement, error)
	AgentProfile(ctx context.Context, agentID string) (AgentProfile, error)
}

// ShippingRules lists the per material group shipping rules.
type ShippingRules interface {
	ShippingRules(ctx context.Context) ([]ShippingRule, error)
}

var (
	// DefaultTolerance is the maximum absolute difference between declared and expected values.
	DefaultTolerance = decimal.RequireFromString("0.5")
	// DefaultVATRate is the VAT rate applied to the pre-tax total.
	DefaultVATRate = decimal.RequireFromString("0.18")
	// DefaultCraneFee is the fixed crane unloading surcharge.
	DefaultCraneFee = decimal.NewFromInt(250)
)

const defaultLookupConcurrency = 8

// Config groups Engine dependencies and pricing constants.
type Config struct {
	Catalog      Catalog
	Entitlements Entitlements
	Shipping     ShippingRules
	Parser       SelectionParser

	Tolerance decimal.Decimal
	VATRate   decimal.Decimal
	CraneFee  decimal.Decimal
	// UnverifiableCeiling rejects unresolvable lines priced above it. Zero disables the check.
	UnverifiableCeiling decimal.Decimal
	LookupConcurrency   int
	Locale              language.Tag
}

// Engine verifies submitted carts against authoritative catalog, entitlement and shipping data.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalog             Catalog
	entitlements        Entitlements
	shipping            ShippingRules
	parser              SelectionParser
	tolerance           decimal.Decimal
	vatRate             decimal.Decimal
	craneFee            decimal.Decimal
	unverifiableCeiling decimal.Decimal
	concurrency         int
	locale              language.Tag
}

// NewEngine constructs an Engine, applying defaults for zero-valued constants.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("integrity: catalog is required")
	}
	if cfg.Entitlements == nil {
		return nil, errors.New("integrity: entitlements is required")
	}
	if cfg.Shipping == nil {
		return nil, errors.New("integrity: shipping rules are required")
	}
	e := &Engine{
		catalog:             cfg.Catalog,
		entitlements:        cfg.Entitlements,
		shipping:            cfg.Shipping,
		parser:              cfg.Parser,
		tolerance:           cfg.Tolerance,
		vatRate:             cfg.VATRate,
		craneFee:            cfg.CraneFee,
		unverifiableCeiling: cfg.UnverifiableCeiling,
		concurrency:         cfg.LookupConcurrency,
		locale:              cfg.Locale,
	}
	if e.parser == nil {
		e.parser = DescriptionParser{}
	}
	if !e.tolerance.IsPositive() {
		e.tolerance = DefaultTolerance
	}
	if !e.vatRate.IsPositive() {
		e.vatRate = DefaultVATRate
	}
	if !e.craneFee.IsPositive() {
		e.craneFee = DefaultCraneFee
	}
	if e.concurrency <= 0 {
		e.concurrency = defaultLookupConcurrency
	}
	if e.locale == language.Und {
		e.locale = SupportedLocales[0]
	}
	return e, nil
}

// Locale returns the locale used for Result.Reason.
func (e *Engine) Locale() language.Tag { return e.locale }

// snapshot is the read-only data a single validation works against.
type snapshot struct {
	products         map[string]CatalogProduct
	entitlement      BuyerEntitlement
	agentDiscountPct decimal.Decimal
	rules            map[MaterialGroup]ShippingRule
}

// Validate classifies, reconstructs and reconciles the submitted cart. Integrity
// violations are reported through Result; a non-nil error means a collaborator
// failed and the cart must not be accepted.
func (e *Engine) Validate(ctx context.Context, lines []SubmittedLine, buyerID string) (Result, error) {
	ctx, span := otel.Tracer("integrity").Start(ctx, "integrity.Validate")
	defer span.End()
	span.SetAttributes(attribute.Int("cart.lines", len(lines)))

	cls := Classify(lines)
	res := Result{Stage: StageClassified, Line: -1, Anomalies: cls.anomalies()}
	if rej := checkLines(cls.Products); rej != nil {
		return e.reject(res, rej, span), nil
	}

	snap, err := e.load(ctx, cls.Products, strings.TrimSpace(buyerID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return Result{}, err
	}

	rec, rej := e.reconstruct(cls.Products, snap)
	if rej != nil {
		return e.reject(res, rej, span), nil
	}
	res.Stage = StageProductsReconciled
	res.Unverifiable = rec.unverifiable

	if rej := e.reconcile(cls, rec, snap, &res); rej != nil {
		return e.reject(res, rej, span), nil
	}
	res.Stage = StageAccepted
	res.Accepted = true
	span.SetAttributes(attribute.Bool("cart.accepted", true))
	return res, nil
}

func (e *Engine) reject(res Result, rej *rejection, span trace.Span) Result {
	res.Accepted = false
	res.Code = rej.code
	res.Line = rej.line
	res.Params = rej.params
	res.Reason = Localize(e.locale, rej.code, rej.params...)
	res.Breakdown = nil
	span.SetAttributes(
		attribute.Bool("cart.accepted", false),
		attribute.String("cart.reject_code", string(rej.code)),
		attribute.String("cart.stage", string(res.Stage)),
	)
	return res
}

func (e *Engine) load(ctx context.Context, lines []ProductLine, buyerID string) (snapshot, error) {
	tokens := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.CatalogToken]; ok {
			continue
		}
		seen[line.CatalogToken] = struct{}{}
		tokens = append(tokens, line.CatalogToken)
	}

	type lookup struct {
		product CatalogProduct
		found   bool
	}
	found := make([]lookup, len(tokens))
	var (
		entitlement BuyerEntitlement
		agentPct    = decimal.Zero
		rules       []ShippingRule
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	g.Go(func() error {
		var err error
		entitlement, agentPct, err = e.loadEntitlement(gctx, buyerID)
		return err
	})
	g.Go(func() error {
		var err error
		rules, err = e.shipping.ShippingRules(gctx)
		if err != nil {
			return fmt.Errorf("load shipping rules: %w", err)
		}
		return nil
	})
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			product, ok, err := e.resolveProduct(gctx, token)
			if err != nil {
				return err
			}
			found[i] = lookup{product: product, found: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}

	snap := snapshot{
		products:         make(map[string]CatalogProduct, len(tokens)),
		entitlement:      entitlement,
		agentDiscountPct: agentPct,
		rules:            make(map[MaterialGroup]ShippingRule, len(rules)),
	}
	for i, token := range tokens {
		if found[i].found {
			snap.products[token] = found[i].product
		}
	}
	for _, rule := range rules {
		snap.rules[rule.Group] = rule
	}
	return snap, nil
}

// resolveProduct tries the base SKU, then the full token, then a numeric id.
func (e *Engine) resolveProduct(ctx context.Context, token string) (CatalogProduct, bool, error) {
	base := BaseSKU(token)
	if base == "" {
		return CatalogProduct{}, false, nil
	}
	candidates := []string{base}
	if trimmed := strings.TrimSpace(token); trimmed != base {
		candidates = append(candidates, trimmed)
	}
	for _, sku := range candidates {
		product, err := e.catalog.ProductBySKU(ctx, sku)
		if err == nil {
			return product, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return CatalogProduct{}, false, fmt.Errorf("lookup product %q: %w", sku, err)
		}
	}
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return CatalogProduct{}, false, nil
	}
	product, err := e.catalog.ProductByID(ctx, id)
	if err == nil {
		return product, true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return CatalogProduct{}, false, nil
	}
	return CatalogProduct{}, false, fmt.Errorf("lookup product id %d: %w", id, err)
}

func (e *Engine) loadEntitlement(ctx context.Context, buyerID string) (BuyerEntitlement, decimal.Decimal, error) {
	if buyerID == "" {
		return BuyerEntitlement{}, decimal.Zero, nil
	}
	ent, err := e.entitlements.BuyerEntitlement(ctx, buyerID)
	if errors.Is(err, ErrNotFound) {
		return BuyerEntitlement{BuyerID: buyerID}, decimal.Zero, nil
	}
	if err != nil {
		return BuyerEntitlement{}, decimal.Zero, fmt.Errorf("lookup entitlement: %w", err)
	}
	if strings.TrimSpace(ent.AgentID) == "" {
		return ent, decimal.Zero, nil
	}
	agent, err := e.entitlements.AgentProfile(ctx, ent.AgentID)
	if errors.Is(err, ErrNotFound) {
		return ent, decimal.Zero, nil
	}
	if err != nil {
		return BuyerEntitlement{}, decimal.Zero, fmt.Errorf("lookup agent profile: %w", err)
	}
	if !agent.CartDiscountPct.IsPositive() {
		return ent, decimal.Zero, nil
	}
	return ent, agent.CartDiscountPct, nil
}
