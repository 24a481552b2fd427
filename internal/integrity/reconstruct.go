package integrity

import (
	"github.com/shopspring/decimal"
)

// rejection carries the code and message parameters of a failed check.
type rejection struct {
	code   Code
	line   int
	params []any
}

// reconstruction accumulates product totals while product lines are verified.
type reconstruction struct {
	productTotal decimal.Decimal
	buckets      map[MaterialGroup]decimal.Decimal
	unverifiable []UnverifiableLine
}

func (r reconstruction) bucket(group MaterialGroup) decimal.Decimal {
	if v, ok := r.buckets[group]; ok {
		return v
	}
	return decimal.Zero
}

// ExpectedUnitPrice computes the unit price a product line should carry: the effective
// catalog price plus the surcharges of the matching selections, net of the buyer's
// product discount, rounded to two decimals. Selections without a matching variation
// contribute nothing.
func ExpectedUnitPrice(p CatalogProduct, selections map[string]string, discountPct decimal.Decimal) decimal.Decimal {
	price := p.EffectivePrice()
	for name, value := range selections {
		if surcharge, ok := p.Surcharge(name, value); ok {
			price = price.Add(surcharge)
		}
	}
	return Round(applyDiscount(price, discountPct))
}

// checkLines rejects malformed product lines. It runs before any store lookup so a bad
// cart is refused even while a store is down.
func checkLines(lines []ProductLine) *rejection {
	for _, line := range lines {
		if line.Quantity == nil || *line.Quantity <= 0 || !line.DeclaredUnitPrice.Valid {
			return &rejection{code: CodeInvalidLine, line: line.Index, params: []any{line.Index + 1}}
		}
		if line.DeclaredUnitPrice.Decimal.IsNegative() {
			return &rejection{code: CodeNegativePrice, line: line.Index, params: []any{BaseSKU(line.CatalogToken)}}
		}
	}
	return nil
}

// reconstruct expects lines that passed checkLines.
func (e *Engine) reconstruct(lines []ProductLine, snap snapshot) (reconstruction, *rejection) {
	rec := reconstruction{
		productTotal: decimal.Zero,
		buckets:      make(map[MaterialGroup]decimal.Decimal, len(snap.rules)),
	}
	for group := range snap.rules {
		rec.buckets[group] = decimal.Zero
	}

	for _, line := range lines {
		declared := line.DeclaredUnitPrice.Decimal
		qty := *line.Quantity
		amount := Round(declared.Mul(decimal.NewFromInt(int64(qty))))

		product, found := snap.products[line.CatalogToken]
		if !found {
			if e.unverifiableCeiling.IsPositive() && declared.GreaterThan(e.unverifiableCeiling) {
				return rec, &rejection{code: CodeUnverifiableOverCeiling, line: line.Index, params: []any{line.CatalogToken}}
			}
			rec.productTotal = rec.productTotal.Add(amount)
			rec.unverifiable = append(rec.unverifiable, UnverifiableLine{
				Line:              line.Index,
				CatalogToken:      line.CatalogToken,
				Quantity:          qty,
				DeclaredUnitPrice: declared,
				Amount:            amount,
			})
			continue
		}

		selections := e.parser.ParseSelections(line.Description)
		expected := ExpectedUnitPrice(product, selections, snap.entitlement.DiscountFor(product))
		if !WithinTolerance(declared, expected, e.tolerance) {
			return rec, &rejection{code: CodePriceMismatch, line: line.Index, params: []any{product.DisplayName()}}
		}

		rec.productTotal = rec.productTotal.Add(amount)
		if _, tracked := rec.buckets[product.MaterialGroup]; tracked {
			rec.buckets[product.MaterialGroup] = rec.buckets[product.MaterialGroup].Add(amount)
		}
	}
	rec.productTotal = Round(rec.productTotal)
	return rec, nil
}
