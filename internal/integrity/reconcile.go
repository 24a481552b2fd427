package integrity

import (
	"github.com/shopspring/decimal"
)

// Stage is a step of the validation state sequence.
type Stage string

const (
	StageClassified         Stage = "classified"
	StageProductsReconciled Stage = "products_reconciled"
	StageShippingReconciled Stage = "shipping_reconciled"
	StageCraneReconciled    Stage = "crane_reconciled"
	StageDiscountReconciled Stage = "discount_reconciled"
	StageVATReconciled      Stage = "vat_reconciled"
	StageAccepted           Stage = "accepted"
)

// ExpectedShipping sums the transportation fee of every group whose subtotal is
// positive but below the group's minimum order value.
func ExpectedShipping(buckets map[MaterialGroup]decimal.Decimal, rules map[MaterialGroup]ShippingRule) decimal.Decimal {
	total := decimal.Zero
	for group, rule := range rules {
		subtotal, ok := buckets[group]
		if !ok || !subtotal.IsPositive() {
			continue
		}
		if subtotal.LessThan(rule.MinimumOrderValue) {
			total = total.Add(rule.TransportationFee)
		}
	}
	return Round(total)
}

// ExpectedVAT computes VAT on the pre-tax total.
func ExpectedVAT(preVAT, rate decimal.Decimal) decimal.Decimal {
	return Round(preVAT.Mul(rate))
}

// reconcile runs the order-level checks in sequence, advancing res.Stage as each passes.
func (e *Engine) reconcile(cls Classification, rec reconstruction, snap snapshot, res *Result) *rejection {
	shipping := cls.Value(MetaShipping)
	crane := cls.Value(MetaCrane)
	discount := cls.Value(MetaDiscount)
	vat := cls.Value(MetaVAT)

	expectedShipping := ExpectedShipping(rec.buckets, snap.rules)
	if !WithinTolerance(shipping, expectedShipping, e.tolerance) {
		return &rejection{code: CodeShippingMismatch, line: -1}
	}
	res.Stage = StageShippingReconciled

	if !crane.IsZero() {
		if crane.IsNegative() || !WithinTolerance(crane, e.craneFee, e.tolerance) {
			return &rejection{code: CodeCraneFeeMismatch, line: -1}
		}
		if rec.bucket(GroupGypsumTracks).IsZero() {
			return &rejection{code: CodeCraneNotApplicable, line: -1}
		}
	}
	res.Stage = StageCraneReconciled

	switch {
	case discount.IsPositive():
		return &rejection{code: CodePositiveDiscount, line: -1}
	case discount.IsNegative():
		expected := Round(percentOf(rec.productTotal, snap.agentDiscountPct)).Neg()
		if !WithinTolerance(discount, expected, e.tolerance) {
			return &rejection{code: CodeDiscountMismatch, line: -1}
		}
	case snap.agentDiscountPct.IsPositive():
		res.Anomalies = append(res.Anomalies, Anomaly{Kind: AnomalyDiscountDeclined, Detail: snap.agentDiscountPct.String()})
	}
	res.Stage = StageDiscountReconciled

	preVAT := rec.productTotal.Add(discount).Add(shipping).Add(crane)
	expectedVAT := ExpectedVAT(preVAT, e.vatRate)
	if !WithinTolerance(vat, expectedVAT, e.tolerance) {
		return &rejection{code: CodeVATMismatch, line: -1}
	}
	res.Stage = StageVATReconciled

	res.Breakdown = &Breakdown{
		ProductTotal: rec.productTotal,
		Shipping:     shipping,
		CraneFee:     crane,
		CartDiscount: discount,
		VAT:          expectedVAT,
		GrandTotal:   Round(preVAT.Add(expectedVAT)),
	}
	return nil
}
