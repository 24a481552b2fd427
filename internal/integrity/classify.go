package integrity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MetaKind identifies an order-level adjustment line.
type MetaKind string

const (
	MetaShipping MetaKind = "shipping"
	MetaCrane    MetaKind = "crane_unload"
	MetaDiscount MetaKind = "discount"
	MetaVAT      MetaKind = "vat"
)

// metaMarkers are matched in order against the upper-cased catalog token.
// DISCOUNT covers both the generic and the cart-discount markers.
var metaMarkers = []struct {
	marker string
	kind   MetaKind
}{
	{"SHIPPING", MetaShipping},
	{"CRANE_UNLOAD", MetaCrane},
	{"DISCOUNT", MetaDiscount},
	{"VAT", MetaVAT},
}

// ProductLine is a submitted line classified as a purchased product.
type ProductLine struct {
	Index int
	SubmittedLine
}

// Classification is the output of the line classifier.
type Classification struct {
	Products   []ProductLine
	Meta       map[MetaKind]decimal.Decimal
	Duplicates []MetaKind
}

// Value returns the declared value of a meta-line, or zero when absent.
func (c Classification) Value(kind MetaKind) decimal.Decimal {
	if v, ok := c.Meta[kind]; ok {
		return v
	}
	return decimal.Zero
}

// MetaKindOf returns the meta-line kind for token, if any.
func MetaKindOf(token string) (MetaKind, bool) {
	upper := strings.ToUpper(token)
	for _, m := range metaMarkers {
		if strings.Contains(upper, m.marker) {
			return m.kind, true
		}
	}
	return "", false
}

// Classify partitions lines into product lines and meta-lines. It never rejects.
// When a meta-line type appears more than once the last occurrence wins. Meta values
// are rounded to two decimals on the way in.
func Classify(lines []SubmittedLine) Classification {
	out := Classification{Meta: make(map[MetaKind]decimal.Decimal, len(metaMarkers))}
	for i, line := range lines {
		kind, ok := MetaKindOf(line.CatalogToken)
		if !ok {
			out.Products = append(out.Products, ProductLine{Index: i, SubmittedLine: line})
			continue
		}
		if _, seen := out.Meta[kind]; seen {
			out.Duplicates = append(out.Duplicates, kind)
		}
		value := decimal.Zero
		if line.DeclaredUnitPrice.Valid {
			value = Round(line.DeclaredUnitPrice.Decimal)
		}
		out.Meta[kind] = value
	}
	return out
}

func (c Classification) anomalies() []Anomaly {
	if len(c.Duplicates) == 0 {
		return nil
	}
	out := make([]Anomaly, 0, len(c.Duplicates))
	for _, kind := range c.Duplicates {
		out = append(out, Anomaly{Kind: AnomalyDuplicateMetaLine, Detail: string(kind)})
	}
	return out
}
