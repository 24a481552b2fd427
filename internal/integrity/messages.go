package integrity

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Code identifies the reason a cart was rejected.
type Code string

const (
	CodeInvalidLine             Code = "INVALID_LINE"
	CodeNegativePrice           Code = "NEGATIVE_PRICE"
	CodePriceMismatch           Code = "PRICE_MISMATCH"
	CodeUnverifiableOverCeiling Code = "UNVERIFIABLE_OVER_CEILING"
	CodeShippingMismatch        Code = "SHIPPING_MISMATCH"
	CodeCraneFeeMismatch        Code = "CRANE_FEE_MISMATCH"
	CodeCraneNotApplicable      Code = "CRANE_NOT_APPLICABLE"
	CodePositiveDiscount        Code = "POSITIVE_DISCOUNT"
	CodeDiscountMismatch        Code = "DISCOUNT_MISMATCH"
	CodeVATMismatch             Code = "VAT_MISMATCH"
)

// SupportedLocales lists the locales rejection reasons are translated into. The first is the fallback.
var SupportedLocales = []language.Tag{language.English, language.Hebrew}

var (
	reasons = catalog.NewBuilder(catalog.Fallback(language.English))
	matcher = language.NewMatcher(SupportedLocales)
)

func init() {
	set := func(tag language.Tag, code Code, msg string) {
		if err := reasons.SetString(tag, string(code), msg); err != nil {
			panic(err)
		}
	}

	set(language.English, CodeInvalidLine, "Cart line %d is invalid: quantity and unit price are required")
	set(language.English, CodeNegativePrice, "Invalid price for %s")
	set(language.English, CodePriceMismatch, "Price mismatch for %s")
	set(language.English, CodeUnverifiableOverCeiling, "Catalog number %s could not be verified")
	set(language.English, CodeShippingMismatch, "Shipping cost mismatch")
	set(language.English, CodeCraneFeeMismatch, "Crane unloading fee mismatch")
	set(language.English, CodeCraneNotApplicable, "Crane unloading fee is not applicable to this order")
	set(language.English, CodePositiveDiscount, "Invalid cart discount")
	set(language.English, CodeDiscountMismatch, "Cart discount mismatch")
	set(language.English, CodeVATMismatch, "VAT mismatch")

	set(language.Hebrew, CodeInvalidLine, "שורה %d בעגלה אינה תקינה: נדרשים כמות ומחיר יחידה")
	set(language.Hebrew, CodeNegativePrice, "מחיר לא תקין עבור %s")
	set(language.Hebrew, CodePriceMismatch, "אי התאמה במחיר עבור %s")
	set(language.Hebrew, CodeUnverifiableOverCeiling, "לא ניתן לאמת את מק\"ט %s")
	set(language.Hebrew, CodeShippingMismatch, "אי התאמה בעלות המשלוח")
	set(language.Hebrew, CodeCraneFeeMismatch, "אי התאמה בעלות הפריקה במנוף")
	set(language.Hebrew, CodeCraneNotApplicable, "פריקה במנוף אינה רלוונטית להזמנה זו")
	set(language.Hebrew, CodePositiveDiscount, "הנחת עגלה לא תקינה")
	set(language.Hebrew, CodeDiscountMismatch, "אי התאמה בהנחת העגלה")
	set(language.Hebrew, CodeVATMismatch, "אי התאמה בסכום המע\"מ")
}

// Localize renders the rejection reason for code in the given locale.
func Localize(tag language.Tag, code Code, params ...any) string {
	p := message.NewPrinter(tag, message.Catalog(reasons))
	return p.Sprintf(string(code), params...)
}

// NegotiateLocale picks the best supported locale for an Accept-Language header value.
func NegotiateLocale(acceptLanguage string, fallback language.Tag) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return SupportedLocales[idx]
}
