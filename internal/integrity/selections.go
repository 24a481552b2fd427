package integrity

import "strings"

const (
	nameSeparator      = " : "
	selectionSeparator = " | "
	pairSeparator      = ": "
	variantSeparator   = " - "
)

// SelectionParser extracts variation attribute selections from a line description.
type SelectionParser interface {
	ParseSelections(description string) map[string]string
}

// DescriptionParser parses descriptions of the form
// "<product name> : <Attr1>: <Value1> | <Attr2>: <Value2>".
type DescriptionParser struct{}

// ParseSelections returns attribute name to selected value. Malformed segments are skipped.
func (DescriptionParser) ParseSelections(description string) map[string]string {
	out := map[string]string{}
	_, rest, ok := strings.Cut(description, nameSeparator)
	if !ok {
		return out
	}
	for _, segment := range strings.Split(rest, selectionSeparator) {
		name, value, ok := strings.Cut(segment, pairSeparator)
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// ParseSelections parses description with the default DescriptionParser.
func ParseSelections(description string) map[string]string {
	return DescriptionParser{}.ParseSelections(description)
}

// BaseSKU strips the display variant suffix (" - <variant label>") from a catalog token.
func BaseSKU(token string) string {
	base, _, _ := strings.Cut(token, variantSeparator)
	return strings.TrimSpace(base)
}
