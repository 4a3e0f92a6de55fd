// Package normalize converts the display-formatted values returned by external
// data sources ("$3.1K", "8.05%", "46,636.5") into canonical typed values, and
// renders canonical values back into report strings. All functions are pure and
// total: malformed input maps to Unknown, never to an error or a zero.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the canonical type of a Value.
type Kind int

const (
	KindUnknown Kind = iota
	KindQuantity
	KindPercent // stored as a fraction of one, e.g. 0.0805 for 8.05%
	KindCount
)

func (k Kind) String() string {
	switch k {
	case KindQuantity:
		return "quantity"
	case KindPercent:
		return "percent"
	case KindCount:
		return "count"
	default:
		return "unknown"
	}
}

// Value is a canonical metric value. Unknown is first-class and distinct from
// zero: absent or unparseable data must never silently become 0.
type Value struct {
	Kind Kind
	Dec  decimal.Decimal
}

func Unknown() Value { return Value{Kind: KindUnknown} }

func Quantity(d decimal.Decimal) Value { return Value{Kind: KindQuantity, Dec: d} }

func Percentage(d decimal.Decimal) Value { return Value{Kind: KindPercent, Dec: d} }

func CountOf(d decimal.Decimal) Value { return Value{Kind: KindCount, Dec: d} }

// IsUnknown reports whether v carries no usable data.
func (v Value) IsUnknown() bool { return v.Kind == KindUnknown }

// Convention declares how a source encodes percentages. The tag is
// authoritative: shape is never inferred, since a bare "0.08" is ambiguous
// between 8% and 0.08%.
type Convention int

const (
	// ConvDisplayPercent means the source reports display percent, "8.05" or
	// "8.05%" meaning 8.05 out of 100.
	ConvDisplayPercent Convention = iota
	// ConvFraction means the source already reports a fraction of one, 0.0805.
	ConvFraction
)

// Hint selects the parse rule for one raw field. Each source's alias table
// carries a Hint per field.
type Hint int

const (
	HintCurrency Hint = iota
	HintMagnitude
	HintCount
	HintPercentDisplay
	HintPercentFraction
)

// Parse dispatches a raw field value to its parser.
func Parse(raw string, hint Hint) Value {
	switch hint {
	case HintMagnitude:
		return ParseMagnitude(raw)
	case HintCount:
		v := ParseCurrencyOrCount(raw)
		if v.Kind != KindCount {
			return Unknown()
		}
		return v
	case HintPercentDisplay:
		return ParsePercent(raw, ConvDisplayPercent)
	case HintPercentFraction:
		return ParsePercent(raw, ConvFraction)
	default:
		return ParseCurrencyOrCount(raw)
	}
}

// ParseCurrencyOrCount parses a plain numeric display string, tolerating a
// leading "$" and comma separators. Non-negative integers become Counts,
// everything else numeric becomes a Quantity. Empty or malformed → Unknown.
func ParseCurrencyOrCount(s string) Value {
	d, ok := parseNumeric(s)
	if !ok {
		return Unknown()
	}
	if d.IsInteger() && !d.IsNegative() {
		return CountOf(d)
	}
	return Quantity(d)
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// ParseMagnitude parses a compact magnitude string: a trailing "K" multiplies
// by 1,000 and a trailing "M" by 1,000,000, case-insensitive. "$" and commas
// are tolerated. No suffix parses literally. Malformed → Unknown.
func ParseMagnitude(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown()
	}

	mult := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		mult = thousand
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		mult = million
		s = s[:len(s)-1]
	}

	d, ok := parseNumeric(s)
	if !ok {
		return Unknown()
	}
	return Quantity(d.Mul(mult))
}

// ParsePercent parses a percentage according to the source's declared
// convention. A trailing "%" is stripped either way; under ConvDisplayPercent
// the result is divided by 100, under ConvFraction it passes through. The
// canonical internal representation is always a fraction of one.
func ParsePercent(s string, conv Convention) Value {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	d, ok := parseNumeric(s)
	if !ok {
		return Unknown()
	}
	if conv == ConvDisplayPercent {
		d = d.Shift(-2)
	}
	return Percentage(d)
}

func parseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
