package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NotAvailable is the report rendering of an Unknown value.
const NotAvailable = "N/A"

// FormatMagnitude renders a quantity in compact display form: below 1,000 a
// two-decimal currency string, [1,000, 1,000,000) in "K" with one decimal,
// 1,000,000 and above in "M" with one decimal. Rounding is half-to-even at the
// chosen precision. Unknown or non-numeric kinds render as "N/A".
func FormatMagnitude(v Value) string {
	if v.Kind != KindQuantity && v.Kind != KindCount {
		return NotAvailable
	}
	d := v.Dec
	switch {
	case d.Abs().Cmp(thousand) < 0:
		return "$" + groupThousands(d.StringFixedBank(2))
	case d.Abs().Cmp(million) < 0:
		return "$" + d.Div(thousand).StringFixedBank(1) + "K"
	default:
		return "$" + d.Div(million).StringFixedBank(1) + "M"
	}
}

// FormatUSD renders a quantity as a two-decimal dollar string with thousands
// separators. Unknown → "N/A".
func FormatUSD(v Value) string {
	if v.Kind != KindQuantity && v.Kind != KindCount {
		return NotAvailable
	}
	return "$" + groupThousands(v.Dec.StringFixedBank(2))
}

// FormatDecimal renders a quantity or count as a plain grouped number,
// trimming trailing fractional zeros. Unknown → "N/A".
func FormatDecimal(v Value) string {
	if v.Kind != KindQuantity && v.Kind != KindCount {
		return NotAvailable
	}
	s := v.Dec.String()
	return groupThousands(s)
}

// FormatCount renders a count with thousands separators. Unknown or
// non-count kinds → "N/A".
func FormatCount(v Value) string {
	if v.Kind != KindCount {
		return NotAvailable
	}
	return groupThousands(v.Dec.String())
}

// FormatPercent renders a fraction-of-one as display percent with two
// decimals, half-to-even: 0.0805 → "8.05%". Unknown or non-percent → "N/A".
func FormatPercent(v Value) string {
	if v.Kind != KindPercent {
		return NotAvailable
	}
	return v.Dec.Shift(2).StringFixedBank(2) + "%"
}

// FormatAmount renders a ledger amount with its currency unit, two decimals
// minimum, more if the amount carries them: "12.50 SOL".
func FormatAmount(d decimal.Decimal, currency string) string {
	s := d.String()
	if d.Exponent() > -2 {
		s = d.StringFixed(2)
	}
	return groupThousands(s) + " " + currency
}

// groupThousands inserts comma separators into the integer part of a plain
// decimal string, preserving sign and fraction.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}

	out := intPart
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
