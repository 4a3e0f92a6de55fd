package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseMagnitude(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		want string
	}{
		{"$3.1K", KindQuantity, "3100"},
		{"$1.2M", KindQuantity, "1200000"},
		{"3.1k", KindQuantity, "3100"},
		{"2m", KindQuantity, "2000000"},
		{"450", KindQuantity, "450"},
		{"$12,345.67", KindQuantity, "12345.67"},
		{"  7.5K ", KindQuantity, "7500"},
		{"-2.5K", KindQuantity, "-2500"},
		{"", KindUnknown, ""},
		{"   ", KindUnknown, ""},
		{"K", KindUnknown, ""},
		{"$", KindUnknown, ""},
		{"12X", KindUnknown, ""},
		{"abc", KindUnknown, ""},
	}

	for _, tt := range tests {
		got := ParseMagnitude(tt.in)
		if got.Kind != tt.kind {
			t.Errorf("ParseMagnitude(%q) kind = %v, want %v", tt.in, got.Kind, tt.kind)
			continue
		}
		if tt.kind == KindUnknown {
			continue
		}
		if !got.Dec.Equal(dec(tt.want)) {
			t.Errorf("ParseMagnitude(%q) = %s, want %s", tt.in, got.Dec, tt.want)
		}
	}
}

func TestParseCurrencyOrCount(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		want string
	}{
		{"$234.12", KindQuantity, "234.12"},
		{"46,636.5", KindQuantity, "46636.5"},
		{"7,004", KindCount, "7004"},
		{"0", KindCount, "0"},
		{"$13,028", KindCount, "13028"},
		{"-5", KindQuantity, "-5"},
		{"", KindUnknown, ""},
		{" \t ", KindUnknown, ""},
		{"n/a", KindUnknown, ""},
	}

	for _, tt := range tests {
		got := ParseCurrencyOrCount(tt.in)
		if got.Kind != tt.kind {
			t.Errorf("ParseCurrencyOrCount(%q) kind = %v, want %v", tt.in, got.Kind, tt.kind)
			continue
		}
		if tt.kind == KindUnknown {
			continue
		}
		if !got.Dec.Equal(dec(tt.want)) {
			t.Errorf("ParseCurrencyOrCount(%q) = %s, want %s", tt.in, got.Dec, tt.want)
		}
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		conv Convention
		kind Kind
		want string
	}{
		{"8.05%", ConvDisplayPercent, KindPercent, "0.0805"},
		{"8.05", ConvDisplayPercent, KindPercent, "0.0805"},
		{"0.0805", ConvFraction, KindPercent, "0.0805"},
		{"100%", ConvDisplayPercent, KindPercent, "1"},
		{"0%", ConvDisplayPercent, KindPercent, "0"},
		{"", ConvDisplayPercent, KindUnknown, ""},
		{"%", ConvFraction, KindUnknown, ""},
		{"apy", ConvFraction, KindUnknown, ""},
	}

	for _, tt := range tests {
		got := ParsePercent(tt.in, tt.conv)
		if got.Kind != tt.kind {
			t.Errorf("ParsePercent(%q, %d) kind = %v, want %v", tt.in, tt.conv, got.Kind, tt.kind)
			continue
		}
		if tt.kind == KindUnknown {
			continue
		}
		if !got.Dec.Equal(dec(tt.want)) {
			t.Errorf("ParsePercent(%q, %d) = %s, want %s", tt.in, tt.conv, got.Dec, tt.want)
		}
	}
}

// The two declared conventions must agree on the canonical representation.
func TestPercentConventionsConverge(t *testing.T) {
	display := ParsePercent("8.05%", ConvDisplayPercent)
	fraction := ParsePercent("0.0805", ConvFraction)
	if !display.Dec.Equal(fraction.Dec) {
		t.Errorf("display %s != fraction %s", display.Dec, fraction.Dec)
	}
}

func TestParseDispatch(t *testing.T) {
	tests := []struct {
		raw  string
		hint Hint
		kind Kind
		want string
	}{
		{"$3.1K", HintMagnitude, KindQuantity, "3100"},
		{"7,004", HintCount, KindCount, "7004"},
		{"7004.5", HintCount, KindUnknown, ""}, // fractional count is no count
		{"8.05%", HintPercentDisplay, KindPercent, "0.0805"},
		{"0.0805", HintPercentFraction, KindPercent, "0.0805"},
		{"$234.12", HintCurrency, KindQuantity, "234.12"},
	}

	for _, tt := range tests {
		got := Parse(tt.raw, tt.hint)
		if got.Kind != tt.kind {
			t.Errorf("Parse(%q, %d) kind = %v, want %v", tt.raw, tt.hint, got.Kind, tt.kind)
			continue
		}
		if tt.kind == KindUnknown {
			continue
		}
		if !got.Dec.Equal(dec(tt.want)) {
			t.Errorf("Parse(%q, %d) = %s, want %s", tt.raw, tt.hint, got.Dec, tt.want)
		}
	}
}

func TestFormatMagnitude(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Quantity(dec("999.994")), "$999.99"},
		{Quantity(dec("0")), "$0.00"},
		{Quantity(dec("450.5")), "$450.50"},
		{Quantity(dec("3100")), "$3.1K"},
		{Quantity(dec("1250")), "$1.2K"}, // half-to-even: 1.25 → 1.2
		{Quantity(dec("1350")), "$1.4K"}, // half-to-even: 1.35 → 1.4
		{Quantity(dec("999950")), "$1000.0K"},
		{Quantity(dec("1200000")), "$1.2M"},
		{Quantity(dec("1150000")), "$1.2M"}, // half-to-even: 1.15 → 1.2
		{Quantity(dec("2500000")), "$2.5M"},
		{CountOf(dec("500")), "$500.00"},
		{Unknown(), "N/A"},
		{Percentage(dec("0.5")), "N/A"},
	}

	for _, tt := range tests {
		if got := FormatMagnitude(tt.in); got != tt.want {
			t.Errorf("FormatMagnitude(%s %s) = %q, want %q", tt.in.Kind, tt.in.Dec, got, tt.want)
		}
	}
}

// Round-tripping a well-formed magnitude string preserves the order of
// magnitude and the rounding convention.
func TestMagnitudeRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$3.1K", "$3.1K"},
		{"$1.2M", "$1.2M"},
		{"450.00", "$450.00"},
		{"$999.99", "$999.99"},
		{"2.5m", "$2.5M"},
	}

	for _, tt := range tests {
		if got := FormatMagnitude(ParseMagnitude(tt.in)); got != tt.want {
			t.Errorf("round trip %q = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Percentage(dec("0.0805")), "8.05%"},
		{Percentage(dec("0.08055")), "8.06%"}, // half-to-even: 8.055 → 8.06
		{Percentage(dec("1")), "100.00%"},
		{Percentage(dec("0")), "0.00%"},
		{Unknown(), "N/A"},
		{Quantity(dec("8.05")), "N/A"},
	}

	for _, tt := range tests {
		if got := FormatPercent(tt.in); got != tt.want {
			t.Errorf("FormatPercent(%s) = %q, want %q", tt.in.Dec, got, tt.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{CountOf(dec("7004")), "7,004"},
		{CountOf(dec("123")), "123"},
		{CountOf(dec("1234567")), "1,234,567"},
		{Unknown(), "N/A"},
		{Quantity(dec("12.5")), "N/A"},
	}

	for _, tt := range tests {
		if got := FormatCount(tt.in); got != tt.want {
			t.Errorf("FormatCount(%s) = %q, want %q", tt.in.Dec, got, tt.want)
		}
	}
}

func TestFormatUSDAndDecimal(t *testing.T) {
	if got := FormatUSD(Quantity(dec("234.125"))); got != "$234.12" {
		t.Errorf("FormatUSD = %q, want $234.12", got)
	}
	if got := FormatUSD(Quantity(dec("12345.675"))); got != "$12,345.68" {
		t.Errorf("FormatUSD = %q, want $12,345.68", got)
	}
	if got := FormatUSD(Unknown()); got != "N/A" {
		t.Errorf("FormatUSD(Unknown) = %q, want N/A", got)
	}
	if got := FormatDecimal(Quantity(dec("46636.5"))); got != "46,636.5" {
		t.Errorf("FormatDecimal = %q, want 46,636.5", got)
	}
	if got := FormatDecimal(Unknown()); got != "N/A" {
		t.Errorf("FormatDecimal(Unknown) = %q, want N/A", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"12.5", "SOL", "12.50 SOL"},
		{"12.567", "SOL", "12.567 SOL"},
		{"1500", "USDC", "1,500.00 USDC"},
	}

	for _, tt := range tests {
		if got := FormatAmount(dec(tt.amount), tt.currency); got != tt.want {
			t.Errorf("FormatAmount(%s, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	tests := []struct{ in, want string }{
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567.89", "1,234,567.89"},
		{"-1234.5", "-1,234.5"},
		{"0.25", "0.25"},
	}

	for _, tt := range tests {
		if got := groupThousands(tt.in); got != tt.want {
			t.Errorf("groupThousands(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
