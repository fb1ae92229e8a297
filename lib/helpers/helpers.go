package helpers

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	thousand   = decimal.NewFromInt(1000)
	oneTwenty  = decimal.RequireFromString("1.2")
	microPenny = decimal.RequireFromString("0.00001")
)

func EscapeMarkdownV2(text string) string {
	charactersToEscape := []string{"\\", ".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	for _, char := range charactersToEscape {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// priceDecimals picks the display precision for a USD price.
func priceDecimals(price decimal.Decimal) int32 {
	abs := price.Abs()
	switch {
	case abs.GreaterThanOrEqual(thousand):
		return 0
	case abs.GreaterThan(oneTwenty):
		return 2
	case abs.LessThan(microPenny) && !abs.IsZero():
		return 8
	}
	return 6
}

// group formats v with the given precision and English thousand separators.
func group(v decimal.Decimal, decimals int32) string {
	rounded := v.Round(decimals)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	fixed := rounded.StringFixed(decimals)
	intPart, frac, _ := strings.Cut(fixed, ".")

	p := message.NewPrinter(language.English)
	grouped := p.Sprintf("%d", rounded.IntPart())
	if len(intPart) > 18 {
		grouped = intPart
	}
	if frac != "" {
		return sign + grouped + "." + frac
	}
	return sign + grouped
}

func FormatPriceUS(price decimal.Decimal, escapeMarkdown bool) string {
	formatted := group(price, priceDecimals(price))
	if escapeMarkdown {
		return EscapeMarkdownV2(formatted)
	}
	return formatted
}

func FormatPriceRoundedUS(price decimal.Decimal) string {
	return EscapeMarkdownV2(group(price, 0))
}

// FormatPercentUS renders a signed percentage with two decimals, e.g. "+12.50%".
func FormatPercentUS(pct decimal.Decimal) string {
	formatted := group(pct, 2)
	if pct.Round(2).IsPositive() {
		formatted = "+" + formatted
	}
	return EscapeMarkdownV2(formatted + "%")
}

// FormatQuantityUS renders a coin quantity without trailing zeros.
func FormatQuantityUS(qty decimal.Decimal) string {
	return EscapeMarkdownV2(qty.String())
}
