package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// priceDecimals is the fixed precision a price is rendered at before
// trailing zeros are stripped.
const priceDecimals = 10

// FormatPrice renders a price for display and for the exchange boundary.
// The value is formatted at fixed precision, then trailing zeros and a
// trailing decimal point are stripped; some exchanges reject prices with
// trailing-zero noise.
func FormatPrice(price decimal.Decimal) string {
	s := price.StringFixed(priceDecimals)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
