package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Market represents market metadata for one symbol (exchange-agnostic)
type Market struct {
	Symbol string
	Base   string
	Quote  string

	// MaxOrderAmount is the largest quantity accepted in a single order.
	// Nil when the exchange does not impose a limit.
	MaxOrderAmount *decimal.Decimal

	// MinOrderAmount is the smallest accepted quantity, zero if unknown.
	MinOrderAmount decimal.Decimal
}

// Ticker represents the last traded state of a symbol
type Ticker struct {
	Symbol    string
	Last      decimal.Decimal
	Timestamp time.Time
}

// NormalizeSymbol uppercases a user-entered symbol into BASE/QUOTE form
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// BaseAsset returns the base token of a BASE/QUOTE symbol
func BaseAsset(symbol string) string {
	if i := strings.Index(symbol, "/"); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// QuoteAsset returns the quote currency of a BASE/QUOTE symbol
func QuoteAsset(symbol string) string {
	if i := strings.Index(symbol, "/"); i >= 0 && i+1 < len(symbol) {
		return symbol[i+1:]
	}
	return ""
}
