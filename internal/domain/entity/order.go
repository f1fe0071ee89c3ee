package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents order side (buy or sell)
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus represents order status as reported by the exchange
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
)

// Order represents a limit order (exchange-agnostic)
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Filled    decimal.Decimal
	Remaining decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
}

// IsFilled returns true if no quantity remains on the order
func (o *Order) IsFilled() bool {
	return o.Remaining.IsZero()
}
