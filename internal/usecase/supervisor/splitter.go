package supervisor

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/adapter/gateway"
	"github.com/zono819/token-seller/internal/domain/entity"
)

// Split chunks a total sell amount so that every chunk respects the
// market's maximum single-order size. Chunks sum exactly to total and are
// emitted in placement order; with no maximum the total is one chunk.
func Split(total decimal.Decimal, max *decimal.Decimal) []decimal.Decimal {
	if !total.IsPositive() {
		return nil
	}
	if max == nil || !max.IsPositive() {
		return []decimal.Decimal{total}
	}

	var chunks []decimal.Decimal
	remaining := total
	for remaining.IsPositive() {
		chunk := decimal.Min(remaining, *max)
		chunks = append(chunks, chunk)
		remaining = remaining.Sub(chunk)
	}
	return chunks
}

// placeSplitSell places one limit sell order per chunk. Orders placed
// before a failure are returned alongside the error; the caller tracks
// only the first order id.
func placeSplitSell(ctx context.Context, gw gateway.ExchangeGateway, symbol string, total, price decimal.Decimal, max *decimal.Decimal) ([]*entity.Order, error) {
	var orders []*entity.Order
	for _, chunk := range Split(total, max) {
		order, err := gw.CreateLimitSellOrder(ctx, symbol, chunk, price)
		if err != nil {
			return orders, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
