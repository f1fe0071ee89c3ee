package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/adapter/gateway"
	"github.com/zono819/token-seller/internal/adapter/sink"
	"github.com/zono819/token-seller/internal/domain/entity"
	"github.com/zono819/token-seller/internal/infrastructure/logger"
	"github.com/zono819/token-seller/internal/observability"
)

// quoteValueThreshold is the quote-currency value below which a balance is
// treated as dust: too small to offer, and small enough to conclude that a
// vanished order was fully executed.
var quoteValueThreshold = decimal.NewFromInt(1)

// lifecycleLoop brings one task's reality (balance + resting order) into
// agreement with its intent (sell everything at the target price), and
// recovers from connectivity failure. It never terminates on ordinary
// errors, only on cancellation.
type lifecycleLoop struct {
	task       *Task
	market     *entity.Market
	newGateway func() gateway.ExchangeGateway
	sink       sink.EventSink
	log        *logger.Logger

	pollInterval    time.Duration
	backoffInterval time.Duration
	callTimeout     time.Duration

	gw       gateway.ExchangeGateway
	failures int
}

func (l *lifecycleLoop) run(ctx context.Context) {
	status := entity.TaskStatus{
		TaskID:        l.task.ID,
		ExchangeKey:   l.task.ExchangeKey,
		Symbol:        l.task.Symbol,
		DisplayPrice:  entity.FormatPrice(l.task.TargetPrice()),
		AmountInOrder: decimal.Zero,
		Phase:         entity.PhaseInitializing,
	}
	l.sink.PublishStatus(status)

	defer l.dropSession()

	for {
		err := l.cycle(ctx, &status)
		switch {
		case err == nil:
			l.failures = 0
			observability.RecordRecovered(l.task.ExchangeKey)
			l.sink.PublishStatus(status)
			if !l.sleep(ctx, l.pollInterval) {
				l.finish(&status)
				return
			}

		case canceled(ctx, err):
			l.finish(&status)
			return

		default:
			l.failures++
			observability.RecordGatewayError(l.task.ExchangeKey, l.failures)
			l.log.Error("task %s: %v", l.task.ID, err)
			l.sink.PublishLog(fmt.Sprintf("[%s] error: %v", l.task.ExchangeKey, err))

			// Drop the session so the next cycle reopens a fresh one.
			l.dropSession()
			status.Phase = entity.PhaseReconnecting
			status.AmountInOrder = decimal.Zero
			l.sink.PublishStatus(status)
			if !l.sleep(ctx, l.backoffInterval) {
				l.finish(&status)
				return
			}
		}
	}
}

// cycle executes one poll/decide/act iteration
func (l *lifecycleLoop) cycle(ctx context.Context, status *entity.TaskStatus) error {
	observability.RecordCycle(l.task.ExchangeKey)

	if l.gw == nil {
		gw := l.newGateway()
		if err := l.call(ctx, gw.Connect); err != nil {
			return err
		}
		l.gw = gw
	}

	var balances map[string]decimal.Decimal
	err := l.call(ctx, func(cctx context.Context) error {
		var err error
		balances, err = l.gw.FetchBalance(cctx)
		return err
	})
	if err != nil {
		return err
	}
	freeBalance := balances[entity.BaseAsset(l.task.Symbol)]

	var ticker *entity.Ticker
	err = l.call(ctx, func(cctx context.Context) error {
		var err error
		ticker, err = l.gw.FetchTicker(cctx, l.task.Symbol)
		return err
	})
	if err != nil {
		return err
	}
	equivalentQuote := freeBalance.Mul(ticker.Last)

	targetPrice := l.task.TargetPrice()
	orderID := l.task.OpenOrderID()

	status.DisplayPrice = entity.FormatPrice(targetPrice)
	status.AmountInOrder = decimal.Zero
	status.Phase = entity.PhaseRunning

	if orderID != "" {
		l.checkOrder(ctx, status, orderID, equivalentQuote)
		return ctx.Err()
	}

	if equivalentQuote.GreaterThan(quoteValueThreshold) {
		l.placeOrders(ctx, status, freeBalance, targetPrice)
		return ctx.Err()
	}

	status.Phase = entity.PhaseInsufficientFunds
	return nil
}

// checkOrder reconciles the believed resting order against the exchange.
// A failed or empty lookup is ambiguous: the quote value of the remaining
// balance decides between "fully executed" and "cannot verify, do not
// re-place" (re-placing here could duplicate a live order).
func (l *lifecycleLoop) checkOrder(ctx context.Context, status *entity.TaskStatus, orderID string, equivalentQuote decimal.Decimal) {
	var order *entity.Order
	err := l.call(ctx, func(cctx context.Context) error {
		var err error
		order, err = l.gw.FetchOrder(cctx, orderID, l.task.Symbol)
		return err
	})

	if err != nil {
		if !gateway.IsNotFound(err) {
			l.log.Warn("task %s: order %s state ambiguous: %v", l.task.ID, orderID, err)
		}
		if equivalentQuote.LessThan(quoteValueThreshold) {
			l.task.clearOpenOrderID(orderID)
			status.Phase = entity.PhaseOrderFilled
		} else {
			status.Phase = entity.PhaseNoOrder
		}
		return
	}

	if order.Remaining.IsPositive() {
		status.AmountInOrder = order.Remaining
		status.Phase = entity.PhaseOrderPending
		return
	}

	l.task.clearOpenOrderID(orderID)
	status.Phase = entity.PhaseOrderFilled
}

// placeOrders offers the full free balance, split to respect the market's
// maximum order size. Only the first order id is tracked; the remaining
// split orders are fire-and-forget.
func (l *lifecycleLoop) placeOrders(ctx context.Context, status *entity.TaskStatus, freeBalance, targetPrice decimal.Decimal) {
	var max *decimal.Decimal
	if l.market != nil {
		max = l.market.MaxOrderAmount
	}

	var orders []*entity.Order
	err := l.call(ctx, func(cctx context.Context) error {
		var err error
		orders, err = placeSplitSell(cctx, l.gw, l.task.Symbol, freeBalance, targetPrice, max)
		return err
	})

	if len(orders) == 0 {
		status.Phase = entity.PhaseOrderCreateFailed
		if err != nil {
			l.log.Error("task %s: order placement failed: %v", l.task.ID, err)
			l.sink.PublishLog(fmt.Sprintf("[%s] order placement failed: %v", l.task.ExchangeKey, err))
		}
		return
	}

	if err != nil {
		l.log.Warn("task %s: %d of %d split orders placed before failure: %v",
			l.task.ID, len(orders), len(Split(freeBalance, max)), err)
	}

	l.task.setOpenOrderID(orders[0].ID)
	placed := decimal.Zero
	for _, o := range orders {
		placed = placed.Add(o.Amount)
	}
	status.AmountInOrder = placed
	status.Phase = entity.PhaseOrderPlaced
	observability.RecordOrdersPlaced(l.task.ExchangeKey, len(orders))
	l.sink.PublishLog(fmt.Sprintf("[%s] order created: %s, amount=%s, price=%s",
		l.task.ExchangeKey, l.task.Symbol, placed.String(), entity.FormatPrice(targetPrice)))
}

// call runs one gateway operation under the bounded per-call timeout
func (l *lifecycleLoop) call(ctx context.Context, op func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()
	return op(cctx)
}

// sleep pauses between iterations, false when cancelled
func (l *lifecycleLoop) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// finish emits the final cancelled status. Cancellation does not touch a
// resting exchange order; that is an explicit supervisor action.
func (l *lifecycleLoop) finish(status *entity.TaskStatus) {
	status.Phase = entity.PhaseCancelled
	l.sink.PublishStatus(*status)
}

func (l *lifecycleLoop) dropSession() {
	if l.gw == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), l.callTimeout)
	defer cancel()
	if err := l.gw.Close(closeCtx); err != nil {
		l.log.Debug("task %s: session close: %v", l.task.ID, err)
	}
	l.gw = nil
}

func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
