package supervisor

import (
	"context"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/adapter/gateway"
	"github.com/zono819/token-seller/internal/domain/entity"
)

// fakeGateway is a scripted in-memory exchange shared by every session
// the registry hands out, so reconnects can be observed.
type fakeGateway struct {
	mu sync.Mutex

	markets map[string]*entity.Market
	free    map[string]decimal.Decimal
	last    decimal.Decimal
	orders  map[string]*entity.Order
	nextID  int

	connects int
	closes   int

	balanceFailures int // fail this many FetchBalance calls
	createErr       error
	fetchOrderErr   error
	cancelOrderErr  error
}

var _ gateway.ExchangeGateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		markets: make(map[string]*entity.Market),
		free:    make(map[string]decimal.Decimal),
		orders:  make(map[string]*entity.Order),
	}
}

func (f *fakeGateway) addMarket(symbol string, maxAmount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &entity.Market{
		Symbol: symbol,
		Base:   entity.BaseAsset(symbol),
		Quote:  entity.QuoteAsset(symbol),
	}
	if maxAmount != "" {
		max := decimal.RequireFromString(maxAmount)
		m.MaxOrderAmount = &max
	}
	f.markets[symbol] = m
}

func (f *fakeGateway) setBalance(asset, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.free[asset] = decimal.RequireFromString(amount)
}

func (f *fakeGateway) setLastPrice(price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = decimal.RequireFromString(price)
}

func (f *fakeGateway) setOrderRemaining(id, remaining string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.Remaining = decimal.RequireFromString(remaining)
	}
}

func (f *fakeGateway) dropOrder(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orders, id)
}

func (f *fakeGateway) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeGateway) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeGateway) placedAmounts() []decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	amounts := make([]decimal.Decimal, 0, f.nextID)
	for i := 1; i <= f.nextID; i++ {
		if o, ok := f.orders[strconv.Itoa(i)]; ok {
			amounts = append(amounts, o.Amount)
		}
	}
	return amounts
}

func (f *fakeGateway) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return nil
}

func (f *fakeGateway) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeGateway) LoadMarkets(ctx context.Context) (map[string]*entity.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*entity.Market, len(f.markets))
	for k, v := range f.markets {
		out[k] = v
	}
	return out, nil
}

func (f *fakeGateway) FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceFailures > 0 {
		f.balanceFailures--
		return nil, &gateway.Error{Exchange: "testex", Op: "fetch balance", Err: context.DeadlineExceeded}
	}
	out := make(map[string]decimal.Decimal, len(f.free))
	for k, v := range f.free {
		out[k] = v
	}
	return out, nil
}

func (f *fakeGateway) FetchTicker(ctx context.Context, symbol string) (*entity.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &entity.Ticker{Symbol: symbol, Last: f.last}, nil
}

func (f *fakeGateway) CreateLimitSellOrder(ctx context.Context, symbol string, amount, price decimal.Decimal) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	order := &entity.Order{
		ID:        strconv.Itoa(f.nextID),
		Symbol:    symbol,
		Side:      entity.SideSell,
		Price:     price,
		Amount:    amount,
		Remaining: amount,
		Status:    entity.OrderStatusOpen,
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeGateway) FetchOrder(ctx context.Context, orderID, symbol string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchOrderErr != nil {
		return nil, f.fetchOrderErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, gateway.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, orderID, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelOrderErr != nil {
		return f.cancelOrderErr
	}
	if _, ok := f.orders[orderID]; !ok {
		return gateway.ErrOrderNotFound
	}
	delete(f.orders, orderID)
	return nil
}

// recordSink captures published events for assertions
type recordSink struct {
	mu       sync.Mutex
	statuses []entity.TaskStatus
	logs     []string
}

func (r *recordSink) PublishStatus(s entity.TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordSink) PublishLog(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, line)
}

func (r *recordSink) sawPhase(phase entity.Phase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if s.Phase == phase {
			return true
		}
	}
	return false
}

func (r *recordSink) lastPhase() entity.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1].Phase
}

func (r *recordSink) statusWith(phase entity.Phase) (entity.TaskStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if s.Phase == phase {
			return s, true
		}
	}
	return entity.TaskStatus{}, false
}
