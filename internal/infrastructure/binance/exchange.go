package binance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/adapter/gateway"
	"github.com/zono819/token-seller/internal/domain/entity"
)

// ExchangeKey identifies this driver in the gateway registry.
const ExchangeKey = "binance"

// Ensure Exchange implements ExchangeGateway
var _ gateway.ExchangeGateway = (*Exchange)(nil)

// Exchange implements gateway.ExchangeGateway for Binance spot
type Exchange struct {
	client *Client

	// initErr holds a construction failure, surfaced on first use. A
	// session configured for a proxy must never fall back to direct
	// requests.
	initErr error

	mu sync.RWMutex
	// rawSymbols maps BASE/QUOTE symbols to Binance's concatenated form.
	rawSymbols map[string]string
	markets    map[string]*entity.Market
}

// Factory builds Binance gateway sessions for the registry
func Factory(creds gateway.Credentials, proxy *gateway.Proxy) gateway.ExchangeGateway {
	proxyURL := ""
	if proxy != nil {
		proxyURL = fmt.Sprintf("http://%s:%s@%s:%s", proxy.Username, proxy.Password, proxy.Host, proxy.Port)
	}
	client, err := NewClient(ClientConfig{
		APIKey:    creds.APIKey,
		APISecret: creds.Secret,
		ProxyURL:  proxyURL,
	})
	if err != nil {
		return &Exchange{initErr: gateway.WrapErr(ExchangeKey, "configure session", err)}
	}
	return &Exchange{client: client}
}

// NewExchange creates a gateway around an existing client
func NewExchange(client *Client) *Exchange {
	return &Exchange{client: client}
}

// Connect loads market metadata, which also verifies reachability
func (e *Exchange) Connect(ctx context.Context) error {
	_, err := e.LoadMarkets(ctx)
	return err
}

// Close releases the session
func (e *Exchange) Close(ctx context.Context) error {
	if e.client != nil {
		e.client.httpClient.CloseIdleConnections()
	}
	return nil
}

// LoadMarkets retrieves market metadata keyed by BASE/QUOTE symbol
func (e *Exchange) LoadMarkets(ctx context.Context) (map[string]*entity.Market, error) {
	if e.initErr != nil {
		return nil, e.initErr
	}
	info, err := e.client.GetExchangeInfo(ctx)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "load markets", err)
	}

	markets := make(map[string]*entity.Market, len(info.Symbols))
	raw := make(map[string]string, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		symbol := s.BaseAsset + "/" + s.QuoteAsset
		m := &entity.Market{
			Symbol: symbol,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
		}
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			if max, err := decimal.NewFromString(f.MaxQty); err == nil && max.IsPositive() {
				m.MaxOrderAmount = &max
			}
			if min, err := decimal.NewFromString(f.MinQty); err == nil {
				m.MinOrderAmount = min
			}
		}
		markets[symbol] = m
		raw[symbol] = s.Symbol
	}

	e.mu.Lock()
	e.markets = markets
	e.rawSymbols = raw
	e.mu.Unlock()

	return markets, nil
}

// FetchBalance retrieves free balances keyed by asset
func (e *Exchange) FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	if e.initErr != nil {
		return nil, e.initErr
	}
	acct, err := e.client.GetAccount(ctx)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "fetch balance", err)
	}

	free := make(map[string]decimal.Decimal, len(acct.Balances))
	for _, b := range acct.Balances {
		amount, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		free[b.Asset] = amount
	}
	return free, nil
}

// FetchTicker retrieves the last traded price for a symbol
func (e *Exchange) FetchTicker(ctx context.Context, symbol string) (*entity.Ticker, error) {
	raw, err := e.rawSymbol(symbol)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "fetch ticker", err)
	}

	tp, err := e.client.GetTickerPrice(ctx, raw)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "fetch ticker", err)
	}
	last, err := decimal.NewFromString(tp.Price)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "fetch ticker", fmt.Errorf("bad price %q: %w", tp.Price, err))
	}
	return &entity.Ticker{Symbol: symbol, Last: last, Timestamp: time.Now()}, nil
}

// CreateLimitSellOrder places a limit sell order
func (e *Exchange) CreateLimitSellOrder(ctx context.Context, symbol string, amount, price decimal.Decimal) (*entity.Order, error) {
	raw, err := e.rawSymbol(symbol)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "create order", err)
	}

	resp, err := e.client.PlaceLimitSell(ctx, raw, amount.String(), entity.FormatPrice(price))
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "create order", err)
	}
	return e.toOrder(symbol, resp), nil
}

// FetchOrder retrieves an order by id
func (e *Exchange) FetchOrder(ctx context.Context, orderID, symbol string) (*entity.Order, error) {
	raw, err := e.rawSymbol(symbol)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "fetch order", err)
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, gateway.WrapErr(ExchangeKey, "fetch order", err)
	}

	resp, err := e.client.GetOrder(ctx, raw, id)
	if err != nil {
		if isUnknownOrder(err) {
			return nil, gateway.ErrOrderNotFound
		}
		return nil, gateway.WrapErr(ExchangeKey, "fetch order", err)
	}
	return e.toOrder(symbol, resp), nil
}

// CancelOrder cancels an order by id
func (e *Exchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	raw, err := e.rawSymbol(symbol)
	if err != nil {
		return gateway.WrapErr(ExchangeKey, "cancel order", err)
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return gateway.WrapErr(ExchangeKey, "cancel order", err)
	}

	if err := e.client.CancelOrder(ctx, raw, id); err != nil {
		if isUnknownOrder(err) {
			return gateway.ErrOrderNotFound
		}
		return gateway.WrapErr(ExchangeKey, "cancel order", err)
	}
	return nil
}

func (e *Exchange) rawSymbol(symbol string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	raw, ok := e.rawSymbols[symbol]
	if !ok {
		return "", fmt.Errorf("symbol %s not in loaded markets", symbol)
	}
	return raw, nil
}

func (e *Exchange) toOrder(symbol string, resp *orderResponse) *entity.Order {
	price, _ := decimal.NewFromString(resp.Price)
	amount, _ := decimal.NewFromString(resp.OrigQty)
	filled, _ := decimal.NewFromString(resp.ExecutedQty)

	status := entity.OrderStatusOpen
	switch resp.Status {
	case "FILLED":
		status = entity.OrderStatusFilled
	case "CANCELED", "EXPIRED":
		status = entity.OrderStatusCanceled
	case "REJECTED":
		status = entity.OrderStatusRejected
	}

	return &entity.Order{
		ID:        formatOrderID(resp.OrderID),
		Symbol:    symbol,
		Side:      entity.SideSell,
		Price:     price,
		Amount:    amount,
		Filled:    filled,
		Remaining: amount.Sub(filled),
		Status:    status,
		CreatedAt: time.UnixMilli(resp.Time),
	}
}

func isUnknownOrder(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeOrderDoesNotExist
}
