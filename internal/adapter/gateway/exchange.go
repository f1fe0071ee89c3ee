package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/domain/entity"
)

// Credentials holds one exchange account's API credentials
type Credentials struct {
	APIKey   string
	Secret   string
	Password string
	UID      string
}

// Empty returns true if no usable credentials are present
func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.Secret == ""
}

// Proxy holds an authenticated HTTP proxy configuration
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

// ExchangeGateway defines the capability set the supervisor needs from one
// exchange session. Sessions are not shared across tasks; each task holds
// its own and releases it on failure.
type ExchangeGateway interface {
	// Connect establishes and authenticates the session
	Connect(ctx context.Context) error

	// Close releases the session
	Close(ctx context.Context) error

	// LoadMarkets retrieves market metadata keyed by normalized symbol
	LoadMarkets(ctx context.Context) (map[string]*entity.Market, error)

	// FetchBalance retrieves free balances keyed by asset
	FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error)

	// FetchTicker retrieves the last traded price for a symbol
	FetchTicker(ctx context.Context, symbol string) (*entity.Ticker, error)

	// CreateLimitSellOrder places a limit sell order
	CreateLimitSellOrder(ctx context.Context, symbol string, amount, price decimal.Decimal) (*entity.Order, error)

	// FetchOrder retrieves an order by id, ErrOrderNotFound if the
	// exchange no longer knows it
	FetchOrder(ctx context.Context, orderID, symbol string) (*entity.Order, error)

	// CancelOrder cancels an order by id
	CancelOrder(ctx context.Context, orderID, symbol string) error
}

// Factory builds a fresh gateway session for one account. The exchange key
// in the configuration selects which factory is used.
type Factory func(creds Credentials, proxy *Proxy) ExchangeGateway

// Registry maps exchange keys to gateway factories
type Registry map[string]Factory

// New builds a session for the given exchange key, false if no factory
// is registered for it
func (r Registry) New(exchangeKey string, creds Credentials, proxy *Proxy) (ExchangeGateway, bool) {
	f, ok := r[exchangeKey]
	if !ok {
		return nil, false
	}
	return f(creds, proxy), true
}
