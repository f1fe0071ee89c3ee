package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zono819/token-seller/internal/adapter/gateway"
)

const exchangeInfoBody = `{
	"symbols": [
		{
			"symbol": "PEPEUSDT",
			"status": "TRADING",
			"baseAsset": "PEPE",
			"quoteAsset": "USDT",
			"filters": [
				{"filterType": "LOT_SIZE", "minQty": "1", "maxQty": "9000000"},
				{"filterType": "PRICE_FILTER"}
			]
		},
		{
			"symbol": "OLDUSDT",
			"status": "BREAK",
			"baseAsset": "OLD",
			"quoteAsset": "USDT",
			"filters": []
		}
	]
}`

func newTestExchange(t *testing.T, handler http.HandlerFunc) *Exchange {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)
	return NewExchange(client)
}

func TestLoadMarkets(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		w.Write([]byte(exchangeInfoBody))
	})

	markets, err := ex.LoadMarkets(context.Background())
	require.NoError(t, err)

	// Non-trading symbols are skipped.
	require.Len(t, markets, 1)

	m := markets["PEPE/USDT"]
	require.NotNil(t, m)
	assert.Equal(t, "PEPE", m.Base)
	assert.Equal(t, "USDT", m.Quote)
	require.NotNil(t, m.MaxOrderAmount)
	assert.True(t, m.MaxOrderAmount.Equal(decimal.NewFromInt(9000000)))
	assert.True(t, m.MinOrderAmount.Equal(decimal.NewFromInt(1)))
}

func TestCreateLimitSellOrderSignsRequest(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/exchangeInfo":
			w.Write([]byte(exchangeInfoBody))
		case "/api/v3/order":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
			q := r.URL.Query()
			assert.Equal(t, "PEPEUSDT", q.Get("symbol"))
			assert.Equal(t, "SELL", q.Get("side"))
			assert.Equal(t, "0.00001", q.Get("price"), "price must cross the boundary without trailing zeros")
			assert.NotEmpty(t, q.Get("timestamp"))
			assert.NotEmpty(t, q.Get("signature"))
			w.Write([]byte(`{"symbol":"PEPEUSDT","orderId":42,"price":"0.00001","origQty":"100","executedQty":"0","status":"NEW"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	_, err := ex.LoadMarkets(context.Background())
	require.NoError(t, err)

	price, _ := decimal.NewFromString("0.0000100000")
	order, err := ex.CreateLimitSellOrder(context.Background(), "PEPE/USDT", decimal.NewFromInt(100), price)
	require.NoError(t, err)
	assert.Equal(t, "42", order.ID)
	assert.True(t, order.Remaining.Equal(decimal.NewFromInt(100)))
}

func TestFetchOrderNotFound(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/exchangeInfo" {
			w.Write([]byte(exchangeInfoBody))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2013,"msg":"Order does not exist."}`))
	})

	_, err := ex.LoadMarkets(context.Background())
	require.NoError(t, err)

	_, err = ex.FetchOrder(context.Background(), "7", "PEPE/USDT")
	assert.True(t, gateway.IsNotFound(err))
}

func TestFactorySurfacesBadProxy(t *testing.T) {
	ex := Factory(
		gateway.Credentials{APIKey: "key", Secret: "secret"},
		&gateway.Proxy{Host: "bad host", Port: "1080", Username: "u", Password: "p"},
	)

	// A proxied session must fail outright rather than fall back to
	// direct requests.
	err := ex.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "configure session")
	require.NoError(t, ex.Close(context.Background()))
}

func TestFetchBalance(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("signature"))
		w.Write([]byte(`{"balances":[{"asset":"PEPE","free":"100.5"},{"asset":"USDT","free":"0"}]}`))
	})

	free, err := ex.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, free["PEPE"].Equal(decimal.RequireFromString("100.5")))
	assert.True(t, free["USDT"].IsZero())
}
