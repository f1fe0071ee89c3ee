package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ClientConfig holds configuration for the Binance spot API client
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string

	// ProxyURL routes all requests through an authenticated HTTP proxy
	// when non-empty.
	ProxyURL string
}

// Client is a Binance spot REST API client
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// APIError is a Binance error response body
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Msg)
}

// Binance error code for an unknown order id.
const codeOrderDoesNotExist = -2013

// NewClient creates a new Binance API client
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.binance.com"
	}

	transport := http.DefaultTransport
	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}, nil
}

// sign appends timestamp and HMAC-SHA256 signature to the query values
func (c *Client) sign(values url.Values) string {
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	payload := values.Encode()
	mac := hmac.New(sha256.New, []byte(c.config.APISecret))
	mac.Write([]byte(payload))
	return payload + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

// doRequest performs an HTTP request against one endpoint. Signed requests
// carry the API key header and a signed query string.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, values url.Values, signed bool) ([]byte, error) {
	if values == nil {
		values = url.Values{}
	}

	query := values.Encode()
	if signed {
		query = c.sign(values)
	}

	reqURL := c.config.BaseURL + endpoint
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != 0 {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// exchangeInfo is the /api/v3/exchangeInfo response
type exchangeInfo struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol     string       `json:"symbol"`
	Status     string       `json:"status"`
	BaseAsset  string       `json:"baseAsset"`
	QuoteAsset string       `json:"quoteAsset"`
	Filters    []filterInfo `json:"filters"`
}

type filterInfo struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty"`
	MaxQty     string `json:"maxQty"`
}

// GetExchangeInfo retrieves market metadata for all spot symbols
func (c *Client) GetExchangeInfo(ctx context.Context) (*exchangeInfo, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", nil, false)
	if err != nil {
		return nil, err
	}
	var info exchangeInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, fmt.Errorf("unmarshal exchange info: %w", err)
	}
	return &info, nil
}

// tickerPrice is the /api/v3/ticker/price response
type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetTickerPrice retrieves the last traded price of one raw symbol
func (c *Client) GetTickerPrice(ctx context.Context, rawSymbol string) (*tickerPrice, error) {
	values := url.Values{}
	values.Set("symbol", rawSymbol)
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/price", values, false)
	if err != nil {
		return nil, err
	}
	var tp tickerPrice
	if err := json.Unmarshal(respBody, &tp); err != nil {
		return nil, fmt.Errorf("unmarshal ticker: %w", err)
	}
	return &tp, nil
}

// accountInfo is the /api/v3/account response
type accountInfo struct {
	Balances []struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

// GetAccount retrieves account balances
func (c *Client) GetAccount(ctx context.Context) (*accountInfo, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v3/account", nil, true)
	if err != nil {
		return nil, err
	}
	var acct accountInfo
	if err := json.Unmarshal(respBody, &acct); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &acct, nil
}

// orderResponse is the shape shared by order placement and lookup
type orderResponse struct {
	Symbol      string `json:"symbol"`
	OrderID     int64  `json:"orderId"`
	Price       string `json:"price"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
	Status      string `json:"status"`
	Time        int64  `json:"time"`
}

// PlaceLimitSell places a GTC limit sell order
func (c *Client) PlaceLimitSell(ctx context.Context, rawSymbol, quantity, price string) (*orderResponse, error) {
	values := url.Values{}
	values.Set("symbol", rawSymbol)
	values.Set("side", "SELL")
	values.Set("type", "LIMIT")
	values.Set("timeInForce", "GTC")
	values.Set("quantity", quantity)
	values.Set("price", price)

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/v3/order", values, true)
	if err != nil {
		return nil, err
	}
	var ord orderResponse
	if err := json.Unmarshal(respBody, &ord); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &ord, nil
}

// GetOrder retrieves an order by id
func (c *Client) GetOrder(ctx context.Context, rawSymbol string, orderID int64) (*orderResponse, error) {
	values := url.Values{}
	values.Set("symbol", rawSymbol)
	values.Set("orderId", strconv.FormatInt(orderID, 10))

	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v3/order", values, true)
	if err != nil {
		return nil, err
	}
	var ord orderResponse
	if err := json.Unmarshal(respBody, &ord); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &ord, nil
}

// CancelOrder cancels an order by id
func (c *Client) CancelOrder(ctx context.Context, rawSymbol string, orderID int64) error {
	values := url.Values{}
	values.Set("symbol", rawSymbol)
	values.Set("orderId", strconv.FormatInt(orderID, 10))

	_, err := c.doRequest(ctx, http.MethodDelete, "/api/v3/order", values, true)
	return err
}
