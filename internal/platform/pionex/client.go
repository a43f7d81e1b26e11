// Package pionex implements the Pionex exchange REST client and the
// real-time market-data stream.
package pionex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradebot/internal/crypto"
	"github.com/alanyoungcy/tradebot/internal/domain"
)

// maxKlineLimit is the largest batch the klines endpoint accepts per request.
const maxKlineLimit = 500

// Client is an HTTP client for the Pionex REST API. Public endpoints work
// without credentials; private endpoints require an HMACAuth.
type Client struct {
	baseURL string
	auth    *crypto.HMACAuth
	http    *http.Client
}

// Balance is a single coin balance on the exchange account.
type Balance struct {
	Coin   string
	Free   float64
	Frozen float64
}

// NewClient creates a Client for the given base URL. auth may be nil when
// only public endpoints are used.
func NewClient(baseURL string, auth *crypto.HMACAuth) *Client {
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Klines fetches up to limit closed candles for symbol at the given
// timeframe, paginating backwards in batches of 500. The result is sorted
// ascending by timestamp.
func (c *Client) Klines(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	interval, ok := intervalMap[timeframe]
	if !ok {
		return nil, fmt.Errorf("pionex: unsupported timeframe %q", timeframe)
	}

	var all []domain.Candle
	remaining := limit
	var endTime int64

	for remaining > 0 {
		batchSize := remaining
		if batchSize > maxKlineLimit {
			batchSize = maxKlineLimit
		}

		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("interval", interval)
		q.Set("limit", strconv.Itoa(batchSize))
		if endTime > 0 {
			q.Set("endTime", strconv.FormatInt(endTime, 10))
		}

		var payload struct {
			apiEnvelope
			Data struct {
				Klines []klineData `json:"klines"`
			} `json:"data"`
		}
		if err := c.get(ctx, "/api/v1/market/klines", q, false, &payload); err != nil {
			return nil, err
		}

		batch := make([]domain.Candle, 0, len(payload.Data.Klines))
		for _, k := range payload.Data.Klines {
			batch = append(batch, k.toDomain())
		}
		if len(batch) == 0 {
			break
		}

		// Prepend older data and move the cursor before the oldest bar.
		all = append(batch, all...)
		remaining -= len(batch)
		endTime = payload.Data.Klines[0].Time - 1
		if len(batch) < batchSize {
			break
		}
	}

	return all, nil
}

// Balances fetches all account balances. Requires credentials.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var payload struct {
		apiEnvelope
		Data struct {
			Balances []balanceData `json:"balances"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/account/balances", url.Values{}, true, &payload); err != nil {
		return nil, err
	}

	out := make([]Balance, 0, len(payload.Data.Balances))
	for _, b := range payload.Data.Balances {
		out = append(out, Balance{
			Coin:   b.Coin,
			Free:   parseFloat(b.Free),
			Frozen: parseFloat(b.Frozen),
		})
	}
	return out, nil
}

// PlaceMarketOrder submits a market order. A market buy is specified by quote
// amount, a market sell by base size, per the exchange API. Requires
// credentials.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size, amount float64) (string, error) {
	body := map[string]any{
		"symbol": symbol,
		"side":   "BUY",
		"type":   "MARKET",
	}
	if side == domain.OrderSell {
		body["side"] = "SELL"
		body["size"] = strconv.FormatFloat(size, 'f', -1, 64)
	} else {
		body["amount"] = strconv.FormatFloat(amount, 'f', -1, 64)
	}

	var payload struct {
		apiEnvelope
		Data orderResult `json:"data"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/v1/trade/order", body, &payload); err != nil {
		return "", err
	}
	return strconv.FormatInt(payload.Data.OrderID, 10), nil
}

// PlaceLimitOrder submits a limit order with base size and price. Requires
// credentials.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, price float64) (string, error) {
	body := map[string]any{
		"symbol": symbol,
		"side":   "BUY",
		"type":   "LIMIT",
		"size":   strconv.FormatFloat(size, 'f', -1, 64),
		"price":  strconv.FormatFloat(price, 'f', -1, 64),
	}
	if side == domain.OrderSell {
		body["side"] = "SELL"
	}

	var payload struct {
		apiEnvelope
		Data orderResult `json:"data"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/v1/trade/order", body, &payload); err != nil {
		return "", err
	}
	return strconv.FormatInt(payload.Data.OrderID, 10), nil
}

// CancelOrder cancels a resting order. Requires credentials.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	body := map[string]any{
		"symbol":  symbol,
		"orderId": orderID,
	}

	var payload struct {
		apiEnvelope
	}
	return c.send(ctx, http.MethodDelete, "/api/v1/trade/order", body, &payload)
}

// OpenOrders lists the orders still resting on the book for symbol. Requires
// credentials.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var payload struct {
		apiEnvelope
		Data struct {
			Orders []openOrderData `json:"orders"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/trade/openOrders", q, true, &payload); err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(payload.Data.Orders))
	for _, o := range payload.Data.Orders {
		out = append(out, o.toDomain())
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, query url.Values, signed bool, out any) error {
	var headers map[string]string
	if signed {
		if c.auth == nil {
			return fmt.Errorf("pionex: %s requires credentials", path)
		}
		query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		headers = c.auth.SignedHeaders(http.MethodGet, path, query, "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("pionex: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req, path, out)
}

// send issues a signed request with a JSON body; used for POST and DELETE.
func (c *Client) send(ctx context.Context, method, path string, body map[string]any, out any) error {
	if c.auth == nil {
		return fmt.Errorf("pionex: %s requires credentials", path)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pionex: marshal body: %w", err)
	}

	query := url.Values{}
	query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	headers := c.auth.SignedHeaders(method, path, query, string(raw))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("pionex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req, path, out)
}

// do executes the request and decodes the envelope, turning result=false
// responses into errors.
func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pionex: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pionex: read response %s: %w", path, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("pionex: decode response %s: %w", path, err)
	}
	if !env.Result {
		return &APIError{Code: env.Code, Message: env.Message, Path: path}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pionex: decode payload %s: %w", path, err)
	}
	return nil
}

// APIError is a Pionex API-level failure (result=false in the envelope).
type APIError struct {
	Code    string
	Message string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pionex: %s: [%s] %s", e.Path, e.Code, e.Message)
}
