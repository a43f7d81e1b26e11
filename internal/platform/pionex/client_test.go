package pionex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradebot/internal/crypto"
	"github.com/alanyoungcy/tradebot/internal/domain"
)

func klineJSON(timeMs int64, close float64) map[string]any {
	return map[string]any{
		"time":   timeMs,
		"open":   "100",
		"high":   "110",
		"low":    "90",
		"close":  strconv.FormatFloat(close, 'f', -1, 64),
		"volume": "12.5",
	}
}

func TestKlinesSingleBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/market/klines", r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "60M", r.URL.Query().Get("interval"))

		json.NewEncoder(w).Encode(map[string]any{
			"result": true,
			"data": map[string]any{
				"klines": []map[string]any{
					klineJSON(3_600_000, 101),
					klineJSON(7_200_000, 102),
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	candles, err := c.Klines(context.Background(), "BTC_USDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	// Timestamps come back in seconds, ascending.
	assert.Equal(t, int64(3600), candles[0].Timestamp)
	assert.Equal(t, int64(7200), candles[1].Timestamp)
	assert.Equal(t, 102.0, candles[1].Close)
	assert.Equal(t, 12.5, candles[1].Volume)
}

func TestKlinesPaginatesBackwards(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		endTime := r.URL.Query().Get("endTime")

		var klines []map[string]any
		if endTime == "" {
			// Newest batch, full page.
			base := int64(500 * 3_600_000)
			for i := 0; i < limit; i++ {
				klines = append(klines, klineJSON(base+int64(i)*3_600_000, 100))
			}
		} else {
			// Older page, cursor must sit just before the oldest bar served.
			assert.Equal(t, strconv.FormatInt(500*3_600_000-1, 10), endTime)
			klines = []map[string]any{klineJSON(3_600_000, 99)}
		}

		json.NewEncoder(w).Encode(map[string]any{
			"result": true,
			"data":   map[string]any{"klines": klines},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	candles, err := c.Klines(context.Background(), "BTC_USDT", "1h", maxKlineLimit+1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, candles, maxKlineLimit+1)

	// Older data is prepended.
	assert.Equal(t, 99.0, candles[0].Close)
}

func TestKlinesUnsupportedTimeframe(t *testing.T) {
	c := NewClient("http://unused", nil)
	_, err := c.Klines(context.Background(), "BTC_USDT", "7x", 10)
	require.Error(t, err)
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":false,"code":"TRADE_INVALID_SYMBOL","message":"symbol not found"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Klines(context.Background(), "NOPE_USDT", "1h", 10)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "TRADE_INVALID_SYMBOL", apiErr.Code)
}

func TestPrivateEndpointsRequireAuth(t *testing.T) {
	c := NewClient("http://unused", nil)

	_, err := c.Balances(context.Background())
	require.Error(t, err)

	_, err = c.PlaceMarketOrder(context.Background(), "BTC_USDT", domain.OrderBuy, 0, 100)
	require.Error(t, err)
}

func TestPlaceMarketOrderSides(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("PIONEX-KEY"))
		assert.NotEmpty(t, r.Header.Get("PIONEX-SIGNATURE"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{"result":true,"data":{"orderId":42,"clientOrderId":"c1"}}`)
	}))
	defer srv.Close()

	auth := &crypto.HMACAuth{Key: "k", Secret: "s"}
	c := NewClient(srv.URL, auth)

	// Market buys are specified by quote amount.
	id, err := c.PlaceMarketOrder(context.Background(), "BTC_USDT", domain.OrderBuy, 0, 250)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, "BUY", got["side"])
	assert.Equal(t, "250", got["amount"])
	assert.NotContains(t, got, "size")

	// Market sells are specified by base size.
	_, err = c.PlaceMarketOrder(context.Background(), "BTC_USDT", domain.OrderSell, 0.5, 0)
	require.NoError(t, err)
	assert.Equal(t, "SELL", got["side"])
	assert.Equal(t, "0.5", got["size"])
}

func TestPlaceLimitOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{"result":true,"data":{"orderId":7,"clientOrderId":"c2"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &crypto.HMACAuth{Key: "k", Secret: "s"})

	id, err := c.PlaceLimitOrder(context.Background(), "BTC_USDT", domain.OrderSell, 0.25, 51_000)
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.Equal(t, "LIMIT", got["type"])
	assert.Equal(t, "SELL", got["side"])
	assert.Equal(t, "0.25", got["size"])
	assert.Equal(t, "51000", got["price"])
}

func TestCancelOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/trade/order", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("PIONEX-SIGNATURE"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{"result":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &crypto.HMACAuth{Key: "k", Secret: "s"})

	require.NoError(t, c.CancelOrder(context.Background(), "BTC_USDT", 42))
	assert.Equal(t, "BTC_USDT", got["symbol"])
	assert.Equal(t, float64(42), got["orderId"])
}

func TestOpenOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/trade/openOrders", r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("symbol"))

		fmt.Fprint(w, `{"result":true,"data":{"orders":[
			{"orderId":11,"symbol":"BTC_USDT","side":"SELL","type":"LIMIT","size":"0.5","price":"52000","status":"OPEN"}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &crypto.HMACAuth{Key: "k", Secret: "s"})

	orders, err := c.OpenOrders(context.Background(), "BTC_USDT")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "11", orders[0].ID)
	assert.Equal(t, domain.OrderSell, orders[0].Side)
	assert.InDelta(t, 0.5, orders[0].Size, 1e-9)
	assert.InDelta(t, 52_000.0, orders[0].Price, 1e-9)
	assert.Equal(t, "OPEN", orders[0].Status)
}
