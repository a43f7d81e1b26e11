package pionex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

func TestHandleMessageDispatchesTrades(t *testing.T) {
	w := NewWSClient("ws://unused")

	var ticks []domain.TradeTick
	w.RegisterHandler(domain.EventTrade, func(event string, payload any) {
		ticks = append(ticks, payload.(domain.TradeTick))
	})

	w.handleMessage([]byte(`{
		"topic": "TRADE",
		"symbol": "BTC_USDT",
		"data": [
			{"symbol": "BTC_USDT", "price": "50000.5", "size": "0.1", "side": "BUY", "timestamp": 1700000000000}
		]
	}`))

	require.Len(t, ticks, 1)
	assert.Equal(t, "BTC_USDT", ticks[0].Symbol)
	assert.Equal(t, 50000.5, ticks[0].Price)
	assert.Equal(t, 0.1, ticks[0].Size)
	assert.Equal(t, time.UnixMilli(1700000000000), ticks[0].Time)
}

func TestHandleMessageDispatchesDepth(t *testing.T) {
	w := NewWSClient("ws://unused")

	var updates []domain.DepthUpdate
	w.RegisterHandler(domain.EventDepth, func(event string, payload any) {
		updates = append(updates, payload.(domain.DepthUpdate))
	})

	w.handleMessage([]byte(`{
		"topic": "DEPTH",
		"symbol": "BTC_USDT",
		"timestamp": 1700000000000,
		"data": {
			"bids": [["50000.5", "0.4"], ["50000.0", "1.2"]],
			"asks": [["50001.0", "0.7"]]
		}
	}`))

	require.Len(t, updates, 1)
	assert.Equal(t, "BTC_USDT", updates[0].Symbol)
	require.Len(t, updates[0].Bids, 2)
	assert.Equal(t, 50000.5, updates[0].Bids[0].Price)
	assert.Equal(t, 0.4, updates[0].Bids[0].Size)
	require.Len(t, updates[0].Asks, 1)
	assert.Equal(t, 50001.0, updates[0].Asks[0].Price)
	assert.Equal(t, time.UnixMilli(1700000000000), updates[0].Time)
}

func TestHandleMessageSkipsAcksAndGarbage(t *testing.T) {
	w := NewWSClient("ws://unused")

	var called bool
	w.RegisterHandler(domain.EventTrade, func(event string, payload any) { called = true })

	w.handleMessage([]byte(`{"type":"SUBSCRIBED","topic":"TRADE","symbol":"BTC_USDT"}`))
	w.handleMessage([]byte(`not json`))
	// A PING with no connection is dropped without panicking.
	w.handleMessage([]byte(`{"op":"PING","timestamp":123}`))

	assert.False(t, called)
}

func TestWSClientPingPongAndTrades(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		// Expect the subscription first.
		var sub wsCommand
		if !assert.NoError(t, conn.ReadJSON(&sub)) {
			return
		}
		assert.Equal(t, "SUBSCRIBE", sub.Op)
		assert.Equal(t, "TRADE", sub.Topic)
		assert.Equal(t, "BTC_USDT", sub.Symbol)

		// Application-level keep-alive: PING must be answered with a PONG
		// echoing the timestamp.
		assert.NoError(t, conn.WriteJSON(map[string]any{"op": "PING", "timestamp": 42}))
		var pong wsCommand
		if !assert.NoError(t, conn.ReadJSON(&pong)) {
			return
		}
		assert.Equal(t, "PONG", pong.Op)
		assert.Equal(t, int64(42), pong.Timestamp)

		assert.NoError(t, conn.WriteJSON(map[string]any{
			"topic":  "TRADE",
			"symbol": "BTC_USDT",
			"data": []map[string]any{
				{"symbol": "BTC_USDT", "price": "100.5", "size": "2", "timestamp": 1700000000000},
			},
		}))

		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(wsURL)

	ticks := make(chan domain.TradeTick, 1)
	client.RegisterHandler(domain.EventTrade, func(event string, payload any) {
		select {
		case ticks <- payload.(domain.TradeTick):
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Subscribe("TRADE", "BTC_USDT"))

	listenDone := make(chan error, 1)
	go func() { listenDone <- client.Listen(ctx) }()

	select {
	case tick := <-ticks:
		assert.Equal(t, 100.5, tick.Price)
		assert.Equal(t, 2.0, tick.Size)
	case <-ctx.Done():
		t.Fatal("timed out waiting for trade tick")
	}

	require.NoError(t, client.Close())
	select {
	case err := <-listenDone:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for Listen to return")
	}
}

func TestConnectClosesPreviousConn(t *testing.T) {
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(wsURL)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	first := <-conns

	// Redialing must release the previous connection.
	require.NoError(t, client.Connect(ctx))
	<-conns

	first.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err, "first connection should be closed after redial")
}

func TestSubscribeRequiresConnection(t *testing.T) {
	w := NewWSClient("ws://unused")
	require.Error(t, w.Subscribe("TRADE", "BTC_USDT"))
}

func TestConnectAfterCloseFails(t *testing.T) {
	w := NewWSClient("ws://unused")
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Connect(context.Background()), domain.ErrWSDisconnect)

	// Closing twice is a no-op.
	require.NoError(t, w.Close())
}
