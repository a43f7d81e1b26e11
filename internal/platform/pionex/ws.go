package pionex

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait bounds how long a single read may block. The server pings
	// roughly every 20 seconds, so a healthy connection never hits this.
	readWait = 60 * time.Second

	// reconnectDelay is the fixed pause before redialing after a failure.
	reconnectDelay = 5 * time.Second

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second
)

// WSClient is a WebSocket client for the Pionex public market-data feed. It
// manages the connection lifecycle, answers server pings, replays
// subscriptions after a reconnect, and dispatches messages to registered
// handlers.
type WSClient struct {
	wsURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Subscriptions to restore on reconnect.
	subscriptions []wsCommand

	handlerMu sync.RWMutex
	handlers  map[string][]domain.StreamHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a client for the given WebSocket URL, e.g.
// "wss://ws.pionex.com/wsPub".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL:    wsURL,
		handlers: make(map[string][]domain.StreamHandler),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and replays any previously
// recorded subscriptions.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("pionex/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("pionex/ws: connect: %w", err)
	}

	// Release the previous connection's descriptor when redialing.
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.conn = conn

	for _, cmd := range w.subscriptions {
		if err := w.send(cmd); err != nil {
			return fmt.Errorf("pionex/ws: restore subscription %s %s: %w", cmd.Topic, cmd.Symbol, err)
		}
	}

	return nil
}

// Subscribe subscribes to a topic for the given symbol and records the
// subscription for replay after reconnects. Valid topics include "TRADE" and
// "DEPTH".
func (w *WSClient) Subscribe(topic, symbol string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("pionex/ws: not connected")
	}

	cmd := wsCommand{Op: "SUBSCRIBE", Topic: topic, Symbol: symbol}
	if err := w.send(cmd); err != nil {
		return fmt.Errorf("pionex/ws: subscribe %s %s: %w", topic, symbol, err)
	}

	w.subscriptions = append(w.subscriptions, cmd)
	return nil
}

// RegisterHandler registers a handler for a stream event. For
// domain.EventTrade the payload is a domain.TradeTick; for domain.EventError
// it is an error.
func (w *WSClient) RegisterHandler(event string, fn domain.StreamHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers[event] = append(w.handlers[event], fn)
}

// Listen reads and dispatches messages until ctx is done or the client is
// closed. On a read failure it reports the error, waits a fixed delay,
// redials, and replays all subscriptions.
func (w *WSClient) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		default:
		}

		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()

		if conn == nil {
			return fmt.Errorf("pionex/ws: not connected")
		}

		conn.SetReadDeadline(time.Now().Add(readWait))
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			w.dispatch(domain.EventError, fmt.Errorf("pionex/ws: read: %w", err))
			if err := w.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		w.handleMessage(message)
	}
}

// Close shuts down the WebSocket connection and unblocks Listen.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// send writes a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) send(cmd wsCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// handleMessage parses a raw message, answers pings, and routes data frames
// to registered handlers. Unparseable frames are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	// Application-level keep-alive: echo the server timestamp back.
	if env.Op == "PING" {
		w.mu.Lock()
		if w.conn != nil {
			_ = w.send(wsCommand{Op: "PONG", Timestamp: env.Timestamp})
		}
		w.mu.Unlock()
		return
	}

	// Subscription acks carry no data.
	if env.Type == "SUBSCRIBED" {
		return
	}

	switch env.Topic {
	case "TRADE":
		var frame struct {
			Data []wsTrade `json:"data"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			return
		}
		for _, t := range frame.Data {
			w.dispatch(domain.EventTrade, t.toDomain())
		}
	case "DEPTH":
		var frame struct {
			Data wsDepth `json:"data"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			return
		}
		w.dispatch(domain.EventDepth, frame.Data.toDomain(env.Symbol, env.Timestamp))
	}
}

// dispatch invokes every handler registered for event, in registration order.
func (w *WSClient) dispatch(event string, payload any) {
	w.handlerMu.RLock()
	handlers := w.handlers[event]
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(event, payload)
	}
}

// reconnect redials after the fixed delay until it succeeds, ctx is done, or
// the client is closed. Connect replays the recorded subscriptions.
func (w *WSClient) reconnect(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-time.After(reconnectDelay):
		}

		dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
		err := w.Connect(dialCtx)
		cancel()

		if err == nil {
			return nil
		}
		w.dispatch(domain.EventError, fmt.Errorf("pionex/ws: reconnect: %w", err))
	}
}

// Compile-time interface check.
var _ domain.MarketStream = (*WSClient)(nil)
