package domain

import (
	"context"
	"time"
)

// Stream event names dispatched to registered handlers.
const (
	EventTrade = "TRADE"
	EventDepth = "DEPTH"
	EventError = "error"
)

// TradeTick is a single public trade observed on the market stream.
type TradeTick struct {
	Symbol string
	Price  float64
	Size   float64
	Time   time.Time
}

// PriceLevel is one side entry of an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// DepthUpdate is an order-book snapshot observed on the depth stream. Levels
// are ordered as the exchange sent them, best price first.
type DepthUpdate struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
	Time   time.Time
}

// StreamHandler receives dispatched stream events. For EventTrade the payload
// is a TradeTick; for EventDepth a DepthUpdate; for EventError an error.
type StreamHandler func(event string, payload any)

// MarketStream is the exchange market-data feed. Implementations keep the
// connection alive (answering server pings internally), reconnect after a
// fixed delay on failure, and replay every recorded subscription on
// reconnect. Ordering is guaranteed per topic only.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(topic, symbol string) error
	RegisterHandler(event string, fn StreamHandler)
	// Listen blocks, reading and dispatching messages until ctx is done or
	// the stream is closed.
	Listen(ctx context.Context) error
	Close() error
}
