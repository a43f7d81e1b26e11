// Package execution provides the order-execution backends. Paper keeps an
// in-memory ledger; Live routes market orders to the exchange.
package execution

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// Backend executes orders for a single bot. price is the caller's view of the
// current market price; the paper backend fills at exactly that price, the
// live backend uses it only for sizing.
type Backend interface {
	Buy(ctx context.Context, symbol string, size, price float64) (domain.Fill, error)
	Sell(ctx context.Context, symbol string, size, price float64) (domain.Fill, error)
	// PlaceLimitOrder rests an order at price. The paper backend fills it
	// immediately at exactly that price.
	PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, price float64) (domain.Fill, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error)
	// Position reports the backend's tracked position for symbol, nil when
	// flat.
	Position(ctx context.Context, symbol string) (*domain.Position, error)
	Balances(ctx context.Context) (map[string]float64, error)
	// PortfolioValue values the account in quote currency at the supplied
	// per-symbol prices.
	PortfolioValue(ctx context.Context, prices map[string]float64) (float64, error)
}

// splitSymbol splits an exchange pair like "BTC_USDT" into base and quote
// coins. A symbol without a separator is treated as base-only with an empty
// quote.
func splitSymbol(symbol string) (base, quote string) {
	base, quote, _ = strings.Cut(symbol, "_")
	return base, quote
}

// positionBook folds fills into per-symbol net positions. A same-side fill
// adds to the position and averages the entry price; an opposite-side fill
// reduces it and removes it once fully covered. Safe for concurrent use.
type positionBook struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
}

func newPositionBook() *positionBook {
	return &positionBook{positions: make(map[string]*domain.Position)}
}

func (b *positionBook) apply(symbol string, side domain.OrderSide, size, price float64) {
	entrySide := domain.SideLong
	if side == domain.OrderSell {
		entrySide = domain.SideShort
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[symbol]
	if !ok {
		b.positions[symbol] = &domain.Position{
			Symbol:     symbol,
			Side:       entrySide,
			EntryPrice: price,
			Size:       size,
			EntryTime:  time.Now(),
		}
		return
	}

	if pos.Side == entrySide {
		total := pos.EntryPrice*pos.Size + price*size
		pos.Size += size
		pos.EntryPrice = total / pos.Size
		return
	}

	if size >= pos.Size {
		delete(b.positions, symbol)
		return
	}
	pos.Size -= size
}

func (b *positionBook) get(symbol string) *domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[symbol]
	if !ok {
		return nil
	}
	out := *pos
	return &out
}
