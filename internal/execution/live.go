package execution

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
	"github.com/alanyoungcy/tradebot/internal/platform/pionex"
)

// Live routes orders to the Pionex spot API. Perpetual symbols are rejected;
// the orchestrator also refuses to start a live bot on one, so a runtime
// rejection here indicates a misrouted call.
type Live struct {
	client *pionex.Client
	book   *positionBook
}

// NewLive creates a live backend on an authenticated Pionex client.
func NewLive(client *pionex.Client) *Live {
	return &Live{client: client, book: newPositionBook()}
}

// Buy submits a market buy sized by quote amount (size × price), per the
// exchange API.
func (l *Live) Buy(ctx context.Context, symbol string, size, price float64) (domain.Fill, error) {
	if domain.IsPerp(symbol) {
		return domain.Fill{}, fmt.Errorf("execution: %s: %w", symbol, domain.ErrPerpNotSupported)
	}

	if _, err := l.client.PlaceMarketOrder(ctx, symbol, domain.OrderBuy, size, size*price); err != nil {
		return domain.Fill{}, fmt.Errorf("execution: live buy %s: %w", symbol, err)
	}
	l.book.apply(symbol, domain.OrderBuy, size, price)

	return domain.Fill{
		Symbol: symbol,
		Side:   domain.OrderBuy,
		Price:  price,
		Size:   size,
		Time:   time.Now(),
	}, nil
}

// Sell submits a market sell sized in base units.
func (l *Live) Sell(ctx context.Context, symbol string, size, price float64) (domain.Fill, error) {
	if domain.IsPerp(symbol) {
		return domain.Fill{}, fmt.Errorf("execution: %s: %w", symbol, domain.ErrPerpNotSupported)
	}

	if _, err := l.client.PlaceMarketOrder(ctx, symbol, domain.OrderSell, size, 0); err != nil {
		return domain.Fill{}, fmt.Errorf("execution: live sell %s: %w", symbol, err)
	}
	l.book.apply(symbol, domain.OrderSell, size, price)

	return domain.Fill{
		Symbol: symbol,
		Side:   domain.OrderSell,
		Price:  price,
		Size:   size,
		Time:   time.Now(),
	}, nil
}

// PlaceLimitOrder rests a limit order on the exchange book. The fill reported
// back assumes the resting price; the tracked position updates on placement.
func (l *Live) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, price float64) (domain.Fill, error) {
	if domain.IsPerp(symbol) {
		return domain.Fill{}, fmt.Errorf("execution: %s: %w", symbol, domain.ErrPerpNotSupported)
	}

	if _, err := l.client.PlaceLimitOrder(ctx, symbol, side, size, price); err != nil {
		return domain.Fill{}, fmt.Errorf("execution: live limit %s %s: %w", side, symbol, err)
	}
	l.book.apply(symbol, side, size, price)

	return domain.Fill{
		Symbol: symbol,
		Side:   side,
		Price:  price,
		Size:   size,
		Time:   time.Now(),
	}, nil
}

// CancelOrder cancels a resting order by its exchange order id.
func (l *Live) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("execution: live cancel %s: order id %q: %w", symbol, orderID, err)
	}
	if err := l.client.CancelOrder(ctx, symbol, id); err != nil {
		return fmt.Errorf("execution: live cancel %s: %w", symbol, err)
	}
	return nil
}

// OpenOrders lists the orders still resting on the exchange book for symbol.
func (l *Live) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	orders, err := l.client.OpenOrders(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("execution: live open orders %s: %w", symbol, err)
	}
	return orders, nil
}

// Position reports the net position built up by fills, nil when flat.
func (l *Live) Position(ctx context.Context, symbol string) (*domain.Position, error) {
	return l.book.get(symbol), nil
}

// Balances fetches free balances from the exchange account.
func (l *Live) Balances(ctx context.Context) (map[string]float64, error) {
	balances, err := l.client.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution: live balances: %w", err)
	}

	out := make(map[string]float64, len(balances))
	for _, b := range balances {
		out[b.Coin] = b.Free
	}
	return out, nil
}

// PortfolioValue values the exchange account in quote currency at the
// supplied per-symbol prices. USDT counts at face value.
func (l *Live) PortfolioValue(ctx context.Context, prices map[string]float64) (float64, error) {
	balances, err := l.Balances(ctx)
	if err != nil {
		return 0, err
	}

	total := balances["USDT"]
	for symbol, price := range prices {
		base, _ := splitSymbol(symbol)
		if base == "USDT" {
			continue
		}
		total += balances[base] * price
	}
	return total, nil
}

// Compile-time interface check.
var _ Backend = (*Live)(nil)
