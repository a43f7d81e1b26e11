package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// paperFeeRate is the simulated proportional fee charged on every fill.
const paperFeeRate = 0.0005

// Paper is a simulated execution backend. It keeps a virtual per-coin ledger
// seeded with the bot's capital in the quote currency and fills every order
// immediately at the caller-supplied price. Safe for concurrent use.
type Paper struct {
	mu       sync.Mutex
	balances map[string]float64
	quote    string
	book     *positionBook
}

// NewPaper creates a paper backend funded with capital units of quoteAsset
// (e.g. "USDT").
func NewPaper(capital float64, quoteAsset string) *Paper {
	return &Paper{
		balances: map[string]float64{quoteAsset: capital},
		quote:    quoteAsset,
		book:     newPositionBook(),
	}
}

// Buy fills a simulated market buy at price. The whole order fails when the
// quote balance cannot cover cost plus fee; there are no partial fills.
func (p *Paper) Buy(ctx context.Context, symbol string, size, price float64) (domain.Fill, error) {
	if price <= 0 {
		return domain.Fill{}, fmt.Errorf("execution: no price available for %s", symbol)
	}

	base, quote := splitSymbol(symbol)
	if quote == "" {
		quote = p.quote
	}

	cost := size * price
	fee := cost * paperFeeRate

	p.mu.Lock()
	if p.balances[quote] < cost+fee {
		defer p.mu.Unlock()
		return domain.Fill{}, fmt.Errorf("execution: %w: %s %.2f < %.2f",
			domain.ErrInsufficientFunds, quote, p.balances[quote], cost+fee)
	}
	p.balances[quote] -= cost + fee
	p.balances[base] += size
	p.mu.Unlock()

	p.book.apply(symbol, domain.OrderBuy, size, price)

	return domain.Fill{
		Symbol: symbol,
		Side:   domain.OrderBuy,
		Price:  price,
		Size:   size,
		Fee:    fee,
		Time:   time.Now(),
	}, nil
}

// Sell fills a simulated market sell at price. The whole order fails when the
// base balance cannot cover size.
func (p *Paper) Sell(ctx context.Context, symbol string, size, price float64) (domain.Fill, error) {
	if price <= 0 {
		return domain.Fill{}, fmt.Errorf("execution: no price available for %s", symbol)
	}

	base, quote := splitSymbol(symbol)
	if quote == "" {
		quote = p.quote
	}

	cost := size * price
	fee := cost * paperFeeRate

	p.mu.Lock()
	if p.balances[base] < size {
		defer p.mu.Unlock()
		return domain.Fill{}, fmt.Errorf("execution: %w: %s %.8f < %.8f",
			domain.ErrInsufficientFunds, base, p.balances[base], size)
	}
	p.balances[base] -= size
	p.balances[quote] += cost - fee
	p.mu.Unlock()

	p.book.apply(symbol, domain.OrderSell, size, price)

	return domain.Fill{
		Symbol: symbol,
		Side:   domain.OrderSell,
		Price:  price,
		Size:   size,
		Fee:    fee,
		Time:   time.Now(),
	}, nil
}

// PlaceLimitOrder fills a simulated limit order immediately at the given
// price; the paper ledger never holds resting orders.
func (p *Paper) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, price float64) (domain.Fill, error) {
	if side == domain.OrderSell {
		return p.Sell(ctx, symbol, size, price)
	}
	return p.Buy(ctx, symbol, size, price)
}

// CancelOrder acknowledges the cancel. Paper orders fill on placement, so
// there is never anything to cancel.
func (p *Paper) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return nil
}

// OpenOrders is always empty: every paper order fills immediately.
func (p *Paper) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return nil, nil
}

// Position reports the net position built up by fills, nil when flat.
func (p *Paper) Position(ctx context.Context, symbol string) (*domain.Position, error) {
	return p.book.get(symbol), nil
}

// Balances returns a copy of the virtual ledger.
func (p *Paper) Balances(ctx context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(p.balances))
	for coin, v := range p.balances {
		out[coin] = v
	}
	return out, nil
}

// PortfolioValue values the ledger in quote currency: the quote balance plus
// every base holding at its supplied price. Holdings without a price entry
// contribute nothing.
func (p *Paper) PortfolioValue(ctx context.Context, prices map[string]float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.balances[p.quote]
	for symbol, price := range prices {
		base, _ := splitSymbol(symbol)
		if base == p.quote {
			continue
		}
		total += p.balances[base] * price
	}
	return total, nil
}

// Compile-time interface check.
var _ Backend = (*Paper)(nil)
