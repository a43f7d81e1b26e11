// Package trading holds the per-bot trading machinery: position tracking,
// risk limits, and the candle-driven evaluation loop.
package trading

import (
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// PositionManager tracks a bot's single open position. At most one position
// may be open at a time. Safe for concurrent use.
type PositionManager struct {
	mu      sync.Mutex
	current *domain.Position
}

// NewPositionManager returns a manager with no open position.
func NewPositionManager() *PositionManager {
	return &PositionManager{}
}

// Open records a new position. It fails when one is already open.
func (pm *PositionManager) Open(symbol string, side domain.Side, price, size float64, strategy string) (domain.Position, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.current != nil {
		return domain.Position{}, fmt.Errorf("trading: open %s: %w", symbol, domain.ErrPositionOpen)
	}

	pos := domain.Position{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: price,
		Size:       size,
		EntryTime:  time.Now(),
		Strategy:   strategy,
	}
	pm.current = &pos
	return pos, nil
}

// Close settles the open position at exitPrice and returns the completed
// trade. It fails when nothing is open.
func (pm *PositionManager) Close(exitPrice float64) (domain.Trade, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.current == nil {
		return domain.Trade{}, fmt.Errorf("trading: close: %w", domain.ErrNoPosition)
	}

	pos := *pm.current
	pct, usd := pos.PnL(exitPrice)
	trade := domain.Trade{
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       pos.Size,
		PnLPct:     pct,
		PnLUSD:     usd,
		Strategy:   pos.Strategy,
		EntryTime:  pos.EntryTime,
		ExitTime:   time.Now(),
	}
	pm.current = nil
	return trade, nil
}

// Current returns a copy of the open position, or nil when there is none.
func (pm *PositionManager) Current() *domain.Position {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.current == nil {
		return nil
	}
	pos := *pm.current
	return &pos
}

// UnrealizedPnL returns the percent and quote-currency profit the open
// position would realize at currentPrice. Both are zero with no position.
func (pm *PositionManager) UnrealizedPnL(currentPrice float64) (pct, usd float64) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.current == nil {
		return 0, 0
	}
	return pm.current.PnL(currentPrice)
}
