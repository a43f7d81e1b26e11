package trading

import (
	"sync"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// defaultMaxPositionPct is the share of capital committed per entry when the
// bot does not set its own limit.
const defaultMaxPositionPct = 95.0

// RiskManager enforces a bot's drawdown and stop limits. The drawdown halt is
// one-way: once tripped, only Reset reactivates trading. Safe for concurrent
// use.
type RiskManager struct {
	mu sync.Mutex

	initialCapital float64
	peakCapital    float64
	active         bool

	maxDrawdownPct *float64
	maxPositionPct float64
	stopLossPct    *float64
	takeProfitPct  *float64
}

// RiskConfig carries a bot's risk limits. Nil pointers leave the
// corresponding check disabled.
type RiskConfig struct {
	InitialCapital float64
	MaxDrawdownPct *float64
	MaxPositionPct float64 // 0 means the default of 95
	StopLossPct    *float64
	TakeProfitPct  *float64
}

// NewRiskManager creates an active RiskManager with peak capital at the
// initial capital.
func NewRiskManager(cfg RiskConfig) *RiskManager {
	maxPos := cfg.MaxPositionPct
	if maxPos <= 0 {
		maxPos = defaultMaxPositionPct
	}
	return &RiskManager{
		initialCapital: cfg.InitialCapital,
		peakCapital:    cfg.InitialCapital,
		active:         true,
		maxDrawdownPct: cfg.MaxDrawdownPct,
		maxPositionPct: maxPos,
		stopLossPct:    cfg.StopLossPct,
		takeProfitPct:  cfg.TakeProfitPct,
	}
}

// RecordEquity feeds the current portfolio value into peak tracking and trips
// the halt when drawdown from peak reaches the configured limit. It returns
// the drawdown percent computed for this observation.
func (rm *RiskManager) RecordEquity(value float64) float64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if value > rm.peakCapital {
		rm.peakCapital = value
	}

	var drawdown float64
	if rm.peakCapital > 0 {
		drawdown = (1 - value/rm.peakCapital) * 100
	}

	if rm.maxDrawdownPct != nil && drawdown >= *rm.maxDrawdownPct {
		rm.active = false
	}
	return drawdown
}

// ShouldHalt reports whether the drawdown limit has been hit.
func (rm *RiskManager) ShouldHalt() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return !rm.active
}

// Reset reactivates trading and resets the peak to the initial capital.
func (rm *RiskManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.active = true
	rm.peakCapital = rm.initialCapital
}

// CalculatePositionSize returns the base-unit size for a new entry:
// capital scaled by the max position share, divided by price. A non-positive
// price yields 0.
func (rm *RiskManager) CalculatePositionSize(capital, price float64) float64 {
	if price <= 0 {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return capital * (rm.maxPositionPct / 100) / price
}

// CheckStopLoss reports whether current has moved against entry by at least
// the stop-loss percentage. Always false when no stop loss is set.
func (rm *RiskManager) CheckStopLoss(entry, current float64, side domain.Side) bool {
	rm.mu.Lock()
	sl := rm.stopLossPct
	rm.mu.Unlock()

	if sl == nil {
		return false
	}
	if side == domain.SideShort {
		return current >= entry*(1+*sl/100)
	}
	return current <= entry*(1-*sl/100)
}

// CheckTakeProfit reports whether current has moved in favor of entry by at
// least the take-profit percentage. Always false when no take profit is set.
func (rm *RiskManager) CheckTakeProfit(entry, current float64, side domain.Side) bool {
	rm.mu.Lock()
	tp := rm.takeProfitPct
	rm.mu.Unlock()

	if tp == nil {
		return false
	}
	if side == domain.SideShort {
		return current <= entry*(1-*tp/100)
	}
	return current >= entry*(1+*tp/100)
}
