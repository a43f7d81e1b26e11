package domain

import "time"

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is a single open position. A bot holds at most one.
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	EntryTime  time.Time `json:"entry_time"`
	Strategy   string    `json:"strategy"`
}

// PnL returns the percent and quote-currency profit of the position if it
// were closed at exitPrice. Shorts invert both signs. A zero entry price
// yields a zero percent figure.
func (p Position) PnL(exitPrice float64) (pct, usd float64) {
	if p.EntryPrice != 0 {
		pct = (exitPrice - p.EntryPrice) / p.EntryPrice * 100
	}
	usd = (exitPrice - p.EntryPrice) * p.Size
	if p.Side == SideShort {
		pct = -pct
		usd = -usd
	}
	return pct, usd
}

// Trade is a completed round trip, produced when a position closes.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	PnLPct     float64   `json:"pnl_pct"`
	PnLUSD     float64   `json:"pnl_usd"`
	Strategy   string    `json:"strategy"`
	Reason     string    `json:"reason,omitempty"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
}
