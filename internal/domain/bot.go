// Package domain defines the core types shared across the trading engine:
// bot records, positions, trades, candles, and the store and stream contracts
// their infrastructure implements.
package domain

import "time"

// BotStatus is the lifecycle state of a bot as persisted and reported.
type BotStatus string

const (
	BotStopped BotStatus = "stopped"
	BotRunning BotStatus = "running"
	BotError   BotStatus = "error"
	BotPaused  BotStatus = "paused"
)

// SignalSource selects how a bot receives trading signals.
type SignalSource string

const (
	// SourceStrategy runs the candle loop and evaluates a builtin strategy.
	SourceStrategy SignalSource = "strategy"
	// SourceWebhook waits for external signals on the webhook endpoint.
	SourceWebhook SignalSource = "webhook"
)

// TradeHistoryLimit caps the per-bot trade history ring.
const TradeHistoryLimit = 50

// BotRecord is the durable configuration and accumulated statistics of a
// single bot. The orchestrator is the only writer of the stats fields while
// a bot is running.
type BotRecord struct {
	ID        string       `json:"bot_id"`
	UserID    string       `json:"user_id"`
	Name      string       `json:"name"`
	Strategy  string       `json:"strategy"`
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Capital   float64      `json:"capital"`
	Params    map[string]any `json:"params"`
	PaperMode bool         `json:"paper_mode"`

	// Risk limits. A nil pointer means the limit is not set.
	StopLossPct    *float64 `json:"sl_pct,omitempty"`
	TakeProfitPct  *float64 `json:"tp_pct,omitempty"`
	MaxDrawdownPct *float64 `json:"max_drawdown_pct,omitempty"`

	Status       BotStatus    `json:"status"`
	SignalSource SignalSource `json:"signal_source"`
	WebhookToken string       `json:"webhook_token"`
	AutoStart    bool         `json:"auto_start"`
	ErrorMsg     string       `json:"error_msg,omitempty"`

	TotalPnL       float64    `json:"total_pnl"`
	TotalTrades    int        `json:"total_trades"`
	WinRate        float64    `json:"win_rate"`
	LastSignal     string     `json:"last_signal,omitempty"`
	LastSignalTime *time.Time `json:"last_signal_time,omitempty"`
	TradeHistory   []Trade    `json:"trade_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AppendTrade pushes a completed trade onto the history ring, dropping the
// oldest entry once the ring holds TradeHistoryLimit trades.
func (b *BotRecord) AppendTrade(t Trade) {
	b.TradeHistory = append(b.TradeHistory, t)
	if len(b.TradeHistory) > TradeHistoryLimit {
		b.TradeHistory = b.TradeHistory[len(b.TradeHistory)-TradeHistoryLimit:]
	}
}

// IsPerp reports whether the symbol names a perpetual contract.
func IsPerp(symbol string) bool {
	const suffix = "_PERP"
	return len(symbol) > len(suffix) && symbol[len(symbol)-len(suffix):] == suffix
}
