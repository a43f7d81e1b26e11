package domain

import "time"

// Signal is a strategy's verdict for the latest closed bar. Flags are not
// mutually exclusive; the trading loop resolves precedence.
type Signal struct {
	EnterLong  bool
	ExitLong   bool
	EnterShort bool
	ExitShort  bool
}

// Empty reports whether no flag is set.
func (s Signal) Empty() bool {
	return !s.EnterLong && !s.ExitLong && !s.EnterShort && !s.ExitShort
}

// TradeEvent is emitted on a loop's event channel whenever a position closes.
// The orchestrator consumes these and is the sole writer of bot statistics.
type TradeEvent struct {
	BotID  string
	Trade  Trade
	Signal string
	Time   time.Time
}
