package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionPnL(t *testing.T) {
	tests := []struct {
		name    string
		side    Side
		entry   float64
		size    float64
		exit    float64
		wantPct float64
		wantUSD float64
	}{
		{"long gain", SideLong, 100, 2, 110, 10, 20},
		{"long loss", SideLong, 100, 2, 90, -10, -20},
		{"short gain", SideShort, 100, 2, 90, 10, 20},
		{"short loss", SideShort, 100, 2, 110, -10, -20},
		{"flat", SideLong, 100, 2, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := Position{Side: tt.side, EntryPrice: tt.entry, Size: tt.size}
			pct, usd := pos.PnL(tt.exit)
			assert.InDelta(t, tt.wantPct, pct, 1e-9)
			assert.InDelta(t, tt.wantUSD, usd, 1e-9)
		})
	}
}

func TestPositionPnLZeroEntry(t *testing.T) {
	pos := Position{Side: SideLong, EntryPrice: 0, Size: 1}
	pct, usd := pos.PnL(100)
	assert.Zero(t, pct)
	assert.Zero(t, usd)
}

func TestBotRecordAppendTradeRing(t *testing.T) {
	var rec BotRecord
	for i := 0; i < TradeHistoryLimit+10; i++ {
		rec.AppendTrade(Trade{EntryPrice: float64(i)})
	}

	assert.Len(t, rec.TradeHistory, TradeHistoryLimit)
	// The oldest entries fall off the front.
	assert.Equal(t, float64(10), rec.TradeHistory[0].EntryPrice)
	assert.Equal(t, float64(TradeHistoryLimit+9), rec.TradeHistory[len(rec.TradeHistory)-1].EntryPrice)
}

func TestIsPerp(t *testing.T) {
	assert.True(t, IsPerp("BTC_USDT_PERP"))
	assert.False(t, IsPerp("BTC_USDT"))
}
