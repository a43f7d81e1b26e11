package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func TestRiskManagerDrawdownHalt(t *testing.T) {
	rm := NewRiskManager(RiskConfig{
		InitialCapital: 10_000,
		MaxDrawdownPct: fptr(20),
	})

	assert.False(t, rm.ShouldHalt())

	rm.RecordEquity(10_000)
	rm.RecordEquity(12_000)
	// 9000 against the 12000 peak is a 25% drawdown.
	dd := rm.RecordEquity(9_000)
	assert.InDelta(t, 25.0, dd, 1e-9)
	assert.True(t, rm.ShouldHalt())

	// The halt is one-way: recovering equity does not clear it.
	rm.RecordEquity(13_000)
	assert.True(t, rm.ShouldHalt())

	rm.Reset()
	assert.False(t, rm.ShouldHalt())
}

func TestRiskManagerDrawdownBelowLimit(t *testing.T) {
	rm := NewRiskManager(RiskConfig{
		InitialCapital: 10_000,
		MaxDrawdownPct: fptr(30),
	})

	rm.RecordEquity(12_000)
	rm.RecordEquity(9_000)
	assert.False(t, rm.ShouldHalt())
}

func TestRiskManagerNoDrawdownLimit(t *testing.T) {
	rm := NewRiskManager(RiskConfig{InitialCapital: 10_000})

	rm.RecordEquity(12_000)
	rm.RecordEquity(1)
	assert.False(t, rm.ShouldHalt())
}

func TestCalculatePositionSize(t *testing.T) {
	tests := []struct {
		name    string
		maxPos  float64
		capital float64
		price   float64
		want    float64
	}{
		{"default 95 pct", 0, 10_000, 100, 95},
		{"custom 50 pct", 50, 10_000, 100, 50},
		{"zero price", 0, 10_000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := NewRiskManager(RiskConfig{
				InitialCapital: tt.capital,
				MaxPositionPct: tt.maxPos,
			})
			assert.InDelta(t, tt.want, rm.CalculatePositionSize(tt.capital, tt.price), 1e-9)
		})
	}
}

func TestCheckStopLoss(t *testing.T) {
	rm := NewRiskManager(RiskConfig{
		InitialCapital: 10_000,
		StopLossPct:    fptr(2),
	})

	assert.True(t, rm.CheckStopLoss(100, 97, domain.SideLong))
	assert.True(t, rm.CheckStopLoss(100, 98, domain.SideLong))
	assert.False(t, rm.CheckStopLoss(100, 99, domain.SideLong))

	// Shorts stop out when price rises.
	assert.True(t, rm.CheckStopLoss(100, 103, domain.SideShort))
	assert.False(t, rm.CheckStopLoss(100, 101, domain.SideShort))

	none := NewRiskManager(RiskConfig{InitialCapital: 10_000})
	assert.False(t, none.CheckStopLoss(100, 1, domain.SideLong))
}

func TestCheckTakeProfit(t *testing.T) {
	rm := NewRiskManager(RiskConfig{
		InitialCapital: 10_000,
		TakeProfitPct:  fptr(5),
	})

	assert.True(t, rm.CheckTakeProfit(100, 105, domain.SideLong))
	assert.False(t, rm.CheckTakeProfit(100, 104, domain.SideLong))

	assert.True(t, rm.CheckTakeProfit(100, 95, domain.SideShort))
	assert.False(t, rm.CheckTakeProfit(100, 96, domain.SideShort))

	none := NewRiskManager(RiskConfig{InitialCapital: 10_000})
	assert.False(t, none.CheckTakeProfit(100, 200, domain.SideLong))
}
