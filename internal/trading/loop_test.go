package trading

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradebot/internal/domain"
	"github.com/alanyoungcy/tradebot/internal/execution"
)

// stubStrategy returns a fixed signal.
type stubStrategy struct {
	sig domain.Signal
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Evaluate(candles []domain.Candle, params map[string]any) (domain.Signal, error) {
	return s.sig, nil
}

func newTestLoop(t *testing.T, strat *stubStrategy, risk *RiskManager) *Loop {
	t.Helper()
	if risk == nil {
		risk = NewRiskManager(RiskConfig{InitialCapital: 10_000})
	}
	loop, err := NewLoop(LoopConfig{
		BotID:        "test-bot",
		Symbol:       "BTC_USDT",
		Timeframe:    "1h",
		Capital:      10_000,
		Lookback:     50,
		PollInterval: time.Hour,
		Strategy:     strat,
		Positions:    NewPositionManager(),
		Risk:         risk,
		Backend:      execution.NewPaper(10_000, "USDT"),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return loop
}

func setCandles(l *Loop, lastClose float64) {
	l.mu.Lock()
	l.candles = []domain.Candle{{Timestamp: time.Now().Unix(), Close: lastClose}}
	l.mu.Unlock()
}

func TestNewLoopRejectsBadTimeframe(t *testing.T) {
	_, err := NewLoop(LoopConfig{Timeframe: "7x"})
	require.Error(t, err)
}

func TestEvaluateOpensLong(t *testing.T) {
	strat := &stubStrategy{sig: domain.Signal{EnterLong: true}}
	loop := newTestLoop(t, strat, nil)
	setCandles(loop, 100)

	loop.evaluate(context.Background())

	pos := loop.cfg.Positions.Current()
	require.NotNil(t, pos)
	assert.Equal(t, domain.SideLong, pos.Side)
	assert.Equal(t, 100.0, pos.EntryPrice) // falls back to the last close
	assert.InDelta(t, 95.0, pos.Size, 1e-9)
}

func TestEvaluatePrefersLivePrice(t *testing.T) {
	strat := &stubStrategy{sig: domain.Signal{EnterLong: true}}
	loop := newTestLoop(t, strat, nil)
	setCandles(loop, 100)
	loop.mu.Lock()
	loop.lastPrice = 102
	loop.mu.Unlock()

	loop.evaluate(context.Background())

	pos := loop.cfg.Positions.Current()
	require.NotNil(t, pos)
	assert.Equal(t, 102.0, pos.EntryPrice)
}

func TestEvaluateHaltBlocksEntry(t *testing.T) {
	dd := 10.0
	risk := NewRiskManager(RiskConfig{InitialCapital: 10_000, MaxDrawdownPct: &dd})
	risk.RecordEquity(12_000)
	risk.RecordEquity(9_000)
	require.True(t, risk.ShouldHalt())

	strat := &stubStrategy{sig: domain.Signal{EnterLong: true}}
	loop := newTestLoop(t, strat, risk)
	setCandles(loop, 100)

	loop.evaluate(context.Background())
	assert.Nil(t, loop.cfg.Positions.Current())
}

func TestEvaluateExitEmitsTradeEvent(t *testing.T) {
	strat := &stubStrategy{sig: domain.Signal{EnterLong: true}}
	loop := newTestLoop(t, strat, nil)
	ctx := context.Background()

	setCandles(loop, 100)
	loop.evaluate(ctx)
	require.NotNil(t, loop.cfg.Positions.Current())

	// Next period: exit signal at a higher price.
	strat.sig = domain.Signal{ExitLong: true}
	setCandles(loop, 110)
	loop.evaluate(ctx)

	assert.Nil(t, loop.cfg.Positions.Current())

	select {
	case ev := <-loop.Events():
		assert.Equal(t, "test-bot", ev.BotID)
		assert.Equal(t, "exit_signal", ev.Signal)
		assert.Equal(t, "exit_signal", ev.Trade.Reason)
		assert.InDelta(t, 950.0, ev.Trade.PnLUSD, 1e-9)
	default:
		t.Fatal("expected a trade event")
	}
}

func TestEvaluateStopLoss(t *testing.T) {
	sl := 2.0
	risk := NewRiskManager(RiskConfig{InitialCapital: 10_000, StopLossPct: &sl})
	strat := &stubStrategy{sig: domain.Signal{EnterLong: true}}
	loop := newTestLoop(t, strat, risk)
	ctx := context.Background()

	setCandles(loop, 100)
	loop.evaluate(ctx)
	require.NotNil(t, loop.cfg.Positions.Current())

	// No exit signal, but price fell past the stop.
	strat.sig = domain.Signal{}
	setCandles(loop, 97)
	loop.evaluate(ctx)

	assert.Nil(t, loop.cfg.Positions.Current())

	select {
	case ev := <-loop.Events():
		assert.Equal(t, "stop_loss", ev.Trade.Reason)
	default:
		t.Fatal("expected a trade event")
	}
}

func TestEvaluateEmptySeriesIsSilent(t *testing.T) {
	strat := &stubStrategy{sig: domain.Signal{EnterLong: true}}
	loop := newTestLoop(t, strat, nil)

	loop.evaluate(context.Background())
	assert.Nil(t, loop.cfg.Positions.Current())
}
