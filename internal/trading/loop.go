package trading

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
	"github.com/alanyoungcy/tradebot/internal/execution"
	"github.com/alanyoungcy/tradebot/internal/strategy"
	"golang.org/x/sync/errgroup"
)

// refreshCount is how many of the newest candles are re-fetched when a
// period closes, enough to repair a missed poll or a revised final bar.
const refreshCount = 5

// KlineSource fetches closed candles over REST. Implemented by the Pionex
// client.
type KlineSource interface {
	Klines(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}

// LoopConfig bundles everything a trading loop needs for one bot.
type LoopConfig struct {
	BotID     string
	Symbol    string
	Timeframe string
	Capital   float64
	Params    map[string]any

	Lookback     int
	PollInterval time.Duration

	Strategy  strategy.Strategy
	Positions *PositionManager
	Risk      *RiskManager
	Backend   execution.Backend
	Stream    domain.MarketStream
	Klines    KlineSource
	Prices    domain.PriceCache // optional
	Logger    *slog.Logger
}

// Loop runs one bot: it preloads candle history, tracks live trades from the
// market stream, evaluates the strategy once per closed period, and routes
// the resulting orders through the execution backend. Completed trades are
// emitted on the Events channel, which closes when Run returns.
type Loop struct {
	cfg      LoopConfig
	interval time.Duration
	logger   *slog.Logger

	events chan domain.TradeEvent

	mu            sync.Mutex
	candles       []domain.Candle
	lastPrice     float64
	lastEvaluated int64
	ready         bool
}

// NewLoop creates a Loop for the given configuration.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	interval, err := domain.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("trading: loop %s: %w", cfg.BotID, err)
	}
	return &Loop{
		cfg:      cfg,
		interval: interval,
		logger: cfg.Logger.With(
			slog.String("component", "loop"),
			slog.String("bot_id", cfg.BotID),
			slog.String("symbol", cfg.Symbol),
		),
		events: make(chan domain.TradeEvent, 16),
	}, nil
}

// Events returns the channel of completed trades. It is closed when the loop
// stops.
func (l *Loop) Events() <-chan domain.TradeEvent {
	return l.events
}

// Run blocks until ctx is cancelled or the loop fails fatally. Cancellation
// returns ctx.Err(); any other return value is a fatal loop error.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.events)

	l.preload(ctx)

	l.cfg.Stream.RegisterHandler(domain.EventTrade, l.onStreamEvent)
	l.cfg.Stream.RegisterHandler(domain.EventError, l.onStreamEvent)

	if err := l.cfg.Stream.Connect(ctx); err != nil {
		return fmt.Errorf("trading: loop %s: connect stream: %w", l.cfg.BotID, err)
	}
	defer l.cfg.Stream.Close()

	if err := l.cfg.Stream.Subscribe("TRADE", l.cfg.Symbol); err != nil {
		return fmt.Errorf("trading: loop %s: subscribe: %w", l.cfg.BotID, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.cfg.Stream.Listen(ctx)
	})
	g.Go(func() error {
		return l.pollLoop(ctx)
	})

	return g.Wait()
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// preload fetches the historical candle series. Failure is transient: the
// loop starts with an empty series and the strategy stays silent until the
// refresh path has filled enough bars.
func (l *Loop) preload(ctx context.Context) {
	candles, err := l.cfg.Klines.Klines(ctx, l.cfg.Symbol, l.cfg.Timeframe, l.cfg.Lookback)
	if err != nil {
		l.logger.WarnContext(ctx, "history preload failed, starting with empty series",
			slog.String("error", err.Error()),
		)
		candles = nil
	}

	intervalSec := int64(l.interval / time.Second)
	lastClosed := time.Now().Unix() / intervalSec * intervalSec

	l.mu.Lock()
	l.candles = candles
	l.lastEvaluated = lastClosed
	l.ready = true
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "loop ready",
		slog.Int("candles", len(candles)),
		slog.String("timeframe", l.cfg.Timeframe),
	)
}

// onStreamEvent tracks the latest trade price and logs stream errors.
func (l *Loop) onStreamEvent(event string, payload any) {
	switch event {
	case domain.EventTrade:
		tick, ok := payload.(domain.TradeTick)
		if !ok || tick.Symbol != l.cfg.Symbol {
			return
		}
		l.mu.Lock()
		l.lastPrice = tick.Price
		l.mu.Unlock()

		if l.cfg.Prices != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := l.cfg.Prices.SetPrice(ctx, tick.Symbol, tick.Price, tick.Time); err != nil {
				l.logger.Debug("price cache write failed", slog.String("error", err.Error()))
			}
			cancel()
		}

	case domain.EventError:
		if err, ok := payload.(error); ok {
			l.logger.Warn("market stream error", slog.String("error", err.Error()))
		}
	}
}

// pollLoop wakes on a fixed interval and evaluates once per newly closed
// period.
func (l *Loop) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		intervalSec := int64(l.interval / time.Second)
		periodStart := time.Now().Unix() / intervalSec * intervalSec

		l.mu.Lock()
		newPeriod := periodStart > l.lastEvaluated
		l.mu.Unlock()
		if !newPeriod {
			continue
		}

		l.refresh(ctx)
		l.evaluate(ctx)

		l.mu.Lock()
		l.lastEvaluated = periodStart
		l.mu.Unlock()
	}
}

// refresh re-fetches the newest candles and merges them into the series by
// timestamp. Fetch failure is transient: log and evaluate on what we have.
func (l *Loop) refresh(ctx context.Context) {
	fresh, err := l.cfg.Klines.Klines(ctx, l.cfg.Symbol, l.cfg.Timeframe, refreshCount)
	if err != nil {
		l.logger.WarnContext(ctx, "candle refresh failed",
			slog.String("error", err.Error()),
		)
		return
	}

	l.mu.Lock()
	l.candles = domain.MergeCandles(l.candles, fresh)
	if len(l.candles) > l.cfg.Lookback {
		l.candles = l.candles[len(l.candles)-l.cfg.Lookback:]
	}
	l.mu.Unlock()
}

// evaluate runs the strategy on the current series and applies the decision
// table. At most one action per evaluation; the first matching rule wins.
// Execution errors are logged and leave position state unchanged.
func (l *Loop) evaluate(ctx context.Context) {
	l.mu.Lock()
	series := make([]domain.Candle, len(l.candles))
	copy(series, l.candles)
	price := l.lastPrice
	l.mu.Unlock()

	if len(series) == 0 {
		return
	}
	if price <= 0 {
		// No live trade seen yet; fall back to the latest close.
		price = series[len(series)-1].Close
	}

	sig, err := l.cfg.Strategy.Evaluate(series, l.cfg.Params)
	if err != nil {
		l.logger.ErrorContext(ctx, "strategy evaluation failed",
			slog.String("strategy", l.cfg.Strategy.Name()),
			slog.String("error", err.Error()),
		)
		return
	}

	pos := l.cfg.Positions.Current()
	switch {
	case pos == nil:
		// Risk halt blocks new entries only; exits below stay live.
		if l.cfg.Risk.ShouldHalt() {
			return
		}
		if sig.EnterLong {
			l.openPosition(ctx, domain.SideLong, price)
		} else if sig.EnterShort {
			l.openPosition(ctx, domain.SideShort, price)
		}

	case pos.Side == domain.SideLong:
		switch {
		case sig.ExitLong:
			l.closePosition(ctx, pos, price, "exit_signal")
		case l.cfg.Risk.CheckStopLoss(pos.EntryPrice, price, pos.Side):
			l.closePosition(ctx, pos, price, "stop_loss")
		case l.cfg.Risk.CheckTakeProfit(pos.EntryPrice, price, pos.Side):
			l.closePosition(ctx, pos, price, "take_profit")
		}

	case pos.Side == domain.SideShort:
		switch {
		case sig.ExitShort:
			l.closePosition(ctx, pos, price, "exit_signal")
		case l.cfg.Risk.CheckStopLoss(pos.EntryPrice, price, pos.Side):
			l.closePosition(ctx, pos, price, "stop_loss")
		case l.cfg.Risk.CheckTakeProfit(pos.EntryPrice, price, pos.Side):
			l.closePosition(ctx, pos, price, "take_profit")
		}
	}
}

// openPosition sizes and executes an entry, recording the position only after
// the fill succeeds.
func (l *Loop) openPosition(ctx context.Context, side domain.Side, price float64) {
	size := l.cfg.Risk.CalculatePositionSize(l.cfg.Capital, price)
	if size <= 0 {
		return
	}

	var (
		fill domain.Fill
		err  error
	)
	if side == domain.SideLong {
		fill, err = l.cfg.Backend.Buy(ctx, l.cfg.Symbol, size, price)
	} else {
		fill, err = l.cfg.Backend.Sell(ctx, l.cfg.Symbol, size, price)
	}
	if err != nil {
		l.logger.ErrorContext(ctx, "entry execution failed",
			slog.String("side", string(side)),
			slog.String("error", err.Error()),
		)
		return
	}

	if _, err := l.cfg.Positions.Open(l.cfg.Symbol, side, fill.Price, fill.Size, l.cfg.Strategy.Name()); err != nil {
		l.logger.ErrorContext(ctx, "position open failed after fill",
			slog.String("error", err.Error()),
		)
		return
	}

	l.logger.InfoContext(ctx, "position opened",
		slog.String("side", string(side)),
		slog.Float64("price", fill.Price),
		slog.Float64("size", fill.Size),
	)
}

// closePosition executes the exit, settles the trade, records equity with
// the risk manager, and emits a trade event.
func (l *Loop) closePosition(ctx context.Context, pos *domain.Position, price float64, reason string) {
	var (
		fill domain.Fill
		err  error
	)
	if pos.Side == domain.SideLong {
		fill, err = l.cfg.Backend.Sell(ctx, l.cfg.Symbol, pos.Size, price)
	} else {
		fill, err = l.cfg.Backend.Buy(ctx, l.cfg.Symbol, pos.Size, price)
	}
	if err != nil {
		l.logger.ErrorContext(ctx, "exit execution failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}

	trade, err := l.cfg.Positions.Close(fill.Price)
	if err != nil {
		l.logger.ErrorContext(ctx, "position close failed after fill",
			slog.String("error", err.Error()),
		)
		return
	}
	trade.Reason = reason

	l.logger.InfoContext(ctx, "position closed",
		slog.String("reason", reason),
		slog.Float64("exit_price", fill.Price),
		slog.Float64("pnl_usd", trade.PnLUSD),
	)

	l.recordEquity(ctx, fill.Price)

	event := domain.TradeEvent{
		BotID:  l.cfg.BotID,
		Trade:  trade,
		Signal: reason,
		Time:   time.Now(),
	}
	select {
	case l.events <- event:
	case <-ctx.Done():
	}
}

// recordEquity feeds the portfolio value into drawdown tracking.
func (l *Loop) recordEquity(ctx context.Context, price float64) {
	value, err := l.cfg.Backend.PortfolioValue(ctx, map[string]float64{l.cfg.Symbol: price})
	if err != nil {
		l.logger.WarnContext(ctx, "portfolio valuation failed",
			slog.String("error", err.Error()),
		)
		return
	}

	drawdown := l.cfg.Risk.RecordEquity(value)
	if l.cfg.Risk.ShouldHalt() {
		l.logger.WarnContext(ctx, "drawdown limit hit, new entries halted",
			slog.Float64("drawdown_pct", drawdown),
			slog.Float64("equity", value),
		)
	}
}
