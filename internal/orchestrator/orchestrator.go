// Package orchestrator owns the bot registry: CRUD with ownership checks,
// start/stop lifecycle, webhook signal routing, trade-statistics collection,
// and staggered restart of auto-start bots.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
	"github.com/alanyoungcy/tradebot/internal/execution"
	"github.com/alanyoungcy/tradebot/internal/platform/pionex"
	"github.com/alanyoungcy/tradebot/internal/strategy"
	"github.com/alanyoungcy/tradebot/internal/trading"
	"github.com/google/uuid"
)

// StreamFactory builds a fresh market stream for one bot loop.
type StreamFactory func() domain.MarketStream

// Config bundles the orchestrator's dependencies. NewStream and Klines are
// injected so tests can run without exchange access.
type Config struct {
	Store      domain.BotStore
	Registry   *strategy.Registry
	Klines     trading.KlineSource
	NewStream  StreamFactory
	LiveClient *pionex.Client    // nil when no exchange credentials are configured
	Prices     domain.PriceCache // optional

	Lookback     int
	PollInterval time.Duration

	Logger *slog.Logger
}

// runHandle tracks one running bot.
type runHandle struct {
	cancel    context.CancelFunc
	done      chan struct{}
	positions *trading.PositionManager
	risk      *trading.RiskManager
	backend   execution.Backend
}

// Orchestrator manages every bot's record and run state. It is the sole
// writer of bot statistics while bots run. Safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	// after drives the restart stagger schedule; tests swap it out.
	after func(d time.Duration) <-chan time.Time

	mu   sync.Mutex
	bots map[string]*domain.BotRecord
	runs map[string]*runHandle
}

// New creates an Orchestrator. Call RestoreAndAutostart to load persisted
// bots.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "orchestrator")),
		after:  time.After,
		bots:   make(map[string]*domain.BotRecord),
		runs:   make(map[string]*runHandle),
	}
}

// CreateBot registers a new bot from the supplied template, assigning its ID
// and webhook token, and persists it. The caller's UserID is taken from the
// template.
func (o *Orchestrator) CreateBot(ctx context.Context, rec domain.BotRecord) (domain.BotRecord, error) {
	rec.ID = uuid.NewString()[:8]
	rec.WebhookToken = uuid.NewString()
	rec.Status = domain.BotStopped
	rec.AutoStart = false
	rec.ErrorMsg = ""
	rec.CreatedAt = time.Now()
	if rec.SignalSource == "" {
		rec.SignalSource = domain.SourceStrategy
	}
	if rec.Timeframe == "" {
		rec.Timeframe = "1h"
	}

	if err := o.validateRecord(rec); err != nil {
		return domain.BotRecord{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.cfg.Store.UpsertOne(ctx, rec); err != nil {
		return domain.BotRecord{}, fmt.Errorf("orchestrator: create bot: %w", err)
	}
	stored := rec
	o.bots[rec.ID] = &stored

	o.logger.InfoContext(ctx, "bot created",
		slog.String("bot_id", rec.ID),
		slog.String("user_id", rec.UserID),
		slog.String("symbol", rec.Symbol),
	)
	return rec, nil
}

// GetBot returns a bot owned by userID. Ownership mismatch is reported as
// ErrNotOwner, distinct from ErrNotFound.
func (o *Orchestrator) GetBot(id, userID string) (domain.BotRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, err := o.lookup(id, userID)
	if err != nil {
		return domain.BotRecord{}, err
	}
	return *rec, nil
}

// ListBots returns all bots owned by userID.
func (o *Orchestrator) ListBots(userID string) []domain.BotRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.BotRecord, 0, len(o.bots))
	for _, rec := range o.bots {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out
}

// UpdateBot replaces a bot's configuration while it is stopped. Statistics,
// identity, and token fields are preserved from the stored record.
func (o *Orchestrator) UpdateBot(ctx context.Context, id, userID string, upd domain.BotRecord) (domain.BotRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := o.lookup(id, userID)
	if err != nil {
		return domain.BotRecord{}, err
	}
	if _, running := o.runs[id]; running {
		return domain.BotRecord{}, fmt.Errorf("orchestrator: update bot %s: %w", id, domain.ErrBotRunning)
	}

	next := *rec
	next.Name = upd.Name
	next.Strategy = upd.Strategy
	next.Symbol = upd.Symbol
	next.Timeframe = upd.Timeframe
	next.Capital = upd.Capital
	next.Params = upd.Params
	next.PaperMode = upd.PaperMode
	next.StopLossPct = upd.StopLossPct
	next.TakeProfitPct = upd.TakeProfitPct
	next.MaxDrawdownPct = upd.MaxDrawdownPct
	if upd.SignalSource != "" {
		next.SignalSource = upd.SignalSource
	}

	if err := o.validateRecord(next); err != nil {
		return domain.BotRecord{}, err
	}
	if err := o.cfg.Store.UpsertOne(ctx, next); err != nil {
		return domain.BotRecord{}, fmt.Errorf("orchestrator: update bot %s: %w", id, err)
	}
	*rec = next
	return next, nil
}

// DeleteBot removes a stopped bot.
func (o *Orchestrator) DeleteBot(ctx context.Context, id, userID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.lookup(id, userID); err != nil {
		return err
	}
	if _, running := o.runs[id]; running {
		return fmt.Errorf("orchestrator: delete bot %s: %w", id, domain.ErrBotRunning)
	}

	if err := o.cfg.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("orchestrator: delete bot %s: %w", id, err)
	}
	delete(o.bots, id)

	o.logger.InfoContext(ctx, "bot deleted", slog.String("bot_id", id))
	return nil
}

// StartBot brings a bot up: it marks auto-start durably, builds the executor
// and (for strategy bots) the trading loop, and transitions the record to
// running. Configuration problems surface synchronously and leave the bot in
// status error.
func (o *Orchestrator) StartBot(ctx context.Context, id, userID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startLocked(ctx, id, userID)
}

func (o *Orchestrator) startLocked(ctx context.Context, id, userID string) error {
	rec, err := o.lookup(id, userID)
	if err != nil {
		return err
	}
	if _, running := o.runs[id]; running {
		return fmt.Errorf("orchestrator: start bot %s: %w", id, domain.ErrBotRunning)
	}

	positions := trading.NewPositionManager()
	risk := trading.NewRiskManager(trading.RiskConfig{
		InitialCapital: rec.Capital,
		MaxDrawdownPct: rec.MaxDrawdownPct,
		StopLossPct:    rec.StopLossPct,
		TakeProfitPct:  rec.TakeProfitPct,
	})

	backend, err := o.buildBackend(rec)
	if err != nil {
		o.failBot(ctx, rec, err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &runHandle{
		cancel:    cancel,
		done:      make(chan struct{}),
		positions: positions,
		risk:      risk,
		backend:   backend,
	}

	var loop *trading.Loop
	if rec.SignalSource == domain.SourceStrategy {
		strat, err := o.cfg.Registry.Get(rec.Strategy)
		if err != nil {
			cancel()
			o.failBot(ctx, rec, err)
			return err
		}
		loop, err = trading.NewLoop(trading.LoopConfig{
			BotID:        rec.ID,
			Symbol:       rec.Symbol,
			Timeframe:    rec.Timeframe,
			Capital:      rec.Capital,
			Params:       rec.Params,
			Lookback:     o.cfg.Lookback,
			PollInterval: o.cfg.PollInterval,
			Strategy:     strat,
			Positions:    positions,
			Risk:         risk,
			Backend:      backend,
			Stream:       o.cfg.NewStream(),
			Klines:       o.cfg.Klines,
			Prices:       o.cfg.Prices,
			Logger:       o.logger,
		})
		if err != nil {
			cancel()
			o.failBot(ctx, rec, err)
			return err
		}
	}

	rec.Status = domain.BotRunning
	rec.AutoStart = true
	rec.ErrorMsg = ""
	if err := o.cfg.Store.UpsertOne(ctx, *rec); err != nil {
		cancel()
		return fmt.Errorf("orchestrator: start bot %s: persist: %w", id, err)
	}

	o.runs[id] = run

	if loop != nil {
		go o.collectTrades(rec.ID, loop.Events())
		go o.runLoop(runCtx, rec.ID, loop, run)
	} else {
		// Webhook bots have no loop; the handle closes on stop.
		go func() {
			<-runCtx.Done()
			close(run.done)
		}()
	}

	o.logger.InfoContext(ctx, "bot started",
		slog.String("bot_id", rec.ID),
		slog.String("source", string(rec.SignalSource)),
		slog.Bool("paper", rec.PaperMode),
	)
	return nil
}

// StopBot cancels the bot's loop and durably clears auto-start. Stopping a
// bot that is not running is a no-op.
func (o *Orchestrator) StopBot(ctx context.Context, id, userID string) error {
	o.mu.Lock()
	rec, err := o.lookup(id, userID)
	if err != nil {
		o.mu.Unlock()
		return err
	}

	run, running := o.runs[id]
	if running {
		run.cancel()
		delete(o.runs, id)
	}

	rec.Status = domain.BotStopped
	rec.AutoStart = false
	if perr := o.cfg.Store.UpsertOne(ctx, *rec); perr != nil {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: stop bot %s: persist: %w", id, perr)
	}
	o.mu.Unlock()

	if running {
		<-run.done
	}

	o.logger.InfoContext(ctx, "bot stopped", slog.String("bot_id", id))
	return nil
}

// PositionSnapshot reports the bot's open position with unrealized PnL at
// the cached last price. A missing cache entry values the position at its
// entry price.
type PositionSnapshot struct {
	Position  *domain.Position `json:"position"`
	LastPrice float64          `json:"last_price,omitempty"`
	PnLPct    float64          `json:"pnl_pct"`
	PnLUSD    float64          `json:"pnl_usd"`
}

// Position returns the bot's open-position snapshot.
func (o *Orchestrator) Position(ctx context.Context, id, userID string) (PositionSnapshot, error) {
	o.mu.Lock()
	rec, err := o.lookup(id, userID)
	if err != nil {
		o.mu.Unlock()
		return PositionSnapshot{}, err
	}
	run, running := o.runs[id]
	symbol := rec.Symbol
	o.mu.Unlock()

	if !running {
		return PositionSnapshot{}, fmt.Errorf("orchestrator: position %s: %w", id, domain.ErrBotNotRunning)
	}

	pos := run.positions.Current()
	snap := PositionSnapshot{Position: pos}
	if pos == nil {
		return snap, nil
	}

	price := pos.EntryPrice
	if o.cfg.Prices != nil {
		if cached, _, err := o.cfg.Prices.GetPrice(ctx, symbol); err == nil && cached > 0 {
			price = cached
		}
	}
	snap.LastPrice = price
	snap.PnLPct, snap.PnLUSD = pos.PnL(price)
	return snap, nil
}

// Counts reports registry occupancy: total registered bots and how many are
// currently running.
func (o *Orchestrator) Counts() (total, running int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.bots), len(o.runs)
}

// ResetRisk clears a bot's drawdown halt.
func (o *Orchestrator) ResetRisk(id, userID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.lookup(id, userID); err != nil {
		return err
	}
	run, running := o.runs[id]
	if !running {
		return fmt.Errorf("orchestrator: reset risk %s: %w", id, domain.ErrBotNotRunning)
	}
	run.risk.Reset()
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// lookup resolves a record with ownership enforcement. Caller must hold o.mu.
func (o *Orchestrator) lookup(id, userID string) (*domain.BotRecord, error) {
	rec, ok := o.bots[id]
	if !ok {
		return nil, fmt.Errorf("orchestrator: bot %s: %w", id, domain.ErrNotFound)
	}
	if userID != "" && rec.UserID != userID {
		return nil, fmt.Errorf("orchestrator: bot %s: %w", id, domain.ErrNotOwner)
	}
	return rec, nil
}

// validateRecord rejects configurations that can never start.
func (o *Orchestrator) validateRecord(rec domain.BotRecord) error {
	if strings.TrimSpace(rec.Symbol) == "" {
		return fmt.Errorf("orchestrator: symbol must not be empty")
	}
	if rec.Capital <= 0 {
		return fmt.Errorf("orchestrator: capital must be > 0")
	}
	if _, err := domain.ParseTimeframe(rec.Timeframe); err != nil {
		return err
	}
	if rec.SignalSource == domain.SourceStrategy {
		if _, err := o.cfg.Registry.Get(rec.Strategy); err != nil {
			return err
		}
	}
	return nil
}

// buildBackend constructs the execution backend for a record. Live mode
// requires credentials and rejects perpetual symbols.
func (o *Orchestrator) buildBackend(rec *domain.BotRecord) (execution.Backend, error) {
	if rec.PaperMode {
		_, quote := splitQuote(rec.Symbol)
		return execution.NewPaper(rec.Capital, quote), nil
	}

	if domain.IsPerp(rec.Symbol) {
		return nil, fmt.Errorf("orchestrator: bot %s: %s: %w", rec.ID, rec.Symbol, domain.ErrPerpNotSupported)
	}
	if o.cfg.LiveClient == nil {
		return nil, fmt.Errorf("orchestrator: bot %s: live mode requires exchange credentials", rec.ID)
	}
	return execution.NewLive(o.cfg.LiveClient), nil
}

// failBot records a configuration failure: status error with the message,
// persisted. auto_start is left untouched.
func (o *Orchestrator) failBot(ctx context.Context, rec *domain.BotRecord, cause error) {
	rec.Status = domain.BotError
	rec.ErrorMsg = cause.Error()
	if err := o.cfg.Store.UpsertOne(ctx, *rec); err != nil {
		o.logger.ErrorContext(ctx, "persisting bot failure state failed",
			slog.String("bot_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	o.logger.ErrorContext(ctx, "bot failed to start",
		slog.String("bot_id", rec.ID),
		slog.String("error", cause.Error()),
	)
}

// runLoop supervises one bot loop and records its terminal state.
func (o *Orchestrator) runLoop(ctx context.Context, id string, loop *trading.Loop, run *runHandle) {
	defer close(run.done)

	err := loop.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	// Fatal loop failure: status error, auto_start preserved for the next
	// restore cycle.
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.runs, id)
	rec, ok := o.bots[id]
	if !ok {
		return
	}
	rec.Status = domain.BotError
	rec.ErrorMsg = err.Error()

	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if perr := o.cfg.Store.UpsertOne(persistCtx, *rec); perr != nil {
		o.logger.Error("persisting loop failure failed",
			slog.String("bot_id", id),
			slog.String("error", perr.Error()),
		)
	}

	o.logger.Error("bot loop failed",
		slog.String("bot_id", id),
		slog.String("error", err.Error()),
	)
}

// collectTrades drains a loop's trade events. The orchestrator is the only
// writer of the stats fields, so loop and webhook trades funnel through the
// same path.
func (o *Orchestrator) collectTrades(id string, events <-chan domain.TradeEvent) {
	for ev := range events {
		o.recordTrade(ev)
	}
}

// recordTrade folds one completed trade into the bot's statistics and
// persists the record.
func (o *Orchestrator) recordTrade(ev domain.TradeEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.bots[ev.BotID]
	if !ok {
		return
	}

	prev := float64(rec.TotalTrades)
	win := 0.0
	if ev.Trade.PnLUSD > 0 {
		win = 100.0
	}
	rec.TotalTrades++
	rec.WinRate = (rec.WinRate*prev + win) / float64(rec.TotalTrades)
	rec.TotalPnL += ev.Trade.PnLUSD
	rec.LastSignal = ev.Signal
	t := ev.Time
	rec.LastSignalTime = &t
	rec.AppendTrade(ev.Trade)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.cfg.Store.UpsertOne(ctx, *rec); err != nil {
		o.logger.Error("persisting trade stats failed",
			slog.String("bot_id", ev.BotID),
			slog.String("error", err.Error()),
		)
	}
}

// splitQuote splits "BTC_USDT" into base and quote, defaulting the quote to
// USDT for bare symbols.
func splitQuote(symbol string) (base, quote string) {
	base, quote, found := strings.Cut(symbol, "_")
	if !found || quote == "" {
		quote = "USDT"
	}
	return base, quote
}
