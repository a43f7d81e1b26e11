package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// Webhook rejection reasons.
const (
	ReasonInvalidToken  = "invalid_token"
	ReasonNotRunning    = "not_running"
	ReasonNotReady      = "not_ready"
	ReasonInvalidAction = "invalid_action"
	ReasonInvalidPrice  = "invalid_price"
	ReasonHalted        = "halted"
)

// WebhookSignal is an external trading signal addressed by webhook token.
type WebhookSignal struct {
	Action string  `json:"action"`
	Price  float64 `json:"price"`
}

// WebhookResult reports how a signal was handled. Rejections set OK=false
// with a Reason; no-op acknowledgements set OK=true with a Message.
type WebhookResult struct {
	OK      bool          `json:"ok"`
	Reason  string        `json:"reason,omitempty"`
	Action  string        `json:"action,omitempty"`
	BotID   string        `json:"bot_id,omitempty"`
	Message string        `json:"message,omitempty"`
	Trade   *domain.Trade `json:"trade,omitempty"`
}

// HandleWebhook routes a signal to the bot owning the token. Valid actions:
// buy, sell, close, close_long, close_short. A buy against an open short
// closes the short first, then opens the long; sell mirrors, so a sell while
// long always reverses into a short. Closing with nothing open is
// acknowledged, not an error.
//
// Webhook signals mutate the bot's simulated position directly at the
// caller-supplied price; they do not route fills through the execution
// backend. Entries always commit the full configured capital: size is
// capital divided by the signal price.
func (o *Orchestrator) HandleWebhook(ctx context.Context, token string, sig WebhookSignal) WebhookResult {
	o.mu.Lock()
	var rec *domain.BotRecord
	for _, b := range o.bots {
		if b.WebhookToken == token {
			rec = b
			break
		}
	}
	if rec == nil {
		o.mu.Unlock()
		return WebhookResult{OK: false, Reason: ReasonInvalidToken}
	}

	run, running := o.runs[rec.ID]
	botID := rec.ID
	symbol := rec.Symbol
	capital := rec.Capital
	o.mu.Unlock()

	if !running {
		return WebhookResult{OK: false, Reason: ReasonNotRunning, BotID: botID}
	}
	if run.backend == nil {
		return WebhookResult{OK: false, Reason: ReasonNotReady, BotID: botID}
	}

	action := strings.ToLower(strings.TrimSpace(sig.Action))
	res := WebhookResult{OK: true, Action: action, BotID: botID}

	price := sig.Price
	if price <= 0 && o.cfg.Prices != nil {
		if cached, _, err := o.cfg.Prices.GetPrice(ctx, symbol); err == nil {
			price = cached
		}
	}
	if price <= 0 {
		return WebhookResult{OK: false, Reason: ReasonInvalidPrice, Action: action, BotID: botID}
	}

	switch action {
	case "buy":
		return o.webhookEnter(run, res, symbol, capital, price, domain.SideLong)
	case "sell":
		return o.webhookEnter(run, res, symbol, capital, price, domain.SideShort)
	case "close":
		return o.webhookClose(run, res, price, "")
	case "close_long":
		return o.webhookClose(run, res, price, domain.SideLong)
	case "close_short":
		return o.webhookClose(run, res, price, domain.SideShort)
	default:
		return WebhookResult{OK: false, Reason: ReasonInvalidAction, Action: action, BotID: botID}
	}
}

// webhookEnter opens a position on the given side, first closing an open
// position on the opposite side. Re-entry on the same side is a reported
// no-op. Size is always capital/price, no compounding.
func (o *Orchestrator) webhookEnter(run *runHandle, res WebhookResult, symbol string, capital, price float64, side domain.Side) WebhookResult {
	pos := run.positions.Current()
	if pos != nil && pos.Side == side {
		res.Message = fmt.Sprintf("already positioned %s", side)
		return res
	}

	if pos != nil {
		closed := o.webhookClose(run, res, price, pos.Side)
		if !closed.OK {
			return closed
		}
		res.Trade = closed.Trade
	}

	if run.risk.ShouldHalt() {
		res.OK = false
		res.Reason = ReasonHalted
		return res
	}

	size := capital / price
	if _, err := run.positions.Open(symbol, side, price, size, "webhook"); err != nil {
		res.OK = false
		res.Message = err.Error()
		return res
	}

	res.Message = fmt.Sprintf("opened %s %.8f @ %.2f", side, size, price)
	return res
}

// webhookClose settles the open position when it matches side (empty side
// matches either). Nothing open is acknowledged as a no-op.
func (o *Orchestrator) webhookClose(run *runHandle, res WebhookResult, price float64, side domain.Side) WebhookResult {
	pos := run.positions.Current()
	if pos == nil || (side != "" && pos.Side != side) {
		res.Message = "no open position"
		return res
	}

	trade, err := run.positions.Close(price)
	if err != nil {
		res.OK = false
		res.Message = err.Error()
		return res
	}
	trade.Reason = res.Action

	o.recordTrade(domain.TradeEvent{
		BotID:  res.BotID,
		Trade:  trade,
		Signal: res.Action,
		Time:   time.Now(),
	})

	res.Trade = &trade
	res.Message = fmt.Sprintf("closed %s, pnl %.2f", trade.Side, trade.PnLUSD)
	return res
}
