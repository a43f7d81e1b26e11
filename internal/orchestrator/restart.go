package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// restartBaseDelay and restartStepDelay shape the stagger schedule: the
// first auto-start bot launches immediately, bot i (i >= 1) launches
// 3 + 2*i seconds after restore begins.
const (
	restartBaseDelay = 3 * time.Second
	restartStepDelay = 2 * time.Second
)

// RestoreAndAutostart loads every persisted bot (forced to stopped), then
// starts the ones marked auto-start on a staggered schedule so the exchange
// is not hammered with simultaneous history preloads. A failed start is
// logged and does not block the rest of the queue. It blocks until the
// schedule completes or ctx is done.
func (o *Orchestrator) RestoreAndAutostart(ctx context.Context) error {
	records, err := o.cfg.Store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: restore: %w", err)
	}

	o.mu.Lock()
	var autostart []string
	for _, rec := range records {
		stored := rec
		// A process restart means nothing is running, whatever was persisted.
		stored.Status = domain.BotStopped
		o.bots[stored.ID] = &stored
		if stored.AutoStart {
			autostart = append(autostart, stored.ID)
		}
	}
	o.mu.Unlock()

	sort.Strings(autostart)

	o.logger.InfoContext(ctx, "bots restored",
		slog.Int("total", len(records)),
		slog.Int("autostart", len(autostart)),
	)

	for i, id := range autostart {
		if i > 0 {
			// Absolute offsets 3+2*i: gap of 5s before the second start,
			// then 2s between each subsequent one.
			gap := restartStepDelay
			if i == 1 {
				gap = restartBaseDelay + restartStepDelay
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.after(gap):
			}
		}

		o.mu.Lock()
		rec, ok := o.bots[id]
		var userID string
		if ok {
			userID = rec.UserID
		}
		o.mu.Unlock()
		if !ok {
			continue
		}

		if err := o.StartBot(ctx, id, userID); err != nil {
			o.logger.WarnContext(ctx, "autostart failed",
				slog.String("bot_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// StopAll cancels every running bot, used at shutdown. Records keep
// auto_start so the next boot restores them.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	handles := make([]*runHandle, 0, len(o.runs))
	for id, run := range o.runs {
		run.cancel()
		handles = append(handles, run)
		delete(o.runs, id)
	}
	o.mu.Unlock()

	for _, run := range handles {
		<-run.done
	}
	o.logger.Info("all bots stopped")
}
