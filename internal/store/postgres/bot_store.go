package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// BotStore implements domain.BotStore using PostgreSQL.
type BotStore struct {
	pool *pgxpool.Pool
}

// NewBotStore creates a new BotStore backed by the given connection pool.
func NewBotStore(pool *pgxpool.Pool) *BotStore {
	return &BotStore{pool: pool}
}

const botSelectCols = `bot_id, user_id, name, strategy, symbol, timeframe,
	capital, params, paper_mode, sl_pct, tp_pct, max_drawdown_pct,
	status, signal_source, webhook_token, auto_start, error_msg,
	total_pnl, total_trades, win_rate, last_signal, last_signal_time,
	trade_history, created_at`

func scanBotRows(rows pgx.Rows) ([]domain.BotRecord, error) {
	var records []domain.BotRecord
	for rows.Next() {
		var (
			rec            domain.BotRecord
			status, source string
			paramsJSON     []byte
			historyJSON    []byte
		)

		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Name, &rec.Strategy, &rec.Symbol, &rec.Timeframe,
			&rec.Capital, &paramsJSON, &rec.PaperMode,
			&rec.StopLossPct, &rec.TakeProfitPct, &rec.MaxDrawdownPct,
			&status, &source, &rec.WebhookToken, &rec.AutoStart, &rec.ErrorMsg,
			&rec.TotalPnL, &rec.TotalTrades, &rec.WinRate,
			&rec.LastSignal, &rec.LastSignalTime,
			&historyJSON, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Status = domain.BotStatus(status)
		rec.SignalSource = domain.SignalSource(source)

		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &rec.Params); err != nil {
				return nil, fmt.Errorf("decode params for %s: %w", rec.ID, err)
			}
		}
		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &rec.TradeHistory); err != nil {
				return nil, fmt.Errorf("decode trade history for %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadAll returns every stored bot record ordered by creation time.
func (s *BotStore) LoadAll(ctx context.Context) ([]domain.BotRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+botSelectCols+` FROM bots ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load bots: %w", err)
	}
	defer rows.Close()

	records, err := scanBotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bots: %w", err)
	}
	return records, nil
}

// UpsertOne writes the full record, inserting or replacing by bot_id.
func (s *BotStore) UpsertOne(ctx context.Context, rec domain.BotRecord) error {
	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("postgres: encode params for %s: %w", rec.ID, err)
	}
	if rec.Params == nil {
		paramsJSON = []byte("{}")
	}
	historyJSON, err := json.Marshal(rec.TradeHistory)
	if err != nil {
		return fmt.Errorf("postgres: encode trade history for %s: %w", rec.ID, err)
	}
	if rec.TradeHistory == nil {
		historyJSON = []byte("[]")
	}

	const query = `
		INSERT INTO bots (
			bot_id, user_id, name, strategy, symbol, timeframe,
			capital, params, paper_mode, sl_pct, tp_pct, max_drawdown_pct,
			status, signal_source, webhook_token, auto_start, error_msg,
			total_pnl, total_trades, win_rate, last_signal, last_signal_time,
			trade_history, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22,
			$23, $24, NOW()
		)
		ON CONFLICT (bot_id) DO UPDATE SET
			user_id          = EXCLUDED.user_id,
			name             = EXCLUDED.name,
			strategy         = EXCLUDED.strategy,
			symbol           = EXCLUDED.symbol,
			timeframe        = EXCLUDED.timeframe,
			capital          = EXCLUDED.capital,
			params           = EXCLUDED.params,
			paper_mode       = EXCLUDED.paper_mode,
			sl_pct           = EXCLUDED.sl_pct,
			tp_pct           = EXCLUDED.tp_pct,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct,
			status           = EXCLUDED.status,
			signal_source    = EXCLUDED.signal_source,
			webhook_token    = EXCLUDED.webhook_token,
			auto_start       = EXCLUDED.auto_start,
			error_msg        = EXCLUDED.error_msg,
			total_pnl        = EXCLUDED.total_pnl,
			total_trades     = EXCLUDED.total_trades,
			win_rate         = EXCLUDED.win_rate,
			last_signal      = EXCLUDED.last_signal,
			last_signal_time = EXCLUDED.last_signal_time,
			trade_history    = EXCLUDED.trade_history,
			updated_at       = NOW()`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Name, rec.Strategy, rec.Symbol, rec.Timeframe,
		rec.Capital, paramsJSON, rec.PaperMode,
		rec.StopLossPct, rec.TakeProfitPct, rec.MaxDrawdownPct,
		string(rec.Status), string(rec.SignalSource), rec.WebhookToken, rec.AutoStart, rec.ErrorMsg,
		rec.TotalPnL, rec.TotalTrades, rec.WinRate, rec.LastSignal, rec.LastSignalTime,
		historyJSON, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert bot %s: %w", rec.ID, err)
	}
	return nil
}

// Delete removes a record by ID.
func (s *BotStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bots WHERE bot_id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete bot %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.BotStore = (*BotStore)(nil)
