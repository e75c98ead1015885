package s0_data

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/database"
)

// TVSignalRepository stores TradingView alerts
type TVSignalRepository struct {
	pool *pgxpool.Pool
}

var _ contracts.TVSignalStore = (*TVSignalRepository)(nil)

// NewTVSignalRepository creates a new TV signal repository
func NewTVSignalRepository(pool *pgxpool.Pool) *TVSignalRepository {
	return &TVSignalRepository{pool: pool}
}

// BulkInsert inserts signals, skipping (signal_time, ticker, trade_type) already stored.
// Returns the number of rows inserted.
func (r *TVSignalRepository) BulkInsert(ctx context.Context, signals []contracts.TVSignal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO tv_signals (
			updated_time, exchange, ticker, trade_type, order_type, quantity, limit_price,
			signal_time, strategy, candle_interval, alert_name,
			open_price, close_price, high_price, low_price, response_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (signal_time, ticker, trade_type) DO NOTHING
	`

	inserted := 0
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		now := time.Now()
		for _, s := range signals {
			updated := s.UpdatedTime
			if updated.IsZero() {
				updated = now
			}
			batch.Queue(query,
				updated, s.Exchange, s.Ticker, s.TradeType, s.OrderType, s.Quantity, s.LimitPrice,
				s.SignalTime, s.Strategy, s.CandleInterval, s.AlertName,
				s.OpenPrice, s.ClosePrice, s.HighPrice, s.LowPrice, s.ResponseMessage,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range signals {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, contracts.WrapPersistence("insert tv signals", err)
	}
	return inserted, nil
}

// TickersWithSignals returns the subset of tickers with a signal on date
func (r *TVSignalRepository) TickersWithSignals(ctx context.Context, date time.Time, tickers []string) ([]string, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ticker
		FROM tv_signals
		WHERE signal_time::date = $1::date
		  AND ticker = ANY($2)
		ORDER BY ticker
	`, date.Format("2006-01-02"), tickers)
	if err != nil {
		return nil, contracts.WrapPersistence("tickers with signals", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, contracts.WrapPersistence("scan ticker", err)
		}
		out = append(out, t)
	}
	return out, contracts.WrapPersistence("tickers with signals", rows.Err())
}
