package s2_signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/database"
	"github.com/wonny/sgloader/pkg/logger"
)

const signalColumns = `
	id,
	COALESCE(screener_run_id, ''),
	COALESCE(screener_run_time, updated_time),
	screener_date,
	screener_type,
	screener,
	COALESCE(screener_rank, 0),
	stock_name,
	trade_type,
	stock_type,
	price,
	price_change,
	percentage,
	momentum,
	open_price,
	COALESCE(deviation_from_pivots, ''),
	COALESCE(todays_range, ''),
	COALESCE(ohl, ''),
	COALESCE(alerts, ''),
	level,
	COALESCE(sector, ''),
	COALESCE(weekly_trend, ''),
	signal_count,
	COALESCE(run_history, ''),
	COALESCE(tags, ''),
	bullish_milestone_tags,
	bearish_milestone_tags,
	is_active,
	is_processed,
	updated_time
`

// Repository is the pgx-backed Signal Store
type Repository struct {
	db         *pgxpool.Pool
	reconciler *Reconciler
	logger     *logger.Logger
	now        func() time.Time
}

var (
	_ contracts.SignalStore = (*Repository)(nil)
	_ contracts.LevelSource = (*Repository)(nil)
)

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool, reconciler *Reconciler, log *logger.Logger) *Repository {
	return &Repository{
		db:         db,
		reconciler: reconciler,
		logger:     log.WithField("module", "s2_signals"),
		now:        time.Now,
	}
}

func scanSignal(row pgx.Row) (*contracts.Signal, error) {
	var s contracts.Signal
	var tradeType string
	err := row.Scan(
		&s.ID,
		&s.RunID,
		&s.RunTime,
		&s.ScreenerDate,
		&s.ScreenerType,
		&s.Screener,
		&s.ScreenerRank,
		&s.StockName,
		&tradeType,
		&s.StockType,
		&s.Price,
		&s.Change,
		&s.Percentage,
		&s.Momentum,
		&s.Open,
		&s.DeviationFromPivots,
		&s.TodaysRange,
		&s.Category,
		&s.Alerts,
		&s.Level,
		&s.Sector,
		&s.WeeklyTrend,
		&s.SignalCount,
		&s.RunHistory,
		&s.Tags,
		&s.BullishMilestoneTags,
		&s.BearishMilestoneTags,
		&s.IsActive,
		&s.IsProcessed,
		&s.UpdatedTime,
	)
	if err != nil {
		return nil, err
	}
	s.TradeType = contracts.TradeType(tradeType)
	return &s, nil
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findByKey(ctx context.Context, q querier, key contracts.SignalKey, lock bool) (*contracts.Signal, error) {
	query := `SELECT ` + signalColumns + `
		FROM screener_signals
		WHERE screener = $1
		  AND screener_date = $2
		  AND stock_name = $3
		  AND trade_type = $4
		  AND stock_type = $5`
	if lock {
		query += ` FOR UPDATE`
	}

	sig, err := scanSignal(q.QueryRow(ctx, query,
		key.Screener, key.ScreenerDate, key.StockName, string(key.TradeType), key.StockType,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find signal %s/%s: %w", key.Screener, key.StockName, err)
	}
	return sig, nil
}

// FindByKey returns the stored signal, or nil when absent
func (r *Repository) FindByKey(ctx context.Context, key contracts.SignalKey) (*contracts.Signal, error) {
	sig, err := findByKey(ctx, r.db, key, false)
	return sig, contracts.WrapPersistence("find by key", err)
}

// UpsertBatch reconciles and persists a batch in one transaction.
// A failing record rolls back to its savepoint and is counted in Failed;
// a failing commit rolls back the whole batch and reports zero writes.
func (r *Repository) UpsertBatch(ctx context.Context, batch []contracts.Signal) (contracts.UpsertResult, error) {
	// a started batch runs to a terminal state
	ctx = context.WithoutCancel(ctx)
	now := r.now()

	var res contracts.UpsertResult
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for i := range batch {
			inserted, err := r.upsertOne(ctx, tx, batch[i], now)
			if err != nil {
				res.Failed++
				r.logger.WithError(err).
					WithField("record", batch[i]).
					Error("Signal upsert failed, record excluded from batch")
				continue
			}
			if inserted {
				res.Inserted++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		r.logger.WithError(err).WithField("batch_size", len(batch)).Error("Batch rolled back")
		return contracts.UpsertResult{Failed: len(batch)}, contracts.WrapPersistence("upsert batch", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"failed":   res.Failed,
	}).Info("Signal batch committed")
	return res, nil
}

// upsertOne runs lookup, reconcile and write inside a savepoint
func (r *Repository) upsertOne(ctx context.Context, tx pgx.Tx, incoming contracts.Signal, now time.Time) (inserted bool, err error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			_ = sp.Rollback(ctx)
		}
	}()

	existing, err := findByKey(ctx, sp, incoming.Key(), true)
	if err != nil {
		return false, err
	}

	merged := r.reconciler.Reconcile(existing, incoming, now)
	if existing == nil {
		err = insertSignal(ctx, sp, &merged)
	} else {
		err = updateSignal(ctx, sp, &merged)
	}
	if err != nil {
		return false, err
	}

	if err = sp.Commit(ctx); err != nil {
		return false, fmt.Errorf("release savepoint: %w", err)
	}
	return existing == nil, nil
}

func insertSignal(ctx context.Context, tx pgx.Tx, s *contracts.Signal) error {
	query := `
		INSERT INTO screener_signals (
			screener_run_id, screener_run_time, screener_date, screener_type, screener,
			screener_rank, stock_name, trade_type, stock_type,
			price, price_change, percentage, momentum, open_price,
			deviation_from_pivots, todays_range, ohl, alerts, level,
			sector, weekly_trend, signal_count, run_history, tags,
			bullish_milestone_tags, bearish_milestone_tags,
			is_active, is_processed, updated_time
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29
		)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		s.RunID, s.RunTime, s.ScreenerDate, s.ScreenerType, s.Screener,
		s.ScreenerRank, s.StockName, string(s.TradeType), s.StockType,
		s.Price, s.Change, s.Percentage, s.Momentum, s.Open,
		nullIfEmpty(s.DeviationFromPivots), nullIfEmpty(s.TodaysRange), nullIfEmpty(s.Category),
		nullIfEmpty(s.Alerts), s.Level,
		nullIfEmpty(s.Sector), nullIfEmpty(s.WeeklyTrend), s.SignalCount, s.RunHistory, s.Tags,
		s.BullishMilestoneTags, s.BearishMilestoneTags,
		s.IsActive, s.IsProcessed, s.UpdatedTime,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", s.StockName, err)
	}
	return nil
}

func updateSignal(ctx context.Context, tx pgx.Tx, s *contracts.Signal) error {
	query := `
		UPDATE screener_signals SET
			price = $2,
			price_change = $3,
			percentage = $4,
			level = $5,
			updated_time = $6,
			signal_count = $7,
			is_processed = $8,
			run_history = $9,
			tags = $10,
			bullish_milestone_tags = $11,
			bearish_milestone_tags = $12
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		s.ID, s.Price, s.Change, s.Percentage, s.Level, s.UpdatedTime,
		s.SignalCount, s.IsProcessed, s.RunHistory, s.Tags,
		s.BullishMilestoneTags, s.BearishMilestoneTags,
	)
	if err != nil {
		return fmt.Errorf("update signal %d: %w", s.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update signal %d: %d rows affected", s.ID, tag.RowsAffected())
	}
	return nil
}

// DeleteByDateAndType purges one screener type for a day.
// On failure the transaction is rolled back and the count is 0.
func (r *Repository) DeleteByDateAndType(ctx context.Context, date time.Time, screenerType string) (int64, error) {
	var deleted int64
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM screener_signals WHERE screener_date = $1 AND screener_type = $2`,
			date, screenerType,
		)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		r.logger.WithError(err).
			WithFields(map[string]interface{}{"date": date.Format("2006-01-02"), "type": screenerType}).
			Error("Purge failed, rolled back")
		return 0, contracts.WrapPersistence("delete by date and type", err)
	}

	r.logger.Infof("Purged %d %s signals for %s", deleted, screenerType, date.Format("2006-01-02"))
	return deleted, nil
}

// ListByDate returns the day's signals, all types when screenerType is empty
func (r *Repository) ListByDate(ctx context.Context, date time.Time, screenerType string) ([]contracts.Signal, error) {
	query := `SELECT ` + signalColumns + `
		FROM screener_signals
		WHERE screener_date = $1
		  AND ($2 = '' OR screener_type = $2)
		ORDER BY screener_type, screener, screener_rank, stock_name`

	rows, err := r.db.Query(ctx, query, date, screenerType)
	if err != nil {
		return nil, contracts.WrapPersistence("list by date", err)
	}
	defer rows.Close()

	var signals []contracts.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, contracts.WrapPersistence("scan signal", err)
		}
		signals = append(signals, *sig)
	}
	return signals, contracts.WrapPersistence("list by date", rows.Err())
}

// FindLevel returns the most recent non-null level for a stock on date
func (r *Repository) FindLevel(ctx context.Context, date time.Time, stockName string) (float64, bool, error) {
	var level float64
	err := r.db.QueryRow(ctx, `
		SELECT level
		FROM screener_signals
		WHERE screener_date = $1
		  AND stock_name = $2
		  AND level IS NOT NULL
		ORDER BY updated_time DESC
		LIMIT 1
	`, date, stockName).Scan(&level)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, contracts.WrapPersistence("find level", err)
	}
	return level, true, nil
}

// UpdateWeeklyTrend sets the weekly trend label on a stock's rows for one screener
func (r *Repository) UpdateWeeklyTrend(ctx context.Context, date time.Time, screener, stockName, trend string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE screener_signals
		SET weekly_trend = $4, updated_time = now()
		WHERE screener_date = $1 AND screener = $2 AND stock_name = $3
	`, date, screener, stockName, trend)
	if err != nil {
		return 0, contracts.WrapPersistence("update weekly trend", err)
	}
	return tag.RowsAffected(), nil
}

// MarkProcessed flags rows as evaluated downstream
func (r *Repository) MarkProcessed(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE screener_signals SET is_processed = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, contracts.WrapPersistence("mark processed", err)
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
