package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{version: 1, name: "screener_signals", sql: screenerSignalsSQL},
	{version: 2, name: "market_context", sql: marketContextSQL},
	{version: 3, name: "tv_signals", sql: tvSignalsSQL},
	{version: 4, name: "screener_logs", sql: screenerLogsSQL},
}

// Migrate applies pending schema migrations, each in its own transaction
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range migrations {
		var exists bool
		if err := db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
		).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if exists {
			continue
		}

		err := WithTx(ctx, db.Pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		applied = append(applied, m.name)
	}

	return applied, nil
}

const screenerSignalsSQL = `
CREATE TABLE IF NOT EXISTS screener_signals (
	id                     BIGSERIAL PRIMARY KEY,
	screener_run_id        VARCHAR(50),
	screener_run_time      TIMESTAMPTZ,
	screener_date          DATE NOT NULL,
	screener_type          VARCHAR(50) NOT NULL,
	screener               VARCHAR(50) NOT NULL,
	stock_name             VARCHAR(50) NOT NULL,
	trade_type             VARCHAR(10) NOT NULL,
	stock_type             VARCHAR(30) NOT NULL,
	screener_rank          INTEGER,
	price                  DOUBLE PRECISION,
	price_change           DOUBLE PRECISION,
	percentage             DOUBLE PRECISION NOT NULL DEFAULT 0,
	momentum               DOUBLE PRECISION,
	open_price             DOUBLE PRECISION,
	alerts                 TEXT,
	deviation_from_pivots  VARCHAR(100),
	todays_range           VARCHAR(100),
	ohl                    VARCHAR(30),
	level                  DOUBLE PRECISION,
	sector                 VARCHAR(1000),
	weekly_trend           VARCHAR(50),
	signal_count           INTEGER NOT NULL DEFAULT 1,
	run_history            TEXT,
	tags                   TEXT,
	bullish_milestone_tags VARCHAR(2500),
	bearish_milestone_tags VARCHAR(2500),
	is_active              BOOLEAN NOT NULL DEFAULT TRUE,
	is_processed           BOOLEAN NOT NULL DEFAULT FALSE,
	updated_time           TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_screener_signal UNIQUE (screener, screener_date, stock_name, trade_type, stock_type),
	CONSTRAINT ck_trade_direction CHECK (
		(trade_type = 'SELL' AND percentage < 0) OR (trade_type = 'BUY' AND percentage >= 0)
	)
);

CREATE INDEX IF NOT EXISTS idx_screener_signals_date_type ON screener_signals (screener_date, screener_type);
CREATE INDEX IF NOT EXISTS idx_screener_signals_date_stock ON screener_signals (screener_date, stock_name);
`

const marketContextSQL = `
CREATE TABLE IF NOT EXISTS index_master (
	index_id SERIAL PRIMARY KEY,
	symbol   VARCHAR(50) NOT NULL UNIQUE
);

INSERT INTO index_master (index_id, symbol) VALUES
	(1, 'NIFTY 50'),
	(2, 'NIFTY 500'),
	(3, 'GIFT NIFTY'),
	(4, 'NIFTY BANK'),
	(5, 'NIFTY_MIDCAP_100'),
	(6, 'NIFTY_SMLCAP_100'),
	(7, 'NIFTY_FIN_SERVICE'),
	(8, 'INDIA_VIX'),
	(9, 'SENSEX'),
	(10, 'FNO')
ON CONFLICT DO NOTHING;

SELECT setval(pg_get_serial_sequence('index_master', 'index_id'), (SELECT MAX(index_id) FROM index_master));

CREATE TABLE IF NOT EXISTS index_snapshots (
	id              BIGSERIAL PRIMARY KEY,
	index_id        INTEGER NOT NULL REFERENCES index_master (index_id),
	snapshot_date   DATE NOT NULL,
	index_value     DOUBLE PRECISION NOT NULL DEFAULT 0,
	percent_change  DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_advancing INTEGER NOT NULL DEFAULT 0,
	total_declining INTEGER NOT NULL DEFAULT 0,
	breadth_trend   VARCHAR(20),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_index_snapshots_date ON index_snapshots (snapshot_date, index_id);
`

const tvSignalsSQL = `
CREATE TABLE IF NOT EXISTS tv_signals (
	row_id           BIGSERIAL PRIMARY KEY,
	updated_time     TIMESTAMP NOT NULL,
	exchange         VARCHAR(50) NOT NULL,
	ticker           VARCHAR(50) NOT NULL,
	trade_type       VARCHAR(20) NOT NULL,
	order_type       VARCHAR(20) NOT NULL,
	quantity         INTEGER NOT NULL,
	limit_price      DOUBLE PRECISION NOT NULL,
	signal_time      TIMESTAMP NOT NULL,
	strategy         VARCHAR(50) NOT NULL,
	candle_interval  VARCHAR(10) NOT NULL,
	alert_name       VARCHAR(100) NOT NULL,
	open_price       DOUBLE PRECISION NOT NULL,
	close_price      DOUBLE PRECISION NOT NULL,
	high_price       DOUBLE PRECISION NOT NULL,
	low_price        DOUBLE PRECISION NOT NULL,
	response_message VARCHAR(200) NOT NULL DEFAULT '',
	CONSTRAINT uq_tv_signal UNIQUE (signal_time, ticker, trade_type)
);

CREATE INDEX IF NOT EXISTS idx_tv_signals_day ON tv_signals ((signal_time::date), ticker);
`

const screenerLogsSQL = `
CREATE TABLE IF NOT EXISTS screener_logs (
	log_id        UUID PRIMARY KEY,
	process_name  VARCHAR(100) NOT NULL,
	status        VARCHAR(20) NOT NULL,
	error_message TEXT,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_screener_logs_started ON screener_logs (started_at DESC);
`
