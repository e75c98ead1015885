package s0_data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/database"
)

// Repository handles index master and index snapshot persistence
// ⭐ SSOT: the Market Breadth Source
type Repository struct {
	db *pgxpool.Pool
}

var _ contracts.BreadthSource = (*Repository)(nil)

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// GetSnapshot returns the latest snapshot of indexID on date, or nil when absent
func (r *Repository) GetSnapshot(ctx context.Context, date time.Time, indexID int) (*contracts.IndexSnapshot, error) {
	query := `
		SELECT
			s.id,
			s.index_id,
			m.symbol,
			s.snapshot_date,
			s.index_value,
			s.percent_change,
			s.total_advancing,
			s.total_declining,
			COALESCE(s.breadth_trend, '')
		FROM index_snapshots s
		JOIN index_master m ON m.index_id = s.index_id
		WHERE s.snapshot_date = $1 AND s.index_id = $2
		ORDER BY s.created_at DESC
		LIMIT 1
	`

	var snap contracts.IndexSnapshot
	err := r.db.QueryRow(ctx, query, date, indexID).Scan(
		&snap.ID,
		&snap.IndexID,
		&snap.IndexName,
		&snap.SnapshotDate,
		&snap.Value,
		&snap.PercentChange,
		&snap.Advances,
		&snap.Declines,
		&snap.BreadthTrend,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contracts.WrapPersistence("get snapshot", err)
	}
	return &snap, nil
}

// ListSnapshots returns every index snapshot for date
func (r *Repository) ListSnapshots(ctx context.Context, date time.Time) ([]contracts.IndexSnapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.index_id, m.symbol, s.snapshot_date, s.index_value, s.percent_change,
		       s.total_advancing, s.total_declining, COALESCE(s.breadth_trend, '')
		FROM index_snapshots s
		JOIN index_master m ON m.index_id = s.index_id
		WHERE s.snapshot_date = $1
		ORDER BY s.index_id
	`, date)
	if err != nil {
		return nil, contracts.WrapPersistence("list snapshots", err)
	}
	defer rows.Close()

	var out []contracts.IndexSnapshot
	for rows.Next() {
		var s contracts.IndexSnapshot
		if err := rows.Scan(&s.ID, &s.IndexID, &s.IndexName, &s.SnapshotDate, &s.Value,
			&s.PercentChange, &s.Advances, &s.Declines, &s.BreadthTrend); err != nil {
			return nil, contracts.WrapPersistence("scan snapshot", err)
		}
		out = append(out, s)
	}
	return out, contracts.WrapPersistence("list snapshots", rows.Err())
}

// IndexIDs returns the index master keyed by upper-cased symbol
func (r *Repository) IndexIDs(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT index_id, symbol FROM index_master`)
	if err != nil {
		return nil, contracts.WrapPersistence("index master", err)
	}
	defer rows.Close()

	ids := make(map[string]int)
	for rows.Next() {
		var id int
		var symbol string
		if err := rows.Scan(&id, &symbol); err != nil {
			return nil, contracts.WrapPersistence("scan index master", err)
		}
		ids[strings.ToUpper(symbol)] = id
	}
	return ids, contracts.WrapPersistence("index master", rows.Err())
}

// ReplaceSnapshots deletes date's snapshots and inserts snaps in one transaction
func (r *Repository) ReplaceSnapshots(ctx context.Context, date time.Time, snaps []contracts.IndexSnapshot) (deleted int64, err error) {
	query := `
		INSERT INTO index_snapshots (
			index_id, snapshot_date, index_value, percent_change,
			total_advancing, total_declining, breadth_trend
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	err = database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM index_snapshots WHERE snapshot_date = $1`, date)
		if err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		deleted = tag.RowsAffected()

		for _, s := range snaps {
			if _, err := tx.Exec(ctx, query,
				s.IndexID, date, s.Value, s.PercentChange, s.Advances, s.Declines, s.BreadthTrend,
			); err != nil {
				return fmt.Errorf("insert snapshot %s: %w", s.IndexName, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, contracts.WrapPersistence("replace snapshots", err)
	}
	return deleted, nil
}
