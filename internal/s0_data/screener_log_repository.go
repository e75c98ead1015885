package s0_data

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sgloader/internal/contracts"
)

// ScreenerLogRepository tracks job invocations
type ScreenerLogRepository struct {
	pool *pgxpool.Pool
}

var _ contracts.ScreenerLogStore = (*ScreenerLogRepository)(nil)

// NewScreenerLogRepository creates a new screener log repository
func NewScreenerLogRepository(pool *pgxpool.Pool) *ScreenerLogRepository {
	return &ScreenerLogRepository{pool: pool}
}

// StartLog records a STARTED entry and returns its id
func (r *ScreenerLogRepository) StartLog(ctx context.Context, processName string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO screener_logs (log_id, process_name, status, started_at)
		VALUES ($1, $2, $3, now())
	`, id, processName, contracts.LogStarted)
	if err != nil {
		return "", contracts.WrapPersistence("start log", err)
	}
	return id, nil
}

// CompleteLog sets the terminal status of a log entry
func (r *ScreenerLogRepository) CompleteLog(ctx context.Context, logID, status, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE screener_logs
		SET status = $2, error_message = NULLIF($3, ''), completed_at = now()
		WHERE log_id = $1
	`, logID, status, errMsg)
	return contracts.WrapPersistence("complete log", err)
}

// Recent returns the latest entries, newest first
func (r *ScreenerLogRepository) Recent(ctx context.Context, limit int) ([]contracts.ScreenerLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT log_id::text, process_name, status, COALESCE(error_message, ''), started_at, completed_at
		FROM screener_logs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, contracts.WrapPersistence("recent logs", err)
	}
	defer rows.Close()

	var logs []contracts.ScreenerLog
	for rows.Next() {
		var l contracts.ScreenerLog
		if err := rows.Scan(&l.LogID, &l.ProcessName, &l.Status, &l.ErrorMessage, &l.StartedAt, &l.CompletedAt); err != nil {
			return nil, contracts.WrapPersistence("scan log", err)
		}
		logs = append(logs, l)
	}
	return logs, contracts.WrapPersistence("recent logs", rows.Err())
}
