package s0_data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/sgloader/internal/contracts"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if testing.Short() || url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestRepository_Snapshots(t *testing.T) {
	repo := NewRepository(testPool(t))
	ctx := context.Background()
	date := time.Date(2001, 2, 1, 0, 0, 0, 0, time.UTC)
	t.Cleanup(func() { _, _ = repo.ReplaceSnapshots(context.Background(), date, nil) })

	ids, err := repo.IndexIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, ids["NIFTY 500"])

	_, err = repo.ReplaceSnapshots(ctx, date, []contracts.IndexSnapshot{
		{IndexID: 2, IndexName: "NIFTY 500", Value: 21000.5, PercentChange: 0.4, Advances: 300, Declines: 200, BreadthTrend: "BULLISH"},
	})
	require.NoError(t, err)

	snap, err := repo.GetSnapshot(ctx, date, 2)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "BULLISH", snap.BreadthTrend)
	assert.Equal(t, 300, snap.Advances)

	deleted, err := repo.ReplaceSnapshots(ctx, date, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	snap, err = repo.GetSnapshot(ctx, date, 2)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestTVSignalRepository_SkipsExisting(t *testing.T) {
	pool := testPool(t)
	repo := NewTVSignalRepository(pool)
	ctx := context.Background()

	at := time.Date(2001, 2, 2, 10, 15, 0, 0, time.UTC)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM tv_signals WHERE signal_time = $1`, at)
	})

	sig := contracts.TVSignal{
		Exchange: "NSE", Ticker: "SBIN", TradeType: "BUY", OrderType: "MARKET",
		Quantity: 1, SignalTime: at, Strategy: "ORB", CandleInterval: "5", AlertName: "orb",
	}

	n, err := repo.BulkInsert(ctx, []contracts.TVSignal{sig, sig})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.TickersWithSignals(ctx, at, []string{"SBIN", "TCS"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SBIN"}, got)
}

func TestScreenerLogRepository(t *testing.T) {
	pool := testPool(t)
	repo := NewScreenerLogRepository(pool)
	ctx := context.Background()

	id, err := repo.StartLog(ctx, "load_screener_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM screener_logs WHERE log_id = $1`, id)
	})

	require.NoError(t, repo.CompleteLog(ctx, id, contracts.LogFailed, "boom"))

	logs, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, id, logs[0].LogID)
	assert.Equal(t, contracts.LogFailed, logs[0].Status)
	assert.Equal(t, "boom", logs[0].ErrorMessage)
	assert.NotNil(t, logs[0].CompletedAt)
}
