package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/external/intrascreener"
	"github.com/wonny/sgloader/internal/s1_normalize"
	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/logger"
)

const ohlCSV = "Symbol,\"LTP\nChange(%)\",Momentum,Open,\"Deviation from\nPivots\",\"Today's\nRange\",OHL\n" +
	"SBIN\u00a0\u00a0PRB-UP,\"650.00\n10.00(1.56)\",2.1,640,R1,638-652,Open-Low\n" +
	",\"100\n1(1)\",,,,,Open-Low\n" +
	"TCS,\"3500.00\n-5.00(-0.14)\",,,,,Open-High\n"

var ist = time.FixedZone("IST", 5*3600+1800)

func newTestLoader(t *testing.T, store contracts.SignalStore) *Loader {
	t.Helper()
	layouts, err := s1_normalize.DefaultLayouts()
	require.NoError(t, err)
	l := New(store, layouts, config.MarketConfig{Location: ist}, logger.Nop())
	l.now = func() time.Time { return time.Date(2025, 3, 10, 4, 15, 0, 0, time.UTC) }
	return l
}

func staticSource(files ...intrascreener.File) Source {
	return func(ctx context.Context) ([]intrascreener.File, error) { return files, nil }
}

func TestLoad_OpenHighLow(t *testing.T) {
	store := &fakeSignalStore{}
	l := newTestLoader(t, store)

	report, err := l.Load(context.Background(), OpenHighLowJob(staticSource(
		intrascreener.File{Name: "cash.csv", StockType: intrascreener.StockTypeCash, Data: []byte(ohlCSV)},
		intrascreener.File{Name: "fno.csv", StockType: intrascreener.StockTypeFNO, Data: []byte(ohlCSV)},
	)))
	require.NoError(t, err)

	assert.Equal(t, []string{contracts.ScreenerTypeOHL}, store.purged)
	assert.Equal(t, int64(3), report.Purged)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 6, report.Rows)
	assert.Equal(t, 4, report.Emitted)
	assert.Len(t, report.Skipped, 2)
	assert.Equal(t, 4, report.Inserted)
	assert.Equal(t, "2025-03-10", report.Date)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, store.upserted, 4)
	ranks := []int{}
	for _, s := range store.upserted {
		ranks = append(ranks, s.ScreenerRank)
		assert.Equal(t, report.RunID, s.RunID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ranks)
	assert.Equal(t, "CASH", store.upserted[0].StockType)
	assert.Equal(t, "FNO", store.upserted[3].StockType)
	assert.Equal(t, contracts.TradeSell, store.upserted[1].TradeType)
	assert.Equal(t, "09:45", store.upserted[0].RunTime.Format("15:04"))
}

func TestLoad_IntradayAlertsDoesNotPurge(t *testing.T) {
	store := &fakeSignalStore{}
	l := newTestLoader(t, store)

	csv := "Stock,LTP,Alert,Level\nINFY,\"1500\n5(0.33)\",Breakout,1490\n"
	report, err := l.Load(context.Background(), IntradayAlertsJob(staticSource(
		intrascreener.File{Name: "alerts.csv", Data: []byte(csv)},
	)))
	require.NoError(t, err)

	assert.Empty(t, store.purged)
	assert.Equal(t, 1, report.Inserted)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "Intraday Alerts", store.upserted[0].StockType)
	assert.Equal(t, 1490.0, *store.upserted[0].Level)
}

func TestLoad_FetchError(t *testing.T) {
	store := &fakeSignalStore{}
	l := newTestLoader(t, store)

	_, err := l.Load(context.Background(), IntradayAlertsJob(func(ctx context.Context) ([]intrascreener.File, error) {
		return nil, contracts.ErrUpstreamUnavailable
	}))
	assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
	assert.Empty(t, store.upserted)
}

func TestLoad_MissingColumnSkipsEveryRow(t *testing.T) {
	store := &fakeSignalStore{}
	l := newTestLoader(t, store)

	report, err := l.Load(context.Background(), OpenHighLowJob(staticSource(
		intrascreener.File{Data: []byte("Symbol,LTP\nSBIN,\"1\n1(1)\"\n")},
	)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Emitted)
	require.Len(t, report.Skipped, 1)
	assert.Empty(t, store.upserted)
}

func TestLoad_UpsertFailure(t *testing.T) {
	store := &fakeSignalStore{upsertErr: contracts.WrapPersistence("commit", errors.New("conn reset"))}
	l := newTestLoader(t, store)

	report, err := l.Load(context.Background(), OpenHighLowJob(staticSource(
		intrascreener.File{Data: []byte(ohlCSV)},
	)))
	assert.ErrorIs(t, err, contracts.ErrPersistence)
	assert.Equal(t, 2, report.Failed)
}

func TestLoad_UnknownLayout(t *testing.T) {
	l := newTestLoader(t, &fakeSignalStore{})
	_, err := l.Load(context.Background(), Job{Name: "x", Layout: "nope", Source: staticSource()})
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ohl.csv")
	require.NoError(t, os.WriteFile(path, []byte(ohlCSV), 0o644))

	files, err := FileSource(LocalFile{Path: path, StockType: "FNO"})(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "ohl.csv", files[0].Name)
	assert.Equal(t, "FNO", files[0].StockType)

	_, err = FileSource(LocalFile{Path: filepath.Join(dir, "missing.csv")})(context.Background())
	assert.Error(t, err)
}
