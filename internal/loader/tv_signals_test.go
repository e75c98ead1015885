package loader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/logger"
)

const tvPayload = `[
  {"exchange":"NSE","ticker":"sbin","trade_type":"buy","order_type":"MARKET","quantity":10,
   "signal_time":"2025-03-10T09:20:00+05:30","strategy":"ORB","candle_interval":"5"},
  {"exchange":"NSE","ticker":"TCS","trade_type":"SELL","order_type":"LIMIT","quantity":5,"limit_price":3500,
   "signal_time":"2025-03-10T09:25:00+05:30","strategy":"ORB"},
  {"exchange":"NSE","ticker":"INFY","trade_type":"HOLD","order_type":"MARKET",
   "signal_time":"2025-03-10T09:30:00+05:30","strategy":"ORB"}
]`

func TestDecodeTVSignals(t *testing.T) {
	sigs, err := DecodeTVSignals(strings.NewReader(tvPayload))
	require.NoError(t, err)
	assert.Len(t, sigs, 3)

	_, err = DecodeTVSignals(strings.NewReader(`{"ticker":`))
	assert.ErrorIs(t, err, contracts.ErrMalformed)
}

func TestTVIntake_Ingest(t *testing.T) {
	store := &fakeTVStore{}
	intake := NewTVIntake(store, logger.Nop())

	sigs, err := DecodeTVSignals(strings.NewReader(tvPayload))
	require.NoError(t, err)

	report, err := intake.Ingest(context.Background(), sigs)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Received)
	assert.Equal(t, 2, report.Inserted)
	assert.Len(t, report.Rejected, 1)
	assert.Equal(t, "SBIN", store.stored[0].Ticker)
	assert.Equal(t, "BUY", store.stored[0].TradeType)
	assert.False(t, store.stored[0].UpdatedTime.IsZero())

	// replay is a no-op
	report, err = intake.Ingest(context.Background(), sigs)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 2, report.Existing)
}
