package s3_selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/s1_normalize"
)

func staticLevels(levels map[string]float64) LevelLookup {
	return func(_ context.Context, name string) (float64, error) {
		if l, ok := levels[name]; ok {
			return l, nil
		}
		return NotFound, nil
	}
}

func staticPrices(ltp map[string]float64) PriceLookup {
	return func(_ context.Context, names []string) (map[string]contracts.Quote, error) {
		out := map[string]contracts.Quote{}
		for _, n := range names {
			if p, ok := ltp[n]; ok {
				sym := "NSE:" + n + "-EQ"
				out[sym] = contracts.Quote{Symbol: sym, LTP: p}
			}
		}
		return out, nil
	}
}

func ohlRow(name, category, tags string) contracts.Signal {
	return contracts.Signal{
		StockName:            name,
		Category:             category,
		BullishMilestoneTags: contracts.String(tags),
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"NSE:SBIN-EQ", "SBIN"},
		{"NSE:BAJAJ-AUTO-EQ", "BAJAJ-AUTO"},
		{"NSE:M&M-EQ", "M&M"},
		{"BSE:TCS-BE", "TCS"},
		{" sbin ", "SBIN"},
		{"SBIN", "SBIN"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSymbol(tt.in))
		})
	}
}

// scenarioRows runs the OHL transformer over the scenario row
func scenarioRows(t *testing.T) []contracts.Signal {
	t.Helper()
	set, err := s1_normalize.DefaultLayouts()
	require.NoError(t, err)
	layout, err := set.Get(s1_normalize.LayoutOpenHighLow)
	require.NoError(t, err)

	headers := []string{"Symbol", "LTP", "Momentum", "Open", "Deviation from Pivots", "Today's Range", "OHL"}
	rows := [][]string{{"SBIN\u00a0\u00a0PRB-UP", "650.00\n10.00(1.56)", "...", "", "", "", "Low"}}

	signals, skipped := s1_normalize.NewTransformer(layout).TransformAll(headers, rows, s1_normalize.RowContext{
		RunTime: time.Now(),
		Date:    time.Now(),
	})
	require.Empty(t, skipped)
	return signals
}

func TestSelectCandidates_BullishScenario(t *testing.T) {
	rows := scenarioRows(t)

	got, err := SelectCandidates(context.Background(), "BULLISH", rows,
		staticLevels(map[string]float64{"SBIN": 645.0}),
		staticPrices(map[string]float64{"SBIN": 650.0}),
	)
	require.NoError(t, err)

	require.Len(t, got.Buy, 1)
	assert.Equal(t, contracts.Candidate{Symbol: "SBIN", ToBuy: true, ToSell: false, LTP: 650.0, Level: 645.0}, got.Buy[0])
	assert.Empty(t, got.Sell)
}

func TestSelectCandidates_BearishScenario(t *testing.T) {
	rows := scenarioRows(t)

	got, err := SelectCandidates(context.Background(), "BEARISH", rows,
		staticLevels(map[string]float64{"SBIN": 645.0}),
		staticPrices(map[string]float64{"SBIN": 650.0}),
	)
	require.NoError(t, err)
	assert.Empty(t, got.Buy)
	assert.Empty(t, got.Sell)
}

func TestSelectCandidates_Branches(t *testing.T) {
	rows := []contracts.Signal{
		ohlRow("AAA", "Open-Low", "PRB-UP"),
		ohlRow("BBB", "Open-Low", "PRB-UP"),
		ohlRow("CCC", "Open-Low", "R1"), // no PRB
		ohlRow("DDD", "Open-High", "PRB-DOWN"),
		ohlRow("EEE", "Open-High", "PRB-DOWN"),
		ohlRow("FFF", "Open-Low", "PRB-UP"), // level missing
	}
	levels := staticLevels(map[string]float64{"AAA": 100, "BBB": 100, "CCC": 100, "DDD": 100, "EEE": 100})
	prices := staticPrices(map[string]float64{"AAA": 101, "BBB": 99, "CCC": 200, "DDD": 99, "EEE": 101, "FFF": 1e6})

	tests := []struct {
		name     string
		trend    string
		wantBuy  []string
		wantSell []string
	}{
		{"bullish", "BULLISH", []string{"AAA"}, nil},
		{"bullish substring", "MILDLY BULLISH", []string{"AAA"}, nil},
		{"bearish", "BEARISH", nil, []string{"DDD"}},
		{"lowercase is not bullish", "bullish", nil, []string{"DDD"}},
		{"empty trend", "", nil, []string{"DDD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectCandidates(context.Background(), tt.trend, rows, levels, prices)
			require.NoError(t, err)

			var buy, sell []string
			for _, c := range got.Buy {
				assert.True(t, c.ToBuy)
				assert.False(t, c.ToSell)
				assert.Greater(t, c.LTP, c.Level)
				buy = append(buy, c.Symbol)
			}
			for _, c := range got.Sell {
				assert.True(t, c.ToSell)
				assert.Less(t, c.LTP, c.Level)
				sell = append(sell, c.Symbol)
			}
			assert.Equal(t, tt.wantBuy, buy)
			assert.Equal(t, tt.wantSell, sell)
		})
	}
}

func TestSelectCandidates_EmptyQuotes(t *testing.T) {
	rows := []contracts.Signal{ohlRow("AAA", "Open-Low", "PRB-UP")}

	got, err := SelectCandidates(context.Background(), "BULLISH", rows,
		staticLevels(map[string]float64{"AAA": 1}), staticPrices(nil))
	assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
	assert.Empty(t, got.Buy)
}

func TestSelectCandidates_NoRowsSkipsQuotes(t *testing.T) {
	called := false
	prices := func(context.Context, []string) (map[string]contracts.Quote, error) {
		called = true
		return nil, nil
	}

	got, err := SelectCandidates(context.Background(), "BULLISH", nil, staticLevels(nil), prices)
	require.NoError(t, err)
	assert.False(t, called)
	assert.NotNil(t, got.Buy)
}

func TestSelectCandidates_LevelError(t *testing.T) {
	rows := []contracts.Signal{ohlRow("AAA", "Open-Low", "PRB-UP")}
	boom := errors.New("db down")
	levels := func(context.Context, string) (float64, error) { return 0, boom }

	_, err := SelectCandidates(context.Background(), "BULLISH", rows, levels,
		staticPrices(map[string]float64{"AAA": 10}))
	assert.ErrorIs(t, err, boom)
}

func TestSelectCandidates_QuoteErrors(t *testing.T) {
	rows := []contracts.Signal{
		ohlRow("AAA", "Open-Low", "PRB-UP"),
		ohlRow("BBB", "Open-Low", "PRB-UP"),
	}
	levels := staticLevels(map[string]float64{"AAA": 100, "BBB": 100})
	dialErr := errors.New("dial tcp: connection refused")

	t.Run("no quotes", func(t *testing.T) {
		prices := func(context.Context, []string) (map[string]contracts.Quote, error) {
			return nil, dialErr
		}
		got, err := SelectCandidates(context.Background(), "BULLISH", rows, levels, prices)
		assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
		assert.ErrorIs(t, err, dialErr)
		assert.Empty(t, got.Buy)
	})

	t.Run("partial quotes", func(t *testing.T) {
		prices := func(context.Context, []string) (map[string]contracts.Quote, error) {
			return map[string]contracts.Quote{"NSE:AAA-EQ": {Symbol: "NSE:AAA-EQ", LTP: 110}}, dialErr
		}
		got, err := SelectCandidates(context.Background(), "BULLISH", rows, levels, prices)
		require.NoError(t, err)
		require.Len(t, got.Buy, 1)
		assert.Equal(t, "AAA", got.Buy[0].Symbol)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		prices := func(ctx context.Context, _ []string) (map[string]contracts.Quote, error) {
			return nil, ctx.Err()
		}
		_, err := SelectCandidates(ctx, "BULLISH", rows, levels, prices)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, contracts.ErrUpstreamUnavailable)
	})
}
