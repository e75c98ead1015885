package s2_signals

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/sgloader/internal/contracts"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func incomingSignal(runTime time.Time) contracts.Signal {
	return contracts.Signal{
		RunID:        "run-1",
		RunTime:      runTime,
		ScreenerDate: time.Date(2025, 3, 10, 0, 0, 0, 0, ist),
		ScreenerType: contracts.ScreenerTypeOHL,
		Screener:     "Open-Low",
		StockName:    "SBIN",
		TradeType:    contracts.TradeBuy,
		StockType:    "CASH",
		Price:        contracts.Float(650),
		Change:       contracts.Float(10),
		Percentage:   1.56,
		TagSnapshot:  "OHL_Open-Low",
		SignalCount:  1,
	}
}

func tokenSet(s *string) map[string]bool {
	set := map[string]bool{}
	if s == nil {
		return set
	}
	for _, tok := range strings.Fields(*s) {
		set[tok] = true
	}
	return set
}

func TestReconcile_Insert(t *testing.T) {
	r := NewReconciler(ist)
	now := time.Date(2025, 3, 10, 4, 16, 0, 0, time.UTC) // 09:46 IST

	in := incomingSignal(time.Date(2025, 3, 10, 9, 45, 0, 0, ist))
	in.BullishMilestoneTags = contracts.String("PRB-UP  R1")
	in.BearishMilestoneTags = contracts.String("   ")

	out := r.Reconcile(nil, in, now)

	assert.Equal(t, 1, out.SignalCount)
	assert.Equal(t, "09:45-RUN", out.RunHistory)
	assert.Equal(t, "09:45-OHL_Open-Low", out.Tags)
	require.NotNil(t, out.BullishMilestoneTags)
	assert.Equal(t, "PRB-UP R1", *out.BullishMilestoneTags)
	assert.Nil(t, out.BearishMilestoneTags, "empty tag set is stored as NULL")
	assert.True(t, out.IsActive)
	assert.False(t, out.IsProcessed)
	assert.Equal(t, now, out.UpdatedTime)
}

func TestReconcile_RunTimeInMarketZone(t *testing.T) {
	r := NewReconciler(ist)

	// 04:15 UTC is 09:45 IST
	in := incomingSignal(time.Date(2025, 3, 10, 4, 15, 0, 0, time.UTC))
	out := r.Reconcile(nil, in, time.Now())
	assert.Equal(t, "09:45-RUN", out.RunHistory)

	// zero run time falls back to now
	in.RunTime = time.Time{}
	out = r.Reconcile(nil, in, time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC))
	assert.Equal(t, "10:30-RUN", out.RunHistory)
}

func TestReconcile_Merge(t *testing.T) {
	r := NewReconciler(ist)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, ist)

	existing := incomingSignal(time.Date(2025, 3, 10, 9, 30, 0, 0, ist))
	existing.ID = 42
	existing.SignalCount = 3
	existing.RunHistory = "09:15-RUN, 09:20-RUN, 09:30-RUN"
	existing.Tags = "09:15-OHL_Open-Low"
	existing.Level = contracts.Float(645)
	existing.IsProcessed = true
	existing.Momentum = contracts.Float(1.1)

	in := incomingSignal(time.Date(2025, 3, 10, 9, 45, 0, 0, ist))
	in.Price = contracts.Float(655)
	in.Change = contracts.Float(15)
	in.Percentage = 2.3
	in.Momentum = contracts.Float(9.9)

	out := r.Reconcile(&existing, in, now)

	assert.Equal(t, int64(42), out.ID)
	assert.Equal(t, 4, out.SignalCount)
	assert.Equal(t, 655.0, *out.Price)
	assert.Equal(t, 15.0, *out.Change)
	assert.Equal(t, 2.3, out.Percentage)
	assert.Equal(t, 645.0, *out.Level, "level is never overwritten with null")
	assert.Equal(t, 1.1, *out.Momentum, "only price fields are overwritten")
	assert.False(t, out.IsProcessed)
	assert.Equal(t, now, out.UpdatedTime)
	assert.Equal(t, "09:15-RUN, 09:20-RUN, 09:30-RUN, 09:45-RUN", out.RunHistory)
	assert.Equal(t, "09:15-OHL_Open-Low, 09:45-OHL_Open-Low", out.Tags)

	in.Level = contracts.Float(660)
	out = r.Reconcile(&existing, in, now)
	assert.Equal(t, 660.0, *out.Level)
}

func TestReconcile_MilestoneUnion(t *testing.T) {
	r := NewReconciler(ist)

	existing := incomingSignal(time.Date(2025, 3, 10, 9, 30, 0, 0, ist))
	existing.BullishMilestoneTags = contracts.String("A B")
	existing.BearishMilestoneTags = contracts.String("X")

	in := incomingSignal(time.Date(2025, 3, 10, 9, 45, 0, 0, ist))
	in.BullishMilestoneTags = contracts.String("B C")

	out := r.Reconcile(&existing, in, time.Now())

	assert.Equal(t, map[string]bool{"A": true, "B": true, "C": true}, tokenSet(out.BullishMilestoneTags))
	assert.Equal(t, map[string]bool{"X": true}, tokenSet(out.BearishMilestoneTags))

	// neither side has tags
	existing.BearishMilestoneTags = nil
	out = r.Reconcile(&existing, in, time.Now())
	assert.Nil(t, out.BearishMilestoneTags)
}

func TestReconcile_TwiceAgainstEmptyStore(t *testing.T) {
	r := NewReconciler(ist)
	in := incomingSignal(time.Date(2025, 3, 10, 9, 45, 0, 0, ist))

	first := r.Reconcile(nil, in, time.Now())
	second := r.Reconcile(&first, in, time.Now())

	assert.Equal(t, 2, second.SignalCount)
	assert.Equal(t, "09:45-RUN, 09:45-RUN", second.RunHistory)
	assert.Equal(t, "09:45-OHL_Open-Low, 09:45-OHL_Open-Low", second.Tags)
}

func TestReconcile_MilestonesNeverShrink(t *testing.T) {
	r := NewReconciler(ist)
	runs := []*string{
		contracts.String("R1"),
		nil,
		contracts.String("R1 R2"),
		contracts.String(""),
		contracts.String("S1"),
		contracts.String("R2"),
	}

	var stored *contracts.Signal
	prev := 0
	for i, tags := range runs {
		in := incomingSignal(time.Date(2025, 3, 10, 9, 15+i, 0, 0, ist))
		in.BullishMilestoneTags = tags
		out := r.Reconcile(stored, in, time.Now())
		stored = &out

		size := len(tokenSet(stored.BullishMilestoneTags))
		assert.GreaterOrEqual(t, size, prev, "run %d", i)
		prev = size
	}
	assert.Equal(t, 3, prev)
	assert.Equal(t, len(runs), stored.SignalCount)
}

func TestUnionTags(t *testing.T) {
	assert.Nil(t, unionTags(nil, nil))
	assert.Nil(t, unionTags(contracts.String("  "), nil))
	assert.Equal(t, "A B C", *unionTags(contracts.String("A B"), contracts.String("B C")))
	assert.Equal(t, "A", *unionTags(nil, contracts.String("A A")))
}
