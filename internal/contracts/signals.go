package contracts

import (
	"strings"
	"time"
)

// TradeType is the trade direction of a screener observation
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

// Screener types (one namespace per loader job)
const (
	ScreenerTypeOHL            = "OPEN_HIGH_LOW"
	ScreenerTypeIntradayAlerts = "BEST_INTRADAY_STOCKS"
)

// SignalKey is the identity of one stored Signal.
// ⭐ SSOT: matches the uq_screener_signal unique constraint
type SignalKey struct {
	Screener     string    `json:"screener"`
	ScreenerDate time.Time `json:"screener_date"`
	StockName    string    `json:"stock_name"`
	TradeType    TradeType `json:"trade_type"`
	StockType    string    `json:"stock_type"`
}

// Signal is one (screener × stock × trade direction × day) observation
// ⭐ SSOT: S1 → S2 record, validated before it reaches the reconciler
type Signal struct {
	ID int64 `json:"id,omitempty"`

	// Provenance
	RunID        string    `json:"screener_run_id"`
	RunTime      time.Time `json:"screener_run_time"`
	ScreenerDate time.Time `json:"screener_date" validate:"required"`
	ScreenerType string    `json:"screener_type" validate:"required"`
	Screener     string    `json:"screener" validate:"required"`
	ScreenerRank int       `json:"screener_rank"`

	StockName string    `json:"stock_name" validate:"required,max=50"`
	TradeType TradeType `json:"trade_type" validate:"oneof=BUY SELL"`
	StockType string    `json:"stock_type" validate:"required"`

	// Price
	Price      *float64 `json:"price"`
	Change     *float64 `json:"change"`
	Percentage float64  `json:"percentage"`

	// Technical
	Momentum            *float64 `json:"momentum"`
	Open                *float64 `json:"open"`
	DeviationFromPivots string   `json:"deviation_from_pivots" validate:"max=100"`
	TodaysRange         string   `json:"todays_range" validate:"max=100"`
	Category            string   `json:"ohl"` // Open-Low / Open-High
	Alerts              string   `json:"alerts"`
	Level               *float64 `json:"level"`

	Sector      string `json:"sector,omitempty"`
	WeeklyTrend string `json:"weekly_trend,omitempty"`

	// Accumulation
	SignalCount int    `json:"signal_count"`
	RunHistory  string `json:"run_history"`
	Tags        string `json:"tags"`
	// TagSnapshot is this run's tag label; it becomes "HH:MM-<snapshot>" in Tags
	TagSnapshot string `json:"-"`

	BullishMilestoneTags *string `json:"bullish_milestone_tags"`
	BearishMilestoneTags *string `json:"bearish_milestone_tags"`

	IsActive    bool      `json:"is_active"`
	IsProcessed bool      `json:"is_processed"`
	UpdatedTime time.Time `json:"updated_time"`
}

// Key returns the identity key of the signal
func (s *Signal) Key() SignalKey {
	return SignalKey{
		Screener:     s.Screener,
		ScreenerDate: s.ScreenerDate,
		StockName:    s.StockName,
		TradeType:    s.TradeType,
		StockType:    s.StockType,
	}
}

// MilestoneTags returns the union of bullish and bearish tag tokens
func (s *Signal) MilestoneTags() []string {
	var tags []string
	if s.BullishMilestoneTags != nil {
		tags = append(tags, strings.Fields(*s.BullishMilestoneTags)...)
	}
	if s.BearishMilestoneTags != nil {
		tags = append(tags, strings.Fields(*s.BearishMilestoneTags)...)
	}
	return tags
}

// HasMilestone reports whether any milestone tag contains marker (e.g. "PRB")
func (s *Signal) HasMilestone(marker string) bool {
	for _, tag := range s.MilestoneTags() {
		if strings.Contains(tag, marker) {
			return true
		}
	}
	return false
}

// UpsertResult reports one batch persisted by the signal store
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Candidate is one trend-gated breakout decision
type Candidate struct {
	Symbol string  `json:"symbol"`
	ToBuy  bool    `json:"to_buy"`
	ToSell bool    `json:"to_sell"`
	LTP    float64 `json:"ltp"`
	Level  float64 `json:"level"`
}

// Candidates is the comparator output for one trading day
type Candidates struct {
	Date  time.Time   `json:"date"`
	Trend string      `json:"trend"`
	Buy   []Candidate `json:"buy"`
	Sell  []Candidate `json:"sell"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to v, or nil when v is empty
func String(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
