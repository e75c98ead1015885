package contracts

import (
	"strings"
	"time"
)

// Breadth trend labels
const (
	TrendBullish = "BULLISH"
	TrendBearish = "BEARISH"
)

// IndexSnapshot is one index's performance and breadth for a day
type IndexSnapshot struct {
	ID            int64     `json:"id,omitempty"`
	IndexID       int       `json:"index_id"`
	IndexName     string    `json:"index_name"`
	SnapshotDate  time.Time `json:"snapshot_date"`
	Value         float64   `json:"index_value"`
	PercentChange float64   `json:"percent_change"`
	Advances      int       `json:"total_advancing"`
	Declines      int       `json:"total_declining"`
	BreadthTrend  string    `json:"breadth_trend"`
}

// IsBullish is the comparator's trend gate: a case-sensitive BULLISH substring
func IsBullish(trend string) bool {
	return strings.Contains(trend, TrendBullish)
}

// BreadthTrendOf derives the trend label from advancing vs declining counts
func BreadthTrendOf(advances, declines int) string {
	if advances > declines {
		return TrendBullish
	}
	return TrendBearish
}

// Quote is the broker's last traded price for one symbol
type Quote struct {
	Symbol        string  `json:"symbol"` // exchange-qualified, e.g. NSE:SBIN-EQ
	LTP           float64 `json:"ltp"`
	PrevClose     float64 `json:"prev_close"`
	ChangePercent float64 `json:"change_percent"`
}

// TVSignal is an alert received from a TradingView strategy
type TVSignal struct {
	RowID           int64     `json:"row_id,omitempty"`
	UpdatedTime     time.Time `json:"updated_time"`
	Exchange        string    `json:"exchange" validate:"required"`
	Ticker          string    `json:"ticker" validate:"required"`
	TradeType       string    `json:"trade_type" validate:"required,oneof=BUY SELL"`
	OrderType       string    `json:"order_type" validate:"required"`
	Quantity        int       `json:"quantity" validate:"gte=0"`
	LimitPrice      float64   `json:"limit_price"`
	SignalTime      time.Time `json:"signal_time" validate:"required"`
	Strategy        string    `json:"strategy" validate:"required"`
	CandleInterval  string    `json:"candle_interval"`
	AlertName       string    `json:"alert_name"`
	OpenPrice       float64   `json:"open_price"`
	ClosePrice      float64   `json:"close_price"`
	HighPrice       float64   `json:"high_price"`
	LowPrice        float64   `json:"low_price"`
	ResponseMessage string    `json:"response_message"`
}

// Screener log statuses
const (
	LogStarted   = "STARTED"
	LogCompleted = "COMPLETED"
	LogFailed    = "FAILED"
)

// ScreenerLog records one job invocation
type ScreenerLog struct {
	LogID        string     `json:"log_id"`
	ProcessName  string     `json:"process_name"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
