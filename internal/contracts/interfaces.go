package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: collaborator interfaces are defined here only.
// Every component receives its collaborators at construction.

// SignalStore persists Signals (S2)
type SignalStore interface {
	FindByKey(ctx context.Context, key SignalKey) (*Signal, error)
	UpsertBatch(ctx context.Context, batch []Signal) (UpsertResult, error)
	DeleteByDateAndType(ctx context.Context, date time.Time, screenerType string) (int64, error)
	ListByDate(ctx context.Context, date time.Time, screenerType string) ([]Signal, error)
}

// LevelSource resolves a stock's reference level for the day (S3)
type LevelSource interface {
	FindLevel(ctx context.Context, date time.Time, stockName string) (float64, bool, error)
}

// BreadthSource reads market breadth snapshots (S3)
type BreadthSource interface {
	GetSnapshot(ctx context.Context, date time.Time, indexID int) (*IndexSnapshot, error)
}

// QuoteSource returns current prices keyed by exchange-qualified symbol.
// Missing symbols are dropped from the map, not reported as errors.
type QuoteSource interface {
	GetCurrentPrices(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// TVSignalStore records TradingView alerts and answers presence joins
type TVSignalStore interface {
	BulkInsert(ctx context.Context, signals []TVSignal) (int, error)
	TickersWithSignals(ctx context.Context, date time.Time, tickers []string) ([]string, error)
}

// ScreenerLogStore tracks job invocations for the trigger surface
type ScreenerLogStore interface {
	StartLog(ctx context.Context, processName string) (string, error)
	CompleteLog(ctx context.Context, logID, status, errMsg string) error
	Recent(ctx context.Context, limit int) ([]ScreenerLog, error)
}
