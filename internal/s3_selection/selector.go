package s3_selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/logger"
)

// ProcessedMarker flags evaluated signal rows
type ProcessedMarker interface {
	MarkProcessed(ctx context.Context, ids []int64) (int64, error)
}

// Selector wires the comparator to its collaborators for one trading day
type Selector struct {
	signals contracts.SignalStore
	levels  contracts.LevelSource
	breadth contracts.BreadthSource
	quotes  contracts.QuoteSource
	tv      contracts.TVSignalStore
	marker  ProcessedMarker
	market  config.MarketConfig
	logger  *logger.Logger
}

// NewSelector creates a selector. tv and marker may be nil.
func NewSelector(
	signals contracts.SignalStore,
	levels contracts.LevelSource,
	breadth contracts.BreadthSource,
	quotes contracts.QuoteSource,
	tv contracts.TVSignalStore,
	marker ProcessedMarker,
	market config.MarketConfig,
	log *logger.Logger,
) *Selector {
	return &Selector{
		signals: signals,
		levels:  levels,
		breadth: breadth,
		quotes:  quotes,
		tv:      tv,
		marker:  marker,
		market:  market,
		logger:  log.WithField("module", "s3_selection"),
	}
}

// QuoteSymbol formats a bare name for the quote source: SBIN → NSE:SBIN-EQ
func (s *Selector) QuoteSymbol(name string) string {
	return fmt.Sprintf("%s:%s-%s", s.market.Exchange, name, s.market.Series)
}

// Run computes the day's candidates. Missing upstream data yields empty lists.
func (s *Selector) Run(ctx context.Context, date time.Time) (contracts.Candidates, error) {
	empty := contracts.Candidates{Date: date, Buy: []contracts.Candidate{}, Sell: []contracts.Candidate{}}

	snapshot, err := s.breadth.GetSnapshot(ctx, date, s.market.BreadthIndexID)
	if err != nil {
		return empty, fmt.Errorf("breadth snapshot: %w", err)
	}
	if snapshot == nil {
		s.logger.WithField("index_id", s.market.BreadthIndexID).
			Warnf("No breadth snapshot for %s, skipping selection", date.Format("2006-01-02"))
		return empty, nil
	}
	empty.Trend = snapshot.BreadthTrend

	rows, err := s.signals.ListByDate(ctx, date, contracts.ScreenerTypeOHL)
	if err != nil {
		return empty, fmt.Errorf("list ohl signals: %w", err)
	}

	rows, err = s.withTrackedSignals(ctx, date, FilterRows(snapshot.BreadthTrend, rows))
	if err != nil {
		return empty, err
	}

	result, err := SelectCandidates(ctx, snapshot.BreadthTrend, rows, s.levelLookup(date), s.priceLookup)
	result.Date = date
	if errors.Is(err, contracts.ErrUpstreamUnavailable) {
		s.logger.WithError(err).Warn("Quote source returned nothing, skipping selection")
		return empty, nil
	}
	if err != nil {
		return empty, err
	}

	s.markProcessed(ctx, rows)

	s.logger.WithFields(map[string]interface{}{
		"trend":      snapshot.BreadthTrend,
		"considered": len(rows),
		"buy":        len(result.Buy),
		"sell":       len(result.Sell),
	}).Info("Candidates selected")
	return result, nil
}

// withTrackedSignals keeps rows whose stock has a TradingView signal that day
func (s *Selector) withTrackedSignals(ctx context.Context, date time.Time, rows []contracts.Signal) ([]contracts.Signal, error) {
	if s.tv == nil || len(rows) == 0 {
		return rows, nil
	}

	tracked, err := s.tv.TickersWithSignals(ctx, date, uniqueNames(rows))
	if err != nil {
		return nil, fmt.Errorf("tracked signals: %w", err)
	}

	present := make(map[string]bool, len(tracked))
	for _, t := range tracked {
		present[NormalizeSymbol(t)] = true
	}

	var out []contracts.Signal
	for _, row := range rows {
		if present[NormalizeSymbol(row.StockName)] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Selector) levelLookup(date time.Time) LevelLookup {
	return func(ctx context.Context, name string) (float64, error) {
		level, ok, err := s.levels.FindLevel(ctx, date, name)
		if err != nil {
			return NotFound, err
		}
		if !ok {
			return NotFound, nil
		}
		return level, nil
	}
}

func (s *Selector) priceLookup(ctx context.Context, names []string) (map[string]contracts.Quote, error) {
	symbols := make([]string, len(names))
	for i, n := range names {
		symbols[i] = s.QuoteSymbol(n)
	}
	return s.quotes.GetCurrentPrices(ctx, symbols)
}

func (s *Selector) markProcessed(ctx context.Context, rows []contracts.Signal) {
	if s.marker == nil || len(rows) == 0 {
		return
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if r.ID != 0 {
			ids = append(ids, r.ID)
		}
	}
	if _, err := s.marker.MarkProcessed(ctx, ids); err != nil {
		s.logger.WithError(err).Warn("Failed to mark rows processed")
	}
}
