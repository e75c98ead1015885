package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/external/intrascreener"
	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/logger"
)

// MarketSource scrapes the market page
type MarketSource func(ctx context.Context) (*intrascreener.MarketData, error)

// SnapshotStore persists index snapshots
type SnapshotStore interface {
	IndexIDs(ctx context.Context) (map[string]int, error)
	ReplaceSnapshots(ctx context.Context, date time.Time, snaps []contracts.IndexSnapshot) (int64, error)
}

// IndexRow is one merged panel + breadth entry
type IndexRow struct {
	Name     string
	Value    float64
	Percent  float64
	Advances int
	Declines int
}

// IndexReport summarizes one index performance load
type IndexReport struct {
	Date     string   `json:"date"`
	Scraped  int      `json:"scraped"`
	Stored   int      `json:"stored"`
	Replaced int64    `json:"replaced"`
	Unknown  []string `json:"unknown"`
}

// IndexLoader writes today's index snapshots and breadth trend
type IndexLoader struct {
	store  SnapshotStore
	source MarketSource
	market config.MarketConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewIndexLoader creates an index performance loader
func NewIndexLoader(store SnapshotStore, source MarketSource, market config.MarketConfig, log *logger.Logger) *IndexLoader {
	return &IndexLoader{
		store:  store,
		source: source,
		market: market,
		logger: log.WithJob(JobIndexPerformance),
		now:    time.Now,
	}
}

// MergeMarketData joins panel quotes and breadth by index name.
// Missing values default to zero; names are sorted.
func MergeMarketData(data *intrascreener.MarketData) []IndexRow {
	rows := make(map[string]*IndexRow)
	get := func(name string) *IndexRow {
		if r, ok := rows[name]; ok {
			return r
		}
		r := &IndexRow{Name: name}
		rows[name] = r
		return r
	}

	for _, q := range data.Indices {
		r := get(q.Name)
		r.Value, r.Percent = intrascreener.ParseIndexValue(q.Value, q.Percent)
	}
	for name, b := range data.Breadth {
		r := get(name)
		r.Advances, r.Declines = b.Advances, b.Declines
	}

	out := make([]IndexRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load scrapes the market page and replaces today's snapshots
func (l *IndexLoader) Load(ctx context.Context) (*IndexReport, error) {
	date := l.market.Today(l.now())
	report := &IndexReport{Date: date.Format("2006-01-02"), Unknown: []string{}}

	data, err := l.source(ctx)
	if err != nil {
		return report, fmt.Errorf("scrape market page: %w", err)
	}

	merged := MergeMarketData(data)
	report.Scraped = len(merged)

	ids, err := l.store.IndexIDs(ctx)
	if err != nil {
		return report, err
	}

	snaps := make([]contracts.IndexSnapshot, 0, len(merged))
	for _, row := range merged {
		id, ok := ids[strings.ToUpper(row.Name)]
		if !ok {
			l.logger.Warnf("No index master entry for %q, skipping", row.Name)
			report.Unknown = append(report.Unknown, row.Name)
			continue
		}
		snaps = append(snaps, contracts.IndexSnapshot{
			IndexID:       id,
			IndexName:     row.Name,
			SnapshotDate:  date,
			Value:         row.Value,
			PercentChange: row.Percent,
			Advances:      row.Advances,
			Declines:      row.Declines,
			BreadthTrend:  contracts.BreadthTrendOf(row.Advances, row.Declines),
		})
	}

	replaced, err := l.store.ReplaceSnapshots(ctx, date, snaps)
	if err != nil {
		return report, err
	}
	report.Replaced = replaced
	report.Stored = len(snaps)

	l.logger.WithFields(map[string]interface{}{
		"scraped":  report.Scraped,
		"stored":   report.Stored,
		"replaced": replaced,
	}).Info("Index snapshots stored")
	return report, nil
}
