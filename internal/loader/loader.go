package loader

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/external/intrascreener"
	"github.com/wonny/sgloader/internal/s1_normalize"
	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/logger"
)

// Source obtains the raw exports of one job run
type Source func(ctx context.Context) ([]intrascreener.File, error)

// Job describes one scrape-and-load pipeline
type Job struct {
	Name      string
	Layout    string
	PurgeType string // screener type purged for today before loading; empty keeps prior rows
	Source    Source
}

// Skip is a skipped row in a report
type Skip struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// Report summarizes one Load
type Report struct {
	Job      string        `json:"job"`
	RunID    string        `json:"run_id"`
	Date     string        `json:"date"`
	Files    int           `json:"files"`
	Rows     int           `json:"rows"`
	Emitted  int           `json:"emitted"`
	Skipped  []Skip        `json:"skipped"`
	Purged   int64         `json:"purged"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration_ns"`
}

// Loader runs raw exports through transform and reconcile
// ⭐ SSOT: the Batch Loader
type Loader struct {
	store   contracts.SignalStore
	layouts *s1_normalize.LayoutSet
	market  config.MarketConfig
	logger  *logger.Logger
	now     func() time.Time
}

// New creates a loader
func New(store contracts.SignalStore, layouts *s1_normalize.LayoutSet, market config.MarketConfig, log *logger.Logger) *Loader {
	return &Loader{
		store:   store,
		layouts: layouts,
		market:  market,
		logger:  log,
		now:     time.Now,
	}
}

// Load runs one job: purge, fetch, parse, transform, upsert
func (l *Loader) Load(ctx context.Context, job Job) (*Report, error) {
	start := l.now()
	log := l.logger.WithJob(job.Name)

	layout, err := l.layouts.Get(job.Layout)
	if err != nil {
		return nil, err
	}

	runTime := start
	if l.market.Location != nil {
		runTime = start.In(l.market.Location)
	}
	date := l.market.Today(start)
	report := &Report{
		Job:     job.Name,
		RunID:   uuid.NewString(),
		Date:    date.Format("2006-01-02"),
		Skipped: []Skip{},
	}
	defer func() { report.Duration = l.now().Sub(start) }()

	if job.PurgeType != "" {
		purged, err := l.store.DeleteByDateAndType(ctx, date, job.PurgeType)
		if err != nil {
			return report, fmt.Errorf("purge %s: %w", job.PurgeType, err)
		}
		report.Purged = purged
	}

	files, err := job.Source(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch exports: %w", err)
	}
	report.Files = len(files)

	exports := make([]s1_normalize.Export, 0, len(files))
	for _, f := range files {
		headers, rows, err := s1_normalize.ReadCSV(bytes.NewReader(f.Data))
		if err != nil {
			log.WithError(err).WithField("file", f.Name).Warn("Unreadable export, skipping")
			continue
		}
		report.Rows += len(rows)
		exports = append(exports, s1_normalize.Export{StockType: f.StockType, Headers: headers, Rows: rows})
	}

	signals, skipped := s1_normalize.NewTransformer(layout).TransformExports(exports, s1_normalize.RowContext{
		RunID:   report.RunID,
		RunTime: runTime,
		Date:    date,
	})
	for _, s := range skipped {
		log.WithFields(map[string]interface{}{
			"line":   s.Line,
			"reason": s.ReasonText(),
			"detail": s.Detail,
			"row":    s.Row,
		}).Warn("Row skipped")
		report.Skipped = append(report.Skipped, Skip{Line: s.Line, Reason: s.ReasonText(), Detail: s.Detail})
	}
	report.Emitted = len(signals)

	if len(signals) == 0 {
		log.Warn("No signals to load")
		return report, nil
	}

	res, err := l.store.UpsertBatch(ctx, signals)
	report.Inserted, report.Updated, report.Failed = res.Inserted, res.Updated, res.Failed
	if err != nil {
		return report, fmt.Errorf("upsert batch: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"run_id":   report.RunID,
		"rows":     report.Rows,
		"emitted":  report.Emitted,
		"skipped":  len(report.Skipped),
		"inserted": report.Inserted,
		"updated":  report.Updated,
		"failed":   report.Failed,
	}).Info("Load completed")
	return report, nil
}
