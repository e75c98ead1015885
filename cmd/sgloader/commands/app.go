package commands

import (
	"context"
	"fmt"

	"github.com/wonny/sgloader/internal/api/handlers"
	"github.com/wonny/sgloader/internal/external/fyers"
	"github.com/wonny/sgloader/internal/external/intrascreener"
	"github.com/wonny/sgloader/internal/loader"
	"github.com/wonny/sgloader/internal/s0_data"
	"github.com/wonny/sgloader/internal/s1_normalize"
	"github.com/wonny/sgloader/internal/s2_signals"
	"github.com/wonny/sgloader/internal/s3_selection"
	"github.com/wonny/sgloader/internal/scheduler"
	"github.com/wonny/sgloader/internal/scheduler/jobs"
	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/database"
	"github.com/wonny/sgloader/pkg/httputil"
	"github.com/wonny/sgloader/pkg/logger"
	"github.com/wonny/sgloader/pkg/redis"
)

const keyPrefix = "sgloader"

// app holds the wired dependency graph shared by every command
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	signals  *s2_signals.Repository
	market   *s0_data.Repository
	tv       *s0_data.TVSignalRepository
	logs     *s0_data.ScreenerLogRepository
	screener *intrascreener.Client

	loader      *loader.Loader
	indexLoader *loader.IndexLoader
	runner      *loader.Runner
	intake      *loader.TVIntake
	selector    *s3_selection.Selector
}

func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (no-op when disabled)
	rc, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Column layouts
	layouts, err := s1_normalize.LoadLayouts(cfg.Screener.LayoutFile)
	if err != nil {
		db.Close()
		rc.Close()
		return nil, fmt.Errorf("load layouts: %w", err)
	}

	// 6. Repositories
	signals := s2_signals.NewRepository(db.Pool, s2_signals.NewReconciler(cfg.Market.Location), log)
	market := s0_data.NewRepository(db.Pool)
	tv := s0_data.NewTVSignalRepository(db.Pool)
	logs := s0_data.NewScreenerLogRepository(db.Pool)

	// 7. External clients
	httpClient := httputil.New(log).
		WithRateLimiter(redis.NewRateLimiter(rc, keyPrefix), redis.FyersRateLimit)
	quotes := fyers.NewClient(httpClient, redis.NewCache(rc, keyPrefix), cfg.Fyers, log)
	screener := intrascreener.NewClient(cfg.Screener, cfg.Browser, log)

	// 8. Loaders and selection
	a := &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		redis:       rc,
		signals:     signals,
		market:      market,
		tv:          tv,
		logs:        logs,
		screener:    screener,
		loader:      loader.New(signals, layouts, cfg.Market, log),
		indexLoader: loader.NewIndexLoader(market, screener.MarketData, cfg.Market, log),
		runner:      loader.NewRunner(logs, redis.NewLocker(rc, keyPrefix), nil, 0, log),
		intake:      loader.NewTVIntake(tv, log),
		selector:    s3_selection.NewSelector(signals, signals, market, quotes, tv, signals, cfg.Market, log),
	}
	return a, nil
}

// Close releases the database and Redis connections
func (a *app) Close() {
	a.db.Close()
	a.redis.Close()
}

// jobFuncs maps trigger names to loader runs
func (a *app) jobFuncs() map[string]handlers.JobFunc {
	ohl := loader.OpenHighLowJob(a.screener.DownloadOpenHighLow)
	alerts := loader.IntradayAlertsJob(a.screener.DownloadIntradayAlerts)

	return map[string]handlers.JobFunc{
		loader.JobOpenHighLow: func(ctx context.Context) (interface{}, error) {
			return a.loader.Load(ctx, ohl)
		},
		loader.JobIntradayAlerts: func(ctx context.Context) (interface{}, error) {
			return a.loader.Load(ctx, alerts)
		},
		loader.JobIndexPerformance: func(ctx context.Context) (interface{}, error) {
			return a.indexLoader.Load(ctx)
		},
	}
}

// newScheduler registers every loader job on its market-hours schedule
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.cfg.Market.Location, a.log)

	for _, job := range []scheduler.Job{
		jobs.NewOpenHighLowJob(a.runner, a.loader, a.screener.DownloadOpenHighLow),
		jobs.NewIntradayAlertsJob(a.runner, a.loader, a.screener.DownloadIntradayAlerts),
		jobs.NewIndexPerformanceJob(a.runner, a.indexLoader),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
