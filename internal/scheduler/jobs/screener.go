package jobs

import (
	"context"

	"github.com/wonny/sgloader/internal/loader"
)

// Market-hours schedules (seconds field first, market time zone)
const (
	ScheduleOpenHighLow      = "0 */15 9-15 * * 1-5"
	ScheduleIntradayAlerts   = "0 */5 9-15 * * 1-5"
	ScheduleIndexPerformance = "30 */5 9-15 * * 1-5"
)

// LoaderJob runs one loader through the shared runner
type LoaderJob struct {
	name     string
	schedule string
	runner   *loader.Runner
	fn       func(ctx context.Context) (interface{}, error)
}

// Name returns the job name
func (j *LoaderJob) Name() string {
	return j.name
}

// Schedule returns the cron schedule
func (j *LoaderJob) Schedule() string {
	return j.schedule
}

// Run executes the loader under the runner's lock and screener log
func (j *LoaderJob) Run(ctx context.Context) error {
	_, err := j.runner.Run(ctx, j.name, j.fn)
	return err
}

// NewOpenHighLowJob purges and reloads today's Open-High-Low signals
func NewOpenHighLowJob(runner *loader.Runner, l *loader.Loader, src loader.Source) *LoaderJob {
	job := loader.OpenHighLowJob(src)
	return &LoaderJob{
		name:     job.Name,
		schedule: ScheduleOpenHighLow,
		runner:   runner,
		fn: func(ctx context.Context) (interface{}, error) {
			return l.Load(ctx, job)
		},
	}
}

// NewIntradayAlertsJob merges the latest intraday alerts into today's signals
func NewIntradayAlertsJob(runner *loader.Runner, l *loader.Loader, src loader.Source) *LoaderJob {
	job := loader.IntradayAlertsJob(src)
	return &LoaderJob{
		name:     job.Name,
		schedule: ScheduleIntradayAlerts,
		runner:   runner,
		fn: func(ctx context.Context) (interface{}, error) {
			return l.Load(ctx, job)
		},
	}
}

// NewIndexPerformanceJob refreshes today's index snapshots and breadth
func NewIndexPerformanceJob(runner *loader.Runner, l *loader.IndexLoader) *LoaderJob {
	return &LoaderJob{
		name:     loader.JobIndexPerformance,
		schedule: ScheduleIndexPerformance,
		runner:   runner,
		fn: func(ctx context.Context) (interface{}, error) {
			return l.Load(ctx)
		},
	}
}
