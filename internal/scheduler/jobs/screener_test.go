package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sgloader/internal/loader"
	"github.com/wonny/sgloader/pkg/logger"
)

func TestSchedulesParse(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, spec := range []string{ScheduleOpenHighLow, ScheduleIntradayAlerts, ScheduleIndexPerformance} {
		_, err := parser.Parse(spec)
		assert.NoError(t, err, spec)
	}
}

func TestLoaderJob_RunsThroughRunner(t *testing.T) {
	runner := loader.NewRunner(nil, nil, nil, 0, logger.Nop())

	calls := 0
	job := &LoaderJob{
		name:     loader.JobIntradayAlerts,
		schedule: ScheduleIntradayAlerts,
		runner:   runner,
		fn: func(ctx context.Context) (interface{}, error) {
			calls++
			return nil, errors.New("export missing")
		},
	}

	assert.Equal(t, "intraday_alerts", job.Name())
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, runner.Running(job.Name()))
}
