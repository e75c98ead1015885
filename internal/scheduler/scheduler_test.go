package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32
	err      error
	calls    int32
}

func (f *fakeJob) Name() string     { return f.name }
func (f *fakeJob) Schedule() string { return f.schedule }

func (f *fakeJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return f.err
	}
	if n <= f.failures {
		return fmt.Errorf("attempt %d failed", n)
	}
	return nil
}

func newTestScheduler() *Scheduler {
	s := New(time.UTC, logger.Nop())
	s.retryDelay = time.Millisecond
	return s
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "0 */5 * * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "0 0 9 * * 1-5"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "not a schedule"}))

	require.NoError(t, s.RemoveJob("b"))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("b"))
}

func TestRunJobNow_RetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "alerts", schedule: "@hourly", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobNow(context.Background(), "alerts")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Empty(t, result.Error)
}

func TestRunJobNow_GivesUpAfterMaxRetries(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "ohl", schedule: "@hourly", err: errors.New("login failed")}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobNow(context.Background(), "ohl")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, "login failed", result.Error)

	stats := s.GetJobStats()["ohl"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJobNow_SkipsWhenAlreadyRunning(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "ohl", schedule: "@hourly", err: fmt.Errorf("ohl: %w", contracts.ErrJobRunning)}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobNow(context.Background(), "ohl")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))

	stats := s.GetJobStats()["ohl"]
	assert.Equal(t, 1, stats.SkippedCount)
	assert.Equal(t, 0, stats.FailureCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestRunJobNow_StopsRetryingOnCancel(t *testing.T) {
	s := New(time.UTC, logger.Nop())
	s.retryDelay = time.Hour
	job := &fakeJob{name: "idx", schedule: "@hourly", err: errors.New("timeout")}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := s.RunJobNow(ctx, "idx")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, context.DeadlineExceeded.Error(), result.Error)
}

func TestRunJob_UnknownJob(t *testing.T) {
	s := newTestScheduler()
	assert.Error(t, s.RunJob("missing"))
	_, err := s.RunJobNow(context.Background(), "missing")
	assert.Error(t, err)
	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestRunJob_Background(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "ohl", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("ohl"))
	assert.Eventually(t, func() bool {
		h, err := s.GetJobHistory("ohl")
		return err == nil && len(h.Results) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "tick", schedule: "* * * * * *"}))

	s.Start()
	assert.False(t, s.NextRun("tick").IsZero())
	s.Stop()
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 105; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetLatestResults(500), historyLimit)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(5))
	assert.Len(t, h.GetFailedResults(), 50)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 0.001)
}
