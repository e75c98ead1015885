package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/logger"
)

// Locker hands out cross-process leases
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Event is published when a job changes state
type Event struct {
	Job    string      `json:"job"`
	Status string      `json:"status"`
	LogID  string      `json:"log_id,omitempty"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
	At     time.Time   `json:"at"`
}

// Notifier receives job events
type Notifier interface {
	Publish(evt Event)
}

// Runner wraps every job run with a lock, a screener log entry and panic recovery
type Runner struct {
	logs     contracts.ScreenerLogStore
	locker   Locker
	notifier Notifier
	lockTTL  time.Duration
	logger   *logger.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner creates a runner. logs, locker and notifier may be nil.
func NewRunner(logs contracts.ScreenerLogStore, locker Locker, notifier Notifier, lockTTL time.Duration, log *logger.Logger) *Runner {
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Runner{
		logs:     logs,
		locker:   locker,
		notifier: notifier,
		lockTTL:  lockTTL,
		logger:   log,
		running:  make(map[string]bool),
	}
}

// SetNotifier attaches a notifier after construction
func (r *Runner) SetNotifier(n Notifier) {
	r.notifier = n
}

// Running reports whether job is in flight in this process
func (r *Runner) Running(job string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[job]
}

// Run executes fn as job. A second concurrent run of the same job
// returns contracts.ErrJobRunning without calling fn.
func (r *Runner) Run(ctx context.Context, job string, fn func(ctx context.Context) (interface{}, error)) (result interface{}, err error) {
	release, err := r.acquire(ctx, job)
	if err != nil {
		return nil, err
	}
	defer release()

	log := r.logger.WithJob(job)
	process := logger.JobLoggerName(job)

	var logID string
	if r.logs != nil {
		if logID, err = r.logs.StartLog(ctx, process); err != nil {
			log.WithError(err).Warn("Failed to write screener log start")
			logID = ""
		}
	}
	r.publish(Event{Job: job, Status: contracts.LogStarted, LogID: logID})
	log.Info("Job started")

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("job %s panicked: %v", job, p)
		}

		status, msg := contracts.LogCompleted, ""
		if err != nil {
			status, msg = contracts.LogFailed, err.Error()
			log.WithError(err).Error("Job failed")
		} else {
			log.Info("Job completed")
		}

		if r.logs != nil && logID != "" {
			if cerr := r.logs.CompleteLog(context.WithoutCancel(ctx), logID, status, msg); cerr != nil {
				log.WithError(cerr).Warn("Failed to write screener log completion")
			}
		}
		r.publish(Event{Job: job, Status: status, LogID: logID, Error: msg, Result: result})
	}()

	return fn(ctx)
}

func (r *Runner) acquire(ctx context.Context, job string) (func(), error) {
	r.mu.Lock()
	if r.running[job] {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", job, contracts.ErrJobRunning)
	}
	r.running[job] = true
	r.mu.Unlock()

	local := func() {
		r.mu.Lock()
		delete(r.running, job)
		r.mu.Unlock()
	}

	if r.locker == nil {
		return local, nil
	}

	release, ok, err := r.locker.TryLock(ctx, "job:"+job, r.lockTTL)
	if err != nil {
		// lease store down; the in-process guard still holds
		r.logger.WithError(err).Warn("Job lease unavailable")
		return local, nil
	}
	if !ok {
		local()
		return nil, fmt.Errorf("%s: %w", job, contracts.ErrJobRunning)
	}
	return func() {
		release()
		local()
	}, nil
}

func (r *Runner) publish(evt Event) {
	if r.notifier == nil {
		return
	}
	evt.At = time.Now()
	r.notifier.Publish(evt)
}
