// Package waitutil polls for readiness of things outside our control
// (browser downloads, page elements) with a hard deadline.
package waitutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimedOut is returned when the predicate never became true
var ErrTimedOut = errors.New("timed out waiting for condition")

// Predicate reports whether the awaited condition holds.
// A non-nil error aborts the wait immediately.
type Predicate func(ctx context.Context) (bool, error)

// Until evaluates predicate every interval until it returns true, the
// timeout elapses (ErrTimedOut) or ctx is cancelled (ctx.Err()).
// The predicate is evaluated once immediately.
func Until(ctx context.Context, predicate Predicate, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := predicate(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrTimedOut
		case <-ticker.C:
		}
	}
}

// FileReady waits for path to exist and then for its size to stop changing
// between two consecutive polls. Both phases share one timeout.
func FileReady(ctx context.Context, path string, timeout, interval time.Duration) error {
	start := time.Now()

	exists := func(context.Context) (bool, error) {
		_, err := os.Stat(path)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := Until(ctx, exists, timeout, interval); err != nil {
		return fmt.Errorf("waiting for %s to appear: %w", path, err)
	}

	lastSize := int64(-1)
	stable := func(context.Context) (bool, error) {
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		if info.Size() == lastSize {
			return true, nil
		}
		lastSize = info.Size()
		return false, nil
	}
	remaining := timeout - time.Since(start)
	if remaining <= 0 {
		return fmt.Errorf("waiting for %s to finish writing: %w", path, ErrTimedOut)
	}
	if err := Until(ctx, stable, remaining, interval); err != nil {
		return fmt.Errorf("waiting for %s to finish writing: %w", path, err)
	}
	return nil
}

// Retry runs fn up to attempts times with a fixed backoff between failures
// and returns the last error once attempts are exhausted.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}
