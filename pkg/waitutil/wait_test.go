package waitutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_ReadyImmediately(t *testing.T) {
	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return true, nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntil_ReadyAfterPolls(t *testing.T) {
	var calls int32
	err := Until(context.Background(), func(context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 3, nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUntil_TimesOut(t *testing.T) {
	err := Until(context.Background(), func(context.Context) (bool, error) {
		return false, nil
	}, 30*time.Millisecond, 5*time.Millisecond)

	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestUntil_PredicateError(t *testing.T) {
	boom := errors.New("boom")
	err := Until(context.Background(), func(context.Context) (bool, error) {
		return false, boom
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, err, boom)
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Until(ctx, func(context.Context) (bool, error) {
		return false, nil
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileReady(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "All Intrady Alerts.csv")

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(path, []byte("Stock,LTP\n"), 0o644)
	}()

	err := FileReady(context.Background(), path, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
}

func TestFileReady_NeverAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	err := FileReady(context.Background(), path, 30*time.Millisecond, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestRetry(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(attempt int) error {
		attempts++
		if attempt < 3 {
			return errors.New("page load failed")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	err := Retry(context.Background(), 2, time.Millisecond, func(attempt int) error {
		return errors.New("attempt failed")
	})
	assert.EqualError(t, err, "attempt failed")
}
