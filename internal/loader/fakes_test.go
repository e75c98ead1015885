package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wonny/sgloader/internal/contracts"
)

type fakeSignalStore struct {
	mu        sync.Mutex
	purged    []string
	upserted  []contracts.Signal
	upsertErr error
}

func (f *fakeSignalStore) FindByKey(ctx context.Context, key contracts.SignalKey) (*contracts.Signal, error) {
	return nil, nil
}

func (f *fakeSignalStore) UpsertBatch(ctx context.Context, batch []contracts.Signal) (contracts.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return contracts.UpsertResult{Failed: len(batch)}, f.upsertErr
	}
	f.upserted = append(f.upserted, batch...)
	return contracts.UpsertResult{Inserted: len(batch)}, nil
}

func (f *fakeSignalStore) DeleteByDateAndType(ctx context.Context, date time.Time, screenerType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, screenerType)
	return 3, nil
}

func (f *fakeSignalStore) ListByDate(ctx context.Context, date time.Time, screenerType string) ([]contracts.Signal, error) {
	return nil, nil
}

type fakeLogStore struct {
	mu        sync.Mutex
	started   []string
	completed map[string]string
	messages  map[string]string
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{completed: map[string]string{}, messages: map[string]string{}}
}

func (f *fakeLogStore) StartLog(ctx context.Context, process string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, process)
	return "log-" + process, nil
}

func (f *fakeLogStore) CompleteLog(ctx context.Context, id, status, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = status
	f.messages[id] = msg
	return nil
}

func (f *fakeLogStore) Recent(ctx context.Context, limit int) ([]contracts.ScreenerLog, error) {
	return nil, nil
}

type fakeLocker struct {
	held map[string]bool
	err  error
}

func (f *fakeLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	if f.err != nil {
		return func() {}, false, f.err
	}
	if f.held[name] {
		return func() {}, false, nil
	}
	f.held[name] = true
	return func() { delete(f.held, name) }, true, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Publish(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

type fakeSnapshotStore struct {
	ids      map[string]int
	replaced []contracts.IndexSnapshot
}

func (f *fakeSnapshotStore) IndexIDs(ctx context.Context) (map[string]int, error) {
	return f.ids, nil
}

func (f *fakeSnapshotStore) ReplaceSnapshots(ctx context.Context, date time.Time, snaps []contracts.IndexSnapshot) (int64, error) {
	f.replaced = snaps
	return 8, nil
}

type fakeTVStore struct {
	stored []contracts.TVSignal
}

func (f *fakeTVStore) BulkInsert(ctx context.Context, sigs []contracts.TVSignal) (int, error) {
	seen := map[string]bool{}
	for _, s := range f.stored {
		seen[s.Ticker+s.TradeType+s.SignalTime.String()] = true
	}
	n := 0
	for _, s := range sigs {
		k := s.Ticker + s.TradeType + s.SignalTime.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		f.stored = append(f.stored, s)
		n++
	}
	return n, nil
}

func (f *fakeTVStore) TickersWithSignals(ctx context.Context, date time.Time, tickers []string) ([]string, error) {
	return nil, errors.New("not used")
}
