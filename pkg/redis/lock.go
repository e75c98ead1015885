package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived exclusive leases so the same scrape job
// never runs twice across API and scheduler processes.
type Locker struct {
	client *Client
	prefix string
}

// NewLocker creates a lease helper
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

var releaseIfOwner = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// TryLock acquires name for ttl. ok=false means another holder owns it.
// The returned release func is safe to call more than once.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	if !l.client.Enabled() {
		return func() {}, true, nil
	}

	key := fmt.Sprintf("%s:lock:%s", l.prefix, name)
	token := uuid.NewString()

	ok, err = l.client.Redis().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	return func() {
		_ = releaseIfOwner.Run(context.Background(), l.client.Redis(), []string{key}, token).Err()
	}, true, nil
}
