package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained is returned when another holder keeps the lock past the wait budget.
var ErrLockNotObtained = errors.New("lock held by another request")

// GRNLockKey builds the redis key guarding workflow operations on one GRN.
func GRNLockKey(grnID int64) string {
	return fmt.Sprintf("grn:%d:lock", grnID)
}

// Locker hands out short-lived distributed locks backed by Redis.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewLocker constructs a Locker. ttl bounds how long a crashed holder can block others; wait
// bounds how long Acquire retries before giving up.
func NewLocker(rdb redis.UniversalClient, ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait < 0 {
		wait = 0
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl, wait: wait}
}

// Acquire obtains the lock for key and returns its release function. A nil Locker hands out
// no-op locks.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	if l == nil || l.client == nil {
		return func(context.Context) {}, nil
	}
	backoff := 25 * time.Millisecond
	retries := int(l.wait / backoff)
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(backoff), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		_ = lock.Release(ctx)
	}, nil
}
