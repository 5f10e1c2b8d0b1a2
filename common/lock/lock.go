// Package lock provides per-key advisory locks used around claim-check-then-act.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the lock is held elsewhere past the wait budget
var ErrNotObtained = errors.New("lock not obtained")

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker obtains locks by key
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// RedisLocker uses bsm/redislock so that locks hold across replicas
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker creates a locker; keys are namespaced with prefix
func NewRedisLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	}
}

// Obtain takes the lock, retrying for about two seconds
func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	lk, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: l.retry,
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return lk, nil
}

// LocalLocker serializes by key within one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

// NewLocalLocker creates an in-process locker that waits up to wait for a held key
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		held: make(map[string]chan struct{}),
		wait: wait,
	}
}

// Obtain takes the lock or fails with ErrNotObtained after the wait budget
func (l *LocalLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			return &localLock{owner: l, key: key, ch: ch}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type localLock struct {
	owner *LocalLocker
	key   string
	ch    chan struct{}
	once  sync.Once
}

func (l *localLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		if l.owner.held[l.key] == l.ch {
			delete(l.owner.held, l.key)
		}
		l.owner.mu.Unlock()
		close(l.ch)
	})
	return nil
}
