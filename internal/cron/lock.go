package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Locker hands out per-job exclusive leases. release is a no-op when held is false.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (release func(), held bool, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLocker leases "<prefix>:<job>" with SET NX and a random owner token. A lease
// that outlives its TTL is simply taken over; release never deletes another owner's key.
type RedisLocker struct {
	store  lockStore
	prefix string
}

func NewRedisLocker(store lockStore, prefix string) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for cron locks")
	}
	if prefix == "" {
		return nil, errors.New("lock prefix is required")
	}
	return &RedisLocker{store: store, prefix: prefix}, nil
}

func (l *RedisLocker) key(job string) string {
	return l.prefix + ":" + job
}

func (l *RedisLocker) Acquire(ctx context.Context, job string, ttl time.Duration) (func(), bool, error) {
	if ttl < time.Minute {
		ttl = time.Minute
	}
	key, owner := l.key(job), uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, ttl)
	if err != nil {
		return func() {}, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	release := func() {
		bg := context.WithoutCancel(ctx)
		current, err := l.store.Get(bg, key)
		if err != nil || current != owner {
			return
		}
		_ = l.store.Del(bg, key)
	}
	return release, true, nil
}
