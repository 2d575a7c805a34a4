package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *mapStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	m.ttl[key] = ttl
	return true, nil
}

func (m *mapStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *mapStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestRedisLockerLeasesPerJob(t *testing.T) {
	store := newMapStore()
	locker, err := NewRedisLocker(store, "dm:cron:test")
	require.NoError(t, err)
	ctx := context.Background()

	release, held, err := locker.Acquire(ctx, "payment-sync", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, 10*time.Minute, store.ttl["dm:cron:test:payment-sync"])

	_, again, err := locker.Acquire(ctx, "payment-sync", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	otherRelease, other, err := locker.Acquire(ctx, "payout-reconcile", time.Second)
	require.NoError(t, err)
	assert.True(t, other)
	assert.Equal(t, time.Minute, store.ttl["dm:cron:test:payout-reconcile"])
	otherRelease()

	release()
	_, ok := store.data["dm:cron:test:payment-sync"]
	assert.False(t, ok)
}

func TestRedisLockerKeepsForeignLease(t *testing.T) {
	store := newMapStore()
	locker, err := NewRedisLocker(store, "dm:cron")
	require.NoError(t, err)

	release, held, err := locker.Acquire(context.Background(), "refund-reconcile", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	store.data["dm:cron:refund-reconcile"] = "another-worker"
	release()
	assert.Equal(t, "another-worker", store.data["dm:cron:refund-reconcile"])
}

func TestNewRedisLockerValidation(t *testing.T) {
	_, err := NewRedisLocker(nil, "p")
	assert.Error(t, err)
	_, err = NewRedisLocker(newMapStore(), "")
	assert.Error(t, err)
}
