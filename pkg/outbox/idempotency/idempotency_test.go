package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore behaves like SETNX with no expiry.
type memoryStore struct {
	keys   map[string]time.Duration
	failOn error
}

func newMemoryStore() *memoryStore { return &memoryStore{keys: map[string]time.Duration{}} }

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.failOn != nil {
		return false, m.failOn
	}
	if _, taken := m.keys[key]; taken {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "dm:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), 0)
	assert.Error(t, err)
}

func TestCheckAndMarkProcessedClaimsOnce(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	seen, err := manager.CheckAndMarkProcessed(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	key := "dm:idempotency:evt:processed:notifications:" + eventID.String()
	assert.Equal(t, 24*time.Hour, store.keys[key])

	seen, err = manager.CheckAndMarkProcessed(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.False(t, seen, "consumers are tracked independently")
}

func TestDeleteAllowsRetry(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "analytics", eventID))

	seen, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCheckAndMarkKeyRejectsBlankInput(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.CheckAndMarkKey(ctx, "square-webhook", " ")
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = manager.CheckAndMarkProcessed(ctx, "square-webhook", uuid.Nil)
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = manager.CheckAndMarkKey(ctx, "", "evt_1")
	assert.ErrorIs(t, err, ErrConsumerRequired)
}

func TestCheckAndMarkPropagatesStoreError(t *testing.T) {
	store := newMemoryStore()
	store.failOn = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkKey(context.Background(), "square-webhook", "evt_1")
	assert.EqualError(t, err, "redis down")
}
