package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memLockStore struct {
	values map[string]string
}

func newMemLockStore() *memLockStore {
	return &memLockStore{values: map[string]string{}}
}

func (m *memLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memLockStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := newMemLockStore()

	first, err := NewRedisLock(store, WorkerLockKey, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(store, WorkerLockKey, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire to win, got ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("expected second acquire to lose, got ok=%v err=%v", ok, err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected acquire after release to win, got ok=%v err=%v", ok, err)
	}
}

func TestRedisLockReleaseSparesNewOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemLockStore()

	stale, err := NewRedisLock(store, WorkerLockKey, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("expected stale worker to acquire first")
	}

	// The TTL lapses while the stale worker is wedged; a replacement takes over.
	delete(store.values, WorkerLockKey)
	fresh, err := NewRedisLock(store, WorkerLockKey, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, _ := fresh.Acquire(ctx); !ok {
		t.Fatal("expected replacement worker to acquire")
	}

	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, held := store.values[WorkerLockKey]; !held {
		t.Fatal("stale release must not evict the current owner")
	}
}
