package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/internal/dataprocessing"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(ttl)
	store.now = clock.Now
	return store, clock
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store, _ := newTestStore(time.Hour)

	created, err := store.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.HasResult())
	assert.Equal(t, 0, created.Version)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	other, err := store.Create()
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	store, _ := newTestStore(time.Hour)

	_, err := store.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.SetResult("missing", "a.csv", "f", &dataprocessing.Result{})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete("missing"), ErrNotFound)
}

func TestMemoryStoreSetResultReplacesWholesale(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	sess, err := store.Create()
	require.NoError(t, err)

	first := &dataprocessing.Result{Fields: []string{"lat", "lon"}}
	second := &dataprocessing.Result{Fields: []string{"lat", "lon", "species"}}

	updated, err := store.SetResult(sess.ID, "a.csv", "aaa", first)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Same(t, first, updated.Result)

	updated, err = store.SetResult(sess.ID, "b.csv", "bbb", second)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "b.csv", updated.Filename)
	assert.Equal(t, "bbb", updated.Fingerprint)
	assert.Same(t, second, updated.Result)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	sess, err := store.Create()
	require.NoError(t, err)

	sess.Filename = "tampered.csv"
	sess.Version = 99

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Filename)
	assert.Equal(t, 0, got.Version)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store, clock := newTestStore(time.Hour)

	idle, err := store.Create()
	require.NoError(t, err)
	active, err := store.Create()
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	_, err = store.Get(active.ID)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	_, err = store.Get(idle.ID)
	assert.ErrorIs(t, err, ErrNotFound, "expired sessions are not served before a sweep")

	assert.Equal(t, 1, store.Sweep(clock.Now()))
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(active.ID)
	assert.NoError(t, err)
}

func TestMemoryStoreNoTTL(t *testing.T) {
	store, clock := newTestStore(0)
	sess, err := store.Create()
	require.NoError(t, err)

	clock.Advance(1000 * time.Hour)
	assert.Equal(t, 0, store.Sweep(clock.Now()))
	_, err = store.Get(sess.ID)
	assert.NoError(t, err)
}

func TestMemoryStoreDelete(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	sess, err := store.Create()
	require.NoError(t, err)

	require.NoError(t, store.Delete(sess.ID))
	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	sess, err := store.Create()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.SetResult(sess.ID, "a.csv", "f", &dataprocessing.Result{})
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Get(sess.ID)
		}()
	}
	wg.Wait()

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Version)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(time.Nanosecond)
	_, err := store.Create()
	require.NoError(t, err)

	evicted := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, store, 5*time.Millisecond, nil, func(n int) {
			select {
			case evicted <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-evicted:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not evict the expired session")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
