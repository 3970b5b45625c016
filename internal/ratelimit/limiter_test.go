package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/clock"
	"github.com/xaenox/storebot/internal/kvstore"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	return New(kvstore.NewMemoryStore(clk), limit, window, zap.NewNop()), clk
}

func TestLimitEnforcedAtBoundary(t *testing.T) {
	limiter, _ := newTestLimiter(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.CheckAndIncrement(ctx, 1), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.CheckAndIncrement(ctx, 1), "request over the limit should be rejected")

	retryAfter := limiter.RetryAfter(ctx, 1)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)
}

func TestWindowResets(t *testing.T) {
	limiter, clk := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	require.True(t, limiter.CheckAndIncrement(ctx, 1))
	require.True(t, limiter.CheckAndIncrement(ctx, 1))
	require.False(t, limiter.CheckAndIncrement(ctx, 1))

	clk.Advance(time.Minute + time.Second)

	assert.True(t, limiter.CheckAndIncrement(ctx, 1))
}

func TestUsersAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	require.True(t, limiter.CheckAndIncrement(ctx, 1))
	require.False(t, limiter.CheckAndIncrement(ctx, 1))
	assert.True(t, limiter.CheckAndIncrement(ctx, 2))
}

func TestCheckDoesNotConsume(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Check(ctx, 1))
	}
	assert.True(t, limiter.CheckAndIncrement(ctx, 1))
	assert.False(t, limiter.Check(ctx, 1))
}

func TestConcurrentIncrementsNeverOverAdmit(t *testing.T) {
	limiter, _ := newTestLimiter(10, time.Minute)
	ctx := context.Background()

	const requests = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.CheckAndIncrement(ctx, 1) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestCheckFailsOpenOnCorruptCounter(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	store := kvstore.NewMemoryStore(clk)
	limiter := New(store, 1, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ratelimit:1", "not-a-number", time.Minute))

	assert.True(t, limiter.Check(ctx, 1))
}

func TestFailsOpenWhenStoreUnavailable(t *testing.T) {
	limiter := New(failingStore{}, 1, time.Minute, zap.NewNop())

	assert.True(t, limiter.CheckAndIncrement(context.Background(), 1))
	assert.True(t, limiter.Check(context.Background(), 1))
	assert.Equal(t, 0, limiter.RetryAfter(context.Background(), 1))
}

type failingStore struct{}

func (failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return kvstore.ErrUnavailable
}
func (failingStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, kvstore.ErrUnavailable
}
func (failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, kvstore.ErrUnavailable
}
func (failingStore) GetDel(ctx context.Context, key string) (string, bool, error) {
	return "", false, kvstore.ErrUnavailable
}
func (failingStore) Delete(ctx context.Context, key string) (bool, error) {
	return false, kvstore.ErrUnavailable
}
func (failingStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, kvstore.ErrUnavailable
}
func (failingStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	return 0, false, kvstore.ErrUnavailable
}
func (failingStore) Close() error { return nil }
