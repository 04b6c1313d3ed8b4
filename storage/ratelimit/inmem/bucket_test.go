package inmemrl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-bff/core/ratelimit"
)

func TestBucketStore_Take(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewBucketStore(WithBucketClock(clock.Now))
	policy := ratelimit.Policy{Max: 2, Window: 2 * time.Second} // one token per second

	for i := 0; i < 2; i++ {
		d, err := store.Take(ctx, "k", policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := store.Take(ctx, "k", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.RetryAfter > 0 && d.RetryAfter <= policy.Window, "retry after %s", d.RetryAfter)

	clock.Advance(time.Second)
	d, err = store.Take(ctx, "k", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestBucketStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	store := NewBucketStore(WithBucketClock(clock.Now), WithIdleTTL(time.Minute))
	policy := ratelimit.Policy{Max: 1, Window: time.Hour}

	_, _ = store.Take(ctx, "idle", policy)
	clock.Advance(2 * time.Minute)
	_, _ = store.Take(ctx, "busy", policy)

	store.Cleanup()

	store.mu.Lock()
	_, idleKept := store.entries["idle"]
	_, busyKept := store.entries["busy"]
	store.mu.Unlock()
	assert.False(t, idleKept)
	assert.True(t, busyKept)
}
