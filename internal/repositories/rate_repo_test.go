package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRateLimitRepository_Increment tests the fixed-window counter
func TestRateLimitRepository_Increment(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisRateLimitRepository(client)
	ctx := context.Background()

	defer cleanupTestRateLimits(t, client, ctx)

	count, err := repo.Increment(ctx, "blanket:user-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.Increment(ctx, "blanket:user-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Window expiry must be anchored at the first hit, not refreshed
	ttl1, err := client.TTL(ctx, "ratelimit:blanket:user-1").Result()
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	_, err = repo.Increment(ctx, "blanket:user-1", time.Minute)
	require.NoError(t, err)
	ttl2, err := client.TTL(ctx, "ratelimit:blanket:user-1").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl2, ttl1, "later hits must not extend the window")
}

// TestRateLimitRepository_WindowExpiry tests that the counter resets after
// the window lapses
func TestRateLimitRepository_WindowExpiry(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisRateLimitRepository(client)
	ctx := context.Background()

	defer cleanupTestRateLimits(t, client, ctx)

	_, err := repo.Increment(ctx, "burst:user-1", time.Second)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "burst:user-1", time.Second)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	count, err := repo.Increment(ctx, "burst:user-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "counter should restart after the window")
}

// TestRateLimitRepository_Block tests the timed block used for blanket
// violations
func TestRateLimitRepository_Block(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisRateLimitRepository(client)
	ctx := context.Background()

	defer cleanupTestRateLimits(t, client, ctx)

	remaining, err := repo.BlockedFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, remaining, "unblocked subject should report zero")

	require.NoError(t, repo.Block(ctx, "user-1", 30*time.Second))

	remaining, err = repo.BlockedFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Greater(t, remaining, 25*time.Second)
	assert.LessOrEqual(t, remaining, 30*time.Second)
}

// cleanupTestRateLimits removes rate counters and blocks
func cleanupTestRateLimits(t *testing.T, client *redis.Client, ctx context.Context) {
	keys, err := client.Keys(ctx, "ratelimit:*").Result()
	if err != nil {
		t.Logf("Warning: failed to get keys: %v", err)
		return
	}
	if len(keys) > 0 {
		if err := client.Del(ctx, keys...).Err(); err != nil {
			t.Logf("Warning: failed to cleanup rate limit keys: %v", err)
		}
	}
}
