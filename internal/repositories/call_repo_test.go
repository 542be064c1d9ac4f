package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
)

// TestCallRepository_SaveGet tests the session round trip and TTL
func TestCallRepository_SaveGet(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisCallRepository(client)
	ctx := context.Background()

	defer cleanupTestCalls(t, client, ctx)

	session := &models.CallSession{
		ID:          "call_u1_u2_1700000000000",
		CallerID:    "user-1",
		RecipientID: "user-2",
		Kind:        models.CallAudio,
		Status:      models.CallRinging,
		SDP:         "offer-sdp",
		StartedAt:   time.Now(),
	}

	err := repo.Save(ctx, session)
	require.NoError(t, err)

	retrieved, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", retrieved.CallerID)
	assert.Equal(t, models.CallRinging, retrieved.Status)

	// Sessions are ephemeral; a forgotten call must expire on its own
	ttl, err := client.TTL(ctx, "call:"+session.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestCallRepository_GetMissing(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisCallRepository(client)
	ctx := context.Background()

	_, err := repo.Get(ctx, "no-such-call")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCallRepository_Delete(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisCallRepository(client)
	ctx := context.Background()

	defer cleanupTestCalls(t, client, ctx)

	session := &models.CallSession{
		ID:          "call_u1_u2_1700000000001",
		CallerID:    "user-1",
		RecipientID: "user-2",
		Kind:        models.CallVideo,
		Status:      models.CallEnded,
		StartedAt:   time.Now(),
	}
	require.NoError(t, repo.Save(ctx, session))

	require.NoError(t, repo.Delete(ctx, session.ID))

	_, err := repo.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// cleanupTestCalls removes call sessions
func cleanupTestCalls(t *testing.T, client *redis.Client, ctx context.Context) {
	keys, err := client.Keys(ctx, "call:*").Result()
	if err != nil {
		t.Logf("Warning: failed to get keys: %v", err)
		return
	}
	if len(keys) > 0 {
		if err := client.Del(ctx, keys...).Err(); err != nil {
			t.Logf("Warning: failed to cleanup call keys: %v", err)
		}
	}
}
