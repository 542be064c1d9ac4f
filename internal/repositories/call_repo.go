package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	callKeyPrefix = "call:"

	// Call sessions self-expire after an hour; an abandoned call simply
	// vanishes instead of requiring explicit teardown.
	callTTL = time.Hour
)

type RedisCallRepository struct {
	client *redis.Client
}

func NewRedisCallRepository(client *redis.Client) *RedisCallRepository {
	return &RedisCallRepository{client: client}
}

func (r *RedisCallRepository) Save(ctx context.Context, session *models.CallSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal call session: %w", err)
	}

	if err := r.client.Set(ctx, callKey(session.ID), data, callTTL).Err(); err != nil {
		return fmt.Errorf("failed to save call session: %w", err)
	}
	return nil
}

func (r *RedisCallRepository) Get(ctx context.Context, id string) (*models.CallSession, error) {
	data, err := r.client.Get(ctx, callKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call session: %w", err)
	}

	var session models.CallSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call session: %w", err)
	}
	return &session, nil
}

func (r *RedisCallRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, callKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete call session: %w", err)
	}
	return nil
}

// Helper: build Redis key for a call session
func callKey(id string) string {
	return callKeyPrefix + id
}
