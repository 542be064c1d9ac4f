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
	presenceKeyPrefix    = "presence:"
	presenceOnlineKey    = "presence:online"
	subscribersKeyFormat = "presence:subscribers:%s"

	// Presence records expire on their own so a crashed instance cannot pin a
	// user online forever. Reads fall back to the durable directory afterwards.
	presenceTTL = time.Hour
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func (r *RedisPresenceRepository) SetPresence(ctx context.Context, record *models.PresenceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	key := presenceKey(record.UserID)
	if err := r.client.Set(ctx, key, data, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) GetPresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	data, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var record models.PresenceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &record, nil
}

// GetBulkPresence retrieves presence for multiple users in one round trip.
// Users without a live record are simply absent from the result map.
func (r *RedisPresenceRepository) GetBulkPresence(ctx context.Context, userIDs []string) (map[string]models.PresenceRecord, error) {
	result := make(map[string]models.PresenceRecord)
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	for i, value := range values {
		if value == nil {
			continue
		}
		data, ok := value.(string)
		if !ok {
			continue
		}

		var record models.PresenceRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		result[userIDs[i]] = record
	}
	return result, nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) AddOnline(ctx context.Context, userID string) error {
	if err := r.client.SAdd(ctx, presenceOnlineKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) RemoveOnline(ctx context.Context, userID string) error {
	if err := r.client.SRem(ctx, presenceOnlineKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) OnlineUsers(ctx context.Context) ([]string, error) {
	users, err := r.client.SMembers(ctx, presenceOnlineKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}
	return users, nil
}

func (r *RedisPresenceRepository) OnlineCount(ctx context.Context) (int64, error) {
	count, err := r.client.SCard(ctx, presenceOnlineKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return count, nil
}

// Subscribe adds subscriberID to each target's subscriber set. The sets are an
// opt-in notification list independent of the contact graph.
func (r *RedisPresenceRepository) Subscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	for _, target := range targetIDs {
		key := fmt.Sprintf(subscribersKeyFormat, target)
		if err := r.client.SAdd(ctx, key, subscriberID).Err(); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", target, err)
		}
	}
	return nil
}

func (r *RedisPresenceRepository) Unsubscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	for _, target := range targetIDs {
		key := fmt.Sprintf(subscribersKeyFormat, target)
		if err := r.client.SRem(ctx, key, subscriberID).Err(); err != nil {
			return fmt.Errorf("failed to unsubscribe from %s: %w", target, err)
		}
	}
	return nil
}

func (r *RedisPresenceRepository) Subscribers(ctx context.Context, targetID string) ([]string, error) {
	key := fmt.Sprintf(subscribersKeyFormat, targetID)
	subscribers, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscribers: %w", err)
	}
	return subscribers, nil
}

// Helper: build Redis key for a presence record
func presenceKey(userID string) string {
	return presenceKeyPrefix + userID
}
