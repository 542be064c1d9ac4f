package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	typingKeyPrefix = "typing:"

	// Key-level TTL is a coarse backstop; the coordinator re-filters entries
	// against its own 5s window on every read.
	typingKeyTTL = 30 * time.Second
)

// RedisTypingRepository stores one hash per conversation, field = user ID,
// value = RFC3339 timestamp of the last typing signal. One key per
// conversation keeps the key cardinality bounded.
type RedisTypingRepository struct {
	client *redis.Client
}

func NewRedisTypingRepository(client *redis.Client) *RedisTypingRepository {
	return &RedisTypingRepository{client: client}
}

func (r *RedisTypingRepository) Set(ctx context.Context, conversationID, userID string, at time.Time) error {
	key := typingKey(conversationID)
	if err := r.client.HSet(ctx, key, userID, at.Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("failed to set typing entry: %w", err)
	}
	if err := r.client.Expire(ctx, key, typingKeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh typing key TTL: %w", err)
	}
	return nil
}

func (r *RedisTypingRepository) Remove(ctx context.Context, conversationID, userID string) (bool, error) {
	removed, err := r.client.HDel(ctx, typingKey(conversationID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove typing entry: %w", err)
	}
	return removed > 0, nil
}

func (r *RedisTypingRepository) Entries(ctx context.Context, conversationID string) (map[string]time.Time, error) {
	fields, err := r.client.HGetAll(ctx, typingKey(conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get typing entries: %w", err)
	}

	entries := make(map[string]time.Time, len(fields))
	for userID, raw := range fields {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			// Unparseable entry is treated as expired
			continue
		}
		entries[userID] = ts
	}
	return entries, nil
}

// Replace rewrites the full entry map for a conversation, deleting the key
// when the filtered map is empty.
func (r *RedisTypingRepository) Replace(ctx context.Context, conversationID string, entries map[string]time.Time) error {
	key := typingKey(conversationID)

	if len(entries) == 0 {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete typing key: %w", err)
		}
		return nil
	}

	fields := make(map[string]interface{}, len(entries))
	for userID, ts := range entries {
		fields[userID] = ts.Format(time.RFC3339Nano)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, typingKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace typing entries: %w", err)
	}
	return nil
}

// ConversationsFor scans all typing keys for the user's entries. The scan is
// acceptable because typing keys are few and expire within seconds.
func (r *RedisTypingRepository) ConversationsFor(ctx context.Context, userID string) ([]string, error) {
	keys, err := r.client.Keys(ctx, typingKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan typing keys: %w", err)
	}

	var conversations []string
	for _, key := range keys {
		exists, err := r.client.HExists(ctx, key, userID).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check typing entry: %w", err)
		}
		if exists {
			conversations = append(conversations, strings.TrimPrefix(key, typingKeyPrefix))
		}
	}
	return conversations, nil
}

// Helper: build Redis key for a conversation's typing hash
func typingKey(conversationID string) string {
	return typingKeyPrefix + conversationID
}
