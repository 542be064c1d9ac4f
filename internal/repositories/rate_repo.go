package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateKeyPrefix      = "ratelimit:"
	rateBlockKeyFormat = "ratelimit:block:%s"
)

// RedisRateLimitRepository keeps fixed-window counters in Redis so limits
// hold across multiple server instances.
type RedisRateLimitRepository struct {
	client *redis.Client
}

func NewRedisRateLimitRepository(client *redis.Client) *RedisRateLimitRepository {
	return &RedisRateLimitRepository{client: client}
}

func (r *RedisRateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := rateKeyPrefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	// NX: the expiry marks the window start and must not slide on later hits
	pipe.ExpireNX(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	return incr.Val(), nil
}

func (r *RedisRateLimitRepository) Block(ctx context.Context, subject string, d time.Duration) error {
	key := fmt.Sprintf(rateBlockKeyFormat, subject)
	if err := r.client.Set(ctx, key, "1", d).Err(); err != nil {
		return fmt.Errorf("failed to set rate block: %w", err)
	}
	return nil
}

func (r *RedisRateLimitRepository) BlockedFor(ctx context.Context, subject string) (time.Duration, error) {
	key := fmt.Sprintf(rateBlockKeyFormat, subject)
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check rate block: %w", err)
	}
	if ttl < 0 {
		// -1 no expiry, -2 no key
		return 0, nil
	}
	return ttl, nil
}
