package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"qrpass/internal/device/models"
)

const decisionKeyPrefix = "qrpass:device:decision:"

// RedisDecisionCache shares approval decisions across instances with TTL eviction.
type RedisDecisionCache struct {
	client redis.Cmdable
}

func NewRedisDecisionCache(client redis.Cmdable) *RedisDecisionCache {
	return &RedisDecisionCache{client: client}
}

func (c *RedisDecisionCache) Get(ctx context.Context, deviceID string) (models.Decision, bool, error) {
	val, err := c.client.Get(ctx, decisionKeyPrefix+deviceID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get cached decision: %w", err)
	}
	return models.Decision(val), true, nil
}

func (c *RedisDecisionCache) Set(ctx context.Context, deviceID string, decision models.Decision, ttl time.Duration) error {
	if err := c.client.Set(ctx, decisionKeyPrefix+deviceID, string(decision), ttl).Err(); err != nil {
		return fmt.Errorf("cache decision: %w", err)
	}
	return nil
}

func (c *RedisDecisionCache) Delete(ctx context.Context, deviceID string) error {
	if err := c.client.Del(ctx, decisionKeyPrefix+deviceID).Err(); err != nil {
		return fmt.Errorf("evict cached decision: %w", err)
	}
	return nil
}
