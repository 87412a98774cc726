package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"qrpass/internal/attendance/models"
)

const usageKeyPrefix = "qrpass:usage:"

// RedisUsage stores daily aggregates as a set of credential ids, a counter
// and the last scanning device, all expiring after ttl.
type RedisUsage struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisUsage(client redis.Cmdable, ttl time.Duration) *RedisUsage {
	if ttl <= 0 {
		ttl = 35 * 24 * time.Hour
	}
	return &RedisUsage{client: client, ttl: ttl}
}

func usageKeys(day time.Time, mobile string) (string, string, string) {
	base := usageKeyPrefix + models.DayKey(day) + ":" + mobile
	return base + ":credentials", base + ":count", base + ":last_device"
}

func (u *RedisUsage) Record(ctx context.Context, day time.Time, mobile, credentialID, deviceID string) error {
	setKey, countKey, deviceKey := usageKeys(day, mobile)
	_, err := u.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, setKey, credentialID)
		pipe.Incr(ctx, countKey)
		pipe.Set(ctx, deviceKey, deviceID, u.ttl)
		pipe.Expire(ctx, setKey, u.ttl)
		pipe.Expire(ctx, countKey, u.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record daily usage: %w", err)
	}
	return nil
}

func (u *RedisUsage) Get(ctx context.Context, day time.Time, mobile string) (*models.DailyUsage, error) {
	setKey, countKey, deviceKey := usageKeys(day, mobile)
	ids, err := u.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read daily usage credentials: %w", err)
	}
	count, err := u.client.Get(ctx, countKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read daily usage count: %w", err)
	}
	lastDevice, err := u.client.Get(ctx, deviceKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read daily usage device: %w", err)
	}
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	return &models.DailyUsage{
		Date:          models.DayKey(day),
		OwnerMobile:   mobile,
		CredentialIDs: ids,
		Count:         count,
		LastDeviceID:  lastDevice,
	}, nil
}
