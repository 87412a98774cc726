//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qrpass/internal/attendance/store"
	"qrpass/pkg/testutil/containers"
)

type RedisUsageSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	usage *store.RedisUsage
	day   time.Time
}

func TestRedisUsageSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisUsageSuite))
}

func (s *RedisUsageSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.usage = store.NewRedisUsage(s.redis.Client, time.Hour)
	s.day = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func (s *RedisUsageSuite) SetupTest() {
	s.Require().NoError(s.redis.Flush(context.Background()))
}

func (s *RedisUsageSuite) TestRecordAggregatesPerDay() {
	ctx := context.Background()
	s.Require().NoError(s.usage.Record(ctx, s.day, "9876543210", "c2", "gate-1"))
	s.Require().NoError(s.usage.Record(ctx, s.day.Add(5*time.Hour), "9876543210", "c1", "gate-2"))
	s.Require().NoError(s.usage.Record(ctx, s.day, "9876543210", "c2", "gate-3"))
	s.Require().NoError(s.usage.Record(ctx, s.day.AddDate(0, 0, 1), "9876543210", "c1", "gate-4"))

	got, err := s.usage.Get(ctx, s.day, "9876543210")
	s.Require().NoError(err)
	s.Equal("2026-03-14", got.Date)
	s.Equal([]string{"c1", "c2"}, got.CredentialIDs)
	s.Equal(3, got.Count)
	s.Equal("gate-3", got.LastDeviceID)
}

func (s *RedisUsageSuite) TestEmptyDay() {
	got, err := s.usage.Get(context.Background(), s.day, "9123456780")
	s.Require().NoError(err)
	s.Empty(got.CredentialIDs)
	s.Zero(got.Count)
	s.Empty(got.LastDeviceID)
}

func (s *RedisUsageSuite) TestKeysExpire() {
	ctx := context.Background()
	s.Require().NoError(s.usage.Record(ctx, s.day, "9876543210", "c1", "gate-1"))

	keys, err := s.redis.Client.Keys(ctx, "qrpass:usage:*").Result()
	s.Require().NoError(err)
	s.Len(keys, 3)
	for _, k := range keys {
		ttl, err := s.redis.Client.TTL(ctx, k).Result()
		s.Require().NoError(err)
		s.Greater(ttl, time.Duration(0))
		s.LessOrEqual(ttl, time.Hour)
	}
}
