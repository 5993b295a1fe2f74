//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"desci/internal/ratelimit/models"
	"desci/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisBucketStore
	ctx   context.Context
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedisBucketStore(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisBucketStoreSuite) TestAllowUntilLimit() {
	limit := models.Limit{Requests: 2, Window: time.Minute}

	res, err := s.store.Allow(s.ctx, "ratelimit:ip:10.0.0.1", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(1, res.Remaining)

	res, err = s.store.Allow(s.ctx, "ratelimit:ip:10.0.0.1", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)

	res, err = s.store.Allow(s.ctx, "ratelimit:ip:10.0.0.1", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Positive(res.RetryAfter)

	ttl, err := s.redis.Client.PTTL(s.ctx, "desci:ratelimit:ip:10.0.0.1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisBucketStoreSuite) TestWindowExpires() {
	limit := models.Limit{Requests: 1, Window: 200 * time.Millisecond}

	res, err := s.store.Allow(s.ctx, "ratelimit:ip:10.0.0.2", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)

	s.Eventually(func() bool {
		res, err := s.store.Allow(s.ctx, "ratelimit:ip:10.0.0.2", limit)
		return err == nil && res.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisBucketStoreSuite) TestReset() {
	limit := models.Limit{Requests: 1, Window: time.Minute}
	_, err := s.store.Allow(s.ctx, "ratelimit:ip:10.0.0.3", limit)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.ctx, "ratelimit:ip:10.0.0.3"))

	res, err := s.store.Allow(s.ctx, "ratelimit:ip:10.0.0.3", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
