//go:build integration

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"choregate/pkg/platform/sentinel"
	"choregate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	ctx   context.Context
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) TestSetAndGet() {
	s.Require().NoError(s.store.Set(s.ctx, "sid-1", KeyUserID, "user-1"))

	value, err := s.store.Get(s.ctx, "sid-1", KeyUserID)
	s.Require().NoError(err)
	s.Equal("user-1", value)
}

func (s *RedisStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "sid-1", KeyUserID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Set(s.ctx, "sid-1", KeyUserID, "user-1"))
	s.Require().NoError(s.store.Set(s.ctx, "sid-1", KeyAccountType, "parent"))

	s.Require().NoError(s.store.Delete(s.ctx, "sid-1"))

	_, err := s.store.Get(s.ctx, "sid-1", KeyUserID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Get(s.ctx, "sid-1", KeyAccountType)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSessionTTLIsSet() {
	s.Require().NoError(s.store.Set(s.ctx, "sid-1", KeyUserID, "user-1"))

	ttl, err := s.redis.Client.TTL(s.ctx, sessionKeyPrefix+"sid-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl.Seconds(), 0.0)
	s.LessOrEqual(ttl, TTL)
}

func (s *RedisStoreSuite) TestPendingRoundTrip() {
	req := pendingRequest()
	s.Require().NoError(SavePending(s.ctx, s.store, "sid-1", req))

	got, ok, err := LoadPending(s.ctx, s.store, "sid-1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(req, got)

	s.Require().NoError(ClearPending(s.ctx, s.store, "sid-1"))
	_, ok, err = LoadPending(s.ctx, s.store, "sid-1")
	s.Require().NoError(err)
	s.False(ok)
}
