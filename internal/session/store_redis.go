package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"choregate/pkg/platform/sentinel"
)

const sessionKeyPrefix = "session:"

// RedisStore persists sessions in Redis hashes with a sliding TTL. This is
// the production implementation for deployments with more than one instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, error) {
	value, err := s.client.HGet(ctx, sessionKeyPrefix+sid, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("session key %q: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get session key: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	redisKey := sessionKeyPrefix + sid
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, redisKey, key, value)
	pipe.Expire(ctx, redisKey, TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set session key: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
