package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token under a single prefixed key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func OpenRedis(ctx context.Context, addr, prefix, key string) (*RedisStore, error) {
	if key == "" {
		key = DefaultKey
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{client: rdb, key: prefix + "pricewatch:" + key}, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) LoadToken(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// SaveToken stores the token without expiry; the service decides when it
// stops being valid and answers 401.
func (s *RedisStore) SaveToken(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key, token, 0).Err()
}

func (s *RedisStore) ClearToken(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
