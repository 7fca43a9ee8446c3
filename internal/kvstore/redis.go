package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Redis stores values as plain redis strings. A positive ttl expires carts
// that have not been written for that long.
type Redis struct {
	client redisClient
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key)
	if errors.Is(err, redis.ErrNil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, r.ttl)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
