package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/eventuais/eventuais/core"
)

// RedisCache stores entries in Redis under a per-application key prefix.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

var _ core.Cache = (*RedisCache)(nil) // interface compliance check

func NewRedisCache(opts *redis.Options, prefix string) *RedisCache {
	return &RedisCache{rdb: redis.NewClient(opts), prefix: prefix}
}

// NewRedisCacheFromConfig connects to the Redis server described by conf.
func NewRedisCacheFromConfig(conf *core.Config) *RedisCache {
	return NewRedisCache(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}, conf.AppName+":"+conf.Env+":")
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading cache key %q", key)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrapf(c.rdb.Set(ctx, c.key(key), value, ttl).Err(), "writing cache key %q", key)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.key(k))
	}
	return errors.Wrap(c.rdb.Del(ctx, full...).Err(), "deleting cache keys")
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
