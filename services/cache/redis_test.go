package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(&redis.Options{Addr: mr.Addr()}, "test:")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		c, _ := newTestCache(t)
		val, ok, err := c.Get(ctx, "report:1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("set and get", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, c.Set(ctx, "report:1", []byte(`{"count":2}`), time.Minute))

		val, ok, err := c.Get(ctx, "report:1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"count":2}`, string(val))

		// keys are prefixed
		assert.True(t, mr.Exists("test:report:1"))
		assert.Equal(t, time.Minute, mr.TTL("test:report:1"))
	})

	t.Run("expiry", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, c.Set(ctx, "report:1", []byte("x"), time.Minute))
		mr.FastForward(2 * time.Minute)

		_, ok, err := c.Get(ctx, "report:1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		c, _ := newTestCache(t)
		require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
		require.NoError(t, c.Delete(ctx, "a", "b"))
		require.NoError(t, c.Delete(ctx))

		_, ok, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ping", func(t *testing.T) {
		c, mr := newTestCache(t)
		assert.NoError(t, c.Ping(ctx))
		mr.Close()
		assert.Error(t, c.Ping(ctx))
	})
}
