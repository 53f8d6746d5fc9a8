package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisLimiter(t *testing.T, cfg Config) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewRedisLimiter(rdb, cfg, zap.NewNop()), srv
}

func TestRedisLimiter_Allow(t *testing.T) {
	t.Run("窗口内超过阈值被拒绝", func(t *testing.T) {
		limiter, _ := newTestRedisLimiter(t, Config{Window: time.Minute, MaxRequests: 3})

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))
	})

	t.Run("不同来源独立计数", func(t *testing.T) {
		limiter, _ := newTestRedisLimiter(t, Config{Window: time.Minute, MaxRequests: 1})

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.2"))
	})

	t.Run("窗口过期后计数重置", func(t *testing.T) {
		limiter, srv := newTestRedisLimiter(t, Config{Window: time.Minute, MaxRequests: 1})

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))

		srv.FastForward(61 * time.Second)
		assert.True(t, limiter.Allow("10.0.0.1"))
	})

	t.Run("首个请求设置窗口过期时间", func(t *testing.T) {
		limiter, srv := newTestRedisLimiter(t, Config{Window: time.Minute, MaxRequests: 5})

		limiter.Allow("10.0.0.1")
		ttl := srv.TTL("ratelimit:10.0.0.1")
		assert.Equal(t, time.Minute, ttl)
	})

	t.Run("Redis不可用时放行", func(t *testing.T) {
		limiter, srv := newTestRedisLimiter(t, Config{Window: time.Minute, MaxRequests: 1})
		srv.Close()

		// 计数器故障不应放大为服务故障
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.1"))
	})
}
