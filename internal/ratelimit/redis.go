package ratelimit

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter 基于 Redis 的共享限流计数器。
//
// 多实例部署时替换进程内滑动窗口：INCR + EXPIRE 按固定窗口计数，
// 是滑动窗口的近似实现，契约（Allow(source) -> bool）保持不变。
// Redis 不可用时放行并记录日志，限流器故障不应放大为服务故障。
type RedisLimiter struct {
	rdb    *goredis.Client
	window time.Duration
	max    int
	log    *zap.Logger
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(rdb *goredis.Client, cfg Config, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		window: cfg.Window,
		max:    cfg.MaxRequests,
		log:    log,
	}
}

// Allow 判定来源的本次请求是否放行。
func (l *RedisLimiter) Allow(source string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := "ratelimit:" + source

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("rate limit counter unavailable, allowing request",
			zap.String("source", source),
			zap.Error(err),
		)
		return true
	}

	// 窗口内首个请求负责设置过期时间
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Warn("failed to set rate limit window expiry",
				zap.String("source", source),
				zap.Error(err),
			)
		}
	}

	return count <= int64(l.max)
}
