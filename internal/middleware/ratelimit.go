package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"kezmail/backend/internal/audit"
	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/monitoring"
	"kezmail/backend/internal/ratelimit"
	"kezmail/backend/internal/service"
)

// BlockListGuard 封禁名单检查中间件。
//
// 位于限流与内容过滤之前：封禁中的来源用最低成本短路掉。
// 存储不可用时放行并记录，封禁检查故障不应放大为服务故障。
func BlockListGuard(blocklist *service.BlockListService, auditor *audit.Logger, metrics *monitoring.Metrics, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		blocked, err := blocklist.IsBlocked(ip)
		if err != nil {
			log.Error("block list lookup failed", zap.String("ip", ip), zap.Error(err))
			c.Next()
			return
		}

		if blocked {
			metrics.BlockedIPHits.Inc()
			auditor.Record(ip, c.Request.UserAgent(), domain.ActionBlockedIP, "request from blocked source")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "访问被拒绝",
			})
			return
		}

		c.Next()
	}
}

// RateLimit 按来源 IP 限流的中间件。
func RateLimit(limiter ratelimit.Limiter, auditor *audit.Logger, metrics *monitoring.Metrics, limiterName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !limiter.Allow(ip) {
			metrics.RateLimitBlocks.WithLabelValues(limiterName).Inc()
			auditor.Record(ip, c.Request.UserAgent(), domain.ActionRateLimit, "Too many requests")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "请求过于频繁，请稍后再试",
			})
			return
		}

		c.Next()
	}
}

// GlobalThrottle 全局令牌桶限流中间件。
//
// 与按来源的滑动窗口互补：不区分来源，针对整体突发流量兜底。
func GlobalThrottle(rps, burst int, metrics *monitoring.Metrics) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			metrics.RateLimitBlocks.WithLabelValues("global").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "服务繁忙，请稍后再试",
			})
			return
		}

		c.Next()
	}
}
