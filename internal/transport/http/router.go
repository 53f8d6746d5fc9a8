package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kezmail/backend/internal/audit"
	"kezmail/backend/internal/config"
	"kezmail/backend/internal/health"
	"kezmail/backend/internal/middleware"
	"kezmail/backend/internal/monitoring"
	"kezmail/backend/internal/ratelimit"
	"kezmail/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	MailboxService *service.MailboxService
	BlockList      *service.BlockListService
	Limiter        ratelimit.Limiter
	LimiterName    string // 指标标签，"memory" 或 "redis"
	Auditor        *audit.Logger
	Metrics        *monitoring.Metrics
	Health         *health.Checker
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
//
// 防护中间件按固定顺序装配：安全响应头 → 请求日志 → 指标 →
// 请求体限制 → 全局限流 → 封禁名单 → 来源限流 → 请求过滤。
// 封禁检查在限流之前，被封禁的来源不消耗限流窗口配额。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.BodySizeLimit(deps.Config.Security.BodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:  deps.Config.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Admin-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	router.Use(gincors.New(corsConfig))

	// 健康检查与指标不经过防护链
	router.GET("/health", gin.WrapF(deps.Health.LiveHandler()))
	router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 防护链：先查封禁名单，再限流，最后过滤请求内容
	filter := middleware.NewRequestFilter(deps.Auditor, deps.Metrics, deps.Logger)

	guarded := router.Group("/")
	guarded.Use(middleware.GlobalThrottle(deps.Config.RateLimit.GlobalRPS, deps.Config.RateLimit.GlobalBurst, deps.Metrics))
	guarded.Use(middleware.BlockListGuard(deps.BlockList, deps.Auditor, deps.Metrics, deps.Logger))
	guarded.Use(middleware.RateLimit(deps.Limiter, deps.Auditor, deps.Metrics, deps.LimiterName))
	guarded.Use(filter.Handler())

	mailboxHandler := NewMailboxHandler(deps.MailboxService, deps.Metrics, deps.Logger)
	adminHandler := NewAdminHandler(deps.BlockList, deps.Logger)

	v1 := guarded.Group("/v1")
	{
		// ========== Temp Email Routes ==========
		mailboxRoutes := v1.Group("/temp-emails")
		{
			mailboxRoutes.POST("", mailboxHandler.Create)
			mailboxRoutes.GET("", mailboxHandler.ListToday)
			mailboxRoutes.GET("/:address/messages", mailboxHandler.Messages)
			mailboxRoutes.GET("/:address/status", mailboxHandler.Status)
		}

		// ========== Admin Routes ==========
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.AdminKeyAuth(deps.Config.Security.AdminKey))
		{
			adminRoutes.GET("/ip-blocks", adminHandler.ListBlocks)
			adminRoutes.POST("/ip-blocks", adminHandler.UpsertBlock)
			adminRoutes.DELETE("/ip-blocks/:id", adminHandler.DeleteBlock)
			adminRoutes.GET("/attacks", adminHandler.RecentAttacks)
		}
	}

	return router
}
