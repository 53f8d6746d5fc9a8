package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kezmail/backend/internal/audit"
	"kezmail/backend/internal/config"
	"kezmail/backend/internal/health"
	"kezmail/backend/internal/logger"
	"kezmail/backend/internal/monitoring"
	"kezmail/backend/internal/ratelimit"
	"kezmail/backend/internal/service"
	"kezmail/backend/internal/storage"
	"kezmail/backend/internal/storage/memory"
	redisstore "kezmail/backend/internal/storage/redis"
	sqlstore "kezmail/backend/internal/storage/sql"
	httptransport "kezmail/backend/internal/transport/http"
)

// main 启动临时邮箱 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting kezmail server",
		zap.String("domain", cfg.Mailbox.Domain),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		// 内存存储（开发环境），重启后数据丢失
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, log)

	// 初始化限流器
	limiterCfg := ratelimit.Config{
		Window:      cfg.RateLimit.Window,
		MaxRequests: cfg.RateLimit.MaxRequests,
	}

	var limiter ratelimit.Limiter
	var redisClient *redisstore.Client
	if cfg.RateLimit.Backend == "redis" {
		redisClient, err = redisstore.New(&cfg.Redis)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient.Client(), limiterCfg, log)
		log.Info("using redis rate limiter", zap.String("address", cfg.Redis.Address))
	} else {
		slidingWindow := ratelimit.NewSlidingWindow(limiterCfg)
		defer slidingWindow.Stop()
		limiter = slidingWindow
		log.Info("using in-memory rate limiter",
			zap.Duration("window", cfg.RateLimit.Window),
			zap.Int("max_requests", cfg.RateLimit.MaxRequests),
		)
	}

	// 初始化审计日志（异步写入，不阻塞请求路径）
	auditor := audit.NewLogger(store, log, cfg.Security.AuditQueueSize)
	defer auditor.Close()

	// 初始化服务层
	mailboxService := service.NewMailboxService(store, cfg)
	blockListService := service.NewBlockListService(store)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		MailboxService: mailboxService,
		BlockList:      blockListService,
		Limiter:        limiter,
		LimiterName:    cfg.RateLimit.Backend,
		Auditor:        auditor,
		Metrics:        metrics,
		Health:         healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理 goroutine：标记过期邮箱并删除超过保留期的数据
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Mailbox.SweepInterval)
		defer ticker.Stop()

		log.Info("starting mailbox sweep task", zap.Duration("interval", cfg.Mailbox.SweepInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("sweep task stopped")
				return nil
			case <-ticker.C:
				stats, err := mailboxService.Sweep()
				if err != nil {
					// 单轮失败不终止任务，下一轮重试
					log.Error("mailbox sweep failed", zap.Error(err))
					continue
				}
				metrics.MailboxesExpired.Add(float64(stats.Expired))
				metrics.MailboxesPurged.Add(float64(stats.MailboxesPurged))
				if stats.Expired > 0 || stats.MessagesPurged > 0 || stats.MailboxesPurged > 0 {
					log.Info("mailbox sweep completed",
						zap.Int64("expired", stats.Expired),
						zap.Int64("messages_purged", stats.MessagesPurged),
						zap.Int64("mailboxes_purged", stats.MailboxesPurged),
					)
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
