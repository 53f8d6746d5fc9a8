package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailboxConfig 定义临时邮箱的核心业务配置
type MailboxConfig struct {
	Domain           string        // 邮箱域名后缀
	TTL              time.Duration // 邮箱有效期，默认 10 分钟
	DailyLimit       int           // 单来源 IP 每日可创建数量，默认 5
	MessageRetention time.Duration // 过期后邮件保留时长，默认 1 天
	MailboxRetention time.Duration // 过期后邮箱记录保留时长，默认 7 天
	SweepInterval    time.Duration // 后台清理周期，默认 1 分钟
}

// RateLimitConfig 定义限流配置
type RateLimitConfig struct {
	Window      time.Duration // 滑动窗口长度，默认 1 分钟
	MaxRequests int           // 窗口内单来源最大请求数，默认 60
	GlobalRPS   int           // 全局令牌桶速率（每秒），默认 200
	GlobalBurst int           // 全局令牌桶容量，默认 400
	Backend     string        // "memory" 或 "redis"，默认 memory
}

// SecurityConfig 定义防护相关配置
type SecurityConfig struct {
	AdminKey       string // 管理接口共享密钥，留空时管理接口全部拒绝
	BodyLimit      int64  // 请求体大小上限（字节），默认 1MB
	AuditQueueSize int    // 审计日志异步队列长度，默认 256
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到标准输出
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 服务配置（限流后端为 redis 时使用）
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	Mailbox   MailboxConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	CORS      CORSConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: KEZMAIL_
// 例如: KEZMAIL_SERVER_PORT, KEZMAIL_MAILBOX_DAILY_LIMIT
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("kezmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailbox.domain", "2kez.xyz")
	viper.SetDefault("mailbox.ttl", "10m")
	viper.SetDefault("mailbox.daily_limit", 5)
	viper.SetDefault("mailbox.message_retention", "24h")
	viper.SetDefault("mailbox.mailbox_retention", "168h")
	viper.SetDefault("mailbox.sweep_interval", "1m")
	viper.SetDefault("ratelimit.window", "1m")
	viper.SetDefault("ratelimit.max_requests", 60)
	viper.SetDefault("ratelimit.global_rps", 200)
	viper.SetDefault("ratelimit.global_burst", 400)
	viper.SetDefault("ratelimit.backend", "memory")
	viper.SetDefault("security.admin_key", "")
	viper.SetDefault("security.body_limit", 1024*1024)
	viper.SetDefault("security.audit_queue_size", 256)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	ttl, err := time.ParseDuration(viper.GetString("mailbox.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.ttl: %w", err)
	}

	messageRetention, err := time.ParseDuration(viper.GetString("mailbox.message_retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.message_retention: %w", err)
	}

	mailboxRetention, err := time.ParseDuration(viper.GetString("mailbox.mailbox_retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.mailbox_retention: %w", err)
	}
	if mailboxRetention < messageRetention {
		return nil, fmt.Errorf("mailbox.mailbox_retention must not be shorter than mailbox.message_retention")
	}

	sweepInterval, err := time.ParseDuration(viper.GetString("mailbox.sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.sweep_interval: %w", err)
	}

	window, err := time.ParseDuration(viper.GetString("ratelimit.window"))
	if err != nil {
		return nil, fmt.Errorf("invalid ratelimit.window: %w", err)
	}

	dailyLimit := viper.GetInt("mailbox.daily_limit")
	if dailyLimit <= 0 {
		dailyLimit = 5
	}

	maxRequests := viper.GetInt("ratelimit.max_requests")
	if maxRequests <= 0 {
		maxRequests = 60
	}

	backend := viper.GetString("ratelimit.backend")
	if backend != "memory" && backend != "redis" {
		return nil, fmt.Errorf("invalid ratelimit.backend: %q (supported: memory, redis)", backend)
	}

	mailboxDomain := strings.ToLower(strings.TrimSpace(viper.GetString("mailbox.domain")))
	if mailboxDomain == "" {
		return nil, fmt.Errorf("mailbox.domain must not be empty")
	}

	adminKey := viper.GetString("security.admin_key")
	if adminKey != "" && len(adminKey) < 16 {
		return nil, fmt.Errorf("security.admin_key must be at least 16 characters long")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			Domain:           mailboxDomain,
			TTL:              ttl,
			DailyLimit:       dailyLimit,
			MessageRetention: messageRetention,
			MailboxRetention: mailboxRetention,
			SweepInterval:    sweepInterval,
		},
		RateLimit: RateLimitConfig{
			Window:      window,
			MaxRequests: maxRequests,
			GlobalRPS:   viper.GetInt("ratelimit.global_rps"),
			GlobalBurst: viper.GetInt("ratelimit.global_burst"),
			Backend:     backend,
		},
		Security: SecurityConfig{
			AdminKey:       adminKey,
			BodyLimit:      viper.GetInt64("security.body_limit"),
			AuditQueueSize: viper.GetInt("security.audit_queue_size"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 先尝试当前目录，再尝试父目录（从 backend/ 子目录运行时）。
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
