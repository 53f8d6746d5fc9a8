package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"KEZMAIL_SERVER_HOST",
		"KEZMAIL_SERVER_PORT",
		"KEZMAIL_MAILBOX_DOMAIN",
		"KEZMAIL_MAILBOX_TTL",
		"KEZMAIL_MAILBOX_DAILY_LIMIT",
		"KEZMAIL_MAILBOX_MESSAGE_RETENTION",
		"KEZMAIL_MAILBOX_MAILBOX_RETENTION",
		"KEZMAIL_RATELIMIT_WINDOW",
		"KEZMAIL_RATELIMIT_MAX_REQUESTS",
		"KEZMAIL_RATELIMIT_BACKEND",
		"KEZMAIL_SECURITY_ADMIN_KEY",
		"KEZMAIL_CORS_ALLOWED_ORIGINS",
		"KEZMAIL_LOG_LEVEL",
		"KEZMAIL_LOG_DEVELOPMENT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "2kez.xyz", cfg.Mailbox.Domain)
		assert.Equal(t, 10*time.Minute, cfg.Mailbox.TTL)
		assert.Equal(t, 5, cfg.Mailbox.DailyLimit)
		assert.Equal(t, 24*time.Hour, cfg.Mailbox.MessageRetention)
		assert.Equal(t, 7*24*time.Hour, cfg.Mailbox.MailboxRetention)
		assert.Equal(t, time.Minute, cfg.Mailbox.SweepInterval)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 60, cfg.RateLimit.MaxRequests)
		assert.Equal(t, "memory", cfg.RateLimit.Backend)
		assert.Empty(t, cfg.Security.AdminKey)
		assert.Equal(t, int64(1024*1024), cfg.Security.BodyLimit)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv()
		os.Setenv("KEZMAIL_SERVER_HOST", "127.0.0.1")
		os.Setenv("KEZMAIL_SERVER_PORT", "9090")
		os.Setenv("KEZMAIL_MAILBOX_DOMAIN", "Mail.Example.COM")
		os.Setenv("KEZMAIL_MAILBOX_TTL", "30m")
		os.Setenv("KEZMAIL_MAILBOX_DAILY_LIMIT", "10")
		os.Setenv("KEZMAIL_RATELIMIT_WINDOW", "30s")
		os.Setenv("KEZMAIL_RATELIMIT_MAX_REQUESTS", "120")
		os.Setenv("KEZMAIL_RATELIMIT_BACKEND", "redis")
		os.Setenv("KEZMAIL_SECURITY_ADMIN_KEY", "admin-key-at-least-16-chars")
		os.Setenv("KEZMAIL_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
		os.Setenv("KEZMAIL_LOG_LEVEL", "debug")
		os.Setenv("KEZMAIL_LOG_DEVELOPMENT", "true")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		// 域名规范化为小写
		assert.Equal(t, "mail.example.com", cfg.Mailbox.Domain)
		assert.Equal(t, 30*time.Minute, cfg.Mailbox.TTL)
		assert.Equal(t, 10, cfg.Mailbox.DailyLimit)
		assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
		assert.Equal(t, 120, cfg.RateLimit.MaxRequests)
		assert.Equal(t, "redis", cfg.RateLimit.Backend)
		assert.Equal(t, "admin-key-at-least-16-chars", cfg.Security.AdminKey)
		assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.Development)
	})

	t.Run("无效的TTL失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("KEZMAIL_MAILBOX_TTL", "not-a-duration")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid mailbox.ttl")
	})

	t.Run("邮箱保留期短于邮件保留期失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("KEZMAIL_MAILBOX_MESSAGE_RETENTION", "48h")
		os.Setenv("KEZMAIL_MAILBOX_MAILBOX_RETENTION", "24h")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("无效的限流后端失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("KEZMAIL_RATELIMIT_BACKEND", "memcached")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid ratelimit.backend")
	})

	t.Run("管理密钥太短失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("KEZMAIL_SECURITY_ADMIN_KEY", "short-key")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "admin_key must be at least 16 characters")
	})

	t.Run("非法的每日配额回落到默认值", func(t *testing.T) {
		clearEnv()
		os.Setenv("KEZMAIL_MAILBOX_DAILY_LIMIT", "-1")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, 5, cfg.Mailbox.DailyLimit)
	})
}
