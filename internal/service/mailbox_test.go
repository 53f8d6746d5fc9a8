package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kezmail/backend/internal/config"
	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage"
	"kezmail/backend/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Mailbox: config.MailboxConfig{
			Domain:           "2kez.xyz",
			TTL:              10 * time.Minute,
			DailyLimit:       5,
			MessageRetention: 24 * time.Hour,
			MailboxRetention: 7 * 24 * time.Hour,
		},
	}
}

// newTestService 创建使用内存存储与可控时钟的服务。
func newTestService(start time.Time) (*MailboxService, *memory.Store, *time.Time) {
	store := memory.NewStore()
	service := NewMailboxService(store, testConfig())
	current := start
	service.now = func() time.Time { return current }
	return service, store, &current
}

func TestMailboxService_Create(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("创建邮箱成功", func(t *testing.T) {
		service, _, _ := newTestService(start)

		result, err := service.Create("192.168.1.1")

		require.NoError(t, err)
		assert.Len(t, result.Mailbox.Address, 16+1+len("2kez.xyz")) // 16位十六进制本地部分
		assert.Contains(t, result.Mailbox.Address, "@2kez.xyz")
		assert.Len(t, result.Mailbox.Token, 48)
		assert.Equal(t, domain.MailboxActive, result.Mailbox.Status)
		assert.Equal(t, start.Add(10*time.Minute), result.Mailbox.ExpiresAt)
		assert.Equal(t, 4, result.Remaining)
	})

	t.Run("地址互不重复", func(t *testing.T) {
		service, _, _ := newTestService(start)

		seen := make(map[string]bool)
		for i := 0; i < 5; i++ {
			result, err := service.Create("192.168.1.1")
			require.NoError(t, err)
			assert.False(t, seen[result.Mailbox.Address])
			seen[result.Mailbox.Address] = true
		}
	})

	t.Run("当日配额用尽后拒绝", func(t *testing.T) {
		service, _, _ := newTestService(start)

		for i := 0; i < 5; i++ {
			result, err := service.Create("192.168.1.1")
			require.NoError(t, err)
			assert.Equal(t, 4-i, result.Remaining)
		}

		result, err := service.Create("192.168.1.1")
		assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
		assert.Nil(t, result)

		// 被拒绝的请求不产生记录
		list, err := service.ListTodayBySource("192.168.1.1")
		require.NoError(t, err)
		assert.Len(t, list, 5)
	})

	t.Run("不同来源配额独立", func(t *testing.T) {
		service, _, _ := newTestService(start)

		for i := 0; i < 5; i++ {
			_, err := service.Create("192.168.1.1")
			require.NoError(t, err)
		}

		_, err := service.Create("192.168.1.2")
		assert.NoError(t, err)
	})

	t.Run("次日配额重置", func(t *testing.T) {
		service, _, clock := newTestService(start)

		for i := 0; i < 5; i++ {
			_, err := service.Create("192.168.1.1")
			require.NoError(t, err)
		}
		_, err := service.Create("192.168.1.1")
		assert.ErrorIs(t, err, storage.ErrQuotaExceeded)

		// 跨过日历日边界
		*clock = time.Date(2026, 3, 2, 0, 0, 1, 0, time.UTC)

		result, err := service.Create("192.168.1.1")
		require.NoError(t, err)
		assert.Equal(t, 4, result.Remaining)
	})
}

func TestMailboxService_LazyExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service, _, clock := newTestService(start)

	result, err := service.Create("192.168.1.1")
	require.NoError(t, err)
	address := result.Mailbox.Address

	t.Run("有效期内状态为active", func(t *testing.T) {
		status, err := service.CheckStatus(address)
		require.NoError(t, err)
		assert.Equal(t, domain.MailboxActive, status.Status)
		assert.Equal(t, int64(600), status.Remaining)
	})

	t.Run("剩余秒数单调递减", func(t *testing.T) {
		*clock = start.Add(4 * time.Minute)
		status, err := service.CheckStatus(address)
		require.NoError(t, err)
		assert.Equal(t, int64(360), status.Remaining)
	})

	t.Run("过期后读取时惰性标记", func(t *testing.T) {
		// 后台清理尚未运行，读取路径自行完成状态迁移
		*clock = start.Add(11 * time.Minute)

		status, err := service.CheckStatus(address)
		require.NoError(t, err)
		assert.Equal(t, domain.MailboxExpired, status.Status)
		assert.Equal(t, int64(0), status.Remaining)
	})

	t.Run("过期邮箱仍可读取历史邮件", func(t *testing.T) {
		messages, err := service.GetMessages(address)
		require.NoError(t, err)
		assert.Equal(t, domain.MailboxExpired, messages.Mailbox.Status)
		assert.Empty(t, messages.Messages)
	})

	t.Run("不存在的地址返回not found", func(t *testing.T) {
		_, err := service.CheckStatus("nobody@2kez.xyz")
		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	})
}

func TestMailboxService_GetMessages(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service, store, _ := newTestService(start)

	result, err := service.Create("192.168.1.1")
	require.NoError(t, err)

	require.NoError(t, store.SaveMessage(&domain.Message{
		ID:         "msg-1",
		MailboxID:  result.Mailbox.ID,
		From:       "sender@example.com",
		Subject:    "first",
		ReceivedAt: start.Add(time.Minute),
	}))
	require.NoError(t, store.SaveMessage(&domain.Message{
		ID:         "msg-2",
		MailboxID:  result.Mailbox.ID,
		From:       "sender@example.com",
		Subject:    "second",
		ReceivedAt: start.Add(2 * time.Minute),
	}))

	messages, err := service.GetMessages(result.Mailbox.Address)
	require.NoError(t, err)
	require.Len(t, messages.Messages, 2)
	// 按接收时间倒序
	assert.Equal(t, "second", messages.Messages[0].Subject)
	assert.Equal(t, "first", messages.Messages[1].Subject)
}

func TestMailboxService_Sweep(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("标记过期", func(t *testing.T) {
		service, _, clock := newTestService(start)

		_, err := service.Create("192.168.1.1")
		require.NoError(t, err)
		_, err = service.Create("192.168.1.1")
		require.NoError(t, err)

		*clock = start.Add(11 * time.Minute)

		stats, err := service.Sweep()
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Expired)
		assert.Equal(t, int64(0), stats.MessagesPurged)
		assert.Equal(t, int64(0), stats.MailboxesPurged)

		// 重入安全：第二轮没有可标记的邮箱
		stats, err = service.Sweep()
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Expired)
	})

	t.Run("过期满一天后删除邮件", func(t *testing.T) {
		service, store, clock := newTestService(start)

		result, err := service.Create("192.168.1.1")
		require.NoError(t, err)
		require.NoError(t, store.SaveMessage(&domain.Message{
			ID:         "msg-1",
			MailboxID:  result.Mailbox.ID,
			ReceivedAt: start,
		}))

		*clock = start.Add(11 * time.Minute)
		_, err = service.Sweep()
		require.NoError(t, err)

		// 保留期内邮件仍在
		messages, err := service.GetMessages(result.Mailbox.Address)
		require.NoError(t, err)
		assert.Len(t, messages.Messages, 1)

		// 过期时刻起满一天后删除
		*clock = start.Add(10*time.Minute + 25*time.Hour)
		stats, err := service.Sweep()
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.MessagesPurged)
		assert.Equal(t, int64(0), stats.MailboxesPurged)

		// 邮箱记录仍可查询
		status, err := service.CheckStatus(result.Mailbox.Address)
		require.NoError(t, err)
		assert.Equal(t, domain.MailboxExpired, status.Status)
	})

	t.Run("过期满七天后删除邮箱", func(t *testing.T) {
		service, _, clock := newTestService(start)

		result, err := service.Create("192.168.1.1")
		require.NoError(t, err)

		*clock = start.Add(10*time.Minute + 8*24*time.Hour)
		stats, err := service.Sweep()
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Expired)
		assert.Equal(t, int64(1), stats.MailboxesPurged)

		_, err = service.CheckStatus(result.Mailbox.Address)
		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	})
}
