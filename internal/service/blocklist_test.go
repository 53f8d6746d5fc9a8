package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kezmail/backend/internal/storage"
	"kezmail/backend/internal/storage/memory"
)

func newTestBlockList(start time.Time) (*BlockListService, *time.Time) {
	service := NewBlockListService(memory.NewStore())
	current := start
	service.now = func() time.Time { return current }
	return service, &current
}

func TestBlockListService_Upsert(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("封禁成功", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		block, err := service.Upsert("10.0.0.1", "abuse detected", nil)

		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1", block.IPAddress)
		assert.Equal(t, "abuse detected", block.Reason)
		assert.Nil(t, block.BlockedUntil)
	})

	t.Run("IPv6地址合法", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		_, err := service.Upsert("2001:db8::1", "abuse detected", nil)
		assert.NoError(t, err)
	})

	t.Run("非法IP被拒绝", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		_, err := service.Upsert("not-an-ip", "abuse detected", nil)
		assert.ErrorIs(t, err, ErrInvalidIP)
	})

	t.Run("原因过短被拒绝", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		_, err := service.Upsert("10.0.0.1", "no", nil)
		assert.ErrorIs(t, err, ErrReasonRequired)
	})

	t.Run("重复封禁原地更新", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		first, err := service.Upsert("10.0.0.1", "first reason", nil)
		require.NoError(t, err)

		until := start.Add(time.Hour)
		second, err := service.Upsert("10.0.0.1", "second reason", &until)
		require.NoError(t, err)

		// ID 不变，原因与截止时间更新
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "second reason", second.Reason)
		require.NotNil(t, second.BlockedUntil)
		assert.Equal(t, until, *second.BlockedUntil)

		list, err := service.List()
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestBlockListService_IsBlocked(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("无记录不封禁", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		blocked, err := service.IsBlocked("10.0.0.1")
		require.NoError(t, err)
		assert.False(t, blocked)
	})

	t.Run("无截止时间视为永久封禁", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		_, err := service.Upsert("10.0.0.1", "abuse detected", nil)
		require.NoError(t, err)

		blocked, err := service.IsBlocked("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, blocked)
	})

	t.Run("截止时间未到处于封禁中", func(t *testing.T) {
		service, _ := newTestBlockList(start)

		until := start.Add(time.Hour)
		_, err := service.Upsert("10.0.0.1", "abuse detected", &until)
		require.NoError(t, err)

		blocked, err := service.IsBlocked("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, blocked)
	})

	t.Run("截止时间已过视为未封禁", func(t *testing.T) {
		service, clock := newTestBlockList(start)

		until := start.Add(time.Hour)
		_, err := service.Upsert("10.0.0.1", "abuse detected", &until)
		require.NoError(t, err)

		// 记录保留在表中，判定时失效
		*clock = start.Add(2 * time.Hour)

		blocked, err := service.IsBlocked("10.0.0.1")
		require.NoError(t, err)
		assert.False(t, blocked)

		list, err := service.List()
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestBlockListService_Unblock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service, _ := newTestBlockList(start)

	block, err := service.Upsert("10.0.0.1", "abuse detected", nil)
	require.NoError(t, err)

	require.NoError(t, service.Unblock(block.ID))

	blocked, err := service.IsBlocked("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked)

	// 重复解封返回 not found
	assert.ErrorIs(t, service.Unblock(block.ID), storage.ErrIPBlockNotFound)
}
