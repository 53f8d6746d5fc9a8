package service

import (
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage"
)

var (
	// ErrInvalidIP 封禁目标不是合法 IP 地址
	ErrInvalidIP = errors.New("invalid ip address")
	// ErrReasonRequired 封禁原因过短
	ErrReasonRequired = errors.New("block reason too short")
)

// BlockListService 封装来源封禁名单的操作。
//
// 判定逻辑：存在记录且（无截止时间或截止时间在当前之后）即为
// 封禁中。截止时间已过的记录保留在表中，判定时视为未封禁。
type BlockListService struct {
	store storage.Store

	now func() time.Time
}

// NewBlockListService 创建封禁名单服务。
func NewBlockListService(store storage.Store) *BlockListService {
	return &BlockListService{
		store: store,
		now:   time.Now,
	}
}

// IsBlocked 判定来源 IP 当前是否处于封禁状态。
func (s *BlockListService) IsBlocked(ipAddress string) (bool, error) {
	block, err := s.store.GetIPBlock(ipAddress)
	if errors.Is(err, storage.ErrIPBlockNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return block.Active(s.now()), nil
}

// Upsert 封禁来源 IP，重复封禁同一 IP 原地更新原因与截止时间。
func (s *BlockListService) Upsert(ipAddress, reason string, blockedUntil *time.Time) (*domain.IPBlock, error) {
	if net.ParseIP(ipAddress) == nil {
		return nil, ErrInvalidIP
	}
	if len(reason) < 3 {
		return nil, ErrReasonRequired
	}

	block := &domain.IPBlock{
		ID:           uuid.NewString(),
		IPAddress:    ipAddress,
		Reason:       reason,
		BlockedUntil: blockedUntil,
	}
	if err := s.store.UpsertIPBlock(block); err != nil {
		return nil, err
	}

	// upsert 可能命中已有记录，读回以拿到真实 ID 与时间戳
	return s.store.GetIPBlock(ipAddress)
}

// List 列出全部封禁记录。
func (s *BlockListService) List() ([]domain.IPBlock, error) {
	return s.store.ListIPBlocks()
}

// Unblock 删除封禁记录（解封）。
func (s *BlockListService) Unblock(id string) error {
	return s.store.DeleteIPBlock(id)
}

// RecentAttacks 列出最近的攻击审计记录。
func (s *BlockListService) RecentAttacks(limit int) ([]domain.AttackLog, error) {
	return s.store.ListRecentAttackLogs(limit)
}
