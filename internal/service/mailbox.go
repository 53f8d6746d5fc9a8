package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kezmail/backend/internal/config"
	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage"
)

// ErrAddressGeneration 随机地址多次碰撞后放弃
var ErrAddressGeneration = errors.New("failed to generate unique address")

// 随机地址碰撞重试次数。地址空间为 16^16，碰撞视为瞬时现象。
const maxAddressAttempts = 5

// MailboxService 封装临时邮箱的生命周期操作。
type MailboxService struct {
	store storage.Store
	cfg   *config.Config

	// 可注入时钟，测试用
	now func() time.Time
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(store storage.Store, cfg *config.Config) *MailboxService {
	return &MailboxService{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// CreateResult 创建邮箱的返回结果。
type CreateResult struct {
	Mailbox   *domain.Mailbox
	Remaining int // 当日剩余可创建数量
}

// Create 在当日配额内为来源 IP 创建一个临时邮箱。
//
// 配额检查与插入由存储层在单个事务内原子完成；随机地址碰撞
// 时重新生成，不向调用方暴露。配额用尽返回 storage.ErrQuotaExceeded。
func (s *MailboxService) Create(sourceIP string) (*CreateResult, error) {
	now := s.now()

	for attempt := 0; attempt < maxAddressAttempts; attempt++ {
		address, err := s.generateAddress()
		if err != nil {
			return nil, err
		}
		token, err := generateToken()
		if err != nil {
			return nil, err
		}

		mailbox := &domain.Mailbox{
			ID:             uuid.NewString(),
			Address:        address,
			Token:          token,
			SourceIP:       sourceIP,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.cfg.Mailbox.TTL),
			LastAccessedAt: now,
			Status:         domain.MailboxActive,
		}

		used, err := s.store.CreateMailbox(mailbox, s.cfg.Mailbox.DailyLimit)
		if errors.Is(err, storage.ErrAddressTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return &CreateResult{
			Mailbox:   mailbox,
			Remaining: s.cfg.Mailbox.DailyLimit - used - 1,
		}, nil
	}

	return nil, ErrAddressGeneration
}

// GetByAddress 根据地址获取邮箱，读取时惰性过期。
//
// 有效期已过但状态仍为 active 的邮箱，在返回前先条件更新为
// expired——即使后台清理尚未运行，调用方看到的状态也是准确的。
func (s *MailboxService) GetByAddress(address string) (*domain.Mailbox, error) {
	mailbox, err := s.store.GetMailboxByAddress(address)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if mailbox.Status == domain.MailboxActive && mailbox.Expired(now) {
		if _, err := s.store.MarkMailboxExpired(mailbox.ID); err != nil {
			return nil, fmt.Errorf("failed to expire mailbox on read: %w", err)
		}
		mailbox.Status = domain.MailboxExpired
	}

	// 访问时间更新失败不影响读取
	_ = s.store.TouchMailbox(mailbox.ID, now)
	mailbox.LastAccessedAt = now

	return mailbox, nil
}

// MessagesResult 邮箱与其邮件列表。
type MessagesResult struct {
	Mailbox  *domain.Mailbox  `json:"mailbox"`
	Messages []domain.Message `json:"messages"`
}

// GetMessages 获取邮箱内的全部邮件，按接收时间倒序。
//
// 已过期但尚未清理的邮箱仍可读取历史邮件；只有从未存在过的
// 地址才返回 not found。
func (s *MailboxService) GetMessages(address string) (*MessagesResult, error) {
	mailbox, err := s.GetByAddress(address)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(mailbox.ID)
	if err != nil {
		return nil, err
	}

	return &MessagesResult{
		Mailbox:  mailbox,
		Messages: messages,
	}, nil
}

// StatusResult 邮箱状态查询结果。
type StatusResult struct {
	Email     string               `json:"email"`
	Status    domain.MailboxStatus `json:"status"`
	Remaining int64                `json:"remaining"` // 剩余秒数
}

// CheckStatus 查询邮箱状态与剩余有效秒数。
func (s *MailboxService) CheckStatus(address string) (*StatusResult, error) {
	mailbox, err := s.GetByAddress(address)
	if err != nil {
		return nil, err
	}

	return &StatusResult{
		Email:     mailbox.Address,
		Status:    mailbox.Status,
		Remaining: mailbox.RemainingSeconds(s.now()),
	}, nil
}

// ListTodayBySource 列出来源 IP 当日创建的邮箱，按创建时间倒序。
func (s *MailboxService) ListTodayBySource(sourceIP string) ([]domain.Mailbox, error) {
	return s.store.ListTodayBySource(sourceIP, s.now())
}

// SweepStats 一次后台清理的统计。
type SweepStats struct {
	Expired         int64 // 本轮标记过期的邮箱数
	MessagesPurged  int64 // 删除的邮件数
	MailboxesPurged int64 // 删除的邮箱数
}

// Sweep 执行一轮后台清理：标记过期、删除超过保留期的邮件与邮箱。
//
// 三步都是条件更新，只推进状态机（active -> expired -> 删除），
// 与自身并发重入安全。邮件保留期短于邮箱保留期，删除顺序保证
// 不产生孤儿邮件。
func (s *MailboxService) Sweep() (SweepStats, error) {
	now := s.now()
	var stats SweepStats

	expired, err := s.store.MarkExpiredMailboxes(now)
	if err != nil {
		return stats, fmt.Errorf("failed to mark expired mailboxes: %w", err)
	}
	stats.Expired = expired

	messages, err := s.store.DeleteMessagesExpiredBefore(now.Add(-s.cfg.Mailbox.MessageRetention))
	if err != nil {
		return stats, fmt.Errorf("failed to purge messages: %w", err)
	}
	stats.MessagesPurged = messages

	mailboxes, err := s.store.DeleteMailboxesExpiredBefore(now.Add(-s.cfg.Mailbox.MailboxRetention))
	if err != nil {
		return stats, fmt.Errorf("failed to purge mailboxes: %w", err)
	}
	stats.MailboxesPurged = mailboxes

	return stats, nil
}

// generateAddress 生成随机地址：8 字节十六进制本地部分 + 固定域名。
func (s *MailboxService) generateAddress() (string, error) {
	localPart, err := randomHex(8)
	if err != nil {
		return "", err
	}
	return localPart + "@" + s.cfg.Mailbox.Domain, nil
}

// generateToken 生成 24 字节十六进制访问令牌，创建后不再重发。
func generateToken() (string, error) {
	return randomHex(24)
}

func randomHex(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
