package storage

import (
	"errors"
	"time"

	"kezmail/backend/internal/domain"
)

var (
	// ErrMailboxNotFound 邮箱不存在错误
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrQuotaExceeded 当日创建配额已用尽错误
	ErrQuotaExceeded = errors.New("daily mailbox quota exceeded")
	// ErrAddressTaken 邮箱地址已被占用错误（随机地址碰撞）
	ErrAddressTaken = errors.New("mailbox address already taken")
	// ErrIPBlockNotFound 封禁记录不存在错误
	ErrIPBlockNotFound = errors.New("ip block not found")
)

// MailboxRepository 定义临时邮箱数据存取操作。
//
// CreateMailbox 必须把"当日计数 + 插入"作为一个原子动作执行：
// 同一来源的并发请求在只剩一个配额时不允许同时成功。
type MailboxRepository interface {
	// CreateMailbox 在配额内创建邮箱，返回创建前该来源当日已用数量。
	// 配额用尽返回 ErrQuotaExceeded，地址碰撞返回 ErrAddressTaken。
	CreateMailbox(mailbox *domain.Mailbox, dailyLimit int) (int, error)
	GetMailboxByAddress(address string) (*domain.Mailbox, error)
	// MarkMailboxExpired 条件更新 active -> expired，返回是否更新了记录。
	MarkMailboxExpired(id string) (bool, error)
	TouchMailbox(id string, at time.Time) error
	CountTodayBySource(sourceIP string, now time.Time) (int, error)
	ListTodayBySource(sourceIP string, now time.Time) ([]domain.Mailbox, error)

	// 后台清理：三步都只触碰仍满足前置状态的行，可安全重入。
	MarkExpiredMailboxes(now time.Time) (int64, error)
	DeleteMessagesExpiredBefore(cutoff time.Time) (int64, error)
	DeleteMailboxesExpiredBefore(cutoff time.Time) (int64, error)
}

// MessageRepository 定义邮件数据存取操作。
type MessageRepository interface {
	SaveMessage(message *domain.Message) error
	ListMessages(mailboxID string) ([]domain.Message, error)
}

// IPBlockRepository 定义封禁名单数据存取操作。
type IPBlockRepository interface {
	// UpsertIPBlock 按 IP 插入或更新封禁记录，不产生重复行。
	UpsertIPBlock(block *domain.IPBlock) error
	GetIPBlock(ipAddress string) (*domain.IPBlock, error)
	ListIPBlocks() ([]domain.IPBlock, error)
	DeleteIPBlock(id string) error
}

// AttackLogRepository 定义攻击审计日志存取操作。
type AttackLogRepository interface {
	SaveAttackLog(entry *domain.AttackLog) error
	ListRecentAttackLogs(limit int) ([]domain.AttackLog, error)
}

// Store 定义完整的存储接口。
type Store interface {
	MailboxRepository
	MessageRepository
	IPBlockRepository
	AttackLogRepository

	Close() error
	Health() error
}
