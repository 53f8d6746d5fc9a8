package domain

import (
	"time"
)

// MailboxStatus 邮箱生命周期状态。
type MailboxStatus string

const (
	// MailboxActive 邮箱处于有效期内
	MailboxActive MailboxStatus = "active"
	// MailboxExpired 邮箱已过期，等待清理
	MailboxExpired MailboxStatus = "expired"
)

// Mailbox 表示临时邮箱的业务实体。
//
// 状态只允许单向迁移 active -> expired；过期后记录保留一段时间供查询，
// 最终由后台清理任务硬删除。ExpiresAt 在创建后不可变。
type Mailbox struct {
	ID             string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address        string        `json:"address" gorm:"type:varchar(150);uniqueIndex;not null"`
	Token          string        `json:"token" gorm:"type:varchar(64);not null"`
	SourceIP       string        `json:"-" gorm:"column:source_ip;type:varchar(45);index;not null"`
	CreatedAt      time.Time     `json:"createdAt" gorm:"index"`
	ExpiresAt      time.Time     `json:"expiresAt" gorm:"index;not null"`
	LastAccessedAt time.Time     `json:"lastAccessedAt"`
	Status         MailboxStatus `json:"status" gorm:"type:varchar(16);default:active;index"`
}

// Expired 判断邮箱在给定时间点是否已超过有效期。
func (m *Mailbox) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// RemainingSeconds 返回距离过期的剩余秒数，最小为 0。
func (m *Mailbox) RemainingSeconds(now time.Time) int64 {
	remaining := m.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining.Seconds())
}
