package domain

import "time"

// IPBlock 表示一个来源地址的封禁记录。
//
// 每个 IP 至多一条记录，重复封禁按 IP 原地更新（upsert）。
// BlockedUntil 为 nil 表示永久封禁；已过期的记录保留在表中，
// 判定时视为未封禁，不做隐式清理。
type IPBlock struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	IPAddress    string     `json:"ipAddress" gorm:"type:varchar(45);uniqueIndex;not null"`
	Reason       string     `json:"reason" gorm:"type:varchar(255);not null"`
	BlockedUntil *time.Time `json:"blockedUntil,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Active 判断封禁在给定时间点是否仍然生效。
func (b *IPBlock) Active(now time.Time) bool {
	return b.BlockedUntil == nil || b.BlockedUntil.After(now)
}
