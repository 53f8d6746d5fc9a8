package domain

import "time"

// AttackAction 攻击日志的动作类型。
type AttackAction string

const (
	// ActionPatternDetected 请求命中可疑特征
	ActionPatternDetected AttackAction = "pattern-detected"
	// ActionRateLimit 请求触发限流
	ActionRateLimit AttackAction = "rate-limit"
	// ActionBlockedIP 请求来自封禁名单中的 IP
	ActionBlockedIP AttackAction = "blocked-ip"
)

// AttackLog 表示一条只追加的安全审计记录。
//
// 本核心只写不改：记录一旦写入不再更新或删除。
type AttackLog struct {
	ID        string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	IPAddress string       `json:"ipAddress" gorm:"type:varchar(45);index;not null"`
	UserAgent string       `json:"userAgent" gorm:"type:varchar(255)"`
	Action    AttackAction `json:"action" gorm:"type:varchar(100);index;not null"`
	Detail    string       `json:"detail" gorm:"type:text"`
	CreatedAt time.Time    `json:"createdAt" gorm:"index"`
}
