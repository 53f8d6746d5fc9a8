package domain

import "time"

// Message 表示一封投递到临时邮箱的邮件。
//
// 邮件归属且仅归属于一个邮箱，随邮箱级联删除；入库后不再修改。
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID  string    `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	From       string    `json:"from" gorm:"column:from_email;type:varchar(150);not null"`
	Subject    string    `json:"subject" gorm:"type:varchar(255)"`
	Body       string    `json:"body" gorm:"type:text"`
	ReceivedAt time.Time `json:"receivedAt" gorm:"index"`
}
