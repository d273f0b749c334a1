package model

import (
	"errors"
	"time"
)

// 邮件事件状态
const (
	MailStatusPending = "pending"
	MailStatusSuccess = "success"
	MailStatusFailed  = "failed"
)

// MailEventModel 待发送邮件数据模型
type MailEventModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	Recipient  string    `gorm:"type:varchar(255);not null;index"`
	Subject    string    `gorm:"type:varchar(255);not null"`
	Body       string    `gorm:"type:text;not null"`
	Status     string    `gorm:"type:varchar(32);not null;default:'pending';index"` // pending/success/failed
	RetryCount int       `gorm:"type:int;default:0"`
	LastError  string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (MailEventModel) TableName() string {
	return "mail_events"
}

// Validate 验证邮件事件模型
func (m *MailEventModel) Validate() error {
	if m.ID == "" {
		return errors.New("mail event ID is required")
	}
	if m.Recipient == "" {
		return errors.New("recipient is required")
	}
	if m.Subject == "" {
		return errors.New("subject is required")
	}
	if m.Status == "" {
		m.Status = MailStatusPending
	}
	return nil
}
