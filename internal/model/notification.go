package model

import (
	"errors"
	"time"
)

// 通知接收方类型
const (
	RecipientMember = "member"
	RecipientAdmin  = "admin"
)

// 通知类型
const (
	NotificationRegistrationSubmitted = "registration_submitted"
	NotificationApplicationApproved   = "application_approved"
	NotificationApplicationRejected   = "application_rejected"
	NotificationProfileUpdated        = "profile_updated"
	NotificationDocumentUploaded      = "document_uploaded"
)

// NotificationModel 站内通知数据模型
// RecipientID 为空且 RecipientType 为 admin 时表示发给所有管理员
type NotificationModel struct {
	ID            string                 `gorm:"primaryKey;type:varchar(64)" json:"id"`
	RecipientID   string                 `gorm:"type:varchar(64);index" json:"recipientId,omitempty"`
	RecipientType string                 `gorm:"type:varchar(16);not null" json:"recipientType"`
	Type          string                 `gorm:"type:varchar(32);not null;index" json:"type"`
	Title         string                 `gorm:"type:varchar(255);not null" json:"title"`
	Message       string                 `gorm:"type:text;not null" json:"message"`
	Metadata      map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`
	IsRead        bool                   `gorm:"not null;default:false" json:"isRead"`
	ReadAt        *time.Time             `json:"readAt,omitempty"`
	CreatedAt     time.Time              `gorm:"not null;index" json:"createdAt"`
}

// TableName 指定表名
func (NotificationModel) TableName() string {
	return "notifications"
}

// Validate 验证通知模型
func (m *NotificationModel) Validate() error {
	if m.ID == "" {
		return errors.New("notification ID is required")
	}
	if m.RecipientType != RecipientMember && m.RecipientType != RecipientAdmin {
		return errors.New("invalid recipient type")
	}
	if m.RecipientType == RecipientMember && m.RecipientID == "" {
		return errors.New("member notification requires a recipient")
	}
	if m.Type == "" {
		return errors.New("notification type is required")
	}
	if m.Title == "" {
		return errors.New("notification title is required")
	}
	return nil
}
