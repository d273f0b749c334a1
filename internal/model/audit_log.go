package model

import (
	"errors"
	"time"
)

// 审计动作
const (
	AuditActionRegister    = "register"
	AuditActionSubmit      = "submit"
	AuditActionApprove     = "approve"
	AuditActionReject      = "reject"
	AuditActionCreateAdmin = "create_admin"
)

// 审计资源类型
const (
	ResourceApplicant = "applicant"
	ResourceAdmin     = "admin"
)

// AuditLogModel 审计日志数据模型
type AuditLogModel struct {
	ID           string                 `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ActorID      string                 `gorm:"type:varchar(64);not null;index" json:"actorId"`
	ActorType    string                 `gorm:"type:varchar(16);not null" json:"actorType"`
	Action       string                 `gorm:"type:varchar(64);not null;index" json:"action"`
	ResourceType string                 `gorm:"type:varchar(32);not null" json:"resourceType"`
	ResourceID   string                 `gorm:"type:varchar(64);not null;index" json:"resourceId"`
	RequestID    string                 `gorm:"type:varchar(64);index" json:"requestId,omitempty"`
	IP           string                 `gorm:"type:varchar(45)" json:"ip,omitempty"` // IPv4 或 IPv6
	UserAgent    string                 `gorm:"type:text" json:"userAgent,omitempty"`
	Details      map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"details,omitempty"`
	CreatedAt    time.Time              `gorm:"not null;index" json:"createdAt"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.ID == "" {
		return errors.New("audit log ID is required")
	}
	if alm.ActorID == "" {
		return errors.New("actor ID is required")
	}
	if alm.Action == "" {
		return errors.New("action is required")
	}
	if alm.ResourceType == "" {
		return errors.New("resource type is required")
	}
	if alm.ResourceID == "" {
		return errors.New("resource ID is required")
	}
	return nil
}
