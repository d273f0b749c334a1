package model

import (
	"errors"
	"time"
)

// 管理员角色
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleReviewer   = "reviewer"
)

// AdminModel 管理员数据模型
type AdminModel struct {
	ID        string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username  string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"`
	Email     string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password  string     `gorm:"type:varchar(255);not null" json:"-"`
	Role      string     `gorm:"type:varchar(16);not null;default:'reviewer'" json:"role"`
	IsActive  bool       `gorm:"not null;default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"not null" json:"updatedAt"`
}

// TableName 指定表名
func (AdminModel) TableName() string {
	return "admins"
}

// Validate 验证管理员模型
func (m *AdminModel) Validate() error {
	if m.ID == "" {
		return errors.New("admin ID is required")
	}
	if m.Username == "" {
		return errors.New("username is required")
	}
	if m.Email == "" {
		return errors.New("email is required")
	}
	if !IsAdminRole(m.Role) {
		return errors.New("invalid admin role")
	}
	return nil
}

// IsAdminRole 判断是否为合法的管理员角色
func IsAdminRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleReviewer:
		return true
	}
	return false
}
