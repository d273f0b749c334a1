package repository

import (
	"context"
	"strings"
	"time"

	"github.com/mautops/membership-gin/internal/model"
	"gorm.io/gorm"
)

// AdminRepository 管理员仓储接口
type AdminRepository interface {
	Create(ctx context.Context, admin *model.AdminModel) error
	FindByID(ctx context.Context, id string) (*model.AdminModel, error)
	FindByUsernameOrEmail(ctx context.Context, login string) (*model.AdminModel, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// adminRepository 管理员仓储实现
type adminRepository struct {
	db *gorm.DB
}

// NewAdminRepository 创建管理员仓储
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

// Create 创建管理员
func (r *adminRepository) Create(ctx context.Context, admin *model.AdminModel) error {
	if err := admin.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(admin).Error
}

// FindByID 根据 ID 查找管理员
func (r *adminRepository) FindByID(ctx context.Context, id string) (*model.AdminModel, error) {
	var admin model.AdminModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// FindByUsernameOrEmail 根据用户名或邮箱查找管理员
func (r *adminRepository) FindByUsernameOrEmail(ctx context.Context, login string) (*model.AdminModel, error) {
	var admin model.AdminModel
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// Exists 判断用户名或邮箱是否已被占用
func (r *adminRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AdminModel{}).
		Where("username = ? OR email = ?", username, strings.ToLower(email)).
		Count(&count).Error
	return count > 0, err
}

// UpdateLastLogin 更新最后登录时间
func (r *adminRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.AdminModel{}).
		Where("id = ?", id).
		UpdateColumn("last_login", at).Error
}
