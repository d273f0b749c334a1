package repository

import (
	"context"

	"github.com/mautops/membership-gin/internal/model"
	"gorm.io/gorm"
)

// MailEventRepository 邮件事件仓储接口
type MailEventRepository interface {
	Save(ctx context.Context, event *model.MailEventModel) error
	FindByID(ctx context.Context, id string) (*model.MailEventModel, error)
	FindPending(ctx context.Context) ([]*model.MailEventModel, error)
}

// mailEventRepository 邮件事件仓储实现
type mailEventRepository struct {
	db *gorm.DB
}

// NewMailEventRepository 创建邮件事件仓储
func NewMailEventRepository(db *gorm.DB) MailEventRepository {
	return &mailEventRepository{db: db}
}

// Save 保存邮件事件
func (r *mailEventRepository) Save(ctx context.Context, event *model.MailEventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(event).Error
}

// FindByID 根据 ID 查找邮件事件
func (r *mailEventRepository) FindByID(ctx context.Context, id string) (*model.MailEventModel, error) {
	var event model.MailEventModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// FindPending 查找待发送的邮件事件
func (r *mailEventRepository) FindPending(ctx context.Context) ([]*model.MailEventModel, error) {
	var events []*model.MailEventModel
	err := r.db.WithContext(ctx).Where("status = ?", model.MailStatusPending).Order("created_at ASC").Find(&events).Error
	return events, err
}
