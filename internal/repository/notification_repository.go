package repository

import (
	"context"
	"time"

	"github.com/mautops/membership-gin/internal/model"
	"gorm.io/gorm"
)

// NotificationRepository 站内通知仓储接口
type NotificationRepository interface {
	Create(ctx context.Context, notification *model.NotificationModel) error
	FindForRecipient(ctx context.Context, filter *NotificationFilter) ([]*model.NotificationModel, int64, error)
	MarkRead(ctx context.Context, id string, recipientType string, recipientID string, at time.Time) (int64, error)
}

// NotificationFilter 通知查询过滤器
type NotificationFilter struct {
	RecipientType string
	RecipientID   string
	UnreadOnly    bool
	Page          int
	PageSize      int
}

// notificationRepository 站内通知仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建站内通知仓储
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create 创建通知
func (r *notificationRepository) Create(ctx context.Context, notification *model.NotificationModel) error {
	if err := notification.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

// FindForRecipient 查询接收方可见的通知,管理员同时可见广播通知
func (r *notificationRepository) FindForRecipient(ctx context.Context, filter *NotificationFilter) ([]*model.NotificationModel, int64, error) {
	query := r.recipientScope(r.db.WithContext(ctx).Model(&model.NotificationModel{}), filter.RecipientType, filter.RecipientID)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id ASC")
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var notifications []*model.NotificationModel
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// MarkRead 将接收方可见的通知标记为已读
func (r *notificationRepository) MarkRead(ctx context.Context, id string, recipientType string, recipientID string, at time.Time) (int64, error) {
	result := r.recipientScope(r.db.WithContext(ctx).Model(&model.NotificationModel{}), recipientType, recipientID).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return result.RowsAffected, result.Error
}

// recipientScope 限定接收方
func (r *notificationRepository) recipientScope(query *gorm.DB, recipientType, recipientID string) *gorm.DB {
	if recipientType == model.RecipientAdmin {
		return query.Where("recipient_type = ? AND (recipient_id = ? OR recipient_id = '' OR recipient_id IS NULL)",
			model.RecipientAdmin, recipientID)
	}
	return query.Where("recipient_type = ? AND recipient_id = ?", recipientType, recipientID)
}
