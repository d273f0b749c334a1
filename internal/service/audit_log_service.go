package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, actor Actor, action string, resourceType string, resourceID string, details map[string]interface{}) error
	ListForResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
// 传入事务内创建的仓储时,审计记录与业务写入一起提交或回滚
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	actor Actor,
	action string,
	resourceType string,
	resourceID string,
	details map[string]interface{},
) error {
	// 获取请求信息
	meta := RequestMetaFrom(ctx)

	// 创建审计日志
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		ActorID:      actor.ID,
		ActorType:    actor.Type,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    meta.RequestID,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
		Details:      details,
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Save(ctx, auditLog)
}

// ListForResource 查询资源的审计记录,按时间倒序
func (s *auditLogService) ListForResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(ctx, resourceType, resourceID)
}
