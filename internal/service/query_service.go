package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"gorm.io/gorm"
)

// 分页默认值
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// QueryService 申请查询服务接口
type QueryService interface {
	ListPending(ctx context.Context, filter *ListFilter) (*ApplicantPage, error)
	ListAll(ctx context.Context, filter *ListFilter) (*ApplicantPage, error)
	GetApplicant(ctx context.Context, id string) (*model.ApplicantModel, error)
	AuditTrail(ctx context.Context, id string) ([]*model.AuditLogModel, error)
}

// ListFilter 申请列表查询过滤器
type ListFilter struct {
	Search   string
	Status   string // 仅 ListAll 使用
	SortBy   string // 仅 ListAll 使用
	Order    string
	Page     int
	PageSize int
}

// ApplicantPage 分页结果
type ApplicantPage struct {
	Items    []*model.ApplicantModel
	Total    int64
	Page     int
	PageSize int
}

// sortColumns 允许排序的字段,同时接受 API 风格和列名
var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"created_at":    "created_at",
	"submittedAt":   "submitted_at",
	"submitted_at":  "submitted_at",
	"reviewedAt":    "reviewed_at",
	"reviewed_at":   "reviewed_at",
	"fullName":      "full_name",
	"full_name":     "full_name",
	"status":        "status",
	"membershipId":  "membership_id",
	"membership_id": "membership_id",
}

var (
	pendingSearchColumns = []string{"full_name", "name_with_initials", "nic_number", "personal_email"}
	allSearchColumns     = []string{"full_name", "name_with_initials", "nic_number", "personal_email", "membership_id"}
)

// queryService 申请查询服务实现
type queryService struct {
	applicantRepo repository.ApplicantRepository
	auditRepo     repository.AuditLogRepository
}

// NewQueryService 创建申请查询服务
func NewQueryService(applicantRepo repository.ApplicantRepository, auditRepo repository.AuditLogRepository) QueryService {
	return &queryService{
		applicantRepo: applicantRepo,
		auditRepo:     auditRepo,
	}
}

// ListPending 待审核列表: 状态为 pending 且已提交,按提交时间倒序
func (s *queryService) ListPending(ctx context.Context, filter *ListFilter) (*ApplicantPage, error) {
	if filter == nil {
		filter = &ListFilter{}
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	items, total, err := s.applicantRepo.FindByFilter(ctx, &repository.ApplicantFilter{
		Statuses:      []string{model.StatusPending},
		SubmittedOnly: true,
		Search:        filter.Search,
		SearchColumns: pendingSearchColumns,
		SortBy:        "submitted_at",
		Order:         "desc",
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending applications: %w", err)
	}
	return &ApplicantPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListAll 全部申请列表,可按状态过滤
func (s *queryService) ListAll(ctx context.Context, filter *ListFilter) (*ApplicantPage, error) {
	if filter == nil {
		filter = &ListFilter{}
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	// 1. 校验过滤条件
	var statuses []string
	if filter.Status != "" {
		if !isStatus(filter.Status) {
			return nil, apperror.NewFieldValidation("status", fmt.Sprintf("invalid status %q", filter.Status))
		}
		statuses = []string{filter.Status}
	}

	sortBy := "created_at"
	if filter.SortBy != "" {
		column, ok := sortColumns[filter.SortBy]
		if !ok {
			return nil, apperror.NewFieldValidation("sortBy", fmt.Sprintf("invalid sort field %q", filter.SortBy))
		}
		sortBy = column
	}

	order := strings.ToLower(filter.Order)
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return nil, apperror.NewFieldValidation("order", "order must be asc or desc")
	}

	// 2. 查询
	items, total, err := s.applicantRepo.FindByFilter(ctx, &repository.ApplicantFilter{
		Statuses:      statuses,
		Search:        filter.Search,
		SearchColumns: allSearchColumns,
		SortBy:        sortBy,
		Order:         order,
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return &ApplicantPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetApplicant 获取申请详情
func (s *queryService) GetApplicant(ctx context.Context, id string) (*model.ApplicantModel, error) {
	applicant, err := s.applicantRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("member", id)
		}
		return nil, fmt.Errorf("failed to load applicant: %w", err)
	}
	return applicant, nil
}

// AuditTrail 获取申请的审计记录
func (s *queryService) AuditTrail(ctx context.Context, id string) ([]*model.AuditLogModel, error) {
	if _, err := s.GetApplicant(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.auditRepo.FindByResource(ctx, model.ResourceApplicant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	return logs, nil
}

// normalizePage 规范化分页参数
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func isStatus(status string) bool {
	switch status {
	case model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusActive, model.StatusSuspended:
		return true
	}
	return false
}
