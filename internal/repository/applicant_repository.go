package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/utils"
	"gorm.io/gorm"
)

// ApplicantRepository 申请人仓储接口
type ApplicantRepository interface {
	Create(ctx context.Context, applicant *model.ApplicantModel) error
	FindByID(ctx context.Context, id string) (*model.ApplicantModel, error)
	FindByEmail(ctx context.Context, email string) (*model.ApplicantModel, error)
	ExistsByNIC(ctx context.Context, nic string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateFieldsIfPending(ctx context.Context, applicant *model.ApplicantModel, fields ...string) (int64, error)
	SubmitIfPending(ctx context.Context, applicant *model.ApplicantModel, fields ...string) (int64, error)
	TransitionFromPending(ctx context.Context, id string, updates map[string]interface{}) (int64, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	FindByFilter(ctx context.Context, filter *ApplicantFilter) ([]*model.ApplicantModel, int64, error)
	Count(ctx context.Context, filter *ApplicantFilter) (int64, error)
	MaxMembershipID(ctx context.Context, prefix string) (string, error)
}

// ApplicantFilter 申请人查询过滤器
type ApplicantFilter struct {
	Statuses      []string
	SubmittedOnly bool
	CreatedAfter  *time.Time
	Search        string
	SearchColumns []string
	SortBy        string
	Order         string
	Page          int
	PageSize      int
}

// applicantRepository 申请人仓储实现
type applicantRepository struct {
	db *gorm.DB
}

// NewApplicantRepository 创建申请人仓储
// db 可以是事务句柄,此时所有操作都在该事务内执行
func NewApplicantRepository(db *gorm.DB) ApplicantRepository {
	return &applicantRepository{db: db}
}

// Create 创建申请人
func (r *applicantRepository) Create(ctx context.Context, applicant *model.ApplicantModel) error {
	if err := applicant.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(applicant).Error
}

// FindByID 根据 ID 查找申请人
func (r *applicantRepository) FindByID(ctx context.Context, id string) (*model.ApplicantModel, error) {
	var applicant model.ApplicantModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&applicant).Error; err != nil {
		return nil, err
	}
	return &applicant, nil
}

// FindByEmail 根据个人邮箱查找申请人
func (r *applicantRepository) FindByEmail(ctx context.Context, email string) (*model.ApplicantModel, error) {
	var applicant model.ApplicantModel
	if err := r.db.WithContext(ctx).Where("personal_email = ?", strings.ToLower(email)).First(&applicant).Error; err != nil {
		return nil, err
	}
	return &applicant, nil
}

// ExistsByNIC 判断身份证号是否已注册
func (r *applicantRepository) ExistsByNIC(ctx context.Context, nic string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ApplicantModel{}).Where("nic_number = ?", nic).Count(&count).Error
	return count > 0, err
}

// ExistsByEmail 判断邮箱是否已注册
func (r *applicantRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ApplicantModel{}).
		Where("personal_email = ?", strings.ToLower(email)).
		Count(&count).Error
	return count > 0, err
}

// UpdateFieldsIfPending 仅在申请仍为 pending 时更新指定字段,返回受影响行数
func (r *applicantRepository) UpdateFieldsIfPending(ctx context.Context, applicant *model.ApplicantModel, fields ...string) (int64, error) {
	result := r.db.WithContext(ctx).Model(applicant).
		Where("status = ?", model.StatusPending).
		Select(fields).
		Updates(applicant)
	return result.RowsAffected, result.Error
}

// SubmitIfPending 提交申请,只有 pending 且尚未提交的记录会被修改
// 并发的重复提交由这条写入拒绝,返回 0
func (r *applicantRepository) SubmitIfPending(ctx context.Context, applicant *model.ApplicantModel, fields ...string) (int64, error) {
	result := r.db.WithContext(ctx).Model(applicant).
		Where("status = ? AND submitted_at IS NULL", model.StatusPending).
		Select(fields).
		Updates(applicant)
	return result.RowsAffected, result.Error
}

// TransitionFromPending 条件更新状态,只有当前状态为 pending 的记录会被修改
// 返回 0 表示记录已被其他审核人处理
func (r *applicantRepository) TransitionFromPending(ctx context.Context, id string, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.ApplicantModel{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// UpdateLastLogin 更新最后登录时间
func (r *applicantRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ApplicantModel{}).
		Where("id = ?", id).
		UpdateColumn("last_login", at).Error
}

// FindByFilter 根据过滤器分页查询申请人
func (r *applicantRepository) FindByFilter(ctx context.Context, filter *ApplicantFilter) ([]*model.ApplicantModel, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&model.ApplicantModel{}), filter)

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count applicants: %w", err)
	}

	// 应用排序(验证排序字段,防止 SQL 注入)
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if err := utils.ValidateSortField(sortBy); err != nil {
		return nil, 0, fmt.Errorf("invalid sort field: %w", err)
	}
	order := filter.Order
	if order == "" {
		order = "desc"
	}
	if err := utils.ValidateSortOrder(order); err != nil {
		return nil, 0, fmt.Errorf("invalid sort order: %w", err)
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, strings.ToUpper(order))).Order("id ASC")

	// 应用分页
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var applicants []*model.ApplicantModel
	if err := query.Find(&applicants).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query applicants: %w", err)
	}
	return applicants, total, nil
}

// Count 统计满足过滤条件的申请人数量,忽略分页和排序
func (r *applicantRepository) Count(ctx context.Context, filter *ApplicantFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&model.ApplicantModel{}), filter).Count(&count).Error
	return count, err
}

// MaxMembershipID 返回以 prefix 开头的最大会员编号,不存在时返回空字符串
func (r *applicantRepository) MaxMembershipID(ctx context.Context, prefix string) (string, error) {
	var max sql.NullString
	err := r.db.WithContext(ctx).Model(&model.ApplicantModel{}).
		Select("MAX(membership_id)").
		Where("membership_id LIKE ? ESCAPE '\\'", utils.EscapeLike(prefix)+"%").
		Row().
		Scan(&max)
	if err != nil {
		return "", err
	}
	return max.String, nil
}

// applyFilter 应用过滤条件
func (r *applicantRepository) applyFilter(query *gorm.DB, filter *ApplicantFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if len(filter.Statuses) == 1 {
		query = query.Where("status = ?", filter.Statuses[0])
	} else if len(filter.Statuses) > 1 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.SubmittedOnly {
		query = query.Where("submitted_at IS NOT NULL")
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}

	search := strings.TrimSpace(filter.Search)
	if search != "" && len(filter.SearchColumns) > 0 {
		pattern := "%" + utils.EscapeLike(strings.ToLower(search)) + "%"
		conditions := make([]string, 0, len(filter.SearchColumns))
		args := make([]interface{}, 0, len(filter.SearchColumns))
		for _, column := range filter.SearchColumns {
			// 列名来自调用方的固定列表,不接受用户输入
			if utils.ValidateSortField(column) != nil {
				continue
			}
			conditions = append(conditions, fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", column))
			args = append(args, pattern)
		}
		if len(conditions) > 0 {
			query = query.Where("("+strings.Join(conditions, " OR ")+")", args...)
		}
	}
	return query
}
