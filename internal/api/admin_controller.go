package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/service"
	"github.com/mautops/membership-gin/internal/utils"
)

// 审核备注与拒绝原因的长度上限
const (
	maxNotesLength  = 2000
	maxReasonLength = 2000
)

// ApproveRequest 审核通过请求
type ApproveRequest struct {
	Notes string `json:"notes"`
}

// RejectRequest 审核拒绝请求
type RejectRequest struct {
	Reason string `json:"reason"`
}

// AdminController 管理后台控制器
type AdminController struct {
	queryService      service.QueryService
	reviewService     service.ReviewService
	statisticsService service.StatisticsService
	authService       service.AuthService
}

// NewAdminController 创建管理后台控制器
func NewAdminController(
	queryService service.QueryService,
	reviewService service.ReviewService,
	statisticsService service.StatisticsService,
	authService service.AuthService,
) *AdminController {
	return &AdminController{
		queryService:      queryService,
		reviewService:     reviewService,
		statisticsService: statisticsService,
		authService:       authService,
	}
}

// ListPending 待审核申请
// @Summary      待审核申请
// @Description  已提交且待审核的申请,按提交时间倒序
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Param        search query string false "按姓名、NIC、邮箱搜索"
// @Param        page query int false "页码,默认 1"
// @Param        pageSize query int false "每页数量,默认 10,最大 100"
// @Success      200  {object}  PaginatedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/applicants/pending [get]
// @Security     BearerAuth
func (c *AdminController) ListPending(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	result, err := c.queryService.ListPending(ctx.Request.Context(), &service.ListFilter{
		Search:   ctx.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, result.Items, NewPaginationInfo(result.Page, result.PageSize, result.Total))
}

// ListAll 全部申请,支持状态过滤和排序
// @Summary      全部申请
// @Description  支持状态过滤、搜索和排序
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Param        search query string false "按姓名、NIC、邮箱、会员编号搜索"
// @Param        status query string false "状态" Enums(pending, approved, rejected, active, inactive)
// @Param        sortBy query string false "排序字段"
// @Param        order query string false "排序方向" Enums(asc, desc)
// @Param        page query int false "页码,默认 1"
// @Param        pageSize query int false "每页数量,默认 10,最大 100"
// @Success      200  {object}  PaginatedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/applicants [get]
// @Security     BearerAuth
func (c *AdminController) ListAll(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	result, err := c.queryService.ListAll(ctx.Request.Context(), &service.ListFilter{
		Search:   ctx.Query("search"),
		Status:   ctx.Query("status"),
		SortBy:   ctx.Query("sortBy"),
		Order:    ctx.Query("order"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, result.Items, NewPaginationInfo(result.Page, result.PageSize, result.Total))
}

// Get 申请详情
// @Summary      申请详情
// @Description  根据 ID 获取申请详情
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/applicants/{id} [get]
// @Security     BearerAuth
func (c *AdminController) Get(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		HandleError(ctx, err)
		return
	}

	applicant, err := c.queryService.GetApplicant(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, applicant)
}

// Audit 申请的审计记录
// @Summary      审计记录
// @Description  申请的注册、提交和审核记录
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/applicants/{id}/audit [get]
// @Security     BearerAuth
func (c *AdminController) Audit(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		HandleError(ctx, err)
		return
	}

	logs, err := c.queryService.AuditTrail(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, logs)
}

// Approve 审核通过并分配会员编号
// @Summary      审核通过
// @Description  审核通过并分配会员编号,非 pending 状态返回 400
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Param        id path string true "申请 ID"
// @Param        request body ApproveRequest false "审核备注"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/applicants/{id}/approve [post]
// @Security     BearerAuth
func (c *AdminController) Approve(ctx *gin.Context) {
	actor, _ := actorFrom(ctx)
	id, err := pathID(ctx, "id")
	if err != nil {
		HandleError(ctx, err)
		return
	}

	var req ApproveRequest
	if err := bindJSON(ctx, &req, false); err != nil {
		HandleError(ctx, err)
		return
	}
	notes := ""
	if strings.TrimSpace(req.Notes) != "" {
		notes, err = utils.TrimAndValidate(req.Notes, maxNotesLength)
		if err != nil {
			HandleError(ctx, apperror.NewFieldValidation("notes", err.Error()))
			return
		}
	}

	applicant, err := c.reviewService.Approve(ctx.Request.Context(), id, actor, notes)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, applicant)
}

// Reject 审核拒绝,必须提供原因
// @Summary      审核拒绝
// @Description  审核拒绝,必须提供原因
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Param        id path string true "申请 ID"
// @Param        request body RejectRequest true "拒绝原因"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/applicants/{id}/reject [post]
// @Security     BearerAuth
func (c *AdminController) Reject(ctx *gin.Context) {
	actor, _ := actorFrom(ctx)
	id, err := pathID(ctx, "id")
	if err != nil {
		HandleError(ctx, err)
		return
	}

	var req RejectRequest
	if err := bindJSON(ctx, &req, false); err != nil {
		HandleError(ctx, err)
		return
	}
	// 空原因交给服务层报告
	reason, err := utils.TrimAndValidate(req.Reason, maxReasonLength)
	if err != nil && !errors.Is(err, utils.ErrEmptyString) {
		HandleError(ctx, apperror.NewFieldValidation("reason", err.Error()))
		return
	}

	applicant, err := c.reviewService.Reject(ctx.Request.Context(), id, actor, reason)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, applicant)
}

// Statistics 管理后台统计
// @Summary      统计
// @Description  会员总数、待审核、活跃、已拒绝和近 30 天注册数
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Success      200  {object}  Response
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/statistics [get]
// @Security     BearerAuth
func (c *AdminController) Statistics(ctx *gin.Context) {
	stats, err := c.statisticsService.GetStatistics(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, stats)
}

// CreateAdmin 创建管理员账号
// @Summary      创建管理员
// @Description  仅 super_admin 可创建管理员账号
// @Tags         管理后台
// @Accept       json
// @Produce      json
// @Param        request body service.CreateAdminInput true "管理员信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/admins [post]
// @Security     BearerAuth
func (c *AdminController) CreateAdmin(ctx *gin.Context) {
	actor, _ := actorFrom(ctx)

	var input service.CreateAdminInput
	if err := bindJSON(ctx, &input, true); err != nil {
		HandleError(ctx, err)
		return
	}

	admin, err := c.authService.CreateAdmin(ctx.Request.Context(), actor, &input)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, admin)
}
