package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/service"
)

// NotificationController 站内通知控制器
type NotificationController struct {
	notificationService service.NotificationService
}

// NewNotificationController 创建站内通知控制器
func NewNotificationController(notificationService service.NotificationService) *NotificationController {
	return &NotificationController{
		notificationService: notificationService,
	}
}

// List 当前调用方的通知,unread=true 时只返回未读
// @Summary      通知列表
// @Description  当前调用方的站内通知,管理员同时看到管理员广播
// @Tags         通知
// @Accept       json
// @Produce      json
// @Param        unread query bool false "只返回未读"
// @Param        page query int false "页码,默认 1"
// @Param        pageSize query int false "每页数量,默认 10,最大 100"
// @Success      200  {object}  PaginatedResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /notifications [get]
// @Security     BearerAuth
func (c *NotificationController) List(ctx *gin.Context) {
	actor, _ := actorFrom(ctx)
	page, pageSize := pageParams(ctx)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > service.MaxPageSize {
		pageSize = service.DefaultPageSize
	}

	items, total, err := c.notificationService.List(ctx.Request.Context(), actor, ctx.Query("unread") == "true", page, pageSize)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, items, NewPaginationInfo(page, pageSize, total))
}

// MarkRead 标记通知已读
// @Summary      标记已读
// @Description  标记一条通知为已读
// @Tags         通知
// @Accept       json
// @Produce      json
// @Param        id path string true "通知 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /notifications/{id}/read [post]
// @Security     BearerAuth
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	actor, _ := actorFrom(ctx)
	id, err := pathID(ctx, "id")
	if err != nil {
		HandleError(ctx, err)
		return
	}

	if err := c.notificationService.MarkRead(ctx.Request.Context(), actor, id); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id, "isRead": true})
}
