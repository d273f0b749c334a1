package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/service"
)

// RequireAction 检查调用方是否可执行 action,须在 AuthMiddleware 之后使用
func RequireAction(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			HandleError(c, apperror.NewAuthentication("authentication required"))
			return
		}
		if err := service.Authorize(actor, action); err != nil {
			HandleError(c, err)
			return
		}
		c.Next()
	}
}

// actorFrom 由上下文中的令牌身份构造操作人
func actorFrom(c *gin.Context) (service.Actor, bool) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.ActorFromIdentity(identity), true
}
