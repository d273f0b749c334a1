package service

import (
	"context"

	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/model"
)

// 受控操作
const (
	ActionViewApplications = "view_applications"
	ActionApprove          = "approve"
	ActionReject           = "reject"
	ActionManageAdmins     = "manage_admins"
)

// policy 操作 -> 允许的管理员角色
var policy = map[string][]string{
	ActionViewApplications: {model.RoleReviewer, model.RoleAdmin, model.RoleSuperAdmin},
	ActionApprove:          {model.RoleAdmin, model.RoleSuperAdmin},
	ActionReject:           {model.RoleAdmin, model.RoleSuperAdmin},
	ActionManageAdmins:     {model.RoleSuperAdmin},
}

// Actor 操作发起人
type Actor struct {
	ID   string
	Type string // member, admin
	Role string
}

// ActorFromIdentity 由令牌身份构造操作人
func ActorFromIdentity(identity *auth.Identity) Actor {
	if identity == nil {
		return Actor{}
	}
	return Actor{ID: identity.ActorID, Type: identity.ActorType, Role: identity.Role}
}

// Authorize 检查操作人是否可执行 action,会员不能执行任何管理操作
func Authorize(actor Actor, action string) error {
	if actor.Type == auth.ActorAdmin {
		for _, role := range policy[action] {
			if actor.Role == role {
				return nil
			}
		}
	}
	return apperror.NewAuthorization(action)
}

type requestMetaKey struct{}

// RequestMeta 请求元信息,写入审计日志
type RequestMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestMeta 将请求元信息放入 context
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom 从 context 获取请求元信息
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
