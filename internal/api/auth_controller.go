package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/service"
	"github.com/mautops/membership-gin/internal/utils"
)

// LoginRequest 会员登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLoginRequest 管理员登录请求,login 可以是用户名或邮箱
type AdminLoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// AuthController 认证控制器
type AuthController struct {
	registrationService service.RegistrationService
	authService         service.AuthService
}

// NewAuthController 创建认证控制器
func NewAuthController(registrationService service.RegistrationService, authService service.AuthService) *AuthController {
	return &AuthController{
		registrationService: registrationService,
		authService:         authService,
	}
}

// Register 注册第 1 步,创建申请并返回令牌
// @Summary      注册(第 1 步)
// @Description  创建会员申请并返回令牌,NIC 或邮箱重复时返回 400
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request body service.RegisterInput true "个人信息和密码"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var input service.RegisterInput
	if err := bindJSON(ctx, &input, true); err != nil {
		HandleError(ctx, err)
		return
	}

	result, err := c.registrationService.Register(ctx.Request.Context(), &input)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, result)
}

// Login 会员登录
// @Summary      会员登录
// @Description  邮箱和密码登录,返回令牌
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "登录信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := bindJSON(ctx, &req, true); err != nil {
		HandleError(ctx, err)
		return
	}

	result, err := c.authService.LoginMember(ctx.Request.Context(), utils.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// AdminLogin 管理员登录
// @Summary      管理员登录
// @Description  用户名或邮箱登录,停用账号返回 403
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request body AdminLoginRequest true "登录信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/admin/login [post]
func (c *AuthController) AdminLogin(ctx *gin.Context) {
	var req AdminLoginRequest
	if err := bindJSON(ctx, &req, true); err != nil {
		HandleError(ctx, err)
		return
	}

	result, err := c.authService.LoginAdmin(ctx.Request.Context(), req.Login, req.Password)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// Me 当前调用方资料
// @Summary      当前调用方资料
// @Description  返回会员申请或管理员资料
// @Tags         认证
// @Accept       json
// @Produce      json
// @Success      200  {object}  Response
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/me [get]
// @Security     BearerAuth
func (c *AuthController) Me(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		HandleError(ctx, apperror.NewAuthentication("authentication required"))
		return
	}

	profile, err := c.authService.Me(ctx.Request.Context(), actor)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, profile)
}

// bindJSON 解析 JSON 请求体,required 为 false 时允许空请求体
// 字段规则由服务层校验
func bindJSON(ctx *gin.Context, dst interface{}, required bool) error {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		if !required && errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.NewValidation("invalid request body")
	}
	return nil
}
