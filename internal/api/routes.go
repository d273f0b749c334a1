package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mautops/membership-gin/docs" // 导入生成的 docs 包
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/config"
	"github.com/mautops/membership-gin/internal/service"
	"github.com/mautops/membership-gin/internal/storage"
	"github.com/mautops/membership-gin/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Dependencies 路由依赖
type Dependencies struct {
	Config *config.Config
	Logger logrus.FieldLogger
	DB     *gorm.DB
	Redis  redis.UniversalClient // 未配置时为 nil
	Tokens *auth.TokenManager
	Hub    *websocket.Hub // 为 nil 时不注册 WebSocket 路由
	Files  storage.FileStore

	Auth          service.AuthService
	Registration  service.RegistrationService
	Review        service.ReviewService
	Query         service.QueryService
	Statistics    service.StatisticsService
	Notifications service.NotificationService
}

// SetupRoutes 配置路由
func SetupRoutes(deps *Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = GetLogger()
	}

	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(logger))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware())
	}
	if cfg.RateLimit.Enabled {
		router.Use(RateLimitMiddleware(newLimiter(cfg.RateLimit, deps.Redis), logger))
	}
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.Redis, deps.Hub)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由
	if deps.Hub != nil {
		router.GET("/ws/notifications", websocket.WebSocketHandler(deps.Hub, deps.Tokens, websocket.NewUpgrader(cfg.CORS.AllowedOrigins)))
	}

	// Swagger UI 路由
	if cfg.Server.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
			ginSwagger.URL("/swagger/doc.json"),
		))
	}

	authController := NewAuthController(deps.Registration, deps.Auth)
	registrationController := NewRegistrationController(deps.Registration, deps.Files, logger)
	adminController := NewAdminController(deps.Query, deps.Review, deps.Statistics, deps.Auth)
	notificationController := NewNotificationController(deps.Notifications)

	requireAuth := auth.AuthMiddleware(deps.Tokens)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		// 认证路由
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authController.Register)
			authGroup.POST("/login", authController.Login)
			authGroup.POST("/admin/login", authController.AdminLogin)
			authGroup.GET("/me", requireAuth, authController.Me)
		}

		// 注册流程路由,仅限会员
		registration := v1.Group("/registration", requireAuth, auth.RequireActorType(auth.ActorMember))
		{
			registration.POST("/steps/:step", registrationController.SaveStep)
			registration.GET("/progress", registrationController.Progress)
		}

		// 站内通知路由
		notifications := v1.Group("/notifications", requireAuth)
		{
			notifications.GET("", notificationController.List)
			notifications.POST("/:id/read", notificationController.MarkRead)
		}

		// 管理后台路由
		admin := v1.Group("/admin", requireAuth, auth.RequireActorType(auth.ActorAdmin))
		{
			view := RequireAction(service.ActionViewApplications)

			// 具体路径必须在 /:id 之前注册
			admin.GET("/applicants/pending", view, adminController.ListPending)
			admin.GET("/applicants", view, adminController.ListAll)
			admin.GET("/applicants/:id", view, adminController.Get)
			admin.GET("/applicants/:id/audit", view, adminController.Audit)
			admin.POST("/applicants/:id/approve", RequireAction(service.ActionApprove), adminController.Approve)
			admin.POST("/applicants/:id/reject", RequireAction(service.ActionReject), adminController.Reject)
			admin.GET("/statistics", view, adminController.Statistics)
			admin.POST("/admins", RequireAction(service.ActionManageAdmins), adminController.CreateAdmin)
		}
	}

	// 未匹配的路由返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}

// newLimiter 配置了 Redis 时使用共享计数,否则使用进程内限流
func newLimiter(cfg config.RateLimitConfig, redisClient redis.UniversalClient) Limiter {
	window := time.Duration(cfg.Window) * time.Second
	if redisClient != nil {
		return NewRedisLimiter(redisClient, cfg.Requests, window)
	}
	return NewLocalLimiter(cfg.Requests, window)
}
