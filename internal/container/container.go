package container

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/config"
	"github.com/mautops/membership-gin/internal/database"
	"github.com/mautops/membership-gin/internal/mail"
	"github.com/mautops/membership-gin/internal/metrics"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/mautops/membership-gin/internal/service"
	"github.com/mautops/membership-gin/internal/storage"
	"github.com/mautops/membership-gin/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// metricsInterval 状态指标采集间隔
const metricsInterval = 30 * time.Second

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、后台 worker 等
type Container struct {
	db         *gorm.DB
	redis      redis.UniversalClient
	tokens     *auth.TokenManager
	files      storage.FileStore
	sender     mail.Sender
	dispatcher *mail.Dispatcher
	hub        *websocket.Hub
	collector  *metrics.Collector

	authService         service.AuthService
	registrationService service.RegistrationService
	reviewService       service.ReviewService
	queryService        service.QueryService
	statisticsService   service.StatisticsService
	notificationService service.NotificationService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件,后台 worker 由 Start 启动
func NewContainer(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Container, error) {
	// 1. 初始化数据库(带重试机制)
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Container{db: db}

	// 2. 初始化 Redis,未配置地址时不启用
	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// 3. 初始化令牌和文件存储
	c.tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Hour)
	c.files, err = storage.NewFileStore(ctx, cfg.Upload)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	// 4. 初始化邮件队列
	c.sender, err = mail.NewSender(cfg.Mail, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize mail sender: %w", err)
	}
	c.dispatcher = mail.NewDispatcher(repository.NewMailEventRepository(db), c.sender, mail.DispatcherConfig{
		Workers:    cfg.Mail.Workers,
		QueueSize:  cfg.Mail.QueueSize,
		MaxRetries: cfg.Mail.MaxRetries,
	}, logger.WithField("component", "mail"))

	// 5. 初始化 WebSocket Hub 和通知器
	c.hub = websocket.NewHub(logger.WithField("component", "websocket"))
	notificationRepo := repository.NewNotificationRepository(db)
	notifier := service.NewNotifier(notificationRepo, c.dispatcher, mail.NewTemplates(cfg.Membership.IDPrefix), c.hub, logger)

	// 6. 初始化服务
	applicantRepo := repository.NewApplicantRepository(db)
	c.authService = service.NewAuthService(db, c.tokens, cfg.Auth.BcryptCost, logger)
	c.registrationService = service.NewRegistrationService(db, c.tokens, cfg.Auth.BcryptCost, notifier, logger)
	c.reviewService = service.NewReviewService(db, service.NewMembershipIDGenerator(cfg.Membership.IDPrefix), notifier, logger)
	c.queryService = service.NewQueryService(applicantRepo, repository.NewAuditLogRepository(db))
	c.statisticsService = service.NewStatisticsService(applicantRepo)
	c.notificationService = service.NewNotificationService(notificationRepo)

	// 7. 初始化指标收集器
	c.collector = metrics.NewCollector(db, metricsInterval)

	return c, nil
}

// Start 启动后台 worker,并恢复上次未投递的邮件
func (c *Container) Start(ctx context.Context) (int, error) {
	go c.hub.Run()
	c.collector.Start()
	return c.dispatcher.ResumePending(ctx)
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Redis 获取 Redis 客户端,未配置时为 nil
func (c *Container) Redis() redis.UniversalClient {
	return c.redis
}

// Tokens 获取令牌管理器
func (c *Container) Tokens() *auth.TokenManager {
	return c.tokens
}

// Files 获取文件存储
func (c *Container) Files() storage.FileStore {
	return c.files
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// AuthService 获取认证服务
func (c *Container) AuthService() service.AuthService {
	return c.authService
}

// RegistrationService 获取注册流程服务
func (c *Container) RegistrationService() service.RegistrationService {
	return c.registrationService
}

// ReviewService 获取审核服务
func (c *Container) ReviewService() service.ReviewService {
	return c.reviewService
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.queryService
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statisticsService
}

// NotificationService 获取通知收件箱服务
func (c *Container) NotificationService() service.NotificationService {
	return c.notificationService
}

// Close 关闭容器,按依赖逆序清理资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
	// 先停止 worker,再关闭 sender
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}
	if closer, ok := c.sender.(io.Closer); ok {
		_ = closer.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	return database.Close(c.db)
}
