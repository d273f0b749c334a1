package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/database"
	"github.com/mautops/membership-gin/internal/websocket"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db    *gorm.DB
	redis redis.UniversalClient // 未配置时为 nil
	hub   *websocket.Hub        // 未启用时为 nil
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, redisClient redis.UniversalClient, hub *websocket.Hub) *HealthController {
	return &HealthController{
		db:    db,
		redis: redisClient,
		hub:   hub,
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	// 检查数据库连接
	if err := database.CheckHealth(ctx.Request.Context(), c.db); err != nil {
		status = "unhealthy"
		checks["database"] = "unhealthy: " + err.Error()
	} else {
		checks["database"] = "healthy"
	}

	// 检查 Redis 连接
	if c.redis != nil {
		if err := c.checkRedis(ctx.Request.Context()); err != nil {
			status = "unhealthy"
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	}
	if c.hub != nil {
		body["websocket_clients"] = c.hub.GetClientCount()
	}
	ctx.JSON(httpStatus, body)
}

// checkRedis 检查 Redis 连接
func (c *HealthController) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
