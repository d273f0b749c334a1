// Package testutil 提供测试用的数据库与日志辅助函数
package testutil

import (
	"testing"

	"github.com/mautops/membership-gin/internal/config"
	"github.com/mautops/membership-gin/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

// NewDB 创建已迁移的 SQLite 内存数据库
// 连接池固定为单连接,并发测试中的事务因此串行执行
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewLogger 创建丢弃输出的日志记录器,返回 hook 以便断言日志
func NewLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}
