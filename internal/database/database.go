package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/membership-gin/internal/config"
	"github.com/mautops/membership-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置,未配置的项使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pool := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = 3600
	}
	if pool.ConnMaxIdleTime == 0 {
		pool.ConnMaxIdleTime = 600
	}
	return pool
}

// GormConfig 返回统一的 GORM 配置
// 开启 TranslateError 以便唯一约束冲突转换为 gorm.ErrDuplicatedKey
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres", "":
		dialector = postgres.Open(BuildDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := GetPoolConfig(cfg)
	// SQLite 只使用单个连接且不过期,避免 database is locked 以及内存库丢失
	if cfg.Driver == "sqlite" {
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
		pool.ConnMaxLifetime = 0
		pool.ConnMaxIdleTime = 0
	}

	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb,手动建表使用 TEXT
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		if err := db.AutoMigrate(
			&model.ApplicantModel{},
			&model.AdminModel{},
			&model.NotificationModel{},
			&model.MembershipSequenceModel{},
			&model.MailEventModel{},
			&model.AuditLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

var sqliteTables = []struct {
	name string
	ddl  string
}{
	{"applicants", `
		CREATE TABLE IF NOT EXISTS applicants (
			id VARCHAR(64) PRIMARY KEY,
			membership_id VARCHAR(32),
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			password VARCHAR(255) NOT NULL,
			name_with_initials VARCHAR(255) NOT NULL,
			full_name VARCHAR(255) NOT NULL,
			date_of_birth VARCHAR(10) NOT NULL,
			nic_number VARCHAR(16) NOT NULL,
			nationality VARCHAR(64) NOT NULL,
			gender VARCHAR(8) NOT NULL,
			district VARCHAR(64) NOT NULL,
			residential_address TEXT NOT NULL,
			mobile_number VARCHAR(32) NOT NULL,
			personal_email VARCHAR(255) NOT NULL,
			office_details TEXT,
			work_experience TEXT,
			education TEXT,
			certifications TEXT,
			referees TEXT,
			documents TEXT,
			declaration TEXT,
			current_step INTEGER NOT NULL DEFAULT 1,
			completed_steps TEXT,
			registration_progress REAL NOT NULL DEFAULT 0,
			submitted_at DATETIME,
			reviewed_by VARCHAR(64),
			reviewed_at DATETIME,
			review_notes TEXT,
			last_login DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`},
	{"admins", `
		CREATE TABLE IF NOT EXISTS admins (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'reviewer',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			last_login DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`},
	{"notifications", `
		CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR(64) PRIMARY KEY,
			recipient_id VARCHAR(64),
			recipient_type VARCHAR(16) NOT NULL,
			type VARCHAR(32) NOT NULL,
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT,
			is_read BOOLEAN NOT NULL DEFAULT 0,
			read_at DATETIME,
			created_at DATETIME NOT NULL
		)`},
	{"membership_sequences", `
		CREATE TABLE IF NOT EXISTS membership_sequences (
			prefix VARCHAR(16) NOT NULL,
			year INTEGER NOT NULL,
			last_value INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (prefix, year)
		)`},
	{"mail_events", `
		CREATE TABLE IF NOT EXISTS mail_events (
			id VARCHAR(64) PRIMARY KEY,
			recipient VARCHAR(255) NOT NULL,
			subject VARCHAR(255) NOT NULL,
			body TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			retry_count INTEGER DEFAULT 0,
			last_error TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`},
	{"audit_logs", `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			actor_id VARCHAR(64) NOT NULL,
			actor_type VARCHAR(16) NOT NULL,
			action VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			resource_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			user_agent TEXT,
			details TEXT,
			created_at DATETIME NOT NULL
		)`},
}

// createSQLiteTables 为 SQLite 手动创建表
func createSQLiteTables(db *gorm.DB) error {
	for _, table := range sqliteTables {
		if err := db.Exec(table.ddl).Error; err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}
	return nil
}

var indexes = []struct {
	name string
	ddl  string
}{
	{"idx_applicants_membership_id", "CREATE UNIQUE INDEX IF NOT EXISTS idx_applicants_membership_id ON applicants(membership_id)"},
	{"idx_applicants_nic_number", "CREATE UNIQUE INDEX IF NOT EXISTS idx_applicants_nic_number ON applicants(nic_number)"},
	{"idx_applicants_personal_email", "CREATE UNIQUE INDEX IF NOT EXISTS idx_applicants_personal_email ON applicants(personal_email)"},
	{"idx_applicants_status_submitted", "CREATE INDEX IF NOT EXISTS idx_applicants_status_submitted ON applicants(status, submitted_at)"},
	{"idx_applicants_created_at", "CREATE INDEX IF NOT EXISTS idx_applicants_created_at ON applicants(created_at)"},
	{"idx_admins_username", "CREATE UNIQUE INDEX IF NOT EXISTS idx_admins_username ON admins(username)"},
	{"idx_admins_email", "CREATE UNIQUE INDEX IF NOT EXISTS idx_admins_email ON admins(email)"},
	{"idx_notifications_recipient", "CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_type, recipient_id)"},
	{"idx_notifications_created_at", "CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)"},
	{"idx_mail_events_status", "CREATE INDEX IF NOT EXISTS idx_mail_events_status ON mail_events(status)"},
	{"idx_mail_events_created_at", "CREATE INDEX IF NOT EXISTS idx_mail_events_created_at ON mail_events(created_at)"},
	{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
	{"idx_audit_actor_id", "CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_logs(actor_id)"},
	{"idx_audit_created_at", "CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_logs(created_at)"},
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	for _, idx := range indexes {
		if err := db.Exec(idx.ddl).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}

	// PostgreSQL 上为检索字段建立小写表达式索引
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_applicants_full_name_lower ON applicants (LOWER(full_name))").Error; err != nil {
			return fmt.Errorf("failed to create idx_applicants_full_name_lower: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
