package repository

import (
	"context"
	"time"

	"github.com/mautops/membership-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository 会员编号计数器仓储接口
// 所有方法都应在调用方事务内使用,递增操作持有行锁直到事务结束
type SequenceRepository interface {
	Increment(ctx context.Context, prefix string, year int) (int64, error)
	Seed(ctx context.Context, prefix string, year int, value int) error
	Current(ctx context.Context, prefix string, year int) (int, error)
}

// sequenceRepository 会员编号计数器仓储实现
type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository 创建计数器仓储
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Increment 计数器加一,返回受影响行数,0 表示计数器行不存在
func (r *sequenceRepository) Increment(ctx context.Context, prefix string, year int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.MembershipSequenceModel{}).
		Where("prefix = ? AND year = ?", prefix, year).
		Updates(map[string]interface{}{
			"last_value": gorm.Expr("last_value + 1"),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// Seed 初始化计数器行,行已存在时不做任何修改
func (r *sequenceRepository) Seed(ctx context.Context, prefix string, year int, value int) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.MembershipSequenceModel{
			Prefix:    prefix,
			Year:      year,
			LastValue: value,
			UpdatedAt: time.Now(),
		}).Error
}

// Current 读取计数器当前值
func (r *sequenceRepository) Current(ctx context.Context, prefix string, year int) (int, error) {
	var seq model.MembershipSequenceModel
	if err := r.db.WithContext(ctx).Where("prefix = ? AND year = ?", prefix, year).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}
