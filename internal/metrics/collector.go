package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mautops/membership-gin/internal/model"
	"gorm.io/gorm"
)

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.collect()
	}
}

// Stop 停止指标收集器,未启动时直接返回
func (c *Collector) Stop() {
	c.cancel()
	if c.started.Load() {
		<-c.done
	}
}

// Collect 立即收集一次指标
func (c *Collector) Collect(ctx context.Context) error {
	// 更新数据库连接数指标
	if err := UpdateDatabaseConnections(c.db); err != nil {
		return err
	}

	// 更新申请状态分布
	var results []struct {
		Status string
		Count  int64
	}
	err := c.db.WithContext(ctx).Model(&model.ApplicantModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return fmt.Errorf("failed to count applicants by status: %w", err)
	}

	counts := map[string]int64{
		model.StatusPending:   0,
		model.StatusApproved:  0,
		model.StatusRejected:  0,
		model.StatusActive:    0,
		model.StatusSuspended: 0,
	}
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	for status, count := range counts {
		UpdateApplicantsByStatus(status, float64(count))
	}
	return nil
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			_ = c.Collect(c.ctx)
		}
	}
}
