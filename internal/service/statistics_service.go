package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"golang.org/x/sync/errgroup"
)

// RecentWindow 近期注册统计窗口
const RecentWindow = 30 * 24 * time.Hour

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetStatistics(ctx context.Context) (*Statistics, error)
}

// Statistics 管理后台统计
type Statistics struct {
	TotalMembers         int64 `json:"totalMembers"`
	PendingApplications  int64 `json:"pendingApplications"`
	ActiveMembers        int64 `json:"activeMembers"`
	RejectedApplications int64 `json:"rejectedApplications"`
	RecentRegistrations  int64 `json:"recentRegistrations"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	applicantRepo repository.ApplicantRepository
	now           func() time.Time
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(applicantRepo repository.ApplicantRepository) StatisticsService {
	return &statisticsService{applicantRepo: applicantRepo, now: time.Now}
}

// GetStatistics 并发统计各项数量
func (s *statisticsService) GetStatistics(ctx context.Context) (*Statistics, error) {
	since := s.now().Add(-RecentWindow)

	var stats Statistics
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, filter *repository.ApplicantFilter) {
		g.Go(func() error {
			n, err := s.applicantRepo.Count(ctx, filter)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}

	// 会员总数包含已批准和已激活
	count(&stats.TotalMembers, &repository.ApplicantFilter{Statuses: []string{model.StatusApproved, model.StatusActive}})
	count(&stats.PendingApplications, &repository.ApplicantFilter{Statuses: []string{model.StatusPending}, SubmittedOnly: true})
	count(&stats.ActiveMembers, &repository.ApplicantFilter{Statuses: []string{model.StatusActive}})
	count(&stats.RejectedApplications, &repository.ApplicantFilter{Statuses: []string{model.StatusRejected}})
	count(&stats.RecentRegistrations, &repository.ApplicantFilter{CreatedAfter: &since})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return &stats, nil
}
