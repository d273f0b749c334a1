package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/metrics"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReviewService 审核服务接口
type ReviewService interface {
	Approve(ctx context.Context, applicantID string, actor Actor, notes string) (*model.ApplicantModel, error)
	Reject(ctx context.Context, applicantID string, actor Actor, reason string) (*model.ApplicantModel, error)
}

// reviewService 审核服务实现
type reviewService struct {
	db            *gorm.DB
	applicantRepo repository.ApplicantRepository
	ids           MembershipIDGenerator
	notifier      Notifier
	logger        logrus.FieldLogger
	now           func() time.Time
}

// NewReviewService 创建审核服务
func NewReviewService(db *gorm.DB, ids MembershipIDGenerator, notifier Notifier, logger logrus.FieldLogger) ReviewService {
	return &reviewService{
		db:            db,
		applicantRepo: repository.NewApplicantRepository(db),
		ids:           ids,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// Approve 审核通过,分配会员编号
func (s *reviewService) Approve(ctx context.Context, applicantID string, actor Actor, notes string) (*model.ApplicantModel, error) {
	// 1. 权限和状态检查,状态不符时不分配编号
	applicant, err := s.loadForReview(ctx, applicantID, actor, ActionApprove, "approve")
	if err != nil {
		return nil, err
	}
	if err := requireSubmitted(applicant); err != nil {
		return nil, err
	}

	now := s.now()
	notes = strings.TrimSpace(notes)
	var membershipID string

	// 2. 分配编号、条件更新状态、写审计日志,在同一事务中完成
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.ids.Next(ctx, tx, now.Year())
		if err != nil {
			return err
		}
		membershipID = id

		if err := s.transition(ctx, tx, applicantID, "approve", map[string]interface{}{
			"status":        model.StatusApproved,
			"membership_id": membershipID,
			"reviewed_by":   actor.ID,
			"reviewed_at":   now,
			"review_notes":  notes,
			"updated_at":    now,
		}); err != nil {
			return err
		}

		return NewAuditLogService(repository.NewAuditLogRepository(tx)).
			RecordAction(ctx, actor, model.AuditActionApprove, model.ResourceApplicant, applicantID, map[string]interface{}{
				"membershipId": membershipID,
				"notes":        notes,
			})
	})
	if err != nil {
		return nil, err
	}

	applicant.Status = model.StatusApproved
	applicant.MembershipID = &membershipID
	applicant.ReviewedBy = &actor.ID
	applicant.ReviewedAt = &now
	applicant.ReviewNotes = notes
	applicant.UpdatedAt = now
	metrics.RecordReview(model.AuditActionApprove)

	// 3. 旁路通知,失败只记录日志
	if err := s.notifier.ApplicationApproved(ctx, applicant); err != nil {
		s.logger.WithError(err).WithField("applicant_id", applicantID).Warn("Failed to notify applicant of approval")
	}

	s.logger.WithFields(logrus.Fields{
		"applicant_id":  applicantID,
		"membership_id": membershipID,
		"reviewed_by":   actor.ID,
	}).Info("Application approved")
	return applicant, nil
}

// Reject 拒绝申请,必须给出原因
func (s *reviewService) Reject(ctx context.Context, applicantID string, actor Actor, reason string) (*model.ApplicantModel, error) {
	applicant, err := s.loadForReview(ctx, applicantID, actor, ActionReject, "reject")
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.NewFieldValidation("reason", "rejection reason is required")
	}
	if err := requireSubmitted(applicant); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, tx, applicantID, "reject", map[string]interface{}{
			"status":       model.StatusRejected,
			"reviewed_by":  actor.ID,
			"reviewed_at":  now,
			"review_notes": reason,
			"updated_at":   now,
		}); err != nil {
			return err
		}

		return NewAuditLogService(repository.NewAuditLogRepository(tx)).
			RecordAction(ctx, actor, model.AuditActionReject, model.ResourceApplicant, applicantID, map[string]interface{}{
				"reason": reason,
			})
	})
	if err != nil {
		return nil, err
	}

	applicant.Status = model.StatusRejected
	applicant.ReviewedBy = &actor.ID
	applicant.ReviewedAt = &now
	applicant.ReviewNotes = reason
	applicant.UpdatedAt = now
	metrics.RecordReview(model.AuditActionReject)

	if err := s.notifier.ApplicationRejected(ctx, applicant); err != nil {
		s.logger.WithError(err).WithField("applicant_id", applicantID).Warn("Failed to notify applicant of rejection")
	}

	s.logger.WithFields(logrus.Fields{
		"applicant_id": applicantID,
		"reviewed_by":  actor.ID,
	}).Info("Application rejected")
	return applicant, nil
}

// loadForReview 依次检查权限、存在性和状态
func (s *reviewService) loadForReview(ctx context.Context, applicantID string, actor Actor, action string, verb string) (*model.ApplicantModel, error) {
	if err := Authorize(actor, action); err != nil {
		return nil, err
	}

	applicant, err := s.applicantRepo.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("member", applicantID)
		}
		return nil, fmt.Errorf("failed to load applicant: %w", err)
	}

	if applicant.Status != model.StatusPending {
		return nil, apperror.NewConflict(fmt.Sprintf("cannot %s member with status: %s", verb, applicant.Status), applicant.Status)
	}
	return applicant, nil
}

// requireSubmitted 只有完成第 8 步的申请可以审核
func requireSubmitted(applicant *model.ApplicantModel) error {
	if !applicant.IsSubmitted() {
		return apperror.NewPrecondition("application has not been submitted")
	}
	return nil
}

// transition 条件更新,记录已被其他审核人处理时返回冲突
func (s *reviewService) transition(ctx context.Context, tx *gorm.DB, applicantID string, verb string, updates map[string]interface{}) error {
	repo := repository.NewApplicantRepository(tx)
	affected, err := repo.TransitionFromPending(ctx, applicantID, updates)
	if err != nil {
		return fmt.Errorf("failed to %s applicant: %w", verb, err)
	}
	if affected > 0 {
		return nil
	}

	current := ""
	if latest, err := repo.FindByID(ctx, applicantID); err == nil {
		current = latest.Status
	}
	return apperror.NewConflict(fmt.Sprintf("cannot %s member with status: %s", verb, current), current)
}
