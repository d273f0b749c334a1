package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/mail"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// Notifier 注册和审核事件的旁路通知,失败不影响主流程
type Notifier interface {
	RegistrationReceived(ctx context.Context, applicant *model.ApplicantModel) error
	RegistrationSubmitted(ctx context.Context, applicant *model.ApplicantModel) error
	ApplicationApproved(ctx context.Context, applicant *model.ApplicantModel) error
	ApplicationRejected(ctx context.Context, applicant *model.ApplicantModel) error
}

// Pusher 实时推送接口,由 WebSocket Hub 实现
type Pusher interface {
	PublishToAdmins(v interface{}) error
	PublishToUser(userID string, v interface{}) error
}

// PushEvent 推送给在线客户端的实时事件
type PushEvent struct {
	Type         string                   `json:"type"`
	Notification *model.NotificationModel `json:"notification"`
}

// notifier 站内通知 + 邮件 + 实时推送
type notifier struct {
	notificationRepo repository.NotificationRepository
	mailer           mail.Mailer
	templates        *mail.Templates
	pusher           Pusher
	logger           logrus.FieldLogger
}

// NewNotifier 创建旁路通知器,mailer 和 pusher 可以为 nil
func NewNotifier(
	notificationRepo repository.NotificationRepository,
	mailer mail.Mailer,
	templates *mail.Templates,
	pusher Pusher,
	logger logrus.FieldLogger,
) Notifier {
	return &notifier{
		notificationRepo: notificationRepo,
		mailer:           mailer,
		templates:        templates,
		pusher:           pusher,
		logger:           logger,
	}
}

// RegistrationReceived 发送欢迎邮件
func (n *notifier) RegistrationReceived(ctx context.Context, applicant *model.ApplicantModel) error {
	msg, err := n.templates.Welcome(applicant.FullName)
	if err != nil {
		return err
	}
	return n.sendMail(ctx, applicant.PersonalEmail, msg)
}

// RegistrationSubmitted 通知所有管理员有新的申请
func (n *notifier) RegistrationSubmitted(ctx context.Context, applicant *model.ApplicantModel) error {
	notification := &model.NotificationModel{
		ID:            uuid.New().String(),
		RecipientType: model.RecipientAdmin,
		Type:          model.NotificationRegistrationSubmitted,
		Title:         "New Registration Submitted",
		Message:       fmt.Sprintf("%s has submitted a membership application", applicant.FullName),
		Metadata: map[string]interface{}{
			"memberId":   applicant.ID,
			"memberName": applicant.FullName,
		},
		CreatedAt: time.Now(),
	}
	if err := n.notificationRepo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create admin notification: %w", err)
	}

	if n.pusher != nil {
		if err := n.pusher.PublishToAdmins(PushEvent{Type: notification.Type, Notification: notification}); err != nil {
			n.logger.WithError(err).Warn("Failed to push notification to admins")
		}
	}
	return nil
}

// ApplicationApproved 通知申请人审核通过
func (n *notifier) ApplicationApproved(ctx context.Context, applicant *model.ApplicantModel) error {
	membershipID := ""
	if applicant.MembershipID != nil {
		membershipID = *applicant.MembershipID
	}

	notifyErr := n.notifyMember(ctx, &model.NotificationModel{
		ID:            uuid.New().String(),
		RecipientID:   applicant.ID,
		RecipientType: model.RecipientMember,
		Type:          model.NotificationApplicationApproved,
		Title:         "Application Approved!",
		Message:       fmt.Sprintf("Congratulations! Your membership has been approved. Your membership ID is %s", membershipID),
		Metadata:      map[string]interface{}{"membershipId": membershipID},
		CreatedAt:     time.Now(),
	})

	msg, err := n.templates.Approved(applicant.FullName, membershipID, applicant.ReviewNotes)
	if err != nil {
		return errors.Join(notifyErr, err)
	}
	return errors.Join(notifyErr, n.sendMail(ctx, applicant.PersonalEmail, msg))
}

// ApplicationRejected 通知申请人审核未通过
func (n *notifier) ApplicationRejected(ctx context.Context, applicant *model.ApplicantModel) error {
	reason := applicant.ReviewNotes

	notifyErr := n.notifyMember(ctx, &model.NotificationModel{
		ID:            uuid.New().String(),
		RecipientID:   applicant.ID,
		RecipientType: model.RecipientMember,
		Type:          model.NotificationApplicationRejected,
		Title:         "Application Status Update",
		Message:       fmt.Sprintf("Your membership application has been reviewed. Reason: %s", reason),
		Metadata:      map[string]interface{}{"reason": reason},
		CreatedAt:     time.Now(),
	})

	msg, err := n.templates.Rejected(applicant.FullName, reason)
	if err != nil {
		return errors.Join(notifyErr, err)
	}
	return errors.Join(notifyErr, n.sendMail(ctx, applicant.PersonalEmail, msg))
}

// notifyMember 保存申请人的站内通知,并推送到申请人在线的连接
func (n *notifier) notifyMember(ctx context.Context, notification *model.NotificationModel) error {
	if err := n.notificationRepo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create member notification: %w", err)
	}

	if n.pusher != nil {
		if err := n.pusher.PublishToUser(notification.RecipientID, PushEvent{Type: notification.Type, Notification: notification}); err != nil {
			n.logger.WithError(err).WithField("member_id", notification.RecipientID).Warn("Failed to push notification to member")
		}
	}
	return nil
}

func (n *notifier) sendMail(ctx context.Context, to string, msg *mail.Message) error {
	if n.mailer == nil {
		return nil
	}
	if err := n.mailer.Enqueue(ctx, to, msg.Subject, msg.HTML); err != nil {
		return fmt.Errorf("failed to queue email: %w", err)
	}
	return nil
}

// NotificationService 通知收件箱服务
type NotificationService interface {
	List(ctx context.Context, actor Actor, unreadOnly bool, page, pageSize int) ([]*model.NotificationModel, int64, error)
	MarkRead(ctx context.Context, actor Actor, notificationID string) error
}

// notificationService 通知收件箱服务实现
type notificationService struct {
	notificationRepo repository.NotificationRepository
}

// NewNotificationService 创建通知收件箱服务
func NewNotificationService(notificationRepo repository.NotificationRepository) NotificationService {
	return &notificationService{notificationRepo: notificationRepo}
}

// List 查询调用人的通知
func (s *notificationService) List(ctx context.Context, actor Actor, unreadOnly bool, page, pageSize int) ([]*model.NotificationModel, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.notificationRepo.FindForRecipient(ctx, &repository.NotificationFilter{
		RecipientType: recipientTypeOf(actor),
		RecipientID:   actor.ID,
		UnreadOnly:    unreadOnly,
		Page:          page,
		PageSize:      pageSize,
	})
}

// MarkRead 将调用人可见的通知标记为已读
func (s *notificationService) MarkRead(ctx context.Context, actor Actor, notificationID string) error {
	affected, err := s.notificationRepo.MarkRead(ctx, notificationID, recipientTypeOf(actor), actor.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if affected == 0 {
		return apperror.NewNotFound("notification", notificationID)
	}
	return nil
}

func recipientTypeOf(actor Actor) string {
	if actor.Type == model.RecipientAdmin {
		return model.RecipientAdmin
	}
	return model.RecipientMember
}
