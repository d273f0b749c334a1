package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/metrics"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RegistrationService 注册流程服务接口
type RegistrationService interface {
	Register(ctx context.Context, input *RegisterInput) (*RegisterResult, error)
	SaveStep(ctx context.Context, applicantID string, step int, payload StepPayload) (*Progress, error)
	GetProgress(ctx context.Context, applicantID string) (*Progress, error)
}

// RegisterResult 注册结果
type RegisterResult struct {
	Applicant *model.ApplicantModel `json:"member"`
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

// Progress 注册进度视图
type Progress struct {
	Applicant            *model.ApplicantModel `json:"member"`
	CurrentStep          int                   `json:"currentStep"`
	CompletedSteps       []int                 `json:"completedSteps"`
	RegistrationProgress float64               `json:"registrationProgress"`
	Submitted            bool                  `json:"submitted"`
}

// newProgress 由申请记录构造进度视图
func newProgress(applicant *model.ApplicantModel) *Progress {
	completed := applicant.CompletedSteps
	if completed == nil {
		completed = []int{}
	}
	return &Progress{
		Applicant:            applicant,
		CurrentStep:          applicant.CurrentStep,
		CompletedSteps:       completed,
		RegistrationProgress: model.Progress(completed),
		Submitted:            applicant.IsSubmitted(),
	}
}

// registrationService 注册流程服务实现
type registrationService struct {
	db            *gorm.DB
	applicantRepo repository.ApplicantRepository
	tokens        *auth.TokenManager
	bcryptCost    int
	notifier      Notifier
	logger        logrus.FieldLogger
}

// NewRegistrationService 创建注册流程服务
func NewRegistrationService(
	db *gorm.DB,
	tokens *auth.TokenManager,
	bcryptCost int,
	notifier Notifier,
	logger logrus.FieldLogger,
) RegistrationService {
	return &registrationService{
		db:            db,
		applicantRepo: repository.NewApplicantRepository(db),
		tokens:        tokens,
		bcryptCost:    bcryptCost,
		notifier:      notifier,
		logger:        logger,
	}
}

// Register 创建申请记录(第 1 步)并返回登录令牌
func (s *registrationService) Register(ctx context.Context, input *RegisterInput) (*RegisterResult, error) {
	if input == nil {
		return nil, apperror.NewValidation("registration details are required")
	}

	// 1. 规范化并校验
	input.NameWithInitials = strings.TrimSpace(input.NameWithInitials)
	input.FullName = strings.TrimSpace(input.FullName)
	input.District = strings.TrimSpace(input.District)
	input.ResidentialAddress = strings.TrimSpace(input.ResidentialAddress)
	input.MobileNumber = strings.TrimSpace(input.MobileNumber)
	input.PersonalEmail = strings.ToLower(strings.TrimSpace(input.PersonalEmail))
	input.NICNumber = strings.ToUpper(strings.TrimSpace(input.NICNumber))
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	// 2. 唯一性检查,在任何写入之前完成
	exists, err := s.applicantRepo.ExistsByNIC(ctx, input.NICNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check NIC number: %w", err)
	}
	if exists {
		return nil, apperror.NewConflict("NIC number already registered", "")
	}
	exists, err = s.applicantRepo.ExistsByEmail(ctx, input.PersonalEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, apperror.NewConflict("email already registered", "")
	}

	hashed, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	// 3. 创建记录,第 1 步视为完成
	now := time.Now()
	nationality := strings.TrimSpace(input.Nationality)
	if nationality == "" {
		nationality = model.DefaultNationality
	}
	applicant := &model.ApplicantModel{
		ID:                 uuid.New().String(),
		Status:             model.StatusPending,
		Password:           hashed,
		NameWithInitials:   input.NameWithInitials,
		FullName:           input.FullName,
		DateOfBirth:        input.DateOfBirth,
		NICNumber:          input.NICNumber,
		Nationality:        nationality,
		Gender:             input.Gender,
		District:           input.District,
		ResidentialAddress: input.ResidentialAddress,
		MobileNumber:       input.MobileNumber,
		PersonalEmail:      input.PersonalEmail,
		WorkExperience:     []model.WorkExperience{},
		Education:          []model.Education{},
		Certifications:     []model.Certification{},
		References:         []model.Reference{},
		CurrentStep:        1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	applicant.CompleteStep(1)
	applicant.AdvanceTo(2)

	// 4. 在同一事务中写入记录和审计日志
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewApplicantRepository(tx).Create(ctx, applicant); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.NewConflict("NIC number or email already registered", "")
			}
			return fmt.Errorf("failed to create applicant: %w", err)
		}
		actor := Actor{ID: applicant.ID, Type: auth.ActorMember}
		return NewAuditLogService(repository.NewAuditLogRepository(tx)).
			RecordAction(ctx, actor, model.AuditActionRegister, model.ResourceApplicant, applicant.ID, map[string]interface{}{
				"email": applicant.PersonalEmail,
			})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRegistration()

	// 5. 签发令牌
	token, expiresAt, err := s.tokens.Issue(auth.Identity{ActorID: applicant.ID, ActorType: auth.ActorMember, Role: auth.ActorMember})
	if err != nil {
		return nil, err
	}

	// 6. 旁路通知
	if err := s.notifier.RegistrationReceived(ctx, applicant); err != nil {
		s.logger.WithError(err).WithField("applicant_id", applicant.ID).Warn("Failed to send welcome email")
	}

	s.logger.WithField("applicant_id", applicant.ID).Info("Applicant registered")
	return &RegisterResult{Applicant: applicant, Token: token, ExpiresAt: expiresAt}, nil
}

// SaveStep 保存第 2-8 步数据
func (s *registrationService) SaveStep(ctx context.Context, applicantID string, step int, payload StepPayload) (*Progress, error) {
	// 1. 校验步骤号和载荷
	if step < 2 || step > model.TotalSteps {
		return nil, apperror.NewFieldValidation("step", fmt.Sprintf("invalid step number %d, expected 2-%d", step, model.TotalSteps))
	}
	if payload == nil || payload.Step() != step {
		return nil, apperror.NewFieldValidation("step", fmt.Sprintf("payload does not match step %d", step))
	}
	if decl, ok := payload.(*DeclarationPayload); ok {
		if !decl.Agreed {
			return nil, apperror.NewPrecondition("you must agree to the declaration")
		}
		decl.Signature = strings.TrimSpace(decl.Signature)
	}
	if err := validateStruct(payload); err != nil {
		return nil, err
	}

	var saved *model.ApplicantModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewApplicantRepository(tx)

		// 2. 加载并检查状态
		applicant, err := repo.FindByID(ctx, applicantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("member", applicantID)
			}
			return fmt.Errorf("failed to load applicant: %w", err)
		}
		if applicant.Status != model.StatusPending {
			return apperror.NewConflict(fmt.Sprintf("cannot modify application with status: %s", applicant.Status), applicant.Status)
		}
		if step == model.TotalSteps && applicant.IsSubmitted() {
			return apperror.NewConflict("application already submitted", applicant.Status)
		}

		// 3. 整体替换对应分区
		now := time.Now()
		fields := applyStep(applicant, payload, now)
		applicant.CompleteStep(step)
		applicant.AdvanceTo(step + 1)
		applicant.UpdatedAt = now
		fields = append(fields, "completed_steps", "current_step", "registration_progress", "updated_at")

		// 4. 条件写入,审核已开始时拒绝
		if step != model.TotalSteps {
			affected, err := repo.UpdateFieldsIfPending(ctx, applicant, fields...)
			if err != nil {
				return fmt.Errorf("failed to save step %d: %w", step, err)
			}
			if affected == 0 {
				return apperror.NewConflict("application is no longer pending", "")
			}
			saved = applicant
			return nil
		}

		// 提交只成功一次,并发的重复提交在写入时被拒绝
		affected, err := repo.SubmitIfPending(ctx, applicant, fields...)
		if err != nil {
			return fmt.Errorf("failed to submit application: %w", err)
		}
		if affected == 0 {
			return apperror.NewConflict("application already submitted", "")
		}
		saved = applicant

		actor := Actor{ID: applicant.ID, Type: auth.ActorMember}
		return NewAuditLogService(repository.NewAuditLogRepository(tx)).
			RecordAction(ctx, actor, model.AuditActionSubmit, model.ResourceApplicant, applicant.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordStepSaved(step)

	if step == model.TotalSteps {
		if err := s.notifier.RegistrationSubmitted(ctx, saved); err != nil {
			s.logger.WithError(err).WithField("applicant_id", saved.ID).Warn("Failed to notify admins of submission")
		}
		s.logger.WithField("applicant_id", saved.ID).Info("Application submitted")
	}

	return newProgress(saved), nil
}

// GetProgress 查询注册进度
func (s *registrationService) GetProgress(ctx context.Context, applicantID string) (*Progress, error) {
	applicant, err := s.applicantRepo.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("member", applicantID)
		}
		return nil, fmt.Errorf("failed to load applicant: %w", err)
	}
	return newProgress(applicant), nil
}

// applyStep 将载荷写入申请记录,返回需要更新的列
func applyStep(applicant *model.ApplicantModel, payload StepPayload, now time.Time) []string {
	switch p := payload.(type) {
	case *OfficeDetailsPayload:
		applicant.OfficeDetails = &model.OfficeDetails{
			OfficeAddress: strings.TrimSpace(p.OfficeAddress),
			OfficePhone:   strings.TrimSpace(p.OfficePhone),
			OfficeEmail:   strings.ToLower(strings.TrimSpace(p.OfficeEmail)),
			PreferredCommunication: model.PreferredCommunication{
				Method:   p.PreferredCommunication.Method,
				Location: p.PreferredCommunication.Location,
			},
		}
		return []string{"office_details"}

	case *WorkExperiencePayload:
		entries := make([]model.WorkExperience, 0, len(p.WorkExperience))
		for _, e := range p.WorkExperience {
			entries = append(entries, model.WorkExperience(e))
		}
		applicant.WorkExperience = entries
		return []string{"work_experience"}

	case *EducationPayload:
		entries := make([]model.Education, 0, len(p.Education))
		for _, e := range p.Education {
			entries = append(entries, model.Education(e))
		}
		applicant.Education = entries
		return []string{"education"}

	case *CertificationsPayload:
		entries := make([]model.Certification, 0, len(p.Certifications))
		for _, e := range p.Certifications {
			entries = append(entries, model.Certification(e))
		}
		applicant.Certifications = entries
		return []string{"certifications"}

	case *ReferencesPayload:
		entries := make([]model.Reference, 0, len(p.References))
		for _, e := range p.References {
			entries = append(entries, model.Reference(e))
		}
		applicant.References = entries
		return []string{"referees"}

	case *DocumentsPayload:
		docs := model.Documents{DegreeCertificates: []string{}}
		if applicant.Documents != nil {
			docs = *applicant.Documents
			if docs.DegreeCertificates == nil {
				docs.DegreeCertificates = []string{}
			}
		}
		// 空值保留原有文件
		if p.ProfilePhoto != "" {
			docs.ProfilePhoto = p.ProfilePhoto
		}
		if p.NICCopy != "" {
			docs.NICCopy = p.NICCopy
		}
		if p.CVDocument != "" {
			docs.CVDocument = p.CVDocument
		}
		if p.DegreeCertificates != nil {
			docs.DegreeCertificates = append([]string{}, p.DegreeCertificates...)
		}
		applicant.Documents = &docs
		return []string{"documents"}

	case *DeclarationPayload:
		applicant.Declaration = &model.Declaration{
			Agreed:     true,
			AgreedDate: &now,
			Signature:  strings.TrimSpace(p.Signature),
		}
		applicant.SubmittedAt = &now
		return []string{"declaration", "submitted_at"}
	}
	return nil
}
