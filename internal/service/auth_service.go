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
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SystemActor 命令行等本地操作使用的操作人
var SystemActor = Actor{ID: "system", Type: "system", Role: model.RoleSuperAdmin}

// AuthService 登录与账户服务接口
type AuthService interface {
	LoginMember(ctx context.Context, email, password string) (*LoginResult, error)
	LoginAdmin(ctx context.Context, login, password string) (*LoginResult, error)
	Me(ctx context.Context, actor Actor) (*Profile, error)
	CreateAdmin(ctx context.Context, actor Actor, input *CreateAdminInput) (*model.AdminModel, error)
	SeedAdmin(ctx context.Context, input *CreateAdminInput) (*model.AdminModel, error)
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expiresAt"`
	Member    *model.ApplicantModel `json:"member,omitempty"`
	Admin     *model.AdminModel     `json:"admin,omitempty"`
}

// Profile 当前登录人资料
type Profile struct {
	ActorType string                `json:"actorType"`
	Member    *model.ApplicantModel `json:"member,omitempty"`
	Admin     *model.AdminModel     `json:"admin,omitempty"`
}

// CreateAdminInput 创建管理员参数
type CreateAdminInput struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=super_admin admin reviewer"`
}

// authService 登录与账户服务实现
type authService struct {
	db            *gorm.DB
	applicantRepo repository.ApplicantRepository
	adminRepo     repository.AdminRepository
	tokens        *auth.TokenManager
	bcryptCost    int
	logger        logrus.FieldLogger
}

// NewAuthService 创建登录与账户服务
func NewAuthService(db *gorm.DB, tokens *auth.TokenManager, bcryptCost int, logger logrus.FieldLogger) AuthService {
	return &authService{
		db:            db,
		applicantRepo: repository.NewApplicantRepository(db),
		adminRepo:     repository.NewAdminRepository(db),
		tokens:        tokens,
		bcryptCost:    bcryptCost,
		logger:        logger,
	}
}

// errInvalidCredentials 不区分账户不存在和密码错误
var errInvalidCredentials = apperror.NewAuthentication("invalid credentials")

// LoginMember 申请人登录
func (s *authService) LoginMember(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.NewValidation("email and password are required")
	}

	applicant, err := s.applicantRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load applicant: %w", err)
	}
	if !auth.CheckPassword(password, applicant.Password) {
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(auth.Identity{
		ActorID:   applicant.ID,
		ActorType: auth.ActorMember,
		Role:      auth.ActorMember,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.applicantRepo.UpdateLastLogin(ctx, applicant.ID, now); err != nil {
		s.logger.WithError(err).WithField("applicant_id", applicant.ID).Warn("Failed to update last login")
	} else {
		applicant.LastLogin = &now
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Member: applicant}, nil
}

// LoginAdmin 管理员登录,支持用户名或邮箱
func (s *authService) LoginAdmin(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperror.NewValidation("username and password are required")
	}

	admin, err := s.adminRepo.FindByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if !auth.CheckPassword(password, admin.Password) {
		return nil, errInvalidCredentials
	}
	if !admin.IsActive {
		return nil, apperror.NewAuthorization("login")
	}

	token, expiresAt, err := s.tokens.Issue(auth.Identity{
		ActorID:   admin.ID,
		ActorType: auth.ActorAdmin,
		Role:      admin.Role,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.adminRepo.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.WithError(err).WithField("admin_id", admin.ID).Warn("Failed to update last login")
	} else {
		admin.LastLogin = &now
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

// Me 返回当前登录人资料
func (s *authService) Me(ctx context.Context, actor Actor) (*Profile, error) {
	switch actor.Type {
	case auth.ActorMember:
		applicant, err := s.applicantRepo.FindByID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("member", actor.ID)
			}
			return nil, fmt.Errorf("failed to load applicant: %w", err)
		}
		return &Profile{ActorType: actor.Type, Member: applicant}, nil

	case auth.ActorAdmin:
		admin, err := s.adminRepo.FindByID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("admin", actor.ID)
			}
			return nil, fmt.Errorf("failed to load admin: %w", err)
		}
		return &Profile{ActorType: actor.Type, Admin: admin}, nil
	}
	return nil, apperror.NewAuthentication("invalid token")
}

// CreateAdmin 创建管理员,仅超级管理员可用
func (s *authService) CreateAdmin(ctx context.Context, actor Actor, input *CreateAdminInput) (*model.AdminModel, error) {
	if err := Authorize(actor, ActionManageAdmins); err != nil {
		return nil, err
	}
	return s.createAdmin(ctx, actor, input)
}

// SeedAdmin 本地创建管理员,用于初始化第一个超级管理员
func (s *authService) SeedAdmin(ctx context.Context, input *CreateAdminInput) (*model.AdminModel, error) {
	return s.createAdmin(ctx, SystemActor, input)
}

func (s *authService) createAdmin(ctx context.Context, actor Actor, input *CreateAdminInput) (*model.AdminModel, error) {
	if input == nil {
		return nil, apperror.NewValidation("admin details are required")
	}

	// 1. 校验
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Role == "" {
		input.Role = model.RoleReviewer
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	exists, err := s.adminRepo.Exists(ctx, input.Username, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check admin: %w", err)
	}
	if exists {
		return nil, apperror.NewConflict("username or email already in use", "")
	}

	hashed, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	// 2. 创建管理员并记录审计日志
	now := time.Now()
	admin := &model.AdminModel{
		ID:        uuid.New().String(),
		Username:  input.Username,
		Email:     input.Email,
		Password:  hashed,
		Role:      input.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewAdminRepository(tx).Create(ctx, admin); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.NewConflict("username or email already in use", "")
			}
			return fmt.Errorf("failed to create admin: %w", err)
		}
		return NewAuditLogService(repository.NewAuditLogRepository(tx)).
			RecordAction(ctx, actor, model.AuditActionCreateAdmin, model.ResourceAdmin, admin.ID, map[string]interface{}{
				"username": admin.Username,
				"role":     admin.Role,
			})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"admin_id": admin.ID,
		"role":     admin.Role,
	}).Info("Admin created")
	return admin, nil
}
