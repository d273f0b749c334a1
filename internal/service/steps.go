package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/model"
)

// StepPayload 注册步骤数据,每个步骤一个强类型结构,保存时整体替换对应分区
type StepPayload interface {
	Step() int
}

// RegisterInput 注册(第 1 步)个人信息
type RegisterInput struct {
	NameWithInitials   string `json:"nameWithInitials" validate:"required,max=255"`
	FullName           string `json:"fullName" validate:"required,max=255"`
	DateOfBirth        string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	NICNumber          string `json:"nicNumber" validate:"required,nic"`
	Nationality        string `json:"nationality" validate:"omitempty,max=64"`
	Gender             string `json:"gender" validate:"required,oneof=male female other"`
	District           string `json:"district" validate:"required,max=64"`
	ResidentialAddress string `json:"residentialAddress" validate:"required,max=500"`
	MobileNumber       string `json:"mobileNumber" validate:"required,max=32"`
	PersonalEmail      string `json:"personalEmail" validate:"required,email,max=255"`
	Password           string `json:"password" validate:"required,min=8,max=72"`
}

// OfficeDetailsPayload 第 2 步,所有字段可选
type OfficeDetailsPayload struct {
	OfficeAddress          string                        `json:"officeAddress" validate:"omitempty,max=500"`
	OfficePhone            string                        `json:"officePhone" validate:"omitempty,max=32"`
	OfficeEmail            string                        `json:"officeEmail" validate:"omitempty,email"`
	PreferredCommunication PreferredCommunicationPayload `json:"preferredCommunication"`
}

// PreferredCommunicationPayload 首选联系方式
type PreferredCommunicationPayload struct {
	Method   string `json:"method" validate:"omitempty,oneof=postal email"`
	Location string `json:"location" validate:"omitempty,oneof=residential office"`
}

// WorkExperienceEntry 工作经历条目
type WorkExperienceEntry struct {
	PlaceOfWork  string `json:"placeOfWork" validate:"required,max=255"`
	Designation  string `json:"designation" validate:"required,max=255"`
	NatureOfWork string `json:"natureOfWork" validate:"required,max=1000"`
	StartDate    string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	IsCurrent    bool   `json:"isCurrent"`
}

// WorkExperiencePayload 第 3 步
type WorkExperiencePayload struct {
	WorkExperience []WorkExperienceEntry `json:"workExperience" validate:"dive"`
}

// EducationEntry 教育经历条目
type EducationEntry struct {
	Institution    string `json:"institution" validate:"required,max=255"`
	Degree         string `json:"degree" validate:"required,max=255"`
	FieldOfStudy   string `json:"fieldOfStudy" validate:"required,max=255"`
	GraduationYear int    `json:"graduationYear" validate:"required,min=1900,max=2100"`
	Grade          string `json:"grade" validate:"omitempty,max=64"`
}

// EducationPayload 第 4 步,至少一条
type EducationPayload struct {
	Education []EducationEntry `json:"education" validate:"required,min=1,dive"`
}

// CertificationEntry 专业认证条目
type CertificationEntry struct {
	Name                string `json:"name" validate:"required,max=255"`
	IssuingOrganization string `json:"issuingOrganization" validate:"required,max=255"`
	IssueDate           string `json:"issueDate" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate          string `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
	CredentialID        string `json:"credentialId" validate:"omitempty,max=128"`
}

// CertificationsPayload 第 5 步,可以为空
type CertificationsPayload struct {
	Certifications []CertificationEntry `json:"certifications" validate:"dive"`
}

// ReferenceEntry 推荐人条目
type ReferenceEntry struct {
	Name         string `json:"name" validate:"required,max=255"`
	Designation  string `json:"designation" validate:"required,max=255"`
	Organization string `json:"organization" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=32"`
	Relationship string `json:"relationship" validate:"omitempty,max=128"`
}

// ReferencesPayload 第 6 步,至少两名推荐人
type ReferencesPayload struct {
	References []ReferenceEntry `json:"references" validate:"required,min=2,dive"`
}

// DocumentsPayload 第 7 步,空值表示保留原有文件
type DocumentsPayload struct {
	ProfilePhoto       string   `json:"profilePhoto"`
	NICCopy            string   `json:"nicCopy"`
	DegreeCertificates []string `json:"degreeCertificates" validate:"omitempty,max=5"`
	CVDocument         string   `json:"cvDocument"`
}

// DeclarationPayload 第 8 步
type DeclarationPayload struct {
	Agreed    bool   `json:"agreed"`
	Signature string `json:"signature" validate:"required,max=255"`
}

func (*OfficeDetailsPayload) Step() int  { return 2 }
func (*WorkExperiencePayload) Step() int { return 3 }
func (*EducationPayload) Step() int      { return 4 }
func (*CertificationsPayload) Step() int { return 5 }
func (*ReferencesPayload) Step() int     { return 6 }
func (*DocumentsPayload) Step() int      { return 7 }
func (*DeclarationPayload) Step() int    { return 8 }

// NewStepPayload 返回步骤对应的空载荷,供绑定请求体
func NewStepPayload(step int) (StepPayload, error) {
	switch step {
	case 2:
		return &OfficeDetailsPayload{}, nil
	case 3:
		return &WorkExperiencePayload{}, nil
	case 4:
		return &EducationPayload{}, nil
	case 5:
		return &CertificationsPayload{}, nil
	case 6:
		return &ReferencesPayload{}, nil
	case 7:
		return &DocumentsPayload{}, nil
	case 8:
		return &DeclarationPayload{}, nil
	}
	return nil, apperror.NewFieldValidation("step", fmt.Sprintf("invalid step number %d, expected 2-%d", step, model.TotalSteps))
}

var nicPattern = regexp.MustCompile(`^([0-9]{9}[vVxX]|[0-9]{12})$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 使用 json 字段名报告错误
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	// 斯里兰卡身份证号: 旧版 9 位数字加 V/X,新版 12 位数字
	_ = v.RegisterValidation("nic", func(fl validator.FieldLevel) bool {
		return nicPattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct 校验结构体,返回带字段信息的 ValidationError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewValidation(err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// 去掉根结构体名
		name := fe.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		fields[name] = fieldMessage(fe)
	}
	return &apperror.ValidationError{Message: "validation failed", Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "nic":
		return "must be a valid NIC number"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s entries", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}
