package model

import (
	"errors"
	"sort"
	"time"
)

// 申请状态
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// TotalSteps 注册流程总步数
const TotalSteps = 8

// DefaultNationality 默认国籍
const DefaultNationality = "Sri Lankan"

// OfficeDetails 办公信息(第 2 步)
type OfficeDetails struct {
	OfficeAddress          string                 `json:"officeAddress,omitempty"`
	OfficePhone            string                 `json:"officePhone,omitempty"`
	OfficeEmail            string                 `json:"officeEmail,omitempty"`
	PreferredCommunication PreferredCommunication `json:"preferredCommunication"`
}

// PreferredCommunication 首选联系方式
type PreferredCommunication struct {
	Method   string `json:"method,omitempty"`   // postal, email
	Location string `json:"location,omitempty"` // residential, office
}

// WorkExperience 工作经历(第 3 步)
type WorkExperience struct {
	PlaceOfWork  string `json:"placeOfWork"`
	Designation  string `json:"designation"`
	NatureOfWork string `json:"natureOfWork"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	IsCurrent    bool   `json:"isCurrent"`
}

// Education 教育经历(第 4 步)
type Education struct {
	Institution    string `json:"institution"`
	Degree         string `json:"degree"`
	FieldOfStudy   string `json:"fieldOfStudy"`
	GraduationYear int    `json:"graduationYear"`
	Grade          string `json:"grade,omitempty"`
}

// Certification 专业认证(第 5 步)
type Certification struct {
	Name                string `json:"name"`
	IssuingOrganization string `json:"issuingOrganization"`
	IssueDate           string `json:"issueDate,omitempty"`
	ExpiryDate          string `json:"expiryDate,omitempty"`
	CredentialID        string `json:"credentialId,omitempty"`
}

// Reference 推荐人(第 6 步)
type Reference struct {
	Name         string `json:"name"`
	Designation  string `json:"designation"`
	Organization string `json:"organization"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship,omitempty"`
}

// Documents 已上传文件引用(第 7 步)
type Documents struct {
	ProfilePhoto       string   `json:"profilePhoto,omitempty"`
	NICCopy            string   `json:"nicCopy,omitempty"`
	DegreeCertificates []string `json:"degreeCertificates"`
	CVDocument         string   `json:"cvDocument,omitempty"`
}

// Refs 所有非空的文件引用
func (d *Documents) Refs() []string {
	if d == nil {
		return nil
	}
	refs := make([]string, 0, 3+len(d.DegreeCertificates))
	for _, ref := range append([]string{d.ProfilePhoto, d.NICCopy, d.CVDocument}, d.DegreeCertificates...) {
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Declaration 声明(第 8 步)
type Declaration struct {
	Agreed     bool       `json:"agreed"`
	AgreedDate *time.Time `json:"agreedDate,omitempty"`
	Signature  string     `json:"signature,omitempty"`
}

// ApplicantModel 申请人数据模型
// 个人信息以列存储以便唯一约束和检索,其余步骤数据以 JSON 存储并整体替换
type ApplicantModel struct {
	ID           string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MembershipID *string `gorm:"type:varchar(32);uniqueIndex" json:"membershipId"`
	Status       string  `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Password     string  `gorm:"type:varchar(255);not null" json:"-"`

	NameWithInitials   string `gorm:"type:varchar(255);not null" json:"nameWithInitials"`
	FullName           string `gorm:"type:varchar(255);not null" json:"fullName"`
	DateOfBirth        string `gorm:"type:varchar(10);not null" json:"dateOfBirth"`
	NICNumber          string `gorm:"column:nic_number;type:varchar(16);not null;uniqueIndex" json:"nicNumber"`
	Nationality        string `gorm:"type:varchar(64);not null" json:"nationality"`
	Gender             string `gorm:"type:varchar(8);not null" json:"gender"`
	District           string `gorm:"type:varchar(64);not null" json:"district"`
	ResidentialAddress string `gorm:"type:text;not null" json:"residentialAddress"`
	MobileNumber       string `gorm:"type:varchar(32);not null" json:"mobileNumber"`
	PersonalEmail      string `gorm:"type:varchar(255);not null;uniqueIndex" json:"personalEmail"`

	OfficeDetails  *OfficeDetails   `gorm:"type:jsonb;serializer:json" json:"officeDetails,omitempty"`
	WorkExperience []WorkExperience `gorm:"type:jsonb;serializer:json" json:"workExperience"`
	Education      []Education      `gorm:"type:jsonb;serializer:json" json:"education"`
	Certifications []Certification  `gorm:"type:jsonb;serializer:json" json:"certifications"`
	References     []Reference      `gorm:"column:referees;type:jsonb;serializer:json" json:"references"`
	Documents      *Documents       `gorm:"type:jsonb;serializer:json" json:"documents,omitempty"`
	Declaration    *Declaration     `gorm:"type:jsonb;serializer:json" json:"declaration,omitempty"`

	CurrentStep          int     `gorm:"type:int;not null;default:1" json:"currentStep"`
	CompletedSteps       []int   `gorm:"type:jsonb;serializer:json" json:"completedSteps"`
	RegistrationProgress float64 `gorm:"not null;default:0" json:"registrationProgress"`

	SubmittedAt *time.Time `gorm:"index" json:"submittedAt"`
	ReviewedBy  *string    `gorm:"type:varchar(64)" json:"reviewedBy"`
	ReviewedAt  *time.Time `json:"reviewedAt"`
	ReviewNotes string     `gorm:"type:text" json:"reviewNotes,omitempty"`

	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"not null" json:"updatedAt"`
}

// TableName 指定表名
func (ApplicantModel) TableName() string {
	return "applicants"
}

// Validate 验证申请人模型
func (a *ApplicantModel) Validate() error {
	if a.ID == "" {
		return errors.New("applicant ID is required")
	}
	if a.NICNumber == "" {
		return errors.New("NIC number is required")
	}
	if a.PersonalEmail == "" {
		return errors.New("personal email is required")
	}
	if a.Password == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// CompleteStep 标记步骤完成并重新计算进度,重复完成不产生重复项
func (a *ApplicantModel) CompleteStep(step int) {
	if !a.HasCompleted(step) {
		a.CompletedSteps = append(a.CompletedSteps, step)
		sort.Ints(a.CompletedSteps)
	}
	a.RegistrationProgress = Progress(a.CompletedSteps)
}

// HasCompleted 判断步骤是否已完成
func (a *ApplicantModel) HasCompleted(step int) bool {
	for _, s := range a.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// AdvanceTo 推进当前步骤,只增不减
func (a *ApplicantModel) AdvanceTo(step int) {
	if step > TotalSteps {
		step = TotalSteps
	}
	if step > a.CurrentStep {
		a.CurrentStep = step
	}
}

// IsSubmitted 是否已提交申请
func (a *ApplicantModel) IsSubmitted() bool {
	return a.SubmittedAt != nil
}

// Progress 根据已完成步骤计算注册进度百分比
func Progress(completed []int) float64 {
	return float64(len(completed)) / float64(TotalSteps) * 100
}
