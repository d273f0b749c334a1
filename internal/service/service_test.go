package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/mail"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/mautops/membership-gin/internal/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// recordingMailer 记录入队的邮件,fail 为 true 时返回错误
type recordingMailer struct {
	mu   sync.Mutex
	fail bool
	sent []string // to|subject
}

func (m *recordingMailer) Enqueue(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("mail queue unavailable")
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func (m *recordingMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// recordingPusher 记录推送给管理员和单个用户的事件
type recordingPusher struct {
	mu     sync.Mutex
	events []interface{}
	byUser map[string][]PushEvent
}

func (p *recordingPusher) PublishToAdmins(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, v)
	return nil
}

func (p *recordingPusher) PublishToUser(userID string, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.byUser == nil {
		p.byUser = make(map[string][]PushEvent)
	}
	p.byUser[userID] = append(p.byUser[userID], v.(PushEvent))
	return nil
}

func (p *recordingPusher) userEvents(userID string) []PushEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PushEvent(nil), p.byUser[userID]...)
}

func (p *recordingPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// countingGenerator 统计编号生成器调用次数
type countingGenerator struct {
	mu    sync.Mutex
	inner MembershipIDGenerator
	calls int
}

func (g *countingGenerator) Next(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.inner.Next(ctx, tx, year)
}

func (g *countingGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	db           *gorm.DB
	logHook      *test.Hook
	tokens       *auth.TokenManager
	mailer       *recordingMailer
	pusher       *recordingPusher
	ids          *countingGenerator
	registration RegistrationService
	review       ReviewService
	query        QueryService
	stats        StatisticsService
	auth         AuthService
	inbox        NotificationService
}

var (
	superAdmin = Actor{ID: "admin-super", Type: auth.ActorAdmin, Role: model.RoleSuperAdmin}
	adminActor = Actor{ID: "admin-1", Type: auth.ActorAdmin, Role: model.RoleAdmin}
	reviewer   = Actor{ID: "admin-reviewer", Type: auth.ActorAdmin, Role: model.RoleReviewer}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	logger, hook := testutil.NewLogger()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	mailer := &recordingMailer{}
	pusher := &recordingPusher{}
	ids := &countingGenerator{inner: NewMembershipIDGenerator("IEPSL")}

	notificationRepo := repository.NewNotificationRepository(db)
	notifier := NewNotifier(notificationRepo, mailer, mail.NewTemplates("IEPSL"), pusher, logger)
	applicantRepo := repository.NewApplicantRepository(db)

	return &fixture{
		db:           db,
		logHook:      hook,
		tokens:       tokens,
		mailer:       mailer,
		pusher:       pusher,
		ids:          ids,
		registration: NewRegistrationService(db, tokens, bcrypt.MinCost, notifier, logger),
		review:       NewReviewService(db, ids, notifier, logger),
		query:        NewQueryService(applicantRepo, repository.NewAuditLogRepository(db)),
		stats:        NewStatisticsService(applicantRepo),
		auth:         NewAuthService(db, tokens, bcrypt.MinCost, logger),
		inbox:        NewNotificationService(notificationRepo),
	}
}

func registerInput(i int) *RegisterInput {
	return &RegisterInput{
		NameWithInitials:   fmt.Sprintf("J. Perera%d", i),
		FullName:           fmt.Sprintf("Jane Perera%d", i),
		DateOfBirth:        "1990-05-17",
		NICNumber:          fmt.Sprintf("%09dV", 100000000+i),
		Gender:             "female",
		District:           "Colombo",
		ResidentialAddress: "12 Galle Road",
		MobileNumber:       "0771234567",
		PersonalEmail:      fmt.Sprintf("jane%d@example.com", i),
		Password:           "s3cret-pass",
	}
}

func (f *fixture) register(t *testing.T, i int) *model.ApplicantModel {
	t.Helper()
	result, err := f.registration.Register(context.Background(), registerInput(i))
	require.NoError(t, err)
	return result.Applicant
}

func stepPayloads() []StepPayload {
	return []StepPayload{
		&OfficeDetailsPayload{OfficeAddress: "1 Office Park", PreferredCommunication: PreferredCommunicationPayload{Method: "email", Location: "office"}},
		&WorkExperiencePayload{WorkExperience: []WorkExperienceEntry{{PlaceOfWork: "Acme", Designation: "Engineer", NatureOfWork: "Design"}}},
		&EducationPayload{Education: []EducationEntry{{Institution: "University of Moratuwa", Degree: "BSc", FieldOfStudy: "Engineering", GraduationYear: 2012}}},
		&CertificationsPayload{},
		&ReferencesPayload{References: []ReferenceEntry{
			{Name: "Ref One", Designation: "Director", Organization: "Acme", Email: "one@example.com", Phone: "0111111111"},
			{Name: "Ref Two", Designation: "Manager", Organization: "Acme", Email: "two@example.com", Phone: "0112222222"},
		}},
		&DocumentsPayload{ProfilePhoto: "photos/profilePhoto-1.jpg", NICCopy: "documents/nicCopy-1.pdf"},
		&DeclarationPayload{Agreed: true, Signature: "Jane Perera"},
	}
}

// submit 完成第 2-8 步
func (f *fixture) submit(t *testing.T, applicantID string) {
	t.Helper()
	for _, payload := range stepPayloads() {
		_, err := f.registration.SaveStep(context.Background(), applicantID, payload.Step(), payload)
		require.NoError(t, err)
	}
}

func (f *fixture) load(t *testing.T, id string) *model.ApplicantModel {
	t.Helper()
	applicant, err := repository.NewApplicantRepository(f.db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return applicant
}
