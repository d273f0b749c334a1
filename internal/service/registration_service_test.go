package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesApplicantWithStepOne(t *testing.T) {
	f := newFixture(t)

	result, err := f.registration.Register(context.Background(), registerInput(1))
	require.NoError(t, err)

	a := result.Applicant
	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, []int{1}, a.CompletedSteps)
	assert.Equal(t, 2, a.CurrentStep)
	assert.InDelta(t, 12.5, a.RegistrationProgress, 0.001)
	assert.Equal(t, model.DefaultNationality, a.Nationality)
	assert.Nil(t, a.MembershipID)
	assert.NotEqual(t, "s3cret-pass", a.Password)

	identity, err := f.tokens.Parse(result.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, identity.ActorID)
	assert.Equal(t, "member", identity.ActorType)

	// 欢迎邮件和审计日志
	assert.Equal(t, []string{"jane1@example.com|Welcome to IEPSL - Registration Received"}, f.mailer.subjects())
	logs, err := f.query.AuditTrail(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionRegister, logs[0].Action)
}

func TestRegister_NormalizesIdentity(t *testing.T) {
	f := newFixture(t)

	input := registerInput(1)
	input.PersonalEmail = "  Jane.Doe@Example.COM "
	input.NICNumber = "123456789v"
	result, err := f.registration.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", result.Applicant.PersonalEmail)
	assert.Equal(t, "123456789V", result.Applicant.NICNumber)
}

func TestRegister_DuplicateNICRejected(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	input := registerInput(2)
	input.NICNumber = registerInput(1).NICNumber
	_, err := f.registration.Register(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	// 没有写入任何数据
	count, err := repository.NewApplicantRepository(f.db).Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	input := registerInput(2)
	input.PersonalEmail = "JANE1@example.com"
	_, err := f.registration.Register(context.Background(), input)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestRegister_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	cases := map[string]func(*RegisterInput){
		"bad nic":        func(in *RegisterInput) { in.NICNumber = "12345" },
		"bad email":      func(in *RegisterInput) { in.PersonalEmail = "not-an-email" },
		"short password": func(in *RegisterInput) { in.Password = "short" },
		"bad gender":     func(in *RegisterInput) { in.Gender = "unknown" },
		"bad birth date": func(in *RegisterInput) { in.DateOfBirth = "17/05/1990" },
		"blank name":     func(in *RegisterInput) { in.FullName = "   " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := registerInput(1)
			mutate(input)
			_, err := f.registration.Register(context.Background(), input)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation))
		})
	}
}

func TestRegister_AcceptsNewNICFormat(t *testing.T) {
	f := newFixture(t)

	input := registerInput(1)
	input.NICNumber = "199012345678"
	_, err := f.registration.Register(context.Background(), input)
	assert.NoError(t, err)
}

func TestSaveStep_ProgressFormula(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	ctx := context.Background()

	for i, payload := range stepPayloads() {
		progress, err := f.registration.SaveStep(ctx, a.ID, payload.Step(), payload)
		require.NoError(t, err)
		assert.InDelta(t, float64(i+2)/8*100, progress.RegistrationProgress, 0.001)
		assert.Len(t, progress.CompletedSteps, i+2)
	}

	stored := f.load(t, a.ID)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, stored.CompletedSteps)
	assert.InDelta(t, 100.0, stored.RegistrationProgress, 0.001)
	assert.Equal(t, 8, stored.CurrentStep)
	assert.NotNil(t, stored.SubmittedAt)
	require.NotNil(t, stored.Declaration)
	assert.True(t, stored.Declaration.Agreed)
	assert.NotNil(t, stored.Declaration.AgreedDate)
}

func TestSaveStep_ResaveReplacesSection(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	ctx := context.Background()

	first := &WorkExperiencePayload{WorkExperience: []WorkExperienceEntry{
		{PlaceOfWork: "Acme", Designation: "Engineer", NatureOfWork: "Design"},
		{PlaceOfWork: "Globex", Designation: "Lead", NatureOfWork: "Review"},
	}}
	_, err := f.registration.SaveStep(ctx, a.ID, 3, first)
	require.NoError(t, err)

	second := &WorkExperiencePayload{WorkExperience: []WorkExperienceEntry{
		{PlaceOfWork: "Initech", Designation: "Manager", NatureOfWork: "Planning"},
	}}
	progress, err := f.registration.SaveStep(ctx, a.ID, 3, second)
	require.NoError(t, err)

	stored := f.load(t, a.ID)
	require.Len(t, stored.WorkExperience, 1)
	assert.Equal(t, "Initech", stored.WorkExperience[0].PlaceOfWork)
	assert.Equal(t, []int{1, 3}, stored.CompletedSteps)
	assert.InDelta(t, 25.0, progress.RegistrationProgress, 0.001)

	// 相同数据再次保存结果不变
	_, err = f.registration.SaveStep(ctx, a.ID, 3, second)
	require.NoError(t, err)
	again := f.load(t, a.ID)
	assert.Equal(t, stored.WorkExperience, again.WorkExperience)
	assert.Equal(t, stored.CompletedSteps, again.CompletedSteps)
}

func TestSaveStep_CurrentStepNeverDecreases(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	ctx := context.Background()

	payloads := stepPayloads()
	_, err := f.registration.SaveStep(ctx, a.ID, 6, payloads[4])
	require.NoError(t, err)
	assert.Equal(t, 7, f.load(t, a.ID).CurrentStep)

	// 回到前面的步骤修改
	progress, err := f.registration.SaveStep(ctx, a.ID, 2, payloads[0])
	require.NoError(t, err)
	assert.Equal(t, 7, progress.CurrentStep)
	assert.Equal(t, 7, f.load(t, a.ID).CurrentStep)
}

func TestSaveStep_DeclarationNotAgreedLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	ctx := context.Background()
	before := f.load(t, a.ID)

	_, err := f.registration.SaveStep(ctx, a.ID, 8, &DeclarationPayload{Agreed: false, Signature: "Jane"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPrecondition))

	after := f.load(t, a.ID)
	assert.Equal(t, before.CompletedSteps, after.CompletedSteps)
	assert.Equal(t, before.CurrentStep, after.CurrentStep)
	assert.Nil(t, after.SubmittedAt)
	assert.Nil(t, after.Declaration)
	assert.Equal(t, 0, f.pusher.count())
}

func TestSaveStep_BlankSignatureRejected(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)

	_, err := f.registration.SaveStep(context.Background(), a.ID, 8, &DeclarationPayload{Agreed: true, Signature: "  "})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestSaveStep_SubmissionNotifiesAdmins(t *testing.T) {
	f := newFixture(t)
	input := registerInput(1)
	input.NICNumber = "123456789V"
	result, err := f.registration.Register(context.Background(), input)
	require.NoError(t, err)
	a := result.Applicant

	f.submit(t, a.ID)

	notifications, total, err := f.inbox.List(context.Background(), adminActor, false, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	n := notifications[0]
	assert.Equal(t, model.NotificationRegistrationSubmitted, n.Type)
	assert.Equal(t, "New Registration Submitted", n.Title)
	assert.Equal(t, a.ID, n.Metadata["memberId"])
	assert.Equal(t, a.FullName, n.Metadata["memberName"])
	assert.Equal(t, 1, f.pusher.count())

	// 已提交的申请出现在待审核列表
	page, err := f.query.ListPending(context.Background(), &ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)
}

func TestSaveStep_SecondSubmissionConflicts(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	f.submit(t, a.ID)

	_, err := f.registration.SaveStep(context.Background(), a.ID, 8, &DeclarationPayload{Agreed: true, Signature: "Jane"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, 1, f.pusher.count())
}

func TestSaveStep_InvalidInput(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	ctx := context.Background()

	_, err := f.registration.SaveStep(ctx, a.ID, 9, &DeclarationPayload{Agreed: true, Signature: "x"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.registration.SaveStep(ctx, a.ID, 3, &EducationPayload{})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.registration.SaveStep(ctx, a.ID, 4, &EducationPayload{})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.registration.SaveStep(ctx, a.ID, 6, &ReferencesPayload{References: []ReferenceEntry{
		{Name: "Only One", Designation: "Director", Organization: "Acme", Email: "one@example.com", Phone: "011"},
	}})
	require.Error(t, err)
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "references")

	_, err = f.registration.SaveStep(ctx, uuid.New().String(), 2, &OfficeDetailsPayload{})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestSaveStep_DocumentsKeepExistingReferences(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	ctx := context.Background()

	_, err := f.registration.SaveStep(ctx, a.ID, 7, &DocumentsPayload{
		ProfilePhoto:       "photos/profilePhoto-a.jpg",
		NICCopy:            "documents/nicCopy-a.pdf",
		DegreeCertificates: []string{"documents/degree-a.pdf"},
	})
	require.NoError(t, err)

	// 只上传简历,其他文件保持不变
	_, err = f.registration.SaveStep(ctx, a.ID, 7, &DocumentsPayload{CVDocument: "documents/cv-b.pdf"})
	require.NoError(t, err)

	docs := f.load(t, a.ID).Documents
	require.NotNil(t, docs)
	assert.Equal(t, "photos/profilePhoto-a.jpg", docs.ProfilePhoto)
	assert.Equal(t, "documents/nicCopy-a.pdf", docs.NICCopy)
	assert.Equal(t, []string{"documents/degree-a.pdf"}, docs.DegreeCertificates)
	assert.Equal(t, "documents/cv-b.pdf", docs.CVDocument)

	_, err = f.registration.SaveStep(ctx, a.ID, 7, &DocumentsPayload{DegreeCertificates: []string{"1", "2", "3", "4", "5", "6"}})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestSaveStep_RejectedWhenNotPending(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	f.submit(t, a.ID)
	_, err := f.review.Approve(context.Background(), a.ID, adminActor, "")
	require.NoError(t, err)

	_, err = f.registration.SaveStep(context.Background(), a.ID, 2, &OfficeDetailsPayload{OfficeAddress: "New"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestGetProgress(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)

	progress, err := f.registration.GetProgress(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.CurrentStep)
	assert.Equal(t, []int{1}, progress.CompletedSteps)
	assert.False(t, progress.Submitted)
	assert.Equal(t, a.ID, progress.Applicant.ID)

	_, err = f.registration.GetProgress(context.Background(), uuid.New().String())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestNewStepPayload(t *testing.T) {
	for step := 2; step <= 8; step++ {
		payload, err := NewStepPayload(step)
		require.NoError(t, err)
		assert.Equal(t, step, payload.Step())
	}
	_, err := NewStepPayload(1)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
