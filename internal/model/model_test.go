package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicantCompleteStep(t *testing.T) {
	a := &ApplicantModel{CurrentStep: 1}

	a.CompleteStep(1)
	assert.Equal(t, []int{1}, a.CompletedSteps)
	assert.Equal(t, 12.5, a.RegistrationProgress)

	a.CompleteStep(3)
	a.CompleteStep(3)
	a.CompleteStep(2)
	assert.Equal(t, []int{1, 2, 3}, a.CompletedSteps)
	assert.Equal(t, 37.5, a.RegistrationProgress)
	assert.True(t, a.HasCompleted(2))
	assert.False(t, a.HasCompleted(8))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Progress(nil))
	assert.Equal(t, 100.0, Progress([]int{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.Equal(t, 50.0, Progress([]int{1, 2, 3, 4}))
}

func TestApplicantAdvanceTo(t *testing.T) {
	a := &ApplicantModel{CurrentStep: 4}

	a.AdvanceTo(3)
	assert.Equal(t, 4, a.CurrentStep)

	a.AdvanceTo(6)
	assert.Equal(t, 6, a.CurrentStep)

	a.AdvanceTo(9)
	assert.Equal(t, TotalSteps, a.CurrentStep)
}

func TestApplicantValidate(t *testing.T) {
	a := &ApplicantModel{}
	assert.Error(t, a.Validate())

	a = &ApplicantModel{ID: "a1", NICNumber: "123456789V", PersonalEmail: "x@example.com", Password: "hash"}
	assert.NoError(t, a.Validate())
}

func TestAdminValidate(t *testing.T) {
	m := &AdminModel{ID: "1", Username: "root", Email: "root@example.com", Role: "owner"}
	assert.Error(t, m.Validate())

	m.Role = RoleReviewer
	assert.NoError(t, m.Validate())
	assert.True(t, IsAdminRole(RoleSuperAdmin))
	assert.False(t, IsAdminRole("member"))
}

func TestNotificationValidate(t *testing.T) {
	n := &NotificationModel{ID: "n1", RecipientType: RecipientMember, Type: NotificationApplicationApproved, Title: "Application Approved!"}
	assert.Error(t, n.Validate(), "member notification without recipient")

	n.RecipientID = "a1"
	assert.NoError(t, n.Validate())

	broadcast := &NotificationModel{ID: "n2", RecipientType: RecipientAdmin, Type: NotificationRegistrationSubmitted, Title: "New Registration Submitted"}
	assert.NoError(t, broadcast.Validate())
}

func TestMailEventValidateDefaultsStatus(t *testing.T) {
	m := &MailEventModel{ID: "m1", Recipient: "x@example.com", Subject: "hi"}
	assert.NoError(t, m.Validate())
	assert.Equal(t, MailStatusPending, m.Status)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "applicants", ApplicantModel{}.TableName())
	assert.Equal(t, "admins", AdminModel{}.TableName())
	assert.Equal(t, "notifications", NotificationModel{}.TableName())
	assert.Equal(t, "membership_sequences", MembershipSequenceModel{}.TableName())
	assert.Equal(t, "mail_events", MailEventModel{}.TableName())
	assert.Equal(t, "audit_logs", AuditLogModel{}.TableName())
}

func TestDocumentsRefs(t *testing.T) {
	var empty *Documents
	assert.Nil(t, empty.Refs())

	docs := &Documents{ProfilePhoto: "photos/a.png", DegreeCertificates: []string{"documents/b.pdf", "documents/c.pdf"}}
	assert.Equal(t, []string{"photos/a.png", "documents/b.pdf", "documents/c.pdf"}, docs.Refs())
}
