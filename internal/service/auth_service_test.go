package service

import (
	"context"
	"testing"

	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	cases := []struct {
		actor  Actor
		action string
		allow  bool
	}{
		{reviewer, ActionViewApplications, true},
		{reviewer, ActionApprove, false},
		{reviewer, ActionReject, false},
		{reviewer, ActionManageAdmins, false},
		{adminActor, ActionViewApplications, true},
		{adminActor, ActionApprove, true},
		{adminActor, ActionReject, true},
		{adminActor, ActionManageAdmins, false},
		{superAdmin, ActionApprove, true},
		{superAdmin, ActionManageAdmins, true},
		{Actor{ID: "m", Type: auth.ActorMember, Role: model.RoleSuperAdmin}, ActionViewApplications, false},
		{adminActor, "delete_everything", false},
	}
	for _, tc := range cases {
		err := Authorize(tc.actor, tc.action)
		if tc.allow {
			assert.NoError(t, err, "%s %s", tc.actor.Role, tc.action)
			continue
		}
		assert.True(t, apperror.Is(err, apperror.KindAuthorization), "%s %s", tc.actor.Role, tc.action)
	}
}

func TestLoginMember(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)
	ctx := context.Background()

	result, err := f.auth.LoginMember(ctx, " JANE1@example.com ", "s3cret-pass")
	require.NoError(t, err)
	require.NotNil(t, result.Member)
	assert.Equal(t, a.ID, result.Member.ID)
	assert.NotNil(t, result.Member.LastLogin)

	identity, err := f.tokens.Parse(result.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.ActorMember, identity.ActorType)

	_, err = f.auth.LoginMember(ctx, "jane1@example.com", "wrong-pass")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	_, err = f.auth.LoginMember(ctx, "nobody@example.com", "s3cret-pass")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	_, err = f.auth.LoginMember(ctx, "", "")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestAdminLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.auth.SeedAdmin(ctx, &CreateAdminInput{
		Username: "root",
		Email:    "Root@Example.com",
		Password: "super-secret",
		Role:     model.RoleSuperAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", root.Email)
	assert.True(t, root.IsActive)

	login, err := f.auth.LoginAdmin(ctx, "root", "super-secret")
	require.NoError(t, err)
	identity, err := f.tokens.Parse(login.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.ActorAdmin, identity.ActorType)
	assert.Equal(t, model.RoleSuperAdmin, identity.Role)

	actor := ActorFromIdentity(identity)
	created, err := f.auth.CreateAdmin(ctx, actor, &CreateAdminInput{
		Username: "reviewer1",
		Email:    "reviewer1@example.com",
		Password: "reviewer-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleReviewer, created.Role)

	// 管理员邮箱也可登录
	_, err = f.auth.LoginAdmin(ctx, "reviewer1@example.com", "reviewer-pass")
	require.NoError(t, err)

	_, err = f.auth.CreateAdmin(ctx, actor, &CreateAdminInput{
		Username: "reviewer1",
		Email:    "other@example.com",
		Password: "reviewer-pass",
	})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	_, err = f.auth.CreateAdmin(ctx, reviewer, &CreateAdminInput{
		Username: "sneaky",
		Email:    "sneaky@example.com",
		Password: "reviewer-pass",
	})
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	_, err = f.auth.CreateAdmin(ctx, actor, &CreateAdminInput{
		Username: "bad role",
		Email:    "bad@example.com",
		Password: "reviewer-pass",
		Role:     "owner",
	})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	profile, err := f.auth.Me(ctx, actor)
	require.NoError(t, err)
	require.NotNil(t, profile.Admin)
	assert.Equal(t, "root", profile.Admin.Username)
}

func TestLoginAdmin_Inactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.auth.SeedAdmin(ctx, &CreateAdminInput{
		Username: "retired",
		Email:    "retired@example.com",
		Password: "retired-pass",
		Role:     model.RoleAdmin,
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.AdminModel{}).Where("id = ?", admin.ID).Update("is_active", false).Error)

	_, err = f.auth.LoginAdmin(ctx, "retired", "retired-pass")
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	_, err = f.auth.LoginAdmin(ctx, "retired", "wrong")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
}

func TestMe_Member(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)

	profile, err := f.auth.Me(context.Background(), Actor{ID: a.ID, Type: auth.ActorMember})
	require.NoError(t, err)
	require.NotNil(t, profile.Member)
	assert.Equal(t, a.ID, profile.Member.ID)
	assert.Nil(t, profile.Admin)

	_, err = f.auth.Me(context.Background(), Actor{ID: "missing", Type: auth.ActorMember})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestNotificationInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, 1)
	f.submit(t, a.ID)
	b := f.register(t, 2)
	f.submit(t, b.ID)

	// 广播通知对所有管理员可见
	for _, actor := range []Actor{adminActor, reviewer} {
		items, total, err := f.inbox.List(ctx, actor, true, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, items, 2)
	}

	items, _, err := f.inbox.List(ctx, adminActor, false, 1, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, f.inbox.MarkRead(ctx, adminActor, items[0].ID))

	_, total, err := f.inbox.List(ctx, adminActor, true, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// 会员看不到管理员通知
	member := Actor{ID: a.ID, Type: auth.ActorMember}
	memberItems, _, err := f.inbox.List(ctx, member, false, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, memberItems)
	err = f.inbox.MarkRead(ctx, member, items[0].ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
