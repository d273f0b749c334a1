package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPending_OnlySubmittedPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.register(t, 1)
	first := f.register(t, 2)
	f.submit(t, first.ID)
	second := f.register(t, 3)
	f.submit(t, second.ID)
	approved := f.register(t, 4)
	f.submit(t, approved.ID)
	_, err := f.review.Approve(ctx, approved.ID, adminActor, "")
	require.NoError(t, err)

	page, err := f.query.ListPending(ctx, &ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	// 按提交时间倒序
	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.Equal(t, first.ID, page.Items[1].ID)
	for _, item := range page.Items {
		assert.NotEqual(t, draft.ID, item.ID)
	}
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
}

func TestListPending_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, 1)
	f.submit(t, a.ID)
	b := f.register(t, 2)
	f.submit(t, b.ID)

	cases := map[string]string{
		"JANE PERERA1":  a.ID,
		"j. perera2":    b.ID,
		a.NICNumber:     a.ID,
		"jane2@example": b.ID,
	}
	for search, want := range cases {
		page, err := f.query.ListPending(ctx, &ListFilter{Search: search})
		require.NoError(t, err, search)
		require.Len(t, page.Items, 1, search)
		assert.Equal(t, want, page.Items[0].ID, search)
	}

	// 通配符按字面匹配
	page, err := f.query.ListPending(ctx, &ListFilter{Search: "%"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestListAll_FilterSortAndPaginate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		f.register(t, i)
	}
	a := f.register(t, 6)
	f.submit(t, a.ID)
	approved, err := f.review.Approve(ctx, a.ID, adminActor, "")
	require.NoError(t, err)

	page, err := f.query.ListAll(ctx, &ListFilter{PageSize: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(6), page.Total)
	assert.Len(t, page.Items, 4)

	page, err = f.query.ListAll(ctx, &ListFilter{Page: 2, PageSize: 4})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = f.query.ListAll(ctx, &ListFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)

	// 会员编号可检索
	page, err = f.query.ListAll(ctx, &ListFilter{Search: *approved.MembershipID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = f.query.ListAll(ctx, &ListFilter{SortBy: "fullName", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Perera1", page.Items[0].FullName)

	page, err = f.query.ListAll(ctx, &ListFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
}

func TestListAll_RejectsInvalidFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, filter := range []*ListFilter{
		{Status: "archived"},
		{SortBy: "password"},
		{SortBy: "created_at; DROP TABLE applicants"},
		{Order: "sideways"},
	} {
		_, err := f.query.ListAll(ctx, filter)
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	}
}

func TestGetApplicant(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, 1)

	found, err := f.query.GetApplicant(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.FullName, found.FullName)

	_, err = f.query.GetApplicant(context.Background(), uuid.New().String())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.query.AuditTrail(context.Background(), uuid.New().String())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestGetStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, 1) // 未提交
	pending := f.register(t, 2)
	f.submit(t, pending.ID)
	approved := f.register(t, 3)
	f.submit(t, approved.ID)
	_, err := f.review.Approve(ctx, approved.ID, adminActor, "")
	require.NoError(t, err)
	rejected := f.register(t, 4)
	f.submit(t, rejected.ID)
	_, err = f.review.Reject(ctx, rejected.ID, adminActor, "Incomplete")
	require.NoError(t, err)
	active := f.register(t, 5)
	require.NoError(t, f.db.Model(&model.ApplicantModel{}).Where("id = ?", active.ID).Update("status", model.StatusActive).Error)
	old := f.register(t, 6)
	require.NoError(t, f.db.Model(&model.ApplicantModel{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().Add(-45*24*time.Hour)).Error)

	stats, err := f.stats.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMembers)
	assert.Equal(t, int64(1), stats.PendingApplications)
	assert.Equal(t, int64(1), stats.ActiveMembers)
	assert.Equal(t, int64(1), stats.RejectedApplications)
	assert.Equal(t, int64(5), stats.RecentRegistrations)
}
