package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFormatAndParseMembershipID(t *testing.T) {
	id := FormatMembershipID("IEPSL", 2024, 7)
	assert.Equal(t, "IEPSL-2024-007", id)
	assert.True(t, IsMembershipID(id))

	prefix, year, seq, err := ParseMembershipID(id)
	require.NoError(t, err)
	assert.Equal(t, "IEPSL", prefix)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 7, seq)

	for _, bad := range []string{"", "IEPSL-2024-7", "iepsl-2024-001", "IEPSL-24-001", "IEPSL-2024-0001"} {
		assert.False(t, IsMembershipID(bad), bad)
		_, _, _, err := ParseMembershipID(bad)
		assert.Error(t, err, bad)
	}
}

func nextID(t *testing.T, db *gorm.DB, gen MembershipIDGenerator, year int) (string, error) {
	t.Helper()
	var id string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = gen.Next(context.Background(), tx, year)
		return err
	})
	return id, err
}

func TestMembershipIDGenerator_SequencePerYear(t *testing.T) {
	db := testutil.NewDB(t)
	gen := NewMembershipIDGenerator("IEPSL")

	id, err := nextID(t, db, gen, 2024)
	require.NoError(t, err)
	assert.Equal(t, "IEPSL-2024-001", id)

	id, err = nextID(t, db, gen, 2024)
	require.NoError(t, err)
	assert.Equal(t, "IEPSL-2024-002", id)

	// 新的年份从 001 开始
	id, err = nextID(t, db, gen, 2025)
	require.NoError(t, err)
	assert.Equal(t, "IEPSL-2025-001", id)
}

func TestMembershipIDGenerator_SeedsFromExistingIDs(t *testing.T) {
	db := testutil.NewDB(t)
	gen := NewMembershipIDGenerator("IEPSL")

	// 计数器表引入前已经发放过的编号
	legacy := "IEPSL-2024-041"
	now := time.Now()
	require.NoError(t, db.Create(&model.ApplicantModel{
		ID:                 uuid.New().String(),
		MembershipID:       &legacy,
		Status:             model.StatusApproved,
		Password:           "hash",
		NameWithInitials:   "A. Legacy",
		FullName:           "Alice Legacy",
		DateOfBirth:        "1980-01-01",
		NICNumber:          "800000000V",
		Nationality:        model.DefaultNationality,
		Gender:             "female",
		District:           "Kandy",
		ResidentialAddress: "1 Hill St",
		MobileNumber:       "0770000000",
		PersonalEmail:      "legacy@example.com",
		CurrentStep:        8,
		CreatedAt:          now,
		UpdatedAt:          now,
	}).Error)

	id, err := nextID(t, db, gen, 2024)
	require.NoError(t, err)
	assert.Equal(t, "IEPSL-2024-042", id)
}

func TestMembershipIDGenerator_RollbackReleasesValue(t *testing.T) {
	db := testutil.NewDB(t)
	gen := NewMembershipIDGenerator("IEPSL")

	_, err := nextID(t, db, gen, 2024)
	require.NoError(t, err)

	errRollback := apperror.NewConflict("rolled back", "")
	err = db.Transaction(func(tx *gorm.DB) error {
		id, err := gen.Next(context.Background(), tx, 2024)
		require.NoError(t, err)
		assert.Equal(t, "IEPSL-2024-002", id)
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	id, err := nextID(t, db, gen, 2024)
	require.NoError(t, err)
	assert.Equal(t, "IEPSL-2024-002", id)
}

func TestMembershipIDGenerator_Exhausted(t *testing.T) {
	db := testutil.NewDB(t)
	gen := NewMembershipIDGenerator("IEPSL")

	require.NoError(t, db.Create(&model.MembershipSequenceModel{
		Prefix:    "IEPSL",
		Year:      2024,
		LastValue: MaxSequence,
		UpdatedAt: time.Now(),
	}).Error)

	_, err := nextID(t, db, gen, 2024)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	// 失败不改变计数器
	var seq model.MembershipSequenceModel
	require.NoError(t, db.Where("prefix = ? AND year = ?", "IEPSL", 2024).First(&seq).Error)
	assert.Equal(t, MaxSequence, seq.LastValue)
}
