package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounters(t *testing.T) {
	before := promtestutil.ToFloat64(reviewsTotal.WithLabelValues("approve"))
	RecordReview("approve")
	assert.Equal(t, before+1, promtestutil.ToFloat64(reviewsTotal.WithLabelValues("approve")))

	before = promtestutil.ToFloat64(registrationStepsTotal.WithLabelValues("4"))
	RecordStepSaved(4)
	assert.Equal(t, before+1, promtestutil.ToFloat64(registrationStepsTotal.WithLabelValues("4")))

	before = promtestutil.ToFloat64(mailDeliveriesTotal.WithLabelValues("sent"))
	RecordMailDelivery("sent")
	assert.Equal(t, before+1, promtestutil.ToFloat64(mailDeliveriesTotal.WithLabelValues("sent")))
}

func TestCollectorCollect(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now()
	for i, status := range []string{model.StatusPending, model.StatusPending, model.StatusApproved} {
		require.NoError(t, db.Create(&model.ApplicantModel{
			ID: uuid.New().String(), Status: status, Password: "h", NameWithInitials: "A", FullName: "A",
			DateOfBirth: "1990-01-01", NICNumber: uuid.New().String()[:12], Nationality: model.DefaultNationality,
			Gender: "male", District: "Kandy", ResidentialAddress: "x", MobileNumber: "1",
			PersonalEmail: uuid.New().String() + "@example.com", CreatedAt: now.Add(time.Duration(i) * time.Second), UpdatedAt: now,
		}).Error)
	}

	c := NewCollector(db, time.Hour)
	require.NoError(t, c.Collect(context.Background()))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(applicantsByStatus.WithLabelValues(model.StatusPending)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(applicantsByStatus.WithLabelValues(model.StatusApproved)))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(applicantsByStatus.WithLabelValues(model.StatusRejected)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(databaseConnectionsMax))

	c.Start()
	c.Stop()
}
