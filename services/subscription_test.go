package services

import (
	"testing"
	"time"

	"referral-reward-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendProCreatesRewardTrial(t *testing.T) {
	subs := NewSubscriptionService(newTestDB(t))

	require.NoError(t, subs.ExtendPro("user-1", 30))

	sub, err := subs.GetForUser("user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrial, sub.Status)
	assert.Equal(t, models.PlanReferralReward, sub.PlanType)
	assert.True(t, sub.TrialUsed)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *sub.CurrentPeriodEnd, time.Minute)
}

func TestExtendProAccumulates(t *testing.T) {
	subs := NewSubscriptionService(newTestDB(t))

	require.NoError(t, subs.ExtendPro("user-2", 30))
	before, err := subs.GetForUser("user-2")
	require.NoError(t, err)

	require.NoError(t, subs.ExtendPro("user-2", 7))
	after, err := subs.GetForUser("user-2")
	require.NoError(t, err)

	require.NotNil(t, after.CurrentPeriodEnd)
	// Extensions add to the existing period end rather than resetting it.
	assert.WithinDuration(t, before.CurrentPeriodEnd.AddDate(0, 0, 7), *after.CurrentPeriodEnd, time.Minute)
	assert.False(t, after.CurrentPeriodEnd.Before(*before.CurrentPeriodEnd), "period end must never shrink")
}

func TestExtendProExtendsActiveSubscription(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionService(db)

	end := time.Now().AddDate(0, 1, 0).Round(time.Second)
	require.NoError(t, db.Create(&models.Subscription{
		ID:               uuid.NewString(),
		UserID:           "payer-1",
		Status:           models.SubscriptionStatusActive,
		PlanType:         "pro_monthly",
		CurrentPeriodEnd: &end,
	}).Error)

	require.NoError(t, subs.ExtendPro("payer-1", 7))

	sub, err := subs.GetForUser("payer-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status, "paid status untouched")
	assert.Equal(t, "pro_monthly", sub.PlanType)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.WithinDuration(t, end.AddDate(0, 0, 7), *sub.CurrentPeriodEnd, time.Minute)
}

func TestExtendProReactivatesLapsedRow(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionService(db)

	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, db.Create(&models.Subscription{
		ID:               uuid.NewString(),
		UserID:           "lapsed-1",
		Status:           models.SubscriptionStatusNone,
		CurrentPeriodEnd: &past,
	}).Error)

	require.NoError(t, subs.ExtendPro("lapsed-1", 7))

	sub, err := subs.GetForUser("lapsed-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrial, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *sub.CurrentPeriodEnd, time.Minute)
}

func TestExtendProRejectsNonPositiveDays(t *testing.T) {
	subs := NewSubscriptionService(newTestDB(t))
	assert.Error(t, subs.ExtendPro("user-3", 0))
	assert.Error(t, subs.ExtendPro("user-3", -5))
}

func TestExpireLapsedTrials(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionService(db)

	past := time.Now().AddDate(0, 0, -1)
	future := time.Now().AddDate(0, 0, 5)
	require.NoError(t, db.Create(&models.Subscription{
		ID: uuid.NewString(), UserID: "expired-1",
		Status: models.SubscriptionStatusTrial, CurrentPeriodEnd: &past,
	}).Error)
	require.NoError(t, db.Create(&models.Subscription{
		ID: uuid.NewString(), UserID: "running-1",
		Status: models.SubscriptionStatusTrial, CurrentPeriodEnd: &future,
	}).Error)
	require.NoError(t, db.Create(&models.Subscription{
		ID: uuid.NewString(), UserID: "paying-1",
		Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &past,
	}).Error)

	expired, err := subs.ExpireLapsedTrials()
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	sub, _ := subs.GetForUser("expired-1")
	assert.Equal(t, models.SubscriptionStatusNone, sub.Status)
	sub, _ = subs.GetForUser("running-1")
	assert.Equal(t, models.SubscriptionStatusTrial, sub.Status)
	sub, _ = subs.GetForUser("paying-1")
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status, "active rows belong to billing")
}
