package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"family-news-service/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the shared in-memory database alive and
	// avoids sqlite write contention in concurrent tests.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.FamilyGroup{},
		&model.FamilyMember{},
		&model.Subscription{},
		&model.Payment{},
		&model.SubscriptionHistory{},
	))
	return db
}

func amount() decimal.Decimal { return decimal.NewFromInt(6900) }

func TestActivateCreatesNewSubscription(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "sid-1")
	require.NoError(t, err)

	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Equal(t, "group-1", sub.GroupID)
	assert.Equal(t, "user-1", sub.UserID)
	assert.Equal(t, "sid-1", sub.BillingKey)
	require.NotNil(t, sub.NextBillingDate)

	wantNext := time.Now().Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, wantNext, *sub.NextBillingDate, time.Minute)
}

func TestActivateWithoutMandateHasNoBillingDate(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)

	sub, err := repo.ActivateOrReactivate(context.Background(), nil, "group-1", "user-1", amount(), "")
	require.NoError(t, err)
	assert.Nil(t, sub.NextBillingDate)
}

func TestReactivateReusesLifecycleRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	first, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "sid-1")
	require.NoError(t, err)

	_, err = repo.Cancel(ctx, nil, first.ID, "user request")
	require.NoError(t, err)

	second, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-2", amount(), "sid-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same row must be reactivated, not a new insert")
	assert.Equal(t, model.SubscriptionActive, second.Status)
	assert.Equal(t, "user-2", second.UserID)
	assert.Equal(t, "sid-2", second.BillingKey)
	assert.Nil(t, second.EndDate)
	assert.Empty(t, second.CancelReason)

	var count int64
	require.NoError(t, db.Model(&model.Subscription{}).Where("group_id = ?", "group-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFindActiveByGroupIgnoresClosedRows(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "")
	require.NoError(t, err)

	active, err := repo.FindActiveByGroup(ctx, "group-1")
	require.NoError(t, err)
	require.NotNil(t, active)

	_, err = repo.Cancel(ctx, nil, sub.ID, "done")
	require.NoError(t, err)

	active, err = repo.FindActiveByGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	any, err := repo.FindAnyByGroup(ctx, "group-1")
	require.NoError(t, err)
	require.NotNil(t, any)
	assert.Equal(t, model.SubscriptionCancelled, any.Status)
}

func TestCancelSetsEndDateAndClearsMandate(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "sid-1")
	require.NoError(t, err)

	cancelled, err := repo.Cancel(ctx, nil, sub.ID, "user request")
	require.NoError(t, err)

	assert.Equal(t, model.SubscriptionCancelled, cancelled.Status)
	require.NotNil(t, cancelled.EndDate)
	assert.WithinDuration(t, time.Now(), *cancelled.EndDate, time.Minute)
	assert.Empty(t, cancelled.BillingKey)
	assert.Nil(t, cancelled.NextBillingDate)
	assert.Equal(t, "user request", cancelled.CancelReason)
}

func TestExpireRecordsReason(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "sid-1")
	require.NoError(t, err)

	expired, err := repo.Expire(ctx, nil, sub.ID, "recurring charge failed: declined")
	require.NoError(t, err)

	assert.Equal(t, model.SubscriptionExpired, expired.Status)
	assert.Contains(t, expired.CancelReason, "declined")
	require.NotNil(t, expired.EndDate)
}

func TestDueForBillingBoundaryIsInclusive(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "sid-1")
	require.NoError(t, err)

	dueDate := *sub.NextBillingDate

	due, err := repo.DueForBilling(ctx, dueDate)
	require.NoError(t, err)
	require.Len(t, due, 1, "subscription must be due exactly on its billing date")
	assert.Equal(t, sub.ID, due[0].ID)

	due, err = repo.DueForBilling(ctx, dueDate.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due, "subscription must not be due the day before")
}

func TestDueForBillingSkipsMandatelessAndInactive(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	// Active but no mandate.
	_, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "")
	require.NoError(t, err)

	// Mandate but expired.
	sub2, err := repo.ActivateOrReactivate(ctx, nil, "group-2", "user-2", amount(), "sid-2")
	require.NoError(t, err)
	_, err = repo.Expire(ctx, nil, sub2.ID, "failed")
	require.NoError(t, err)

	due, err := repo.DueForBilling(ctx, time.Now().Add(40*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestAdvanceNextBillingDate(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub, err := repo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "sid-1")
	require.NoError(t, err)

	require.NoError(t, repo.AdvanceNextBillingDate(ctx, nil, sub.ID))

	reloaded, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.NextBillingDate)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *reloaded.NextBillingDate, time.Minute)
}

func TestDeleteByGroupRemovesChildren(t *testing.T) {
	db := openTestDB(t)
	subRepo := NewSubscriptionRepository(db)
	payRepo := NewPaymentRepository(db)
	histRepo := NewHistoryRepository(db)
	ctx := context.Background()

	sub, err := subRepo.ActivateOrReactivate(ctx, nil, "group-1", "user-1", amount(), "sid-1")
	require.NoError(t, err)
	require.NoError(t, payRepo.Create(ctx, nil, &model.Payment{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		TransactionID:  "A1",
		Amount:         amount(),
		Status:         model.PaymentSuccess,
		PaymentMethod:  "kakao_pay",
	}))
	require.NoError(t, histRepo.Record(ctx, nil, model.HistoryCreated, sub))

	deleted, err := subRepo.DeleteByGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	for _, m := range []interface{}{&model.Subscription{}, &model.Payment{}, &model.SubscriptionHistory{}} {
		var count int64
		require.NoError(t, db.Model(m).Count(&count).Error)
		assert.EqualValues(t, 0, count)
	}

	deleted, err = subRepo.DeleteByGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, deleted)
}
