package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"family-news-service/internal/dto"
	"family-news-service/internal/model"
	"family-news-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakePayments fails the charge for the subscription ids it is told to.
type fakePayments struct {
	failFor map[string]bool
	charged []string
}

func (f *fakePayments) ChargeRecurring(ctx context.Context, sub *model.Subscription) error {
	f.charged = append(f.charged, sub.ID)
	if f.failFor[sub.ID] {
		return errors.New("charge declined")
	}
	return nil
}

func (f *fakePayments) Ready(ctx context.Context, userID string, recurring bool) (*dto.PaymentReadyResponse, error) {
	panic("not used")
}
func (f *fakePayments) Approve(ctx context.Context, key, pgToken string) (*dto.PaymentApproveResult, error) {
	panic("not used")
}
func (f *fakePayments) AbandonPending(ctx context.Context, key string) { panic("not used") }
func (f *fakePayments) CancelSubscription(ctx context.Context, userID, subscriptionID, reason string) (*dto.SubscriptionCancelResult, error) {
	panic("not used")
}
func (f *fakePayments) TearDownGroup(ctx context.Context, groupID string) (*dto.SubscriptionCancelResult, error) {
	panic("not used")
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Subscription{}))
	return db
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	db := openTestDB(t)
	repo := repository.NewSubscriptionRepository(db)
	ctx := context.Background()

	var subs []*model.Subscription
	for _, g := range []string{"g1", "g2", "g3"} {
		sub, err := repo.ActivateOrReactivate(ctx, nil, g, "payer-"+g, decimal.NewFromInt(6900), "sid-"+g)
		require.NoError(t, err)
		// Make the subscription due now.
		past := sub.StartDate.AddDate(0, 0, -31)
		require.NoError(t, db.Model(&model.Subscription{}).
			Where("id = ?", sub.ID).
			Update("next_billing_date", past).Error)
		subs = append(subs, sub)
	}

	payments := &fakePayments{failFor: map[string]bool{subs[1].ID: true}}
	w := NewBillingWorker("5 0 * * *", payments, repo,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	succeeded, failed := w.RunOnce(ctx)

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Len(t, payments.charged, 3, "one failure must not abort the remaining charges")
}

func TestRunOnceNothingDue(t *testing.T) {
	db := openTestDB(t)
	repo := repository.NewSubscriptionRepository(db)

	// Active subscription whose billing date is still a month out.
	_, err := repo.ActivateOrReactivate(context.Background(), nil, "g1", "payer", decimal.NewFromInt(6900), "sid-1")
	require.NoError(t, err)

	payments := &fakePayments{}
	w := NewBillingWorker("5 0 * * *", payments, repo,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	succeeded, failed := w.RunOnce(context.Background())
	assert.Zero(t, succeeded)
	assert.Zero(t, failed)
	assert.Empty(t, payments.charged)
}
