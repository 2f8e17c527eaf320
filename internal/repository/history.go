package repository

import (
	"context"

	"family-news-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryRepository interface {
	// Record appends an audit entry snapshotting the subscription at the
	// moment of a state transition.
	Record(ctx context.Context, tx *gorm.DB, action string, sub *model.Subscription) error
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*model.SubscriptionHistory, error)
}

type historyRepoImpl struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepoImpl{db: db}
}

func (r *historyRepoImpl) Record(ctx context.Context, tx *gorm.DB, action string, sub *model.Subscription) error {
	if tx == nil {
		tx = r.db
	}
	start := sub.StartDate
	entry := model.SubscriptionHistory{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		Action:         action,
		Status:         sub.Status,
		StartDate:      &start,
		EndDate:        sub.EndDate,
		CancelReason:   sub.CancelReason,
		Amount:         sub.Amount,
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

func (r *historyRepoImpl) ListBySubscription(ctx context.Context, subscriptionID string) ([]*model.SubscriptionHistory, error) {
	var entries []*model.SubscriptionHistory
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
