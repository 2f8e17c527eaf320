package repository

import (
	"context"
	"errors"
	"time"

	"family-news-service/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// billingCycle is the interval between recurring charges.
const billingCycle = 30 * 24 * time.Hour

type SubscriptionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Subscription, error)
	FindActiveByGroup(ctx context.Context, groupID string) (*model.Subscription, error)
	FindAnyByGroup(ctx context.Context, groupID string) (*model.Subscription, error)
	FindByUser(ctx context.Context, userID string) ([]*model.Subscription, error)

	// ActivateOrReactivate flips the group's lifecycle row to active, reusing a
	// cancelled or expired row in place if one exists. Callers must have
	// re-verified that no active row exists before invoking it.
	ActivateOrReactivate(ctx context.Context, tx *gorm.DB, groupID, userID string, amount decimal.Decimal, billingKey string) (*model.Subscription, error)

	Cancel(ctx context.Context, tx *gorm.DB, id, reason string) (*model.Subscription, error)
	Expire(ctx context.Context, tx *gorm.DB, id, reason string) (*model.Subscription, error)

	DueForBilling(ctx context.Context, asOf time.Time) ([]*model.Subscription, error)
	AdvanceNextBillingDate(ctx context.Context, tx *gorm.DB, id string) error

	// DeleteByGroup hard-deletes the group's subscription row together with its
	// payments and history. Group teardown only.
	DeleteByGroup(ctx context.Context, groupID string) (int64, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{db: db}
}

func (r *subscriptionRepoImpl) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) FindActiveByGroup(ctx context.Context, groupID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND status = ?", groupID, model.SubscriptionActive).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) FindAnyByGroup(ctx context.Context, groupID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) FindByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriptionRepoImpl) ActivateOrReactivate(ctx context.Context, tx *gorm.DB, groupID, userID string, amount decimal.Decimal, billingKey string) (*model.Subscription, error) {
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	var next *time.Time
	if billingKey != "" {
		n := now.Add(billingCycle)
		next = &n
	}

	var existing model.Subscription
	err := tx.WithContext(ctx).
		Where("group_id = ?", groupID).
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err == nil {
		// Reuse the lifecycle row so payment history keeps one FK target.
		existing.UserID = userID
		existing.Status = model.SubscriptionActive
		existing.StartDate = now
		existing.EndDate = nil
		existing.NextBillingDate = next
		existing.Amount = amount
		existing.PaymentMethod = "kakao_pay"
		existing.BillingKey = billingKey
		existing.CancelReason = ""
		if err := tx.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	sub := model.Subscription{
		ID:              uuid.NewString(),
		GroupID:         groupID,
		UserID:          userID,
		Status:          model.SubscriptionActive,
		StartDate:       now,
		NextBillingDate: next,
		Amount:          amount,
		PaymentMethod:   "kakao_pay",
		BillingKey:      billingKey,
	}
	if err := tx.WithContext(ctx).Create(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) Cancel(ctx context.Context, tx *gorm.DB, id, reason string) (*model.Subscription, error) {
	return r.close(ctx, tx, id, reason, model.SubscriptionCancelled)
}

func (r *subscriptionRepoImpl) Expire(ctx context.Context, tx *gorm.DB, id, reason string) (*model.Subscription, error) {
	return r.close(ctx, tx, id, reason, model.SubscriptionExpired)
}

func (r *subscriptionRepoImpl) close(ctx context.Context, tx *gorm.DB, id, reason string, status model.SubscriptionStatus) (*model.Subscription, error) {
	if tx == nil {
		tx = r.db
	}

	var sub model.Subscription
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	sub.Status = status
	sub.EndDate = &now
	sub.NextBillingDate = nil
	sub.BillingKey = ""
	sub.CancelReason = reason
	if err := tx.WithContext(ctx).Save(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) DueForBilling(ctx context.Context, asOf time.Time) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND billing_key <> '' AND next_billing_date <= ?",
			model.SubscriptionActive, asOf).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriptionRepoImpl) AdvanceNextBillingDate(ctx context.Context, tx *gorm.DB, id string) error {
	if tx == nil {
		tx = r.db
	}
	next := time.Now().Add(billingCycle)
	return tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", id).
		Update("next_billing_date", next).Error
}

func (r *subscriptionRepoImpl) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	// sqlite in tests does not enforce the FK cascade, so delete children
	// explicitly inside one transaction.
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_id = ?", sub.ID).Delete(&model.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("subscription_id = ?", sub.ID).Delete(&model.SubscriptionHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}
