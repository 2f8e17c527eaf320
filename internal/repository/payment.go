package repository

import (
	"context"
	"errors"

	"family-news-service/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	RecentBySubscription(ctx context.Context, subscriptionID string) (*model.Payment, error)
	ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*model.Payment, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, paymentID string) error
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{db: db}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) RecentBySubscription(ctx context.Context, subscriptionID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepoImpl) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepoImpl) MarkRefunded(ctx context.Context, tx *gorm.DB, paymentID string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentSuccess).
		Update("status", model.PaymentRefunded)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
