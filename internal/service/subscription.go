package service

import (
	"context"
	"errors"
	"fmt"

	"family-news-service/internal/dto"
	"family-news-service/internal/model"
	"family-news-service/internal/repository"

	"gorm.io/gorm"
)

type SubscriptionService interface {
	// MySubscriptions lists the requester's subscriptions, active ones only
	// unless includeAll is set.
	MySubscriptions(ctx context.Context, userID string, includeAll bool) ([]*dto.SubscriptionResponse, error)

	// GetSubscription returns details, visible to the payer and to members of
	// the subscribed group.
	GetSubscription(ctx context.Context, userID, subscriptionID string) (*dto.SubscriptionResponse, error)

	// ListPayments returns the payment history, payer only.
	ListPayments(ctx context.Context, userID, subscriptionID string, limit int) ([]*dto.PaymentResponse, error)
}

type subscriptionServiceImpl struct {
	subRepo repository.SubscriptionRepository
	payRepo repository.PaymentRepository
	groups  repository.GroupRepository
}

func NewSubscriptionService(
	subRepo repository.SubscriptionRepository,
	payRepo repository.PaymentRepository,
	groups repository.GroupRepository,
) SubscriptionService {
	return &subscriptionServiceImpl{
		subRepo: subRepo,
		payRepo: payRepo,
		groups:  groups,
	}
}

func (s *subscriptionServiceImpl) MySubscriptions(ctx context.Context, userID string, includeAll bool) ([]*dto.SubscriptionResponse, error) {
	subs, err := s.subRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	out := make([]*dto.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		if !includeAll && sub.Status != model.SubscriptionActive {
			continue
		}
		out = append(out, toSubscriptionResponse(sub))
	}
	return out, nil
}

func (s *subscriptionServiceImpl) GetSubscription(ctx context.Context, userID, subscriptionID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	if sub.UserID != userID {
		member, err := s.groups.IsMember(ctx, userID, sub.GroupID)
		if err != nil {
			return nil, fmt.Errorf("check group membership: %w", err)
		}
		if !member {
			return nil, ErrNotOwner
		}
	}
	return toSubscriptionResponse(sub), nil
}

func (s *subscriptionServiceImpl) ListPayments(ctx context.Context, userID, subscriptionID string, limit int) ([]*dto.PaymentResponse, error) {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub.UserID != userID {
		return nil, ErrNotOwner
	}

	payments, err := s.payRepo.ListBySubscription(ctx, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	out := make([]*dto.PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = &dto.PaymentResponse{
			ID:            p.ID,
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Status:        string(p.Status),
			PaymentMethod: p.PaymentMethod,
			PaidAt:        p.PaidAt,
			FailedReason:  p.FailedReason,
		}
	}
	return out, nil
}

func toSubscriptionResponse(sub *model.Subscription) *dto.SubscriptionResponse {
	return &dto.SubscriptionResponse{
		ID:              sub.ID,
		GroupID:         sub.GroupID,
		UserID:          sub.UserID,
		Status:          string(sub.Status),
		StartDate:       sub.StartDate,
		EndDate:         sub.EndDate,
		NextBillingDate: sub.NextBillingDate,
		Amount:          sub.Amount,
		CreatedAt:       sub.CreatedAt,
		UpdatedAt:       sub.UpdatedAt,
	}
}
