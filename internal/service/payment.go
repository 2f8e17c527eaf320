package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"family-news-service/internal/cache"
	"family-news-service/internal/client"
	"family-news-service/internal/dto"
	"family-news-service/internal/model"
	"family-news-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentService orchestrates the gateway client, the pending-payment store
// and the subscription ledger. The ledger is the single source of truth; the
// pending store only carries context across the gateway's redirect round-trip.
type PaymentService interface {
	// Ready starts the interactive payment flow and returns the gateway
	// redirect URLs plus a correlation id for the approve callback.
	Ready(ctx context.Context, userID string, recurring bool) (*dto.PaymentReadyResponse, error)

	// Approve completes the flow after the gateway redirects back. key is
	// either the correlation id or the gateway tid.
	Approve(ctx context.Context, key, pgToken string) (*dto.PaymentApproveResult, error)

	// AbandonPending handles the cancel/fail redirects: nothing was approved,
	// so it only drops the pending context if it is still around.
	AbandonPending(ctx context.Context, key string)

	CancelSubscription(ctx context.Context, userID, subscriptionID, reason string) (*dto.SubscriptionCancelResult, error)

	// TearDownGroup cancels (with refund attempt) and then hard-deletes the
	// group's subscription as part of deleting the group itself.
	TearDownGroup(ctx context.Context, groupID string) (*dto.SubscriptionCancelResult, error)

	// ChargeRecurring bills one due subscription against its mandate. Invoked
	// by the billing worker, never by user-facing handlers.
	ChargeRecurring(ctx context.Context, sub *model.Subscription) error
}

type paymentServiceImpl struct {
	db       *gorm.DB
	gateway  client.KakaoPayClient
	pending  *cache.PendingStore
	subRepo  repository.SubscriptionRepository
	payRepo  repository.PaymentRepository
	histRepo repository.HistoryRepository
	groups   repository.GroupRepository
	amount   decimal.Decimal
	logger   *slog.Logger

	// One mutex per group, held across the re-check-then-activate sequence so
	// two racing approvals cannot both insert an active subscription.
	groupLocks sync.Map
}

func NewPaymentService(
	db *gorm.DB,
	gateway client.KakaoPayClient,
	pending *cache.PendingStore,
	subRepo repository.SubscriptionRepository,
	payRepo repository.PaymentRepository,
	histRepo repository.HistoryRepository,
	groups repository.GroupRepository,
	amount decimal.Decimal,
	logger *slog.Logger,
) PaymentService {
	return &paymentServiceImpl{
		db:       db,
		gateway:  gateway,
		pending:  pending,
		subRepo:  subRepo,
		payRepo:  payRepo,
		histRepo: histRepo,
		groups:   groups,
		amount:   amount,
		logger:   logger,
	}
}

const paymentMethod = "kakao_pay"

func (s *paymentServiceImpl) Ready(ctx context.Context, userID string, recurring bool) (*dto.PaymentReadyResponse, error) {
	membership, err := s.groups.MembershipByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up group membership: %w", err)
	}
	if membership == nil {
		return nil, ErrNoGroupMembership
	}
	if membership.Role != repository.RoleLeader {
		return nil, ErrNotGroupLeader
	}

	// Optimistic check only. The race-proof check happens again under the
	// group lock at approval time.
	active, err := s.subRepo.FindActiveByGroup(ctx, membership.GroupID)
	if err != nil {
		return nil, fmt.Errorf("check active subscription: %w", err)
	}
	if active != nil {
		return nil, ErrSubscriptionActive
	}

	orderID := fmt.Sprintf("FNS_%.8s_%d", membership.GroupID, time.Now().Unix())
	ready, err := s.gateway.Ready(ctx, &client.ReadyRequest{
		PartnerOrderID: orderID,
		PartnerUserID:  userID,
		Amount:         s.amount,
		Recurring:      recurring,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway ready: %w", err)
	}

	p := &cache.PendingPayment{
		CorrelationID:  uuid.NewString(),
		TID:            ready.TID,
		UserID:         userID,
		GroupID:        membership.GroupID,
		PartnerOrderID: orderID,
		Amount:         s.amount,
		Recurring:      recurring,
		CreatedAt:      time.Now(),
	}
	s.pending.Put(p)

	s.logger.Info("payment ready",
		"tid", ready.TID, "group_id", p.GroupID, "order_id", orderID, "recurring", recurring)

	return &dto.PaymentReadyResponse{
		CorrelationID:         p.CorrelationID,
		TID:                   ready.TID,
		NextRedirectPCURL:     ready.NextRedirectPCURL,
		NextRedirectMobileURL: ready.NextRedirectMobileURL,
		PartnerOrderID:        orderID,
	}, nil
}

func (s *paymentServiceImpl) Approve(ctx context.Context, key, pgToken string) (*dto.PaymentApproveResult, error) {
	p, ok := s.pending.Get(key)
	if !ok {
		return nil, ErrPaymentContextNotFound
	}

	res, raw, err := s.gateway.Approve(ctx, &client.ApproveRequest{
		TID:            p.TID,
		PGToken:        pgToken,
		PartnerOrderID: p.PartnerOrderID,
		PartnerUserID:  p.UserID,
		Recurring:      p.Recurring,
	})
	if err != nil {
		return s.approveFailed(ctx, p, err)
	}

	mu := s.lockGroup(p.GroupID)
	mu.Lock()
	defer mu.Unlock()

	// Re-check under the lock: a concurrent approval or a replayed callback
	// may have activated the group since the optimistic check.
	active, err := s.subRepo.FindActiveByGroup(ctx, p.GroupID)
	if err != nil {
		outcome := s.compensate(ctx, res.TID, p.Amount, "activation re-check failed")
		s.pending.Remove(p)
		return nil, fmt.Errorf("re-check active subscription (compensation %s): %w", outcome, err)
	}
	if active != nil {
		outcome := s.compensate(ctx, res.TID, p.Amount, "duplicate subscription")
		s.pending.Remove(p)
		s.logger.Warn("duplicate approval reversed",
			"group_id", p.GroupID, "tid", res.TID, "compensation", string(outcome))
		return nil, fmt.Errorf("%w (compensation %s)", ErrDuplicateSubscription, outcome)
	}

	prior, err := s.subRepo.FindAnyByGroup(ctx, p.GroupID)
	if err != nil {
		outcome := s.compensate(ctx, res.TID, p.Amount, "activation lookup failed")
		s.pending.Remove(p)
		return nil, fmt.Errorf("look up prior subscription (compensation %s): %w", outcome, err)
	}

	var (
		sub     *model.Subscription
		payment *model.Payment
	)
	billingKey := ""
	if p.Recurring {
		billingKey = res.SID
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		sub, txErr = s.subRepo.ActivateOrReactivate(ctx, tx, p.GroupID, p.UserID, p.Amount, billingKey)
		if txErr != nil {
			return fmt.Errorf("activate subscription: %w", txErr)
		}

		action := model.HistoryCreated
		if prior != nil {
			action = model.HistoryReactivated
		}
		if txErr = s.histRepo.Record(ctx, tx, action, sub); txErr != nil {
			return fmt.Errorf("record history: %w", txErr)
		}

		now := time.Now()
		payment = &model.Payment{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			TransactionID:  res.AID,
			GatewayTID:     res.TID,
			Amount:         p.Amount,
			Status:         model.PaymentSuccess,
			PaymentMethod:  paymentMethod,
			RawResponse:    raw,
			PaidAt:         &now,
		}
		if txErr = s.payRepo.Create(ctx, tx, payment); txErr != nil {
			return fmt.Errorf("record payment: %w", txErr)
		}
		return nil
	})
	if err != nil {
		// The gateway has the money but we have no record. Give it back
		// before surfacing the error.
		outcome := s.compensate(ctx, res.TID, p.Amount, "local commit failed")
		s.pending.Remove(p)
		return nil, fmt.Errorf("record approval (compensation %s): %w", outcome, err)
	}

	s.pending.Remove(p)
	s.logger.Info("payment approved",
		"aid", res.AID, "subscription_id", sub.ID, "group_id", p.GroupID,
		"reactivated", prior != nil)

	return &dto.PaymentApproveResult{
		SubscriptionID: sub.ID,
		PaymentID:      payment.ID,
		TransactionID:  res.AID,
		Amount:         p.Amount,
		Reactivated:    prior != nil,
	}, nil
}

// approveFailed sorts a gateway approve error into the three cases that need
// different handling: ambiguous outcome, duplicate replay, definite rejection.
func (s *paymentServiceImpl) approveFailed(ctx context.Context, p *cache.PendingPayment, err error) (*dto.PaymentApproveResult, error) {
	if errors.Is(err, client.ErrGatewayUnavailable) {
		// The charge may have been committed. Keep the pending context so the
		// caller can retry against the same tid.
		return nil, fmt.Errorf("%w: %v", ErrApprovalOutcomeUnknown, err)
	}

	var gwErr *client.GatewayError
	if errors.As(err, &gwErr) && gwErr.AlreadyProcessed() {
		// Replayed callback for an approval an earlier call already handled.
		active, lookupErr := s.subRepo.FindActiveByGroup(ctx, p.GroupID)
		if lookupErr == nil && active != nil {
			s.pending.Remove(p)
			return &dto.PaymentApproveResult{
				SubscriptionID: active.ID,
				Amount:         p.Amount,
			}, nil
		}
		// Gateway says processed, ledger says nothing: the earlier call died
		// between approval and commit. Do not guess.
		return nil, fmt.Errorf("%w: approval replay with no local record (tid %s)", ErrApprovalOutcomeUnknown, p.TID)
	}

	s.pending.Remove(p)
	return nil, fmt.Errorf("gateway approve: %w", err)
}

func (s *paymentServiceImpl) AbandonPending(ctx context.Context, key string) {
	if p, ok := s.pending.Get(key); ok {
		s.pending.Remove(p)
		s.logger.Info("pending payment abandoned", "tid", p.TID, "group_id", p.GroupID)
	}
}

func (s *paymentServiceImpl) CancelSubscription(ctx context.Context, userID, subscriptionID, reason string) (*dto.SubscriptionCancelResult, error) {
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

	if sub.Status == model.SubscriptionCancelled {
		// Idempotent: same message, zero refund, no gateway call.
		return &dto.SubscriptionCancelResult{
			Message:             "subscription already cancelled",
			CancelledAt:         sub.EndDate,
			RefundAmount:        decimal.Zero,
			PaymentCancelStatus: RefundNoPayment,
		}, nil
	}

	if reason == "" {
		reason = "user request"
	}
	return s.cancelWithRefund(ctx, sub, reason)
}

func (s *paymentServiceImpl) TearDownGroup(ctx context.Context, groupID string) (*dto.SubscriptionCancelResult, error) {
	sub, err := s.subRepo.FindAnyByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group subscription: %w", err)
	}
	if sub == nil {
		return &dto.SubscriptionCancelResult{
			Message:             "no subscription for group",
			RefundAmount:        decimal.Zero,
			PaymentCancelStatus: RefundNoPayment,
		}, nil
	}

	result := &dto.SubscriptionCancelResult{
		Message:             "subscription removed",
		RefundAmount:        decimal.Zero,
		PaymentCancelStatus: RefundNoPayment,
	}
	// Cancel first and commit, then delete. A crash in between leaves a
	// cancelled row, never an active orphan.
	if sub.Status == model.SubscriptionActive {
		cancelled, err := s.cancelWithRefund(ctx, sub, "group_delete")
		if err != nil {
			return nil, err
		}
		result.RefundAmount = cancelled.RefundAmount
		result.PaymentCancelStatus = cancelled.PaymentCancelStatus
		result.CancelledAt = cancelled.CancelledAt
	}

	if _, err := s.subRepo.DeleteByGroup(ctx, groupID); err != nil {
		return nil, fmt.Errorf("delete subscription: %w", err)
	}
	s.logger.Info("subscription deleted with group", "group_id", groupID, "subscription_id", sub.ID)
	return result, nil
}

// cancelWithRefund runs the refund attempt first and the ledger mutation
// second. The two are deliberately not atomic: a refund failure must never
// block the cancellation, and a crash in between leaves the subscription
// active and safe to retry.
func (s *paymentServiceImpl) cancelWithRefund(ctx context.Context, sub *model.Subscription, reason string) (*dto.SubscriptionCancelResult, error) {
	refundStatus := RefundNoPayment
	refundAmount := decimal.Zero

	recent, err := s.payRepo.RecentBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("load recent payment: %w", err)
	}
	if recent != nil {
		tid := recent.GatewayTID
		if tid == "" {
			tid = recent.TransactionID
		}
		if tid != "" {
			_, cancelErr := s.gateway.Cancel(ctx, &client.CancelRequest{
				TID:    tid,
				Amount: recent.Amount,
				Reason: reason,
			})
			switch {
			case cancelErr == nil:
				refundStatus = RefundSuccess
				refundAmount = recent.Amount
				if err := s.payRepo.MarkRefunded(ctx, nil, recent.ID); err != nil {
					s.logger.Error("mark payment refunded failed", "payment_id", recent.ID, "error", err)
				}
			case errors.Is(cancelErr, client.ErrAlreadyCancelled):
				// Money already went back; not a failure.
				refundStatus = RefundAlreadyCancelled
				refundAmount = recent.Amount
				s.logger.Warn("payment was already cancelled at gateway",
					"payment_id", recent.ID, "tid", tid)
			default:
				refundStatus = RefundFailed
				s.logger.Error("payment cancel failed, cancelling subscription anyway",
					"payment_id", recent.ID, "tid", tid, "error", cancelErr)
			}
		}
	}

	var cancelled *model.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		cancelled, txErr = s.subRepo.Cancel(ctx, tx, sub.ID, reason)
		if txErr != nil {
			return txErr
		}
		return s.histRepo.Record(ctx, tx, model.HistoryCancelled, cancelled)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	s.logger.Info("subscription cancelled",
		"subscription_id", sub.ID, "refund_status", refundStatus, "reason", reason)

	return &dto.SubscriptionCancelResult{
		Message:             "subscription cancelled",
		CancelledAt:         cancelled.EndDate,
		RefundAmount:        refundAmount,
		PaymentCancelStatus: refundStatus,
	}, nil
}

func (s *paymentServiceImpl) ChargeRecurring(ctx context.Context, sub *model.Subscription) error {
	orderID := fmt.Sprintf("FNS_%.8s_%d", sub.GroupID, time.Now().Unix())
	res, raw, err := s.gateway.ChargeSubscription(ctx, &client.SubscriptionChargeRequest{
		SID:            sub.BillingKey,
		PartnerOrderID: orderID,
		PartnerUserID:  sub.UserID,
		Amount:         sub.Amount,
	})
	if err != nil {
		return s.recurringChargeFailed(ctx, sub, err)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment := &model.Payment{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			TransactionID:  res.AID,
			GatewayTID:     res.TID,
			Amount:         sub.Amount,
			Status:         model.PaymentSuccess,
			PaymentMethod:  paymentMethod,
			RawResponse:    raw,
			PaidAt:         &now,
		}
		if txErr := s.payRepo.Create(ctx, tx, payment); txErr != nil {
			return fmt.Errorf("record payment: %w", txErr)
		}
		return s.subRepo.AdvanceNextBillingDate(ctx, tx, sub.ID)
	})
	if err != nil {
		// Charged but unrecorded: reverse it and leave the subscription
		// active so the next run retries.
		outcome := s.compensate(ctx, res.TID, sub.Amount, "recurring charge commit failed")
		return fmt.Errorf("record recurring charge (compensation %s): %w", outcome, err)
	}

	s.logger.Info("recurring charge succeeded", "subscription_id", sub.ID, "aid", res.AID)
	return nil
}

// recurringChargeFailed records the failed attempt and expires the
// subscription. No retry within the same run.
func (s *paymentServiceImpl) recurringChargeFailed(ctx context.Context, sub *model.Subscription, chargeErr error) error {
	reason := fmt.Sprintf("recurring charge failed: %v", chargeErr)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment := &model.Payment{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			Amount:         sub.Amount,
			Status:         model.PaymentFailed,
			PaymentMethod:  paymentMethod,
			FailedReason:   chargeErr.Error(),
		}
		if txErr := s.payRepo.Create(ctx, tx, payment); txErr != nil {
			return fmt.Errorf("record failed payment: %w", txErr)
		}
		expired, txErr := s.subRepo.Expire(ctx, tx, sub.ID, reason)
		if txErr != nil {
			return fmt.Errorf("expire subscription: %w", txErr)
		}
		return s.histRepo.Record(ctx, tx, model.HistoryExpired, expired)
	})
	if err != nil {
		return fmt.Errorf("record recurring failure: %w", err)
	}

	s.logger.Warn("subscription expired after failed recurring charge",
		"subscription_id", sub.ID, "error", chargeErr)
	return fmt.Errorf("recurring charge: %w", chargeErr)
}

// compensate attempts to reverse a gateway charge that could not be kept.
// It never fails the caller's flow, but its outcome is always surfaced.
func (s *paymentServiceImpl) compensate(ctx context.Context, tid string, amount decimal.Decimal, reason string) CompensationOutcome {
	_, err := s.gateway.Cancel(ctx, &client.CancelRequest{
		TID:    tid,
		Amount: amount,
		Reason: reason,
	})
	switch {
	case err == nil:
		s.logger.Info("compensating cancel succeeded", "tid", tid, "reason", reason)
		return CompensationDone
	case errors.Is(err, client.ErrAlreadyCancelled):
		s.logger.Info("compensating cancel found charge already reversed", "tid", tid, "reason", reason)
		return CompensationAlreadyDone
	default:
		s.logger.Error("compensating cancel failed, manual reconciliation required",
			"tid", tid, "reason", reason, "error", err)
		return CompensationFailed
	}
}

func (s *paymentServiceImpl) lockGroup(groupID string) *sync.Mutex {
	mu, _ := s.groupLocks.LoadOrStore(groupID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
