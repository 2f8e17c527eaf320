package service

import "errors"

var (
	// Caller errors, surfaced directly and never retried.
	ErrNoGroupMembership      = errors.New("user does not belong to a family group")
	ErrNotGroupLeader         = errors.New("only the group leader can manage the subscription")
	ErrSubscriptionActive     = errors.New("group already has an active subscription")
	ErrPaymentContextNotFound = errors.New("pending payment context not found")
	ErrNotOwner               = errors.New("subscription belongs to another user")
	ErrSubscriptionNotFound   = errors.New("subscription not found")

	// ErrDuplicateSubscription means a concurrent approval won the race; the
	// losing charge has been reversed (or a reversal was attempted).
	ErrDuplicateSubscription = errors.New("another approval already activated this group's subscription")

	// ErrApprovalOutcomeUnknown means the gateway may or may not have committed
	// the charge. The pending context is kept so the flow can be retried or
	// reconciled; treating this as a definite failure would risk losing money.
	ErrApprovalOutcomeUnknown = errors.New("approval outcome unknown, reconciliation required")
)

// CompensationOutcome describes what happened to the best-effort reversal of a
// gateway charge that could not be recorded locally.
type CompensationOutcome string

const (
	CompensationDone        CompensationOutcome = "done"
	CompensationAlreadyDone CompensationOutcome = "already_done"
	CompensationFailed      CompensationOutcome = "failed" // needs manual reconciliation
)

// Refund outcomes reported to cancellation callers. Refund failure never blocks
// the cancellation itself.
const (
	RefundSuccess          = "success"
	RefundAlreadyCancelled = "already_cancelled"
	RefundFailed           = "failed"
	RefundNoPayment        = "no_payment"
)
