package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentReadyRequest struct {
	// Recurring requests a billing mandate alongside the first charge so the
	// subscription renews automatically.
	Recurring bool `json:"recurring"`
}

type PaymentReadyResponse struct {
	CorrelationID         string `json:"correlation_id"`
	TID                   string `json:"tid"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
	PartnerOrderID        string `json:"partner_order_id"`
}

type PaymentApproveResult struct {
	SubscriptionID string          `json:"subscription_id"`
	PaymentID      string          `json:"payment_id"`
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reactivated    bool            `json:"reactivated"`
}

type SubscriptionCancelRequest struct {
	Reason string `json:"reason"`
}

type SubscriptionCancelResult struct {
	Message             string          `json:"message"`
	CancelledAt         *time.Time      `json:"cancelled_at"`
	RefundAmount        decimal.Decimal `json:"refund_amount"`
	PaymentCancelStatus string          `json:"payment_cancel_status"`
}

type SubscriptionResponse struct {
	ID              string          `json:"id"`
	GroupID         string          `json:"group_id"`
	UserID          string          `json:"user_id"`
	Status          string          `json:"status"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	NextBillingDate *time.Time      `json:"next_billing_date,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type PaymentResponse struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	FailedReason  string          `json:"failed_reason,omitempty"`
}
