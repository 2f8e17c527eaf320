package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// History actions, one per subscription state transition.
const (
	HistoryCreated     = "CREATED"
	HistoryCancelled   = "CANCELLED"
	HistoryReactivated = "REACTIVATED"
	HistoryExpired     = "EXPIRED"
)

type Subscription struct {
	ID      string `gorm:"primaryKey;size:36;not null"`
	GroupID string `gorm:"size:36;uniqueIndex;not null"` // one lifecycle row per group
	UserID  string `gorm:"size:36;index;not null"`       // payer

	Status          SubscriptionStatus `gorm:"size:20;index;not null"`
	StartDate       time.Time          `gorm:"not null"`
	EndDate         *time.Time
	NextBillingDate *time.Time      `gorm:"index"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,0);not null"`
	PaymentMethod   string          `gorm:"size:50"`
	BillingKey      string          `gorm:"size:200"` // recurring mandate, empty unless auto-renewing
	CancelReason    string          `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Payments []Payment             `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
	History  []SubscriptionHistory `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
}

// Payment is one gateway transaction attempt. Rows are immutable once written,
// except for the success-to-refunded transition made by the cancellation flow.
type Payment struct {
	ID             string `gorm:"primaryKey;size:36;not null"`
	SubscriptionID string `gorm:"size:36;index;not null"`

	// TransactionID is the approval id (aid), empty on failed attempts.
	TransactionID string `gorm:"size:200;index"`
	GatewayTID    string `gorm:"size:200"` // ready-time tid, needed to request a cancel

	Amount        decimal.Decimal `gorm:"type:decimal(10,0);not null"`
	Status        PaymentStatus   `gorm:"size:20;index;not null"`
	PaymentMethod string          `gorm:"size:50;not null"`
	RawResponse   datatypes.JSON  // gateway payload kept verbatim for disputes
	PaidAt        *time.Time
	FailedReason  string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionHistory is an append-only audit trail. Never updated after insert.
type SubscriptionHistory struct {
	ID             string `gorm:"primaryKey;size:36;not null"`
	SubscriptionID string `gorm:"size:36;index;not null"`

	Action       string             `gorm:"size:20;not null"`
	Status       SubscriptionStatus `gorm:"size:20;not null"`
	StartDate    *time.Time
	EndDate      *time.Time
	CancelReason string          `gorm:"type:text"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,0)"`

	CreatedAt time.Time
}

type FamilyGroup struct {
	ID           string `gorm:"primaryKey;size:36;not null"`
	Name         string `gorm:"size:100;not null"`
	LeaderUserID string `gorm:"size:36;index;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type FamilyMember struct {
	ID      string `gorm:"primaryKey;size:36;not null"`
	GroupID string `gorm:"size:36;index:idx_member_group_user,unique;not null"`
	UserID  string `gorm:"size:36;index:idx_member_group_user,unique;not null"`
	Role    string `gorm:"size:20;not null"` // leader, member

	CreatedAt time.Time
}
