package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

// PendingPayment is the in-flight context bridging the prepare call and the
// approve/cancel/fail redirect callbacks. It is never persisted; losing it on
// restart fails the flow safely instead of corrupting subscription state.
type PendingPayment struct {
	CorrelationID  string
	TID            string
	UserID         string
	GroupID        string
	PartnerOrderID string
	Amount         decimal.Decimal
	Recurring      bool
	CreatedAt      time.Time
}

// PendingStore indexes each pending payment under both the client-facing
// correlation id and the gateway tid, since callbacks may carry either one.
// Entries expire on their own so abandoned checkouts cannot accumulate.
type PendingStore struct {
	entries *expirable.LRU[string, *PendingPayment]
}

const maxPending = 4096

func NewPendingStore(ttl time.Duration) *PendingStore {
	return &PendingStore{
		entries: expirable.NewLRU[string, *PendingPayment](maxPending, nil, ttl),
	}
}

func (s *PendingStore) Put(p *PendingPayment) {
	s.entries.Add(p.CorrelationID, p)
	if p.TID != "" {
		s.entries.Add(p.TID, p)
	}
}

// Get looks an entry up without removing it. Removal is explicit: the
// orchestrator purges only after the outcome is final, so a retry after a
// transient failure still finds its context.
func (s *PendingStore) Get(key string) (*PendingPayment, bool) {
	return s.entries.Get(key)
}

// Remove purges the entry under both of its keys.
func (s *PendingStore) Remove(p *PendingPayment) {
	s.entries.Remove(p.CorrelationID)
	if p.TID != "" {
		s.entries.Remove(p.TID)
	}
}

func (s *PendingStore) Len() int {
	return s.entries.Len()
}
