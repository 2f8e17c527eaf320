package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingFixture() *PendingPayment {
	return &PendingPayment{
		CorrelationID:  "corr-1",
		TID:            "T1234567890",
		UserID:         "user-1",
		GroupID:        "group-1",
		PartnerOrderID: "FNS_group-1_1",
		Amount:         decimal.NewFromInt(6900),
		Recurring:      true,
		CreatedAt:      time.Now(),
	}
}

func TestPendingStoreDualKey(t *testing.T) {
	store := NewPendingStore(time.Minute)
	p := pendingFixture()
	store.Put(p)

	byCorr, ok := store.Get("corr-1")
	require.True(t, ok)
	byTID, ok := store.Get("T1234567890")
	require.True(t, ok)
	assert.Same(t, byCorr, byTID)
}

func TestPendingStoreGetDoesNotRemove(t *testing.T) {
	store := NewPendingStore(time.Minute)
	store.Put(pendingFixture())

	_, ok := store.Get("corr-1")
	require.True(t, ok)
	_, ok = store.Get("corr-1")
	assert.True(t, ok, "lookup must not consume the entry")
}

func TestPendingStoreRemovePurgesBothKeys(t *testing.T) {
	store := NewPendingStore(time.Minute)
	p := pendingFixture()
	store.Put(p)

	store.Remove(p)

	_, ok := store.Get("corr-1")
	assert.False(t, ok)
	_, ok = store.Get("T1234567890")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestPendingStoreEntriesExpire(t *testing.T) {
	store := NewPendingStore(20 * time.Millisecond)
	store.Put(pendingFixture())

	_, ok := store.Get("corr-1")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = store.Get("corr-1")
	assert.False(t, ok, "abandoned entries must age out")
}
