package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReference(ref, invoiceID string, expiresAt time.Time) paymentReference {
	return paymentReference{
		Ref:       ref,
		InvoiceID: invoiceID,
		StudentID: "stu-1",
		Amount:    5000000,
		ExpiresAt: expiresAt,
	}
}

func TestMemoryReferenceStoreRedeemsExactlyOnce(t *testing.T) {
	store := newMemoryReferenceStore()
	now := time.Now().UTC()
	require.NoError(t, store.Issue(testReference("PAY1", "inv-1", now.Add(time.Minute))))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Redeem("PAY1", "inv-1", "stu-1", now); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestMemoryReferenceStoreRedeemEvictsExpired(t *testing.T) {
	store := newMemoryReferenceStore()
	now := time.Now().UTC()
	require.NoError(t, store.Issue(testReference("PAY1", "inv-1", now)))

	_, err := store.Redeem("PAY1", "inv-1", "stu-1", now)
	require.ErrorIs(t, err, errReferenceExpired)

	_, err = store.Redeem("PAY1", "inv-1", "stu-1", now)
	require.ErrorIs(t, err, errReferenceNotFound)
}

func TestMemoryReferenceStoreInvoiceMismatchKeepsEntry(t *testing.T) {
	store := newMemoryReferenceStore()
	now := time.Now().UTC()
	require.NoError(t, store.Issue(testReference("PAY1", "inv-1", now.Add(time.Minute))))

	_, err := store.Redeem("PAY1", "inv-other", "stu-1", now)
	require.ErrorIs(t, err, errReferenceMismatch)

	entry, err := store.Redeem("PAY1", "inv-1", "stu-1", now)
	require.NoError(t, err)
	assert.Equal(t, "inv-1", entry.InvoiceID)
}

func TestMemoryReferenceStoreStudentMismatchKeepsEntry(t *testing.T) {
	store := newMemoryReferenceStore()
	now := time.Now().UTC()
	require.NoError(t, store.Issue(testReference("PAY1", "inv-1", now.Add(time.Minute))))

	_, err := store.Redeem("PAY1", "inv-1", "stu-other", now)
	require.ErrorIs(t, err, errReferenceMismatch)

	entry, err := store.Redeem("PAY1", "inv-1", "stu-1", now)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", entry.StudentID)
}

func TestMemoryReferenceStorePeekDoesNotConsume(t *testing.T) {
	store := newMemoryReferenceStore()
	now := time.Now().UTC()
	require.NoError(t, store.Issue(testReference("PAY1", "inv-1", now.Add(time.Minute))))

	_, err := store.Peek("PAY1", now)
	require.NoError(t, err)
	_, err = store.Peek("PAY1", now)
	require.NoError(t, err)
}

func TestMemoryReferenceStoreSweepRemovesOnlyExpired(t *testing.T) {
	store := newMemoryReferenceStore()
	now := time.Now().UTC()
	require.NoError(t, store.Issue(testReference("PAY1", "inv-1", now.Add(-time.Second))))
	require.NoError(t, store.Issue(testReference("PAY2", "inv-2", now.Add(time.Minute))))

	removed := store.Sweep(now)
	assert.Equal(t, 1, removed)

	_, err := store.Peek("PAY1", now)
	require.ErrorIs(t, err, errReferenceNotFound)
	_, err = store.Peek("PAY2", now)
	require.NoError(t, err)
}
