package service

import (
	"errors"
	"sync"
	"time"
)

var (
	errReferenceNotFound = errors.New("payment reference not found")
	errReferenceExpired  = errors.New("payment reference expired")
	errReferenceMismatch = errors.New("payment reference does not match its binding")
)

// paymentReference is one outstanding short-lived payment token.
type paymentReference struct {
	Ref       string
	InvoiceID string
	StudentID string
	Amount    int64
	ExpiresAt time.Time
}

// referenceStore abstracts the token backend so the in-memory map can later be
// swapped for a shared store without touching the payment flow.
type referenceStore interface {
	Issue(ref paymentReference) error
	// Redeem atomically removes and returns the reference when it matches the
	// stored invoice/student binding and has not expired. A mismatch leaves
	// the entry in place; an expired entry is evicted.
	Redeem(ref, invoiceID, studentID string, now time.Time) (*paymentReference, error)
	Peek(ref string, now time.Time) (*paymentReference, error)
	// Restore puts a redeemed reference back, used when the downstream
	// transaction fails after redemption.
	Restore(ref paymentReference) error
	// Sweep evicts expired entries and returns how many were removed.
	Sweep(now time.Time) int
}

// memoryReferenceStore is the mutex-guarded map backend.
type memoryReferenceStore struct {
	mu      sync.Mutex
	entries map[string]paymentReference
}

func newMemoryReferenceStore() *memoryReferenceStore {
	return &memoryReferenceStore{entries: make(map[string]paymentReference)}
}

func (s *memoryReferenceStore) Issue(ref paymentReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ref.Ref] = ref
	return nil
}

func (s *memoryReferenceStore) Redeem(ref, invoiceID, studentID string, now time.Time) (*paymentReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[ref]
	if !ok {
		return nil, errReferenceNotFound
	}
	if !now.Before(entry.ExpiresAt) {
		delete(s.entries, ref)
		return nil, errReferenceExpired
	}
	if entry.InvoiceID != invoiceID || entry.StudentID != studentID {
		return nil, errReferenceMismatch
	}
	delete(s.entries, ref)
	return &entry, nil
}

func (s *memoryReferenceStore) Peek(ref string, now time.Time) (*paymentReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[ref]
	if !ok {
		return nil, errReferenceNotFound
	}
	if !now.Before(entry.ExpiresAt) {
		delete(s.entries, ref)
		return nil, errReferenceExpired
	}
	return &entry, nil
}

func (s *memoryReferenceStore) Restore(ref paymentReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ref.Ref] = ref
	return nil
}

func (s *memoryReferenceStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
