package fob

import "sync"

// MemoryStorage is an in-memory Storage implementation. Useful for testing
// and development; data is lost when the process exits.
type MemoryStorage struct {
	mu      sync.Mutex
	rec     *CredentialRecord
	saveErr error
	saves   int
}

// NewMemoryStorage creates empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load returns a copy of the stored record.
func (m *MemoryStorage) Load() (*CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, ErrNoRecord
	}
	rec := *m.rec
	return &rec, nil
}

// Save stores a copy of the record, or fails with the injected error.
func (m *MemoryStorage) Save(r *CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	rec := *r
	m.rec = &rec
	m.saves++
	return nil
}

// SetSaveError injects a failure for subsequent Save calls. Pass nil to
// clear it.
func (m *MemoryStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns the number of successful Save calls.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var _ Storage = (*MemoryStorage)(nil)
