package car

import (
	"sync"

	"github.com/fobsec/keyfob/pkg/securechannel"
)

// UnlockPayloadSize is the width of the stored unlock message.
const UnlockPayloadSize = 64

// PayloadStore holds the car's provisioned messages: the unlock banner and
// one message per optional feature. The device reads a payload only after
// the presented secret has been verified.
type PayloadStore interface {
	// UnlockPayload returns the message released on a successful unlock.
	UnlockPayload() ([]byte, error)

	// FeaturePayload returns the message for feature number i, counted
	// from zero.
	FeaturePayload(i int) ([]byte, error)
}

// MemoryPayloadStore is an in-memory PayloadStore. It counts reads, which
// makes "no payload was touched" observable after a rejected unlock.
type MemoryPayloadStore struct {
	mu       sync.Mutex
	unlock   []byte
	features [securechannel.NumFeatures][]byte
	reads    int
}

// NewMemoryPayloadStore builds a store from an unlock message and up to
// NumFeatures feature messages.
func NewMemoryPayloadStore(unlock []byte, features ...[]byte) *MemoryPayloadStore {
	s := &MemoryPayloadStore{unlock: append([]byte(nil), unlock...)}
	for i, f := range features {
		if i >= securechannel.NumFeatures {
			break
		}
		s.features[i] = append([]byte(nil), f...)
	}
	return s
}

// UnlockPayload implements PayloadStore.
func (s *MemoryPayloadStore) UnlockPayload() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.unlock == nil {
		return nil, ErrNoPayload
	}
	return append([]byte(nil), s.unlock...), nil
}

// FeaturePayload implements PayloadStore.
func (s *MemoryPayloadStore) FeaturePayload(i int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if i < 0 || i >= securechannel.NumFeatures || s.features[i] == nil {
		return nil, ErrNoPayload
	}
	return append([]byte(nil), s.features[i]...), nil
}

// Reads returns how many payload reads have been served.
func (s *MemoryPayloadStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
