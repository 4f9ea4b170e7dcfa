package accounts

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationStore keeps revoked token ids in process memory
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)

// NewMemoryRevocationStore returns an empty store
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records the token id until the given time
func (s *MemoryRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune()
	s.entries[tokenID] = until
	return nil
}

// IsRevoked reports whether the token id is on the list
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.entries[tokenID]
	if !ok {
		return false, nil
	}

	if !until.IsZero() && s.now().After(until) {
		delete(s.entries, tokenID)
		return false, nil
	}

	return true, nil
}

// Len returns the number of tracked ids
func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// prune drops expired entries, caller must hold mu
func (s *MemoryRevocationStore) prune() {
	now := s.now()
	for id, until := range s.entries {
		if !until.IsZero() && now.After(until) {
			delete(s.entries, id)
		}
	}
}
