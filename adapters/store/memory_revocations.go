package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/bazaar/ports"
)

// MemoryRevocations is an in-memory implementation of the RevocationStore interface
type MemoryRevocations struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewMemoryRevocations creates a new in-memory revocation store
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		revoked: make(map[string]time.Time),
	}
}

var _ ports.RevocationStore = (*MemoryRevocations)(nil)

// Revoke marks a token as revoked until ttl elapses.
// Expired entries are pruned lazily on the next Revoke.
func (s *MemoryRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, until := range s.revoked {
		if !now.Before(until) {
			delete(s.revoked, id)
		}
	}

	until := now.Add(ttl)
	if stored, ok := s.revoked[tokenID]; ok && stored.After(until) {
		return nil
	}
	s.revoked[tokenID] = until
	return nil
}

// IsRevoked checks if a token is revoked
func (s *MemoryRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, exists := s.revoked[tokenID]
	if !exists {
		return false, nil
	}

	return time.Now().Before(until), nil
}
