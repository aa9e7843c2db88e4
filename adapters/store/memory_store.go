package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/ports"
)

// MemoryStore is an in-memory implementation of the AccountStore interface.
// It backs tests and single-instance deployments without DATABASE_URL.
type MemoryStore struct {
	accounts map[string]core.Account
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory account store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]core.Account),
	}
}

var _ ports.AccountStore = (*MemoryStore)(nil)

// Create inserts a new account
func (s *MemoryStore) Create(ctx context.Context, account *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return core.ErrAccountExists
	}
	if s.conflicts(account) {
		return core.ErrAccountExists
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = *account
	return nil
}

// UpsertNonce sets the nonce for address, creating a placeholder if needed
func (s *MemoryStore) UpsertNonce(ctx context.Context, address, nonce, placeholderID string) (*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if acc, ok := s.byWallet(address); ok {
		acc.Nonce = nonce
		acc.UpdatedAt = now
		s.accounts[acc.ID] = acc
		return &acc, nil
	}

	acc := core.Account{
		ID:            placeholderID,
		State:         core.AccountPlaceholder,
		WalletAddress: address,
		Nonce:         nonce,
		Role:          core.RoleBuyer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.accounts[acc.ID] = acc
	return &acc, nil
}

// UpdateIfNonce replaces the account when its stored nonce is unchanged
func (s *MemoryStore) UpdateIfNonce(ctx context.Context, account *core.Account, expectedNonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[account.ID]
	if !ok {
		return core.ErrNotFound
	}
	if stored.Nonce != expectedNonce {
		return core.ErrStaleNonce
	}
	if s.conflicts(account) {
		return core.ErrAccountExists
	}

	account.CreatedAt = stored.CreatedAt
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = *account
	return nil
}

// FindByID returns the account with the given id
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &acc, nil
}

// FindByWalletAddress returns the account, placeholder or not, owning address
func (s *MemoryStore) FindByWalletAddress(ctx context.Context, address string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byWallet(address)
	if !ok {
		return nil, core.ErrNotFound
	}
	return &acc, nil
}

// FindByEmailAndRole returns the registered account for (email, role)
func (s *MemoryStore) FindByEmailAndRole(ctx context.Context, email string, role core.Role) (*core.Account, error) {
	return s.findRegistered(func(a core.Account) bool {
		return strings.EqualFold(a.Email, email) && a.Role == role
	})
}

// FindByEmail returns all registered accounts using email
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) ([]*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Account
	for _, acc := range s.accounts {
		if acc.Registered() && strings.EqualFold(acc.Email, email) {
			out = append(out, &acc)
		}
	}
	if len(out) == 0 {
		return nil, core.ErrNotFound
	}
	return out, nil
}

// FindRegisteredByWallet matches a registered account on (address, email, role)
func (s *MemoryStore) FindRegisteredByWallet(ctx context.Context, address, email string, role core.Role) (*core.Account, error) {
	return s.findRegistered(func(a core.Account) bool {
		return strings.EqualFold(a.WalletAddress, address) && strings.EqualFold(a.Email, email) && a.Role == role
	})
}

// FindCompetingRegistration returns a registered account for role claiming email or address
func (s *MemoryStore) FindCompetingRegistration(ctx context.Context, role core.Role, email, address string) (*core.Account, error) {
	return s.findRegistered(func(a core.Account) bool {
		if a.Role != role {
			return false
		}
		return strings.EqualFold(a.Email, email) ||
			(address != "" && strings.EqualFold(a.WalletAddress, address))
	})
}

func (s *MemoryStore) findRegistered(match func(core.Account) bool) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if acc.Registered() && match(acc) {
			return &acc, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *MemoryStore) byWallet(address string) (core.Account, bool) {
	for _, acc := range s.accounts {
		if acc.WalletAddress != "" && strings.EqualFold(acc.WalletAddress, address) {
			return acc, true
		}
	}
	return core.Account{}, false
}

// conflicts reports whether candidate would break a uniqueness constraint
// held by any other account. Callers must hold the write lock.
func (s *MemoryStore) conflicts(candidate *core.Account) bool {
	for id, acc := range s.accounts {
		if id == candidate.ID {
			continue
		}
		if candidate.WalletAddress != "" && strings.EqualFold(acc.WalletAddress, candidate.WalletAddress) {
			return true
		}
		if candidate.Registered() && acc.Registered() &&
			acc.Role == candidate.Role && strings.EqualFold(acc.Email, candidate.Email) {
			return true
		}
	}
	return false
}
