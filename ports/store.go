package ports

import (
	"context"
	"time"

	"github.com/layer-3/bazaar/core"
)

// AccountStore persists accounts and enforces their uniqueness constraints:
// wallet addresses are globally unique and (email, role) is unique among
// registered accounts. Lookups return core.ErrNotFound when nothing matches.
type AccountStore interface {
	// Create inserts a new account. Returns core.ErrAccountExists on conflict.
	Create(ctx context.Context, account *core.Account) error

	// UpsertNonce sets the nonce of the account owning address, creating a
	// placeholder with the given id when there is none. Atomic per address.
	UpsertNonce(ctx context.Context, address, nonce, placeholderID string) (*core.Account, error)

	// UpdateIfNonce overwrites the stored account only if its nonce still
	// equals expectedNonce, otherwise it returns core.ErrStaleNonce.
	UpdateIfNonce(ctx context.Context, account *core.Account, expectedNonce string) error

	FindByID(ctx context.Context, id string) (*core.Account, error)
	FindByWalletAddress(ctx context.Context, address string) (*core.Account, error)

	// FindByEmailAndRole returns the registered account for (email, role).
	FindByEmailAndRole(ctx context.Context, email string, role core.Role) (*core.Account, error)

	// FindByEmail returns every registered account using email, at most one per role.
	FindByEmail(ctx context.Context, email string) ([]*core.Account, error)

	// FindRegisteredByWallet matches (address, email, role) exactly.
	FindRegisteredByWallet(ctx context.Context, address, email string, role core.Role) (*core.Account, error)

	// FindCompetingRegistration returns a registered account for role that
	// already claims email or address.
	FindCompetingRegistration(ctx context.Context, role core.Role, email, address string) (*core.Account, error)
}

// RevocationStore tracks logged-out session tokens until they expire
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
