package core

import (
	"strings"
	"time"
)

// Role scopes both authorization and identity uniqueness.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ParseRole returns the role named by s, case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleBuyer:
		return RoleBuyer, true
	case RoleSeller:
		return RoleSeller, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// AccountState tells a nonce-holding placeholder apart from a usable identity.
type AccountState string

const (
	// AccountPlaceholder holds a wallet nonce before registration completes.
	AccountPlaceholder AccountState = "placeholder"
	// AccountRegistered is a completed registration.
	AccountRegistered AccountState = "registered"
)

// Account is the unit of identity
type Account struct {
	ID            string
	State         AccountState
	Username      string
	Email         string
	PasswordHash  string
	WalletAddress string // lowercase 0x-prefixed hex, empty for password accounts
	Nonce         string
	Role          Role
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Registered reports whether the account completed registration.
func (a *Account) Registered() bool {
	return a.State == AccountRegistered
}

// Session represents an authenticated account session
type Session struct {
	ID        string    // Unique token identifier (jti)
	AccountID string    // Account the session was issued for
	Role      Role      // Role the account authenticated as
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session stops being valid
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AuthResult is returned by every flow that mints a session token.
type AuthResult struct {
	Token   string
	Session *Session
}
