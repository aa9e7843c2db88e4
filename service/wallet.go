package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/bazaar/core"
)

// Wallet accounts move between two states, persisted on the account itself:
//
//	(none) --RequestNonce--> placeholder --SignupWallet--> registered
//	registered --RequestNonce / VerifyWallet--> registered (nonce replaced)
//
// A nonce is replaced only after a fully successful verification, through a
// compare-and-set on the nonce that was verified. Failed attempts leave it
// untouched so the same signature can be retried.

// RequestNonce issues a fresh challenge for address, creating a placeholder
// account the first time the address is seen.
func (s *AuthService) RequestNonce(ctx context.Context, address string) (nonce string, err error) {
	defer func() { s.observe(ctx, FlowNonce, err) }()

	address, err = core.NormalizeAddress(address)
	if err != nil {
		return "", err
	}

	nonce, err = s.nonces.Generate()
	if err != nil {
		return "", err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.accounts.UpsertNonce(storeCtx, address, nonce, s.newID()); err != nil {
		return "", storageError("store nonce", err)
	}

	return nonce, nil
}

// VerifyWallet logs in a registered wallet account. The address, email and
// role must all belong to the same account.
func (s *AuthService) VerifyWallet(ctx context.Context, req WalletLoginRequest) (result *core.AuthResult, err error) {
	defer func() { s.observe(ctx, FlowWalletLogin, err) }()

	req.Email = normalizeEmail(req.Email)
	if err := s.check(req); err != nil {
		return nil, err
	}
	address, err := core.NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	account, err := s.accounts.FindRegisteredByWallet(storeCtx, address, req.Email, req.Role)
	cancel()
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("no %s account for this wallet and email: %w", req.Role, core.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("find wallet account", err)
	}

	if err := s.verifySigner(account.Nonce, req.Signature, address); err != nil {
		return nil, err
	}

	updated := *account
	if err := s.rotateNonce(ctx, &updated, account.Nonce); err != nil {
		return nil, err
	}

	return s.issueSession(ctx, &updated, FlowWalletLogin)
}

// SignupWallet completes registration of a challenged wallet.
func (s *AuthService) SignupWallet(ctx context.Context, req WalletSignupRequest) (result *core.AuthResult, err error) {
	defer func() { s.observe(ctx, FlowWalletSignup, err) }()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if err := s.check(req); err != nil {
		return nil, err
	}
	address, err := core.NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	account, err := s.accounts.FindByWalletAddress(storeCtx, address)
	cancel()
	if errors.Is(err, core.ErrNotFound) || (err == nil && account.Nonce == "") {
		return nil, fmt.Errorf("no nonce found for this address: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("find wallet account", err)
	}

	if err := s.verifySigner(account.Nonce, req.Signature, address); err != nil {
		return nil, err
	}

	// One account per wallet: a registered wallet cannot register again under any role.
	if account.Registered() {
		return nil, fmt.Errorf("wallet already registered: %w", core.ErrDuplicateRegistration)
	}
	if err := s.ensureNoCompetitor(ctx, req.Role, req.Email, address); err != nil {
		return nil, err
	}

	promoted := *account
	promoted.State = core.AccountRegistered
	promoted.Username = req.Username
	promoted.Email = req.Email
	promoted.Role = req.Role
	if err := s.rotateNonce(ctx, &promoted, account.Nonce); err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishRegistered(ctx, &promoted); err != nil {
		s.logger.WarnContext(ctx, "failed to publish registration event", "account_id", promoted.ID, "error", err)
	}
	s.logger.InfoContext(ctx, "account registered", "account_id", promoted.ID, "role", promoted.Role, "method", "wallet")

	return s.issueSession(ctx, &promoted, FlowWalletSignup)
}

// rotateNonce gives account a fresh nonce and persists it, provided the
// stored nonce is still the verified one. Losing a race means the signature
// was made over a nonce that is no longer current.
func (s *AuthService) rotateNonce(ctx context.Context, account *core.Account, verified string) error {
	next, err := s.nonces.Generate()
	if err != nil {
		return err
	}
	account.Nonce = next

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	err = s.accounts.UpdateIfNonce(ctx, account, verified)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrStaleNonce):
		return fmt.Errorf("nonce already used: %w", core.ErrSignatureInvalid)
	case errors.Is(err, core.ErrAccountExists):
		return fmt.Errorf("registration conflicts with an existing account: %w", core.ErrDuplicateRegistration)
	case errors.Is(err, core.ErrNotFound):
		return fmt.Errorf("account disappeared: %w", core.ErrNotFound)
	default:
		return storageError("rotate nonce", err)
	}
}

// ensureNoCompetitor fails when a registered account for role already claims
// email or address.
func (s *AuthService) ensureNoCompetitor(ctx context.Context, role core.Role, email, address string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	_, err := s.accounts.FindCompetingRegistration(ctx, role, email, address)
	switch {
	case err == nil:
		return fmt.Errorf("already registered as a %s: %w", role, core.ErrDuplicateRegistration)
	case errors.Is(err, core.ErrNotFound):
		return nil
	default:
		return storageError("check registration", err)
	}
}
