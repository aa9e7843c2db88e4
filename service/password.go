package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/bazaar/core"
)

// dummyPassword is hashed once so that logins for unknown emails still pay
// for a full hash comparison and cannot be told apart by timing.
const dummyPassword = "bazaar-dummy-password"

// SignupPassword registers a password account for (email, role).
func (s *AuthService) SignupPassword(ctx context.Context, req PasswordSignupRequest) (account *core.Account, err error) {
	defer func() { s.observe(ctx, FlowPasswordSignup, err) }()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = core.RoleBuyer
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	if err := s.ensureNoRegistration(ctx, req.Email, req.Role); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, core.ErrValidation) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account = &core.Account{
		ID:           s.newID(),
		State:        core.AccountRegistered,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.accounts.Create(storeCtx, account); err != nil {
		if errors.Is(err, core.ErrAccountExists) {
			return nil, fmt.Errorf("email already registered as %s: %w", req.Role, core.ErrDuplicateRegistration)
		}
		return nil, storageError("create account", err)
	}

	if err := s.eventPub.PublishRegistered(ctx, account); err != nil {
		s.logger.WarnContext(ctx, "failed to publish registration event", "account_id", account.ID, "error", err)
	}
	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID, "role", account.Role, "method", "password")

	return account, nil
}

// LoginPassword authenticates with email and password and issues a session.
// Every credential failure is reported as core.ErrInvalidCredentials.
func (s *AuthService) LoginPassword(ctx context.Context, req PasswordLoginRequest) (result *core.AuthResult, err error) {
	defer func() { s.observe(ctx, FlowPasswordLogin, err) }()

	req.Email = normalizeEmail(req.Email)
	if err := s.check(req); err != nil {
		return nil, err
	}

	candidates, err := s.loginCandidates(ctx, req.Email, req.Role)
	if err != nil {
		return nil, err
	}

	var matched *core.Account
	for _, acc := range candidates {
		if acc.PasswordHash == "" {
			continue
		}
		if s.hasher.Verify(req.Password, acc.PasswordHash) {
			matched = acc
			break
		}
	}
	if matched == nil {
		if len(candidates) == 0 {
			s.hasher.Verify(req.Password, s.dummyPasswordHash())
		}
		return nil, core.ErrInvalidCredentials
	}

	return s.issueSession(ctx, matched, FlowPasswordLogin)
}

// loginCandidates returns the registered accounts a password may belong to.
// A missing account is not an error here; the caller reports it as invalid
// credentials so that account existence does not leak.
func (s *AuthService) loginCandidates(ctx context.Context, email string, role core.Role) ([]*core.Account, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if role != "" {
		acc, err := s.accounts.FindByEmailAndRole(ctx, email, role)
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, storageError("find account", err)
		}
		return []*core.Account{acc}, nil
	}

	accounts, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find accounts", err)
	}
	return accounts, nil
}

// ensureNoRegistration fails with core.ErrDuplicateRegistration when
// (email, role) is already registered.
func (s *AuthService) ensureNoRegistration(ctx context.Context, email string, role core.Role) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	_, err := s.accounts.FindByEmailAndRole(ctx, email, role)
	switch {
	case err == nil:
		return fmt.Errorf("email already registered as %s: %w", role, core.ErrDuplicateRegistration)
	case errors.Is(err, core.ErrNotFound):
		return nil
	default:
		return storageError("check registration", err)
	}
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
