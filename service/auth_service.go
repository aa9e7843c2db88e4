package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/ports"
)

// DefaultStoreTimeout bounds every store call made by the service.
const DefaultStoreTimeout = 3 * time.Second

// Flow names used in logs, metrics and events.
const (
	FlowPasswordSignup = "password_signup"
	FlowPasswordLogin  = "password_login"
	FlowNonce          = "wallet_nonce"
	FlowWalletLogin    = "wallet_login"
	FlowWalletSignup   = "wallet_signup"
	FlowLogout         = "logout"
)

// AuthService handles authentication business logic for both the password
// and the wallet-signature paths.
type AuthService struct {
	accounts    ports.AccountStore
	revocations ports.RevocationStore
	tokenizer   ports.Tokenizer
	verifier    ports.SignatureVerifier
	hasher      ports.PasswordHasher
	nonces      ports.NonceGenerator
	eventPub    ports.EventPublisher
	metrics     ports.AuthMetrics
	logger      *slog.Logger
	validate    *validator.Validate

	storeTimeout time.Duration
	newID        func() string

	dummyOnce sync.Once
	dummyHash string
}

// Option configures optional AuthService collaborators.
type Option func(*AuthService)

// WithEventPublisher publishes registration and session events.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *AuthService) { s.eventPub = p }
}

// WithMetrics records attempt outcomes.
func WithMetrics(m ports.AuthMetrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

// WithStoreTimeout overrides DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *AuthService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	accounts ports.AccountStore,
	revocations ports.RevocationStore,
	tokenizer ports.Tokenizer,
	verifier ports.SignatureVerifier,
	hasher ports.PasswordHasher,
	nonces ports.NonceGenerator,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		accounts:     accounts,
		revocations:  revocations,
		tokenizer:    tokenizer,
		verifier:     verifier,
		hasher:       hasher,
		nonces:       nonces,
		eventPub:     nopPublisher{},
		metrics:      nopMetrics{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate:     newValidator(),
		storeTimeout: DefaultStoreTimeout,
		newID:        func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate validates a session token: signature, expiry and revocation.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	revoked, err := s.revocations.IsRevoked(ctx, session.ID)
	if err != nil {
		return nil, storageError("check token revocation", err)
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return session, nil
}

// Account loads the account a session was issued for.
func (s *AuthService) Account(ctx context.Context, id string) (*core.Account, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageError("find account", err)
	}
	return account, nil
}

// Logout revokes a session token for the rest of its lifetime.
// Logging out an already expired token succeeds without doing anything.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	defer func() { s.observe(ctx, FlowLogout, err) }()

	session, err := s.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil
		}
		return err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.revocations.Revoke(storeCtx, session.ID, time.Until(session.ExpiresAt)); err != nil {
		return storageError("revoke token", err)
	}

	// The token is already revoked in the store, which is the critical part.
	if err := s.eventPub.PublishLogout(ctx, session); err != nil {
		s.logger.WarnContext(ctx, "failed to publish logout event", "account_id", session.AccountID, "error", err)
	}

	return nil
}

// issueSession mints a token for an authenticated account
func (s *AuthService) issueSession(ctx context.Context, account *core.Account, flow string) (*core.AuthResult, error) {
	session := s.tokenizer.NewSession(account.ID, account.Role)

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	if err := s.eventPub.PublishSessionIssued(ctx, session, flow); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session event", "account_id", account.ID, "error", err)
	}

	return &core.AuthResult{Token: token, Session: session}, nil
}

// verifySigner checks that signature over message was produced by address,
// which must already be normalised.
func (s *AuthService) verifySigner(message, signature, address string) error {
	if message == "" {
		return fmt.Errorf("no active nonce: %w", core.ErrSignatureInvalid)
	}
	signer, err := s.verifier.RecoverSigner(message, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(signer.Hex(), address) {
		return fmt.Errorf("signer %s does not match %s: %w", signer.Hex(), address, core.ErrSignatureInvalid)
	}
	return nil
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// observe logs and counts the outcome of a flow.
func (s *AuthService) observe(ctx context.Context, flow string, err error) {
	outcome := Outcome(err)
	s.metrics.ObserveAttempt(flow, outcome)

	switch outcome {
	case "success":
		s.logger.DebugContext(ctx, "auth flow succeeded", "flow", flow)
	case "storage", "error":
		s.logger.ErrorContext(ctx, "auth flow failed", "flow", flow, "outcome", outcome, "error", err)
	default:
		s.logger.InfoContext(ctx, "auth flow rejected", "flow", flow, "outcome", outcome)
	}
}

// Outcome classifies err into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, core.ErrDuplicateRegistration):
		return "duplicate"
	case errors.Is(err, core.ErrTokenExpired), errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrTokenRevoked):
		return "invalid_token"
	case errors.Is(err, core.ErrStorage):
		return "storage"
	default:
		return "error"
	}
}

// storageError wraps an unexpected store failure as core.ErrStorage.
func storageError(op string, err error) error {
	if errors.Is(err, core.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorage, err)
}

type nopPublisher struct{}

func (nopPublisher) PublishRegistered(context.Context, *core.Account) error          { return nil }
func (nopPublisher) PublishSessionIssued(context.Context, *core.Session, string) error { return nil }
func (nopPublisher) PublishLogout(context.Context, *core.Session) error                { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(string, string) {}
