package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/ports"
)

// pgxPool is the subset of *pgxpool.Pool used by PostgresStore.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore is a PostgreSQL implementation of the AccountStore interface.
// Uniqueness is enforced by the schema; nonce rotation is a single
// conditional UPDATE so concurrent verifications cannot both win.
type PostgresStore struct {
	pool pgxPool
}

var _ ports.AccountStore = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL and applies migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const accountColumns = `id, state, username, email, password_hash, COALESCE(wallet_address, ''), nonce, role, created_at, updated_at`

// Create inserts a new account row
func (s *PostgresStore) Create(ctx context.Context, account *core.Account) error {
	const query = `
		INSERT INTO accounts (id, state, username, email, password_hash, wallet_address, nonce, role)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		account.ID, string(account.State), account.Username, account.Email,
		account.PasswordHash, account.WalletAddress, account.Nonce, string(account.Role),
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return mapError("create account", err)
	}
	return nil
}

// UpsertNonce sets the nonce for address, creating a placeholder if needed
func (s *PostgresStore) UpsertNonce(ctx context.Context, address, nonce, placeholderID string) (*core.Account, error) {
	query := `
		INSERT INTO accounts (id, state, wallet_address, nonce, role)
		VALUES ($1, 'placeholder', $2, $3, 'buyer')
		ON CONFLICT (wallet_address) DO UPDATE
		SET nonce = EXCLUDED.nonce, updated_at = NOW()
		RETURNING ` + accountColumns

	return scanAccount(s.pool.QueryRow(ctx, query, placeholderID, address, nonce), "upsert nonce")
}

// UpdateIfNonce writes the account when its stored nonce still matches
func (s *PostgresStore) UpdateIfNonce(ctx context.Context, account *core.Account, expectedNonce string) error {
	const query = `
		UPDATE accounts
		SET state = $3, username = $4, email = $5, password_hash = $6,
		    wallet_address = NULLIF($7, ''), nonce = $8, role = $9, updated_at = NOW()
		WHERE id = $1 AND nonce = $2`

	tag, err := s.pool.Exec(ctx, query,
		account.ID, expectedNonce, string(account.State), account.Username, account.Email,
		account.PasswordHash, account.WalletAddress, account.Nonce, string(account.Role),
	)
	if err != nil {
		return mapError("update account", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, account.ID).Scan(&exists); err != nil {
		return mapError("check account", err)
	}
	if !exists {
		return core.ErrNotFound
	}
	return core.ErrStaleNonce
}

// FindByID fetches an account by id
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.pool.QueryRow(ctx, query, id), "find account by id")
}

// FindByWalletAddress fetches the account owning address
func (s *PostgresStore) FindByWalletAddress(ctx context.Context, address string) (*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE wallet_address = $1`
	return scanAccount(s.pool.QueryRow(ctx, query, address), "find account by wallet")
}

// FindByEmailAndRole fetches the registered account for (email, role)
func (s *PostgresStore) FindByEmailAndRole(ctx context.Context, email string, role core.Role) (*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE state = 'registered' AND lower(email) = lower($1) AND role = $2`
	return scanAccount(s.pool.QueryRow(ctx, query, email, string(role)), "find account by email and role")
}

// FindByEmail fetches every registered account using email
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) ([]*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE state = 'registered' AND lower(email) = lower($1)
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, email)
	if err != nil {
		return nil, mapError("find accounts by email", err)
	}
	defer rows.Close()

	var out []*core.Account
	for rows.Next() {
		acc, err := scanAccount(rows, "find accounts by email")
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("find accounts by email", err)
	}
	if len(out) == 0 {
		return nil, core.ErrNotFound
	}
	return out, nil
}

// FindRegisteredByWallet matches a registered account on (address, email, role)
func (s *PostgresStore) FindRegisteredByWallet(ctx context.Context, address, email string, role core.Role) (*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE state = 'registered' AND wallet_address = $1 AND lower(email) = lower($2) AND role = $3`
	return scanAccount(s.pool.QueryRow(ctx, query, address, email, string(role)), "find account by wallet and email")
}

// FindCompetingRegistration returns a registered account for role claiming email or address
func (s *PostgresStore) FindCompetingRegistration(ctx context.Context, role core.Role, email, address string) (*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE state = 'registered' AND role = $1
		  AND (lower(email) = lower($2) OR wallet_address = NULLIF($3, ''))
		LIMIT 1`
	return scanAccount(s.pool.QueryRow(ctx, query, string(role), email, address), "find competing registration")
}

func scanAccount(row pgx.Row, op string) (*core.Account, error) {
	var (
		acc   core.Account
		state string
		role  string
	)
	err := row.Scan(&acc.ID, &state, &acc.Username, &acc.Email, &acc.PasswordHash,
		&acc.WalletAddress, &acc.Nonce, &role, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	acc.State = core.AccountState(state)
	acc.Role = core.Role(role)
	return &acc, nil
}

func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return core.ErrAccountExists
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorage, err)
}
