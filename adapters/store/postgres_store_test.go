package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/layer-3/bazaar/core"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "state", "username", "email", "password_hash", "wallet_address", "nonce", "role", "created_at", "updated_at"}

func newStoreWithMock(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Now()

	acc := registered("id-1", "b@x.com", core.RoleSeller)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs("id-1", "registered", "id-1", "b@x.com", "hash", "", "", "seller").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, s.Create(context.Background(), acc))
	assert.Equal(t, now, acc.CreatedAt)
}

func TestPostgresStore_CreateUniqueViolation(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs("id-1", "registered", "id-1", "b@x.com", "hash", "", "", "seller").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := s.Create(context.Background(), registered("id-1", "b@x.com", core.RoleSeller))
	assert.ErrorIs(t, err, core.ErrAccountExists)
}

func TestPostgresStore_UpsertNonce(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`ON CONFLICT \(wallet_address\) DO UPDATE`).
		WithArgs("p-1", addrA, "n1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("p-1", "placeholder", "", "", "", addrA, "n1", "buyer", now, now))

	acc, err := s.UpsertNonce(context.Background(), addrA, "n1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, core.AccountPlaceholder, acc.State)
	assert.Equal(t, "n1", acc.Nonce)
	assert.Equal(t, addrA, acc.WalletAddress)
}

func TestPostgresStore_UpdateIfNonce(t *testing.T) {
	acc := &core.Account{
		ID: "p-1", State: core.AccountRegistered, Username: "alice", Email: "a@x.com",
		WalletAddress: addrA, Nonce: "n2", Role: core.RoleBuyer,
	}
	update := regexp.QuoteMeta("UPDATE accounts")
	exists := regexp.QuoteMeta("SELECT EXISTS")

	t.Run("applied", func(t *testing.T) {
		s, mock := newStoreWithMock(t)
		mock.ExpectExec(update).
			WithArgs("p-1", "n1", "registered", "alice", "a@x.com", "", addrA, "n2", "buyer").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, s.UpdateIfNonce(context.Background(), acc, "n1"))
	})

	t.Run("stale", func(t *testing.T) {
		s, mock := newStoreWithMock(t)
		mock.ExpectExec(update).
			WithArgs("p-1", "n1", "registered", "alice", "a@x.com", "", addrA, "n2", "buyer").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(exists).WithArgs("p-1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		assert.ErrorIs(t, s.UpdateIfNonce(context.Background(), acc, "n1"), core.ErrStaleNonce)
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newStoreWithMock(t)
		mock.ExpectExec(update).
			WithArgs("p-1", "n1", "registered", "alice", "a@x.com", "", addrA, "n2", "buyer").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(exists).WithArgs("p-1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		assert.ErrorIs(t, s.UpdateIfNonce(context.Background(), acc, "n1"), core.ErrNotFound)
	})

	t.Run("duplicate", func(t *testing.T) {
		s, mock := newStoreWithMock(t)
		mock.ExpectExec(update).
			WithArgs("p-1", "n1", "registered", "alice", "a@x.com", "", addrA, "n2", "buyer").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		assert.ErrorIs(t, s.UpdateIfNonce(context.Background(), acc, "n1"), core.ErrAccountExists)
	})
}

func TestPostgresStore_FindNotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM accounts\s+WHERE state = 'registered' AND lower\(email\)`).
		WithArgs("nobody@x.com", "buyer").
		WillReturnRows(pgxmock.NewRows(columns))

	_, err := s.FindByEmailAndRole(context.Background(), "nobody@x.com", core.RoleBuyer)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPostgresStore_FindByEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`ORDER BY created_at`).
		WithArgs("b@x.com").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("1", "registered", "bob", "b@x.com", "h1", "", "", "buyer", now, now).
			AddRow("2", "registered", "bob", "b@x.com", "h2", "", "", "seller", now, now))

	accounts, err := s.FindByEmail(context.Background(), "b@x.com")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, core.RoleSeller, accounts[1].Role)
}

func TestPostgresStore_FindCompetingRegistration(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`wallet_address = NULLIF\(\$3, ''\)`).
		WithArgs("buyer", "a@x.com", addrA).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("1", "registered", "alice", "a@x.com", "", addrA, "n", "buyer", now, now))

	acc, err := s.FindCompetingRegistration(context.Background(), core.RoleBuyer, "a@x.com", addrA)
	require.NoError(t, err)
	assert.Equal(t, "1", acc.ID)
}

func TestPostgresStore_StorageError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`WHERE wallet_address = \$1`).
		WithArgs(addrA).
		WillReturnError(errors.New("connection reset"))

	_, err := s.FindByWalletAddress(context.Background(), addrA)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Contains(t, err.Error(), "connection reset")
}
