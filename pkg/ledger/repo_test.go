package ledger

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"vaultyard/pkg/testhelpers"
)

func setupAccountTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("DATABASE_URL_FOR_TEST not set; skipping account repository tests")
	}

	ctx := context.Background()
	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresAccountRepository_UpsertAccount(t *testing.T) {
	pool := setupAccountTestPool(t)
	repo := NewPostgresAccountRepository(pool)
	ctx := context.Background()

	id := uuid.NewString()
	created, err := repo.UpsertAccount(ctx, id, "first@example.com")
	require.NoError(t, err)
	require.Equal(t, id, created.UUID)
	require.Zero(t, created.Balance)

	// Re-registering updates the email and keeps the balance.
	require.NoError(t, repo.Credit(ctx, id, 100))
	updated, err := repo.UpsertAccount(ctx, id, "second@example.com")
	require.NoError(t, err)
	require.Equal(t, "second@example.com", updated.Email)
	require.Equal(t, int64(100), updated.Balance)
}

func TestPostgresAccountRepository_Debit_InsufficientFunds(t *testing.T) {
	pool := setupAccountTestPool(t)
	repo := NewPostgresAccountRepository(pool)
	ctx := context.Background()

	id := testhelpers.CreateTestAccount(t, pool, 50)

	err := repo.Debit(ctx, id, 60)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	got, err := repo.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(50), got.Balance)

	require.NoError(t, repo.Debit(ctx, id, 50))
	got, err = repo.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Zero(t, got.Balance)
}

func TestPostgresAccountRepository_AllowanceSpend(t *testing.T) {
	pool := setupAccountTestPool(t)
	repo := NewPostgresAccountRepository(pool)
	ctx := context.Background()

	owner := testhelpers.CreateTestAccount(t, pool, 100)
	spender := testhelpers.CreateTestAccount(t, pool, 0)

	require.NoError(t, repo.SetAllowance(ctx, owner, spender, 30))

	require.NoError(t, repo.SpendAllowance(ctx, owner, spender, 20))
	remaining, err := repo.GetAllowance(ctx, owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(10), remaining)

	err = repo.SpendAllowance(ctx, owner, spender, 20)
	require.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestPostgresAccountRepository_GetAccount_NotFound(t *testing.T) {
	pool := setupAccountTestPool(t)
	repo := NewPostgresAccountRepository(pool)

	_, err := repo.GetAccount(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrAccountNotFound)
}
