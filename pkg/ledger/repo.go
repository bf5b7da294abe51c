package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultyard/pkg/db"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

type AccountRepository interface {
	UpsertAccount(ctx context.Context, uuid, email string) (Account, error)
	GetAccount(ctx context.Context, uuid string) (Account, error)
	Credit(ctx context.Context, uuid string, amount int64) error
	Debit(ctx context.Context, uuid string, amount int64) error
	SetAllowance(ctx context.Context, owner, spender string, amount int64) error
	GetAllowance(ctx context.Context, owner, spender string) (int64, error)
	SpendAllowance(ctx context.Context, owner, spender string, amount int64) error
}

type postgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &postgresAccountRepository{pool: pool}
}

func (r *postgresAccountRepository) UpsertAccount(ctx context.Context, uuid, email string) (Account, error) {
	query := `INSERT INTO ledger_accounts (account_uuid, email)
              VALUES ($1, $2)
              ON CONFLICT (account_uuid) DO UPDATE SET email = EXCLUDED.email
              RETURNING account_uuid, balance, email, created_at`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query, uuid, email)

	var a Account
	if err := row.Scan(&a.UUID, &a.Balance, &a.Email, &a.CreatedAt); err != nil {
		return Account{}, err
	}

	return a, nil
}

func (r *postgresAccountRepository) GetAccount(ctx context.Context, uuid string) (Account, error) {
	query := `SELECT account_uuid, balance, email, created_at FROM ledger_accounts WHERE account_uuid = $1`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query, uuid)

	var a Account
	if err := row.Scan(&a.UUID, &a.Balance, &a.Email, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}

	return a, nil
}

func (r *postgresAccountRepository) Credit(ctx context.Context, uuid string, amount int64) error {
	query := `INSERT INTO ledger_accounts (account_uuid, balance)
              VALUES ($1, $2)
              ON CONFLICT (account_uuid) DO UPDATE SET balance = ledger_accounts.balance + EXCLUDED.balance`

	_, err := db.Q(ctx, r.pool).Exec(ctx, query, uuid, amount)
	return err
}

// Debit only succeeds while the balance covers the amount; the conditional
// update keeps balances non-negative without a read-modify-write race.
func (r *postgresAccountRepository) Debit(ctx context.Context, uuid string, amount int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE ledger_accounts SET balance = balance - $1 WHERE account_uuid = $2 AND balance >= $1", amount, uuid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetAccount(ctx, uuid); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

func (r *postgresAccountRepository) SetAllowance(ctx context.Context, owner, spender string, amount int64) error {
	query := `INSERT INTO ledger_allowances (owner_uuid, spender_uuid, amount)
              VALUES ($1, $2, $3)
              ON CONFLICT (owner_uuid, spender_uuid) DO UPDATE SET amount = EXCLUDED.amount`

	_, err := db.Q(ctx, r.pool).Exec(ctx, query, owner, spender, amount)
	return err
}

func (r *postgresAccountRepository) GetAllowance(ctx context.Context, owner, spender string) (int64, error) {
	row := db.Q(ctx, r.pool).QueryRow(ctx,
		"SELECT amount FROM ledger_allowances WHERE owner_uuid = $1 AND spender_uuid = $2", owner, spender)

	var amount int64
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	return amount, nil
}

func (r *postgresAccountRepository) SpendAllowance(ctx context.Context, owner, spender string, amount int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE ledger_allowances SET amount = amount - $1 WHERE owner_uuid = $2 AND spender_uuid = $3 AND amount >= $1",
		amount, owner, spender)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInsufficientAllowance
	}
	return nil
}
