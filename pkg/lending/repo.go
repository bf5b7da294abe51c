package lending

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultyard/pkg/db"
)

var (
	ErrLoanExists   = errors.New("an active loan already exists for this asset")
	ErrNoActiveLoan = errors.New("no active loan for this asset")
	ErrLoanNotFound = errors.New("loan not found")
)

type LoanRepository interface {
	CreateLoan(ctx context.Context, input Loan) (Loan, error)
	GetActiveLoan(ctx context.Context, assetID int64) (Loan, error)
	GetLatestLoan(ctx context.Context, assetID int64) (Loan, error)
	AddRepayment(ctx context.Context, loanID, amount int64) error
	DeactivateLoan(ctx context.Context, loanID int64) error
	CreateSchedule(ctx context.Context, input InstallmentSchedule) error
	GetSchedule(ctx context.Context, loanID int64) (InstallmentSchedule, error)
	AddSchedulePayment(ctx context.Context, loanID, amount int64) error
	RecordPayment(ctx context.Context, loanID, amount int64, late bool) error
	ListPayments(ctx context.Context, loanID int64) ([]Payment, error)
}

type postgresLoanRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLoanRepository(pool *pgxpool.Pool) LoanRepository {
	return &postgresLoanRepository{pool: pool}
}

func (r *postgresLoanRepository) CreateLoan(ctx context.Context, input Loan) (Loan, error) {
	query := `INSERT INTO loans (asset_id, borrower_uuid, principal, repaid, is_active, created_at, deadline)
              VALUES ($1, $2, $3, 0, TRUE, $4, $5)
              RETURNING id, asset_id, borrower_uuid, principal, repaid, is_active, created_at, deadline`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query,
		input.AssetID, input.BorrowerUUID, input.Principal, input.CreatedAt, input.Deadline)

	var created Loan
	if err := row.Scan(&created.ID, &created.AssetID, &created.BorrowerUUID, &created.Principal,
		&created.Repaid, &created.IsActive, &created.CreatedAt, &created.Deadline); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Loan{}, ErrLoanExists
		}
		return Loan{}, err
	}

	return created, nil
}

func (r *postgresLoanRepository) GetActiveLoan(ctx context.Context, assetID int64) (Loan, error) {
	query := `SELECT id, asset_id, borrower_uuid, principal, repaid, is_active, created_at, deadline
              FROM loans
              WHERE asset_id = $1 AND is_active`

	return r.scanLoan(db.Q(ctx, r.pool).QueryRow(ctx, query, assetID), ErrNoActiveLoan)
}

func (r *postgresLoanRepository) GetLatestLoan(ctx context.Context, assetID int64) (Loan, error) {
	query := `SELECT id, asset_id, borrower_uuid, principal, repaid, is_active, created_at, deadline
              FROM loans
              WHERE asset_id = $1
              ORDER BY id DESC
              LIMIT 1`

	return r.scanLoan(db.Q(ctx, r.pool).QueryRow(ctx, query, assetID), ErrLoanNotFound)
}

func (r *postgresLoanRepository) scanLoan(row pgx.Row, notFound error) (Loan, error) {
	var l Loan
	if err := row.Scan(&l.ID, &l.AssetID, &l.BorrowerUUID, &l.Principal,
		&l.Repaid, &l.IsActive, &l.CreatedAt, &l.Deadline); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Loan{}, notFound
		}
		return Loan{}, err
	}
	return l, nil
}

func (r *postgresLoanRepository) AddRepayment(ctx context.Context, loanID, amount int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE loans SET repaid = repaid + $1 WHERE id = $2 AND repaid + $1 <= principal", amount, loanID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *postgresLoanRepository) DeactivateLoan(ctx context.Context, loanID int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE loans SET is_active = FALSE WHERE id = $1 AND is_active", loanID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoActiveLoan
	}
	return nil
}

func (r *postgresLoanRepository) CreateSchedule(ctx context.Context, input InstallmentSchedule) error {
	query := `INSERT INTO installment_schedules (loan_id, total, paid, installments, created_at, deadline)
              VALUES ($1, $2, 0, $3, $4, $5)`

	_, err := db.Q(ctx, r.pool).Exec(ctx, query,
		input.LoanID, input.Total, input.Installments, input.CreatedAt, input.Deadline)
	return err
}

func (r *postgresLoanRepository) GetSchedule(ctx context.Context, loanID int64) (InstallmentSchedule, error) {
	query := `SELECT loan_id, total, paid, installments, created_at, deadline
              FROM installment_schedules
              WHERE loan_id = $1`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query, loanID)

	var s InstallmentSchedule
	if err := row.Scan(&s.LoanID, &s.Total, &s.Paid, &s.Installments, &s.CreatedAt, &s.Deadline); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InstallmentSchedule{}, ErrLoanNotFound
		}
		return InstallmentSchedule{}, err
	}

	return s, nil
}

func (r *postgresLoanRepository) AddSchedulePayment(ctx context.Context, loanID, amount int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE installment_schedules SET paid = paid + $1 WHERE loan_id = $2 AND paid + $1 <= total", amount, loanID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *postgresLoanRepository) RecordPayment(ctx context.Context, loanID, amount int64, late bool) error {
	_, err := db.Q(ctx, r.pool).Exec(ctx,
		"INSERT INTO loan_payments (loan_id, amount, late, paid_at) VALUES ($1, $2, $3, NOW())", loanID, amount, late)
	return err
}

func (r *postgresLoanRepository) ListPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	query := `SELECT id, loan_id, amount, late, paid_at
              FROM loan_payments
              WHERE loan_id = $1
              ORDER BY id`

	rows, err := db.Q(ctx, r.pool).Query(ctx, query, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &p.Late, &p.PaidAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}
