package ledger

import (
	"context"
	"errors"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/db"
)

var ErrInvalidAmount = errors.New("amount must be positive")

type LedgerService interface {
	RegisterAccount(ctx context.Context, uuid, email string) (Account, error)
	Deposit(ctx context.Context, callerUUID, adminKey, to string, amount int64) error
	Approve(ctx context.Context, owner, spender string, amount int64) error
	Pull(ctx context.Context, from, to string, amount int64) error
	Push(ctx context.Context, from, to string, amount int64) error
	BalanceOf(ctx context.Context, uuid string) (int64, error)
	AccountEmail(ctx context.Context, uuid string) (string, error)
}

type ledgerService struct {
	repo   AccountRepository
	runner db.Runner
	gate   admin.Authorizer
}

func NewLedgerService(repo AccountRepository, runner db.Runner, gate admin.Authorizer) LedgerService {
	return &ledgerService{repo: repo, runner: runner, gate: gate}
}

func (s *ledgerService) RegisterAccount(ctx context.Context, uuid, email string) (Account, error) {
	return s.repo.UpsertAccount(ctx, uuid, email)
}

func (s *ledgerService) Deposit(ctx context.Context, callerUUID, adminKey, to string, amount int64) error {
	if err := s.gate.Authorize(callerUUID, adminKey); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.Credit(ctx, to, amount)
}

func (s *ledgerService) Approve(ctx context.Context, owner, spender string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	return s.repo.SetAllowance(ctx, owner, spender, amount)
}

// Pull moves value from an account into a pool, gated by the allowance
// the owner granted that pool. Both legs commit or neither does.
func (s *ledgerService) Pull(ctx context.Context, from, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SpendAllowance(ctx, from, to, amount); err != nil {
			return err
		}
		if err := s.repo.Debit(ctx, from, amount); err != nil {
			return err
		}
		return s.repo.Credit(ctx, to, amount)
	})
}

func (s *ledgerService) Push(ctx context.Context, from, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Debit(ctx, from, amount); err != nil {
			return err
		}
		return s.repo.Credit(ctx, to, amount)
	})
}

func (s *ledgerService) BalanceOf(ctx context.Context, uuid string) (int64, error) {
	a, err := s.repo.GetAccount(ctx, uuid)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

func (s *ledgerService) AccountEmail(ctx context.Context, uuid string) (string, error) {
	a, err := s.repo.GetAccount(ctx, uuid)
	if err != nil {
		return "", err
	}
	return a.Email, nil
}
