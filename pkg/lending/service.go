package lending

import (
	"context"
	"errors"
	"time"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/db"
	"vaultyard/pkg/events"
	"vaultyard/pkg/notify"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrNotOwner      = errors.New("caller does not own the asset")
	ErrNotBorrower   = errors.New("caller is not the borrower")
	ErrNotExpired    = errors.New("loan deadline has not passed")
	ErrNotRepaid     = errors.New("loan is not fully repaid")
)

// Custodian is the trust-gated custody capability the lending engine
// drives. Lock on issuance, release on full repayment, forfeit on
// liquidation.
type Custodian interface {
	Lock(ctx context.Context, callerID string, assetID int64, depositor string) error
	Release(ctx context.Context, callerID string, assetID int64, recipient string) error
	Forfeit(ctx context.Context, callerID string, assetID int64, recipient string) error
}

type Registry interface {
	OwnerOf(ctx context.Context, id int64) (string, error)
}

type Ledger interface {
	Pull(ctx context.Context, from, to string, amount int64) error
	Push(ctx context.Context, from, to string, amount int64) error
	AccountEmail(ctx context.Context, uuid string) (string, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type LendingService interface {
	RequestLoan(ctx context.Context, borrower string, assetID, amount int64) (Loan, error)
	RepayLoan(ctx context.Context, borrower string, assetID, amount int64) (RepayResult, error)
	LiquidateLoan(ctx context.Context, callerUUID, adminKey string, assetID int64, recipient string) error
	WithdrawCollateral(ctx context.Context, borrower string, assetID int64, to string) error
	GetInstallmentStatus(ctx context.Context, assetID int64) (InstallmentStatus, error)
}

// Config carries the engine settings the lending state machine needs.
// CallerID is the identity under which the service is trusted by the
// custodian; PoolUUID is the ledger account loans are funded from.
type Config struct {
	CallerID     string
	PoolUUID     string
	LoanDuration time.Duration
	Installments int
}

type lendingService struct {
	repo      LoanRepository
	custodian Custodian
	registry  Registry
	ledger    Ledger
	runner    db.Runner
	gate      admin.Authorizer
	clock     Clock
	publisher events.Publisher
	notifier  notify.Notifier
	cfg       Config
}

func NewLendingService(
	repo LoanRepository,
	custodian Custodian,
	registry Registry,
	ledger Ledger,
	runner db.Runner,
	gate admin.Authorizer,
	publisher events.Publisher,
	notifier notify.Notifier,
	cfg Config,
) LendingService {
	return &lendingService{
		repo:      repo,
		custodian: custodian,
		registry:  registry,
		ledger:    ledger,
		runner:    runner,
		gate:      gate,
		clock:     realClock{},
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func (s *lendingService) RequestLoan(ctx context.Context, borrower string, assetID, amount int64) (Loan, error) {
	if amount <= 0 {
		return Loan{}, ErrInvalidAmount
	}

	var created Loan
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetActiveLoan(ctx, assetID); err == nil {
			return ErrLoanExists
		} else if !errors.Is(err, ErrNoActiveLoan) {
			return err
		}

		owner, err := s.registry.OwnerOf(ctx, assetID)
		if err != nil {
			return err
		}
		if owner != borrower {
			return ErrNotOwner
		}

		if err := s.custodian.Lock(ctx, s.cfg.CallerID, assetID, borrower); err != nil {
			return err
		}

		now := s.clock.Now()
		deadline := now.Add(s.cfg.LoanDuration)

		created, err = s.repo.CreateLoan(ctx, Loan{
			AssetID:      assetID,
			BorrowerUUID: borrower,
			Principal:    amount,
			CreatedAt:    now,
			Deadline:     deadline,
		})
		if err != nil {
			return err
		}

		if err := s.repo.CreateSchedule(ctx, InstallmentSchedule{
			LoanID:       created.ID,
			Total:        amount,
			Installments: s.cfg.Installments,
			CreatedAt:    now,
			Deadline:     deadline,
		}); err != nil {
			return err
		}

		return s.ledger.Push(ctx, s.cfg.PoolUUID, borrower, amount)
	})
	if err != nil {
		return Loan{}, err
	}

	s.publisher.Publish(events.Event{Type: events.TypeLoanIssued, AssetID: assetID, Actor: borrower, Amount: amount})
	return created, nil
}

// RepayLoan applies a repayment, capped at the outstanding balance so an
// overpayment collects only what is owed. A payment after the schedule
// deadline is accepted but flagged late; only explicit liquidation ends
// an expired loan.
func (s *lendingService) RepayLoan(ctx context.Context, borrower string, assetID, amount int64) (RepayResult, error) {
	if amount <= 0 {
		return RepayResult{}, ErrInvalidAmount
	}

	var result RepayResult
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		loan, err := s.repo.GetActiveLoan(ctx, assetID)
		if err != nil {
			return err
		}
		if loan.BorrowerUUID != borrower {
			return ErrNotBorrower
		}

		applied := amount
		if outstanding := loan.Outstanding(); applied > outstanding {
			applied = outstanding
		}

		if err := s.ledger.Pull(ctx, borrower, s.cfg.PoolUUID, applied); err != nil {
			return err
		}

		schedule, err := s.repo.GetSchedule(ctx, loan.ID)
		if err != nil {
			return err
		}
		late := s.clock.Now().After(schedule.Deadline)

		if err := s.repo.AddRepayment(ctx, loan.ID, applied); err != nil {
			return err
		}
		if err := s.repo.AddSchedulePayment(ctx, loan.ID, applied); err != nil {
			return err
		}
		if err := s.repo.RecordPayment(ctx, loan.ID, applied, late); err != nil {
			return err
		}

		result = RepayResult{Applied: applied, Late: late}

		if loan.Repaid+applied >= loan.Principal {
			// Close the loan before the custody release so a reentrant
			// repayment sees no active loan.
			if err := s.repo.DeactivateLoan(ctx, loan.ID); err != nil {
				return err
			}
			if err := s.custodian.Release(ctx, s.cfg.CallerID, assetID, borrower); err != nil {
				return err
			}
			result.Settled = true
		}

		return nil
	})
	if err != nil {
		return RepayResult{}, err
	}

	s.publisher.Publish(events.Event{Type: events.TypeLoanRepaid, AssetID: assetID, Actor: borrower, Amount: result.Applied})
	return result, nil
}

// LiquidateLoan forfeits the collateral of an expired loan. Admin-only,
// and only strictly after the deadline; a late repayment never triggers
// this by itself.
func (s *lendingService) LiquidateLoan(ctx context.Context, callerUUID, adminKey string, assetID int64, recipient string) error {
	if err := s.gate.Authorize(callerUUID, adminKey); err != nil {
		return err
	}
	if recipient == "" {
		recipient = callerUUID
	}

	var borrower string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		loan, err := s.repo.GetActiveLoan(ctx, assetID)
		if err != nil {
			return err
		}
		if !s.clock.Now().After(loan.Deadline) {
			return ErrNotExpired
		}
		borrower = loan.BorrowerUUID

		if err := s.repo.DeactivateLoan(ctx, loan.ID); err != nil {
			return err
		}
		return s.custodian.Forfeit(ctx, s.cfg.CallerID, assetID, recipient)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(events.Event{Type: events.TypeLoanLiquidated, AssetID: assetID, Actor: borrower})
	if email, err := s.ledger.AccountEmail(ctx, borrower); err == nil {
		s.notifier.LoanLiquidated(email, assetID)
	}
	return nil
}

// WithdrawCollateral is a thin wrapper over custody release for a fully
// repaid loan whose collateral is still held.
func (s *lendingService) WithdrawCollateral(ctx context.Context, borrower string, assetID int64, to string) error {
	if to == "" {
		to = borrower
	}

	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		loan, err := s.repo.GetLatestLoan(ctx, assetID)
		if err != nil {
			return err
		}
		if loan.BorrowerUUID != borrower {
			return ErrNotBorrower
		}
		if loan.Repaid < loan.Principal {
			return ErrNotRepaid
		}
		return s.custodian.Release(ctx, s.cfg.CallerID, assetID, to)
	})
}

func (s *lendingService) GetInstallmentStatus(ctx context.Context, assetID int64) (InstallmentStatus, error) {
	loan, err := s.repo.GetLatestLoan(ctx, assetID)
	if err != nil {
		return InstallmentStatus{}, err
	}

	schedule, err := s.repo.GetSchedule(ctx, loan.ID)
	if err != nil {
		return InstallmentStatus{}, err
	}

	payments, err := s.repo.ListPayments(ctx, loan.ID)
	if err != nil {
		return InstallmentStatus{}, err
	}

	return InstallmentStatus{
		Loan:        loan,
		Schedule:    schedule,
		Payments:    payments,
		Outstanding: loan.Outstanding(),
	}, nil
}
