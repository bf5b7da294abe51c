package royalty

import (
	"context"
	"errors"

	"vaultyard/pkg/admin"
)

var ErrInvalidBps = errors.New("bps must be between 0 and 10000")

// Ledger is the slice of the value ledger the splitter needs to pay out
// royalties from a sale pool.
type Ledger interface {
	Push(ctx context.Context, from, to string, amount int64) error
}

type SplitterService interface {
	SetPolicy(ctx context.Context, callerUUID, adminKey string, p Policy) error
	GetPolicy(ctx context.Context, assetID int64) (Policy, error)
	// Distribute pays the configured royalty for assetID out of fromPool
	// and reports the amount paid. The invariant royaltyPaid <= saleAmount
	// holds because bps never exceeds 10000.
	Distribute(ctx context.Context, assetID, saleAmount int64, fromPool string) (int64, error)
}

type splitterService struct {
	repo   PolicyRepository
	ledger Ledger
	gate   admin.Authorizer
}

func NewSplitterService(repo PolicyRepository, ledger Ledger, gate admin.Authorizer) SplitterService {
	return &splitterService{repo: repo, ledger: ledger, gate: gate}
}

func (s *splitterService) SetPolicy(ctx context.Context, callerUUID, adminKey string, p Policy) error {
	if err := s.gate.Authorize(callerUUID, adminKey); err != nil {
		return err
	}
	if p.Bps < 0 || p.Bps > 10000 {
		return ErrInvalidBps
	}
	return s.repo.UpsertPolicy(ctx, p)
}

func (s *splitterService) GetPolicy(ctx context.Context, assetID int64) (Policy, error) {
	return s.repo.GetPolicy(ctx, assetID)
}

func (s *splitterService) Distribute(ctx context.Context, assetID, saleAmount int64, fromPool string) (int64, error) {
	p, err := s.repo.GetPolicy(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrPolicyNotFound) {
			return 0, nil
		}
		return 0, err
	}

	royalty := saleAmount * int64(p.Bps) / 10000
	if royalty == 0 {
		return 0, nil
	}

	if err := s.ledger.Push(ctx, fromPool, p.RecipientUUID, royalty); err != nil {
		return 0, err
	}

	return royalty, nil
}
