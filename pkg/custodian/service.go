package custodian

import (
	"context"
	"errors"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/db"
)

var (
	ErrNotTrusted = errors.New("caller is not trusted by the custodian")
	ErrNotOwner   = errors.New("depositor does not own the asset")
)

// Registry is the slice of the asset registry the custodian needs: prove
// current ownership, and move the asset in and out of custody.
type Registry interface {
	OwnerOf(ctx context.Context, id int64) (string, error)
	Transfer(ctx context.Context, from, to string, id int64) error
}

type CustodyService interface {
	GrantTrust(ctx context.Context, callerUUID, adminKey, trustedCallerID string, enabled bool) error
	Lock(ctx context.Context, callerID string, assetID int64, depositor string) error
	Release(ctx context.Context, callerID string, assetID int64, recipient string) error
	Forfeit(ctx context.Context, callerID string, assetID int64, recipient string) error
	IsLocked(ctx context.Context, assetID int64) (bool, error)
}

type custodyService struct {
	repo        CustodyRepository
	registry    Registry
	runner      db.Runner
	gate        admin.Authorizer
	accountUUID string
}

// NewCustodyService builds the custodian. accountUUID is the registry
// identity under which held assets are parked while in custody.
func NewCustodyService(repo CustodyRepository, registry Registry, runner db.Runner, gate admin.Authorizer, accountUUID string) CustodyService {
	return &custodyService{
		repo:        repo,
		registry:    registry,
		runner:      runner,
		gate:        gate,
		accountUUID: accountUUID,
	}
}

func (s *custodyService) GrantTrust(ctx context.Context, callerUUID, adminKey, trustedCallerID string, enabled bool) error {
	if err := s.gate.Authorize(callerUUID, adminKey); err != nil {
		return err
	}
	return s.repo.SetTrust(ctx, trustedCallerID, enabled)
}

func (s *custodyService) Lock(ctx context.Context, callerID string, assetID int64, depositor string) error {
	if err := s.authorize(ctx, callerID); err != nil {
		return err
	}

	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.RecordExists(ctx, assetID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyLocked
		}

		owner, err := s.registry.OwnerOf(ctx, assetID)
		if err != nil {
			return err
		}
		if owner != depositor {
			return ErrNotOwner
		}

		// Record first: a reentrant lock attempt during the registry
		// transfer observes the record and fails with ErrAlreadyLocked.
		if err := s.repo.CreateRecord(ctx, assetID, depositor); err != nil {
			return err
		}

		return s.registry.Transfer(ctx, depositor, s.accountUUID, assetID)
	})
}

func (s *custodyService) Release(ctx context.Context, callerID string, assetID int64, recipient string) error {
	if err := s.authorize(ctx, callerID); err != nil {
		return err
	}
	return s.handOver(ctx, assetID, recipient)
}

// Forfeit has the same contract as Release; it exists so default and
// liquidation paths are explicit at every call site and in audit logs.
func (s *custodyService) Forfeit(ctx context.Context, callerID string, assetID int64, recipient string) error {
	if err := s.authorize(ctx, callerID); err != nil {
		return err
	}
	return s.handOver(ctx, assetID, recipient)
}

func (s *custodyService) IsLocked(ctx context.Context, assetID int64) (bool, error) {
	return s.repo.RecordExists(ctx, assetID)
}

func (s *custodyService) authorize(ctx context.Context, callerID string) error {
	trusted, err := s.repo.IsTrusted(ctx, callerID)
	if err != nil {
		return err
	}
	if !trusted {
		return ErrNotTrusted
	}
	return nil
}

// handOver deletes the custody record before the registry transfer so a
// reentrant call observes already-closed state.
func (s *custodyService) handOver(ctx context.Context, assetID int64, recipient string) error {
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteRecord(ctx, assetID); err != nil {
			return err
		}
		return s.registry.Transfer(ctx, s.accountUUID, recipient, assetID)
	})
}
