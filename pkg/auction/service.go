package auction

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
	ErrInvalidBid       = errors.New("minimum bid must be positive")
	ErrDurationTooShort = errors.New("auction duration is below the configured minimum")
	ErrNotOwner         = errors.New("seller does not own the asset")
	ErrNotSeller        = errors.New("caller is not the seller")
	ErrAuctionEnded     = errors.New("auction has ended")
	ErrSellerCannotBid  = errors.New("seller cannot bid on their own auction")
	ErrBidTooLow        = errors.New("bid must meet the minimum and exceed the current highest bid")
	ErrTooEarly         = errors.New("auction end time has not been reached")
	ErrHasBids          = errors.New("auction already has bids")
	ErrFeesExceedPrice  = errors.New("fees and royalty exceed the sale price")
)

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

// Splitter pays out the configured royalty for an asset from the sale
// pool and reports the amount paid, never more than saleAmount.
type Splitter interface {
	Distribute(ctx context.Context, assetID, saleAmount int64, fromPool string) (int64, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type AuctionService interface {
	StartAuction(ctx context.Context, seller string, assetID, minBid int64, duration time.Duration) (Auction, error)
	PlaceBid(ctx context.Context, bidder string, assetID, amount int64) error
	WithdrawReturns(ctx context.Context, caller string) (int64, error)
	CancelAuction(ctx context.Context, caller, adminKey string, assetID int64) error
	FinalizeAuction(ctx context.Context, assetID int64) (Settlement, error)
	ForfeitCollateral(ctx context.Context, callerUUID, adminKey string, assetID int64) error
	GetAuction(ctx context.Context, assetID int64) (Auction, error)
	GetPendingReturn(ctx context.Context, caller string) (int64, error)
}

// Config carries the engine settings for the auction state machine.
// CallerID is the identity trusted by the custodian, PoolUUID the escrow
// account bids sit in, TreasuryUUID the platform fee destination.
type Config struct {
	CallerID     string
	PoolUUID     string
	TreasuryUUID string
	FeeBps       int
	MinDuration  time.Duration
}

type auctionService struct {
	repo      AuctionRepository
	custodian Custodian
	registry  Registry
	ledger    Ledger
	splitter  Splitter
	runner    db.Runner
	gate      admin.Authorizer
	clock     Clock
	publisher events.Publisher
	notifier  notify.Notifier
	cfg       Config
}

func NewAuctionService(
	repo AuctionRepository,
	custodian Custodian,
	registry Registry,
	ledger Ledger,
	splitter Splitter,
	runner db.Runner,
	gate admin.Authorizer,
	publisher events.Publisher,
	notifier notify.Notifier,
	cfg Config,
) AuctionService {
	return &auctionService{
		repo:      repo,
		custodian: custodian,
		registry:  registry,
		ledger:    ledger,
		splitter:  splitter,
		runner:    runner,
		gate:      gate,
		clock:     realClock{},
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func (s *auctionService) StartAuction(ctx context.Context, seller string, assetID, minBid int64, duration time.Duration) (Auction, error) {
	if minBid <= 0 {
		return Auction{}, ErrInvalidBid
	}
	if duration < s.cfg.MinDuration {
		return Auction{}, ErrDurationTooShort
	}

	var created Auction
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetActiveAuction(ctx, assetID); err == nil {
			return ErrAuctionExists
		} else if !errors.Is(err, ErrNoActiveAuction) {
			return err
		}

		owner, err := s.registry.OwnerOf(ctx, assetID)
		if err != nil {
			return err
		}
		if owner != seller {
			return ErrNotOwner
		}

		if err := s.custodian.Lock(ctx, s.cfg.CallerID, assetID, seller); err != nil {
			return err
		}

		now := s.clock.Now()
		created, err = s.repo.CreateAuction(ctx, Auction{
			AssetID:    assetID,
			SellerUUID: seller,
			MinBid:     minBid,
			EndTime:    now.Add(duration),
			CreatedAt:  now,
		})
		return err
	})
	if err != nil {
		return Auction{}, err
	}

	s.publisher.Publish(events.Event{Type: events.TypeAuctionStarted, AssetID: assetID, Actor: seller, Amount: minBid})
	return created, nil
}

// PlaceBid escrows the bid and credits the displaced bidder's pending
// returns instead of pushing a refund, so a hostile refund target can
// never block the auction.
func (s *auctionService) PlaceBid(ctx context.Context, bidder string, assetID, amount int64) error {
	var outbid Auction
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetActiveAuction(ctx, assetID)
		if err != nil {
			return err
		}
		if !s.clock.Now().Before(a.EndTime) {
			return ErrAuctionEnded
		}
		if bidder == a.SellerUUID {
			return ErrSellerCannotBid
		}
		if amount < a.MinBid || amount <= a.HighestBid {
			return ErrBidTooLow
		}

		if err := s.ledger.Pull(ctx, bidder, s.cfg.PoolUUID, amount); err != nil {
			return err
		}

		if a.HasBids() {
			if err := s.repo.CreditPendingReturn(ctx, a.HighestBidder, a.HighestBid); err != nil {
				return err
			}
			outbid = a
		}

		return s.repo.SetHighestBid(ctx, a.ID, bidder, amount)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(events.Event{Type: events.TypeBidPlaced, AssetID: assetID, Actor: bidder, Amount: amount})
	if outbid.HasBids() {
		s.publisher.Publish(events.Event{Type: events.TypeOutbid, AssetID: assetID, Actor: outbid.HighestBidder, Amount: outbid.HighestBid})
		if email, err := s.ledger.AccountEmail(ctx, outbid.HighestBidder); err == nil {
			s.notifier.Outbid(email, assetID, outbid.HighestBid)
		}
	}
	return nil
}

// WithdrawReturns pays out the caller's accumulated refunds. The balance
// is zeroed before the ledger push so a reentrant withdrawal sees
// nothing left to claim. A second call without an intervening credit is
// a zero-transfer no-op.
func (s *auctionService) WithdrawReturns(ctx context.Context, caller string) (int64, error) {
	var amount int64
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		amount, err = s.repo.GetPendingReturn(ctx, caller)
		if err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}

		if err := s.repo.ZeroPendingReturn(ctx, caller); err != nil {
			return err
		}
		return s.ledger.Push(ctx, s.cfg.PoolUUID, caller, amount)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *auctionService) CancelAuction(ctx context.Context, caller, adminKey string, assetID int64) error {
	var seller string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetActiveAuction(ctx, assetID)
		if err != nil {
			return err
		}
		if caller != a.SellerUUID {
			if err := s.gate.Authorize(caller, adminKey); err != nil {
				return ErrNotSeller
			}
		}
		if a.HasBids() {
			return ErrHasBids
		}
		seller = a.SellerUUID

		if err := s.repo.DeactivateAuction(ctx, a.ID); err != nil {
			return err
		}
		return s.custodian.Release(ctx, s.cfg.CallerID, assetID, a.SellerUUID)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(events.Event{Type: events.TypeAuctionCancelled, AssetID: assetID, Actor: seller})
	return nil
}

// FinalizeAuction settles a past-deadline auction. Callable by anyone,
// so settlement cannot be held hostage by an absent seller. The auction
// is marked inactive before any value moves.
func (s *auctionService) FinalizeAuction(ctx context.Context, assetID int64) (Settlement, error) {
	var settled Settlement
	var winnerEmail string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetActiveAuction(ctx, assetID)
		if err != nil {
			return err
		}
		if s.clock.Now().Before(a.EndTime) {
			return ErrTooEarly
		}

		if err := s.repo.DeactivateAuction(ctx, a.ID); err != nil {
			return err
		}

		if !a.HasBids() {
			if err := s.custodian.Release(ctx, s.cfg.CallerID, assetID, a.SellerUUID); err != nil {
				return err
			}
			settled, err = s.repo.CreateSettlement(ctx, Settlement{
				AuctionID:  a.ID,
				AssetID:    assetID,
				SellerUUID: a.SellerUUID,
			})
			return err
		}

		fee := a.HighestBid * int64(s.cfg.FeeBps) / 10000
		royalty, err := s.splitter.Distribute(ctx, assetID, a.HighestBid, s.cfg.PoolUUID)
		if err != nil {
			return err
		}
		if a.HighestBid < fee+royalty {
			return ErrFeesExceedPrice
		}
		proceeds := a.HighestBid - fee - royalty

		if fee > 0 {
			if err := s.ledger.Push(ctx, s.cfg.PoolUUID, s.cfg.TreasuryUUID, fee); err != nil {
				return err
			}
		}
		if proceeds > 0 {
			if err := s.ledger.Push(ctx, s.cfg.PoolUUID, a.SellerUUID, proceeds); err != nil {
				return err
			}
		}
		if err := s.custodian.Release(ctx, s.cfg.CallerID, assetID, a.HighestBidder); err != nil {
			return err
		}

		settled, err = s.repo.CreateSettlement(ctx, Settlement{
			AuctionID:      a.ID,
			AssetID:        assetID,
			SellerUUID:     a.SellerUUID,
			WinnerUUID:     a.HighestBidder,
			Price:          a.HighestBid,
			PlatformFee:    fee,
			RoyaltyPaid:    royalty,
			SellerProceeds: proceeds,
		})
		if err != nil {
			return err
		}

		if email, err := s.ledger.AccountEmail(ctx, a.HighestBidder); err == nil {
			winnerEmail = email
		}
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}

	s.publisher.Publish(events.Event{Type: events.TypeAuctionSettled, AssetID: assetID, Actor: settled.WinnerUUID, Amount: settled.Price})
	if winnerEmail != "" {
		s.notifier.AuctionWon(winnerEmail, assetID, settled.Price)
	}
	return settled, nil
}

// ForfeitCollateral is the administrator's emergency exit. The asset
// goes back to the seller and any standing highest bid is credited to
// pending returns rather than pushed.
func (s *auctionService) ForfeitCollateral(ctx context.Context, callerUUID, adminKey string, assetID int64) error {
	if err := s.gate.Authorize(callerUUID, adminKey); err != nil {
		return err
	}

	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetActiveAuction(ctx, assetID)
		if err != nil {
			return err
		}

		if err := s.repo.DeactivateAuction(ctx, a.ID); err != nil {
			return err
		}
		if a.HasBids() {
			if err := s.repo.CreditPendingReturn(ctx, a.HighestBidder, a.HighestBid); err != nil {
				return err
			}
		}
		return s.custodian.Forfeit(ctx, s.cfg.CallerID, assetID, a.SellerUUID)
	})
}

func (s *auctionService) GetAuction(ctx context.Context, assetID int64) (Auction, error) {
	return s.repo.GetLatestAuction(ctx, assetID)
}

func (s *auctionService) GetPendingReturn(ctx context.Context, caller string) (int64, error) {
	return s.repo.GetPendingReturn(ctx, caller)
}
