package auction

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultyard/pkg/db"
)

var (
	ErrAuctionExists   = errors.New("an active auction already exists for this asset")
	ErrNoActiveAuction = errors.New("no active auction for this asset")
	ErrAuctionNotFound = errors.New("auction not found")
)

type AuctionRepository interface {
	CreateAuction(ctx context.Context, input Auction) (Auction, error)
	GetActiveAuction(ctx context.Context, assetID int64) (Auction, error)
	GetLatestAuction(ctx context.Context, assetID int64) (Auction, error)
	SetHighestBid(ctx context.Context, auctionID int64, bidder string, amount int64) error
	DeactivateAuction(ctx context.Context, auctionID int64) error
	CreditPendingReturn(ctx context.Context, bidder string, amount int64) error
	GetPendingReturn(ctx context.Context, bidder string) (int64, error)
	ZeroPendingReturn(ctx context.Context, bidder string) error
	CreateSettlement(ctx context.Context, input Settlement) (Settlement, error)
	GetSettlementByAuction(ctx context.Context, auctionID int64) (Settlement, error)
}

type postgresAuctionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAuctionRepository(pool *pgxpool.Pool) AuctionRepository {
	return &postgresAuctionRepository{pool: pool}
}

func (r *postgresAuctionRepository) CreateAuction(ctx context.Context, input Auction) (Auction, error) {
	query := `INSERT INTO auctions (asset_id, seller_uuid, min_bid, end_time, highest_bidder, highest_bid, is_active, created_at)
              VALUES ($1, $2, $3, $4, '', 0, TRUE, $5)
              RETURNING id, asset_id, seller_uuid, min_bid, end_time, highest_bidder, highest_bid, is_active, created_at`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query,
		input.AssetID, input.SellerUUID, input.MinBid, input.EndTime, input.CreatedAt)

	created, err := scanAuction(row, ErrAuctionNotFound)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Auction{}, ErrAuctionExists
		}
		return Auction{}, err
	}

	return created, nil
}

func (r *postgresAuctionRepository) GetActiveAuction(ctx context.Context, assetID int64) (Auction, error) {
	query := `SELECT id, asset_id, seller_uuid, min_bid, end_time, highest_bidder, highest_bid, is_active, created_at
              FROM auctions
              WHERE asset_id = $1 AND is_active`

	return scanAuction(db.Q(ctx, r.pool).QueryRow(ctx, query, assetID), ErrNoActiveAuction)
}

func (r *postgresAuctionRepository) GetLatestAuction(ctx context.Context, assetID int64) (Auction, error) {
	query := `SELECT id, asset_id, seller_uuid, min_bid, end_time, highest_bidder, highest_bid, is_active, created_at
              FROM auctions
              WHERE asset_id = $1
              ORDER BY id DESC
              LIMIT 1`

	return scanAuction(db.Q(ctx, r.pool).QueryRow(ctx, query, assetID), ErrAuctionNotFound)
}

func scanAuction(row pgx.Row, notFound error) (Auction, error) {
	var a Auction
	if err := row.Scan(&a.ID, &a.AssetID, &a.SellerUUID, &a.MinBid, &a.EndTime,
		&a.HighestBidder, &a.HighestBid, &a.IsActive, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Auction{}, notFound
		}
		return Auction{}, err
	}
	return a, nil
}

// SetHighestBid records a new leading bid. The strict-increase guard is
// repeated here so a stale caller can never lower the recorded bid.
func (r *postgresAuctionRepository) SetHighestBid(ctx context.Context, auctionID int64, bidder string, amount int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE auctions SET highest_bidder = $1, highest_bid = $2 WHERE id = $3 AND is_active AND highest_bid < $2",
		bidder, amount, auctionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoActiveAuction
	}
	return nil
}

func (r *postgresAuctionRepository) DeactivateAuction(ctx context.Context, auctionID int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE auctions SET is_active = FALSE WHERE id = $1 AND is_active", auctionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoActiveAuction
	}
	return nil
}

func (r *postgresAuctionRepository) CreditPendingReturn(ctx context.Context, bidder string, amount int64) error {
	query := `INSERT INTO pending_returns (bidder_uuid, amount)
              VALUES ($1, $2)
              ON CONFLICT (bidder_uuid) DO UPDATE SET amount = pending_returns.amount + EXCLUDED.amount`

	_, err := db.Q(ctx, r.pool).Exec(ctx, query, bidder, amount)
	return err
}

func (r *postgresAuctionRepository) GetPendingReturn(ctx context.Context, bidder string) (int64, error) {
	var amount int64
	err := db.Q(ctx, r.pool).QueryRow(ctx,
		"SELECT amount FROM pending_returns WHERE bidder_uuid = $1", bidder).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return amount, nil
}

func (r *postgresAuctionRepository) ZeroPendingReturn(ctx context.Context, bidder string) error {
	_, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE pending_returns SET amount = 0 WHERE bidder_uuid = $1", bidder)
	return err
}

func (r *postgresAuctionRepository) CreateSettlement(ctx context.Context, input Settlement) (Settlement, error) {
	query := `INSERT INTO auction_settlements (auction_id, asset_id, seller_uuid, winner_uuid, price, platform_fee, royalty_paid, seller_proceeds)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              RETURNING id, auction_id, asset_id, seller_uuid, winner_uuid, price, platform_fee, royalty_paid, seller_proceeds, settled_at`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query,
		input.AuctionID, input.AssetID, input.SellerUUID, input.WinnerUUID,
		input.Price, input.PlatformFee, input.RoyaltyPaid, input.SellerProceeds)

	return scanSettlement(row)
}

func (r *postgresAuctionRepository) GetSettlementByAuction(ctx context.Context, auctionID int64) (Settlement, error) {
	query := `SELECT id, auction_id, asset_id, seller_uuid, winner_uuid, price, platform_fee, royalty_paid, seller_proceeds, settled_at
              FROM auction_settlements
              WHERE auction_id = $1`

	s, err := scanSettlement(db.Q(ctx, r.pool).QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settlement{}, ErrAuctionNotFound
		}
		return Settlement{}, err
	}
	return s, nil
}

func scanSettlement(row pgx.Row) (Settlement, error) {
	var s Settlement
	err := row.Scan(&s.ID, &s.AuctionID, &s.AssetID, &s.SellerUUID, &s.WinnerUUID,
		&s.Price, &s.PlatformFee, &s.RoyaltyPaid, &s.SellerProceeds, &s.SettledAt)
	return s, err
}
