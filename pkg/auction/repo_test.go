package auction

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"vaultyard/pkg/testhelpers"
)

func setupAuctionTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("DATABASE_URL_FOR_TEST not set; skipping auction repository tests")
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

func createTestAuction(t *testing.T, repo AuctionRepository, assetID int64, seller string) Auction {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	a, err := repo.CreateAuction(context.Background(), Auction{
		AssetID:    assetID,
		SellerUUID: seller,
		MinBid:     10,
		EndTime:    now.Add(24 * time.Hour),
		CreatedAt:  now,
	})
	require.NoError(t, err)
	return a
}

func TestPostgresAuctionRepository_OneActivePerAsset(t *testing.T) {
	pool := setupAuctionTestPool(t)
	repo := NewPostgresAuctionRepository(pool)
	ctx := context.Background()

	seller := testhelpers.CreateTestAccount(t, pool, 0)
	assetID := testhelpers.CreateTestAsset(t, pool, seller)

	a := createTestAuction(t, repo, assetID, seller)
	require.True(t, a.IsActive)

	_, err := repo.CreateAuction(ctx, Auction{
		AssetID:    assetID,
		SellerUUID: seller,
		MinBid:     5,
		EndTime:    time.Now().Add(time.Hour),
		CreatedAt:  time.Now(),
	})
	require.ErrorIs(t, err, ErrAuctionExists)

	require.NoError(t, repo.DeactivateAuction(ctx, a.ID))
	second := createTestAuction(t, repo, assetID, seller)
	require.NotEqual(t, a.ID, second.ID)
}

func TestPostgresAuctionRepository_SetHighestBid_NeverLowers(t *testing.T) {
	pool := setupAuctionTestPool(t)
	repo := NewPostgresAuctionRepository(pool)
	ctx := context.Background()

	seller := testhelpers.CreateTestAccount(t, pool, 0)
	bidder := testhelpers.CreateTestAccount(t, pool, 0)
	assetID := testhelpers.CreateTestAsset(t, pool, seller)
	a := createTestAuction(t, repo, assetID, seller)

	require.NoError(t, repo.SetHighestBid(ctx, a.ID, bidder, 20))

	err := repo.SetHighestBid(ctx, a.ID, bidder, 15)
	require.ErrorIs(t, err, ErrNoActiveAuction)

	got, err := repo.GetActiveAuction(ctx, assetID)
	require.NoError(t, err)
	require.Equal(t, int64(20), got.HighestBid)
	require.Equal(t, bidder, got.HighestBidder)
}

func TestPostgresAuctionRepository_PendingReturnsAccumulate(t *testing.T) {
	pool := setupAuctionTestPool(t)
	repo := NewPostgresAuctionRepository(pool)
	ctx := context.Background()

	bidder := testhelpers.CreateTestAccount(t, pool, 0)

	amount, err := repo.GetPendingReturn(ctx, bidder)
	require.NoError(t, err)
	require.Zero(t, amount)

	require.NoError(t, repo.CreditPendingReturn(ctx, bidder, 15))
	require.NoError(t, repo.CreditPendingReturn(ctx, bidder, 25))

	amount, err = repo.GetPendingReturn(ctx, bidder)
	require.NoError(t, err)
	require.Equal(t, int64(40), amount)

	require.NoError(t, repo.ZeroPendingReturn(ctx, bidder))
	amount, err = repo.GetPendingReturn(ctx, bidder)
	require.NoError(t, err)
	require.Zero(t, amount)
}

func TestPostgresAuctionRepository_SettlementJournal(t *testing.T) {
	pool := setupAuctionTestPool(t)
	repo := NewPostgresAuctionRepository(pool)
	ctx := context.Background()

	seller := testhelpers.CreateTestAccount(t, pool, 0)
	winner := testhelpers.CreateTestAccount(t, pool, 0)
	assetID := testhelpers.CreateTestAsset(t, pool, seller)
	a := createTestAuction(t, repo, assetID, seller)

	created, err := repo.CreateSettlement(ctx, Settlement{
		AuctionID:      a.ID,
		AssetID:        assetID,
		SellerUUID:     seller,
		WinnerUUID:     winner,
		Price:          20,
		PlatformFee:    0,
		RoyaltyPaid:    2,
		SellerProceeds: 18,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.False(t, created.SettledAt.IsZero())

	got, err := repo.GetSettlementByAuction(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, got.Price, got.SellerProceeds+got.PlatformFee+got.RoyaltyPaid)
}
