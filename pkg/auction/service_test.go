package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/events"
	"vaultyard/pkg/notify"

	"golang.org/x/crypto/bcrypt"
)

const (
	testSeller   = "44444444-4444-4444-4444-444444444444"
	testBidderA  = "55555555-5555-5555-5555-555555555555"
	testBidderB  = "66666666-6666-6666-6666-666666666666"
	testPool     = "77777777-7777-7777-7777-777777777777"
	testTreasury = "88888888-8888-8888-8888-888888888888"
	testEngine   = "auction-engine"
)

type mockAuctionRepository struct {
	mock.Mock
}

func (m *mockAuctionRepository) CreateAuction(ctx context.Context, input Auction) (Auction, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(Auction), args.Error(1)
}

func (m *mockAuctionRepository) GetActiveAuction(ctx context.Context, assetID int64) (Auction, error) {
	args := m.Called(ctx, assetID)
	return args.Get(0).(Auction), args.Error(1)
}

func (m *mockAuctionRepository) GetLatestAuction(ctx context.Context, assetID int64) (Auction, error) {
	args := m.Called(ctx, assetID)
	return args.Get(0).(Auction), args.Error(1)
}

func (m *mockAuctionRepository) SetHighestBid(ctx context.Context, auctionID int64, bidder string, amount int64) error {
	args := m.Called(ctx, auctionID, bidder, amount)
	return args.Error(0)
}

func (m *mockAuctionRepository) DeactivateAuction(ctx context.Context, auctionID int64) error {
	args := m.Called(ctx, auctionID)
	return args.Error(0)
}

func (m *mockAuctionRepository) CreditPendingReturn(ctx context.Context, bidder string, amount int64) error {
	args := m.Called(ctx, bidder, amount)
	return args.Error(0)
}

func (m *mockAuctionRepository) GetPendingReturn(ctx context.Context, bidder string) (int64, error) {
	args := m.Called(ctx, bidder)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAuctionRepository) ZeroPendingReturn(ctx context.Context, bidder string) error {
	args := m.Called(ctx, bidder)
	return args.Error(0)
}

func (m *mockAuctionRepository) CreateSettlement(ctx context.Context, input Settlement) (Settlement, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(Settlement), args.Error(1)
}

func (m *mockAuctionRepository) GetSettlementByAuction(ctx context.Context, auctionID int64) (Settlement, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).(Settlement), args.Error(1)
}

type mockCustodian struct {
	mock.Mock
}

func (m *mockCustodian) Lock(ctx context.Context, callerID string, assetID int64, depositor string) error {
	args := m.Called(ctx, callerID, assetID, depositor)
	return args.Error(0)
}

func (m *mockCustodian) Release(ctx context.Context, callerID string, assetID int64, recipient string) error {
	args := m.Called(ctx, callerID, assetID, recipient)
	return args.Error(0)
}

func (m *mockCustodian) Forfeit(ctx context.Context, callerID string, assetID int64, recipient string) error {
	args := m.Called(ctx, callerID, assetID, recipient)
	return args.Error(0)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) OwnerOf(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Pull(ctx context.Context, from, to string, amount int64) error {
	args := m.Called(ctx, from, to, amount)
	return args.Error(0)
}

func (m *mockLedger) Push(ctx context.Context, from, to string, amount int64) error {
	args := m.Called(ctx, from, to, amount)
	return args.Error(0)
}

func (m *mockLedger) AccountEmail(ctx context.Context, uuid string) (string, error) {
	args := m.Called(ctx, uuid)
	return args.String(0), args.Error(1)
}

type mockSplitter struct {
	mock.Mock
}

func (m *mockSplitter) Distribute(ctx context.Context, assetID, saleAmount int64, fromPool string) (int64, error) {
	args := m.Called(ctx, assetID, saleAmount, fromPool)
	return args.Get(0).(int64), args.Error(1)
}

type passRunner struct{}

func (passRunner) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type auctionFixture struct {
	repo      *mockAuctionRepository
	custodian *mockCustodian
	registry  *mockRegistry
	ledger    *mockLedger
	splitter  *mockSplitter
	adminUUID string
	adminKey  string
	service   *auctionService
}

func newAuctionFixture(t *testing.T, now time.Time) *auctionFixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	adminUUID := "11111111-1111-1111-1111-111111111111"

	f := &auctionFixture{
		repo:      new(mockAuctionRepository),
		custodian: new(mockCustodian),
		registry:  new(mockRegistry),
		ledger:    new(mockLedger),
		splitter:  new(mockSplitter),
		adminUUID: adminUUID,
		adminKey:  "secret",
	}

	cfg := Config{
		CallerID:     testEngine,
		PoolUUID:     testPool,
		TreasuryUUID: testTreasury,
		FeeBps:       250,
		MinDuration:  time.Hour,
	}
	svc := NewAuctionService(f.repo, f.custodian, f.registry, f.ledger, f.splitter, passRunner{},
		admin.NewGate(adminUUID, hash), events.NoopPublisher{}, notify.NoopNotifier{}, cfg)
	f.service = svc.(*auctionService)
	f.service.clock = fixedClock{now: now}
	return f
}

func TestAuctionService_StartAuction_DurationTooShort(t *testing.T) {
	f := newAuctionFixture(t, time.Now())

	_, err := f.service.StartAuction(context.Background(), testSeller, 1, 10, time.Minute)

	require.ErrorIs(t, err, ErrDurationTooShort)
}

func TestAuctionService_StartAuction_NotOwner(t *testing.T) {
	f := newAuctionFixture(t, time.Now())

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(Auction{}, ErrNoActiveAuction)
	f.registry.On("OwnerOf", mock.Anything, int64(1)).Return("someone-else", nil)

	_, err := f.service.StartAuction(context.Background(), testSeller, 1, 10, 24*time.Hour)

	require.ErrorIs(t, err, ErrNotOwner)
	f.custodian.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuctionService_StartAuction_Success(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newAuctionFixture(t, now)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(Auction{}, ErrNoActiveAuction)
	f.registry.On("OwnerOf", mock.Anything, int64(1)).Return(testSeller, nil)
	f.custodian.On("Lock", mock.Anything, testEngine, int64(1), testSeller).Return(nil)
	f.repo.On("CreateAuction", mock.Anything, Auction{
		AssetID: 1, SellerUUID: testSeller, MinBid: 10, EndTime: now.Add(24 * time.Hour), CreatedAt: now,
	}).Return(Auction{ID: 3, AssetID: 1, SellerUUID: testSeller, MinBid: 10, EndTime: now.Add(24 * time.Hour), IsActive: true, CreatedAt: now}, nil)

	a, err := f.service.StartAuction(context.Background(), testSeller, 1, 10, 24*time.Hour)

	require.NoError(t, err)
	require.Equal(t, int64(3), a.ID)
	f.repo.AssertExpectations(t)
	f.custodian.AssertExpectations(t)
}

func openAuction(now time.Time) Auction {
	return Auction{
		ID:         3,
		AssetID:    1,
		SellerUUID: testSeller,
		MinBid:     10,
		EndTime:    now.Add(time.Hour),
		IsActive:   true,
	}
}

func TestAuctionService_PlaceBid_SellerCannotBid(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(openAuction(now), nil)

	err := f.service.PlaceBid(context.Background(), testSeller, 1, 15)

	require.ErrorIs(t, err, ErrSellerCannotBid)
	f.ledger.AssertNotCalled(t, "Pull", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuctionService_PlaceBid_Ended(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.EndTime = now.Add(-time.Minute)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)

	err := f.service.PlaceBid(context.Background(), testBidderA, 1, 15)

	require.ErrorIs(t, err, ErrAuctionEnded)
}

func TestAuctionService_PlaceBid_TieRejected(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.HighestBidder = testBidderA
	a.HighestBid = 15

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)

	err := f.service.PlaceBid(context.Background(), testBidderB, 1, 15)

	require.ErrorIs(t, err, ErrBidTooLow)
	f.ledger.AssertNotCalled(t, "Pull", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuctionService_PlaceBid_BelowMinimum(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(openAuction(now), nil)

	err := f.service.PlaceBid(context.Background(), testBidderA, 1, 5)

	require.ErrorIs(t, err, ErrBidTooLow)
}

func TestAuctionService_PlaceBid_FirstBid(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(openAuction(now), nil)
	f.ledger.On("Pull", mock.Anything, testBidderA, testPool, int64(15)).Return(nil)
	f.repo.On("SetHighestBid", mock.Anything, int64(3), testBidderA, int64(15)).Return(nil)

	err := f.service.PlaceBid(context.Background(), testBidderA, 1, 15)

	require.NoError(t, err)
	f.repo.AssertNotCalled(t, "CreditPendingReturn", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestAuctionService_PlaceBid_OutbidCreditsDisplacedAmount(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.HighestBidder = testBidderA
	a.HighestBid = 15

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)
	f.ledger.On("Pull", mock.Anything, testBidderB, testPool, int64(20)).Return(nil)
	f.repo.On("CreditPendingReturn", mock.Anything, testBidderA, int64(15)).Return(nil)
	f.repo.On("SetHighestBid", mock.Anything, int64(3), testBidderB, int64(20)).Return(nil)
	f.ledger.On("AccountEmail", mock.Anything, testBidderA).Return("a@example.com", nil)

	err := f.service.PlaceBid(context.Background(), testBidderB, 1, 20)

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestAuctionService_WithdrawReturns_ZeroesBeforePush(t *testing.T) {
	f := newAuctionFixture(t, time.Now())

	var zeroed bool
	f.repo.On("GetPendingReturn", mock.Anything, testBidderA).Return(int64(15), nil)
	f.repo.On("ZeroPendingReturn", mock.Anything, testBidderA).Run(func(mock.Arguments) {
		zeroed = true
	}).Return(nil)
	f.ledger.On("Push", mock.Anything, testPool, testBidderA, int64(15)).Run(func(mock.Arguments) {
		require.True(t, zeroed, "pending returns must be zeroed before the payout")
	}).Return(nil)

	amount, err := f.service.WithdrawReturns(context.Background(), testBidderA)

	require.NoError(t, err)
	require.Equal(t, int64(15), amount)
	f.repo.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestAuctionService_WithdrawReturns_SecondCallIsNoop(t *testing.T) {
	f := newAuctionFixture(t, time.Now())

	f.repo.On("GetPendingReturn", mock.Anything, testBidderA).Return(int64(0), nil)

	amount, err := f.service.WithdrawReturns(context.Background(), testBidderA)

	require.NoError(t, err)
	require.Zero(t, amount)
	f.ledger.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuctionService_CancelAuction_HasBids(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.HighestBidder = testBidderA
	a.HighestBid = 15

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)

	err := f.service.CancelAuction(context.Background(), testSeller, "", 1)

	require.ErrorIs(t, err, ErrHasBids)
	f.custodian.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuctionService_CancelAuction_NotSeller(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(openAuction(now), nil)

	err := f.service.CancelAuction(context.Background(), testBidderA, "", 1)

	require.ErrorIs(t, err, ErrNotSeller)
}

func TestAuctionService_CancelAuction_Success(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(openAuction(now), nil)
	f.repo.On("DeactivateAuction", mock.Anything, int64(3)).Return(nil)
	f.custodian.On("Release", mock.Anything, testEngine, int64(1), testSeller).Return(nil)

	err := f.service.CancelAuction(context.Background(), testSeller, "", 1)

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.custodian.AssertExpectations(t)
}

func TestAuctionService_FinalizeAuction_TooEarly(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(openAuction(now), nil)

	_, err := f.service.FinalizeAuction(context.Background(), 1)

	require.ErrorIs(t, err, ErrTooEarly)
	f.repo.AssertNotCalled(t, "DeactivateAuction", mock.Anything, mock.Anything)
}

func TestAuctionService_FinalizeAuction_NoBids(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.EndTime = now.Add(-time.Minute)

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)
	f.repo.On("DeactivateAuction", mock.Anything, int64(3)).Return(nil)
	f.custodian.On("Release", mock.Anything, testEngine, int64(1), testSeller).Return(nil)
	f.repo.On("CreateSettlement", mock.Anything, Settlement{
		AuctionID: 3, AssetID: 1, SellerUUID: testSeller,
	}).Return(Settlement{ID: 1, AuctionID: 3, AssetID: 1, SellerUUID: testSeller}, nil)

	settlement, err := f.service.FinalizeAuction(context.Background(), 1)

	require.NoError(t, err)
	require.Zero(t, settlement.Price)
	f.ledger.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
}

// Winning bid 20 at 250 bps: fee 0 (integer floor of 20*250/10000),
// royalty 2, seller proceeds 18. Conservation holds exactly.
func TestAuctionService_FinalizeAuction_ConservesValue(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.EndTime = now.Add(-time.Minute)
	a.HighestBidder = testBidderB
	a.HighestBid = 20

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)
	f.repo.On("DeactivateAuction", mock.Anything, int64(3)).Return(nil)
	f.splitter.On("Distribute", mock.Anything, int64(1), int64(20), testPool).Return(int64(2), nil)
	f.ledger.On("Push", mock.Anything, testPool, testSeller, int64(18)).Return(nil)
	f.custodian.On("Release", mock.Anything, testEngine, int64(1), testBidderB).Return(nil)
	f.repo.On("CreateSettlement", mock.Anything, Settlement{
		AuctionID: 3, AssetID: 1, SellerUUID: testSeller, WinnerUUID: testBidderB,
		Price: 20, PlatformFee: 0, RoyaltyPaid: 2, SellerProceeds: 18,
	}).Return(Settlement{ID: 1, AuctionID: 3, AssetID: 1, SellerUUID: testSeller, WinnerUUID: testBidderB,
		Price: 20, PlatformFee: 0, RoyaltyPaid: 2, SellerProceeds: 18}, nil)
	f.ledger.On("AccountEmail", mock.Anything, testBidderB).Return("b@example.com", nil)

	settlement, err := f.service.FinalizeAuction(context.Background(), 1)

	require.NoError(t, err)
	require.Equal(t, settlement.Price, settlement.SellerProceeds+settlement.PlatformFee+settlement.RoyaltyPaid)
	f.repo.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.custodian.AssertExpectations(t)
}

func TestAuctionService_FinalizeAuction_FeeToTreasury(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.EndTime = now.Add(-time.Minute)
	a.HighestBidder = testBidderB
	a.HighestBid = 10000

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)
	f.repo.On("DeactivateAuction", mock.Anything, int64(3)).Return(nil)
	f.splitter.On("Distribute", mock.Anything, int64(1), int64(10000), testPool).Return(int64(500), nil)
	f.ledger.On("Push", mock.Anything, testPool, testTreasury, int64(250)).Return(nil)
	f.ledger.On("Push", mock.Anything, testPool, testSeller, int64(9250)).Return(nil)
	f.custodian.On("Release", mock.Anything, testEngine, int64(1), testBidderB).Return(nil)
	f.repo.On("CreateSettlement", mock.Anything, mock.AnythingOfType("auction.Settlement")).Return(Settlement{
		ID: 1, AuctionID: 3, AssetID: 1, SellerUUID: testSeller, WinnerUUID: testBidderB,
		Price: 10000, PlatformFee: 250, RoyaltyPaid: 500, SellerProceeds: 9250,
	}, nil)
	f.ledger.On("AccountEmail", mock.Anything, testBidderB).Return("b@example.com", nil)

	settlement, err := f.service.FinalizeAuction(context.Background(), 1)

	require.NoError(t, err)
	require.Equal(t, int64(250), settlement.PlatformFee)
	f.ledger.AssertExpectations(t)
}

func TestAuctionService_FinalizeAuction_FeesExceedPrice(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.EndTime = now.Add(-time.Minute)
	a.HighestBidder = testBidderB
	a.HighestBid = 20

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)
	f.repo.On("DeactivateAuction", mock.Anything, int64(3)).Return(nil)
	f.splitter.On("Distribute", mock.Anything, int64(1), int64(20), testPool).Return(int64(25), nil)

	_, err := f.service.FinalizeAuction(context.Background(), 1)

	require.ErrorIs(t, err, ErrFeesExceedPrice)
	f.custodian.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuctionService_ForfeitCollateral_CreditsStandingBid(t *testing.T) {
	now := time.Now()
	f := newAuctionFixture(t, now)
	a := openAuction(now)
	a.HighestBidder = testBidderA
	a.HighestBid = 15

	f.repo.On("GetActiveAuction", mock.Anything, int64(1)).Return(a, nil)
	f.repo.On("DeactivateAuction", mock.Anything, int64(3)).Return(nil)
	f.repo.On("CreditPendingReturn", mock.Anything, testBidderA, int64(15)).Return(nil)
	f.custodian.On("Forfeit", mock.Anything, testEngine, int64(1), testSeller).Return(nil)

	err := f.service.ForfeitCollateral(context.Background(), f.adminUUID, f.adminKey, 1)

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.custodian.AssertExpectations(t)
	f.ledger.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuctionService_ForfeitCollateral_NotAdmin(t *testing.T) {
	f := newAuctionFixture(t, time.Now())

	err := f.service.ForfeitCollateral(context.Background(), f.adminUUID, "wrong-key", 1)

	require.ErrorIs(t, err, admin.ErrNotAdmin)
	f.custodian.AssertNotCalled(t, "Forfeit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
