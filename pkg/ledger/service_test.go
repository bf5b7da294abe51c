package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vaultyard/pkg/admin"

	"golang.org/x/crypto/bcrypt"
)

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) UpsertAccount(ctx context.Context, uuid, email string) (Account, error) {
	args := m.Called(ctx, uuid, email)
	return args.Get(0).(Account), args.Error(1)
}

func (m *mockAccountRepository) GetAccount(ctx context.Context, uuid string) (Account, error) {
	args := m.Called(ctx, uuid)
	return args.Get(0).(Account), args.Error(1)
}

func (m *mockAccountRepository) Credit(ctx context.Context, uuid string, amount int64) error {
	args := m.Called(ctx, uuid, amount)
	return args.Error(0)
}

func (m *mockAccountRepository) Debit(ctx context.Context, uuid string, amount int64) error {
	args := m.Called(ctx, uuid, amount)
	return args.Error(0)
}

func (m *mockAccountRepository) SetAllowance(ctx context.Context, owner, spender string, amount int64) error {
	args := m.Called(ctx, owner, spender, amount)
	return args.Error(0)
}

func (m *mockAccountRepository) GetAllowance(ctx context.Context, owner, spender string) (int64, error) {
	args := m.Called(ctx, owner, spender)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAccountRepository) SpendAllowance(ctx context.Context, owner, spender string, amount int64) error {
	args := m.Called(ctx, owner, spender, amount)
	return args.Error(0)
}

type passRunner struct{}

func (passRunner) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func newLedgerService(t *testing.T, repo AccountRepository) (LedgerService, string, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	adminUUID := "11111111-1111-1111-1111-111111111111"
	return NewLedgerService(repo, passRunner{}, admin.NewGate(adminUUID, hash)), adminUUID, "secret"
}

func TestLedgerService_Deposit_NotAdmin(t *testing.T) {
	repo := new(mockAccountRepository)
	service, adminUUID, _ := newLedgerService(t, repo)

	err := service.Deposit(context.Background(), adminUUID, "wrong-key", "someone", 100)

	require.ErrorIs(t, err, admin.ErrNotAdmin)
	repo.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerService_Deposit_Success(t *testing.T) {
	repo := new(mockAccountRepository)
	service, adminUUID, key := newLedgerService(t, repo)

	repo.On("Credit", mock.Anything, "someone", int64(100)).Return(nil)

	err := service.Deposit(context.Background(), adminUUID, key, "someone", 100)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLedgerService_Pull_SpendsAllowanceFirst(t *testing.T) {
	repo := new(mockAccountRepository)
	service, _, _ := newLedgerService(t, repo)

	var spent bool
	repo.On("SpendAllowance", mock.Anything, "owner", "pool", int64(40)).Run(func(mock.Arguments) {
		spent = true
	}).Return(nil)
	repo.On("Debit", mock.Anything, "owner", int64(40)).Run(func(mock.Arguments) {
		require.True(t, spent, "allowance must be spent before the debit")
	}).Return(nil)
	repo.On("Credit", mock.Anything, "pool", int64(40)).Return(nil)

	err := service.Pull(context.Background(), "owner", "pool", 40)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLedgerService_Pull_InsufficientAllowance(t *testing.T) {
	repo := new(mockAccountRepository)
	service, _, _ := newLedgerService(t, repo)

	repo.On("SpendAllowance", mock.Anything, "owner", "pool", int64(40)).Return(ErrInsufficientAllowance)

	err := service.Pull(context.Background(), "owner", "pool", 40)

	require.ErrorIs(t, err, ErrInsufficientAllowance)
	repo.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerService_Push_InsufficientFunds(t *testing.T) {
	repo := new(mockAccountRepository)
	service, _, _ := newLedgerService(t, repo)

	repo.On("Debit", mock.Anything, "pool", int64(40)).Return(ErrInsufficientFunds)

	err := service.Push(context.Background(), "pool", "someone", 40)

	require.ErrorIs(t, err, ErrInsufficientFunds)
	repo.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerService_Push_InvalidAmount(t *testing.T) {
	repo := new(mockAccountRepository)
	service, _, _ := newLedgerService(t, repo)

	require.ErrorIs(t, service.Push(context.Background(), "pool", "someone", 0), ErrInvalidAmount)
	require.ErrorIs(t, service.Push(context.Background(), "pool", "someone", -5), ErrInvalidAmount)
}

func TestLedgerService_Approve_NegativeAmount(t *testing.T) {
	repo := new(mockAccountRepository)
	service, _, _ := newLedgerService(t, repo)

	require.ErrorIs(t, service.Approve(context.Background(), "owner", "spender", -1), ErrInvalidAmount)
}

func TestLedgerService_BalanceOf(t *testing.T) {
	repo := new(mockAccountRepository)
	service, _, _ := newLedgerService(t, repo)

	repo.On("GetAccount", mock.Anything, "someone").Return(Account{UUID: "someone", Balance: 250}, nil)

	balance, err := service.BalanceOf(context.Background(), "someone")

	require.NoError(t, err)
	require.Equal(t, int64(250), balance)
}
