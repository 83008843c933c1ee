package service

import (
	"context"
	"errors"
	"testing"

	"economy/config"
	"economy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockLedger() (LedgerService, *MockUnitOfWorkFactory, *MockUnitOfWork) {
	uow := &MockUnitOfWork{
		MockRepositories: MockRepositories{
			Accounts:     new(MockAccountRepository),
			Transactions: new(MockTransactionRepository),
		},
	}
	factory := &MockUnitOfWorkFactory{ReaderRepos: &MockRepositories{Accounts: new(MockAccountRepository)}}
	factory.On("Create").Return(uow)
	return NewLedgerService(factory, config.NewTestConfig()), factory, uow
}

func TestLedgerService_Award_CommitFailureIsStoreError(t *testing.T) {
	ctx := context.Background()
	ledger, _, uow := newMockLedger()

	uow.On("Begin", ctx).Return(nil)
	uow.On("Commit").Return(errors.New("connection reset"))
	uow.On("Rollback").Return(nil)
	uow.Accounts.On("GetForUpdate", ctx, "u1", int64(1000)).Return(&models.Account{UserID: "u1", Balance: 1000}, nil)
	uow.Accounts.On("Update", ctx, mock.AnythingOfType("*models.Account")).Return(nil)
	uow.Transactions.On("Append", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	result, err := ledger.Award(ctx, "u1", 50, "win")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	uow.AssertCalled(t, "Rollback")
}

func TestLedgerService_Spend_AppendFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	ledger, _, uow := newMockLedger()

	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.Accounts.On("GetOrCreate", ctx, "u1", int64(1000)).Return(&models.Account{UserID: "u1", Balance: 1000}, nil)
	uow.Accounts.On("DeductBalance", ctx, "u1", int64(100)).Return(int64(900), true, nil)
	uow.Transactions.On("Append", ctx, mock.AnythingOfType("*models.Transaction")).Return(errors.New("disk full"))

	ok, err := ledger.Spend(ctx, "u1", 100, "shop")

	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	uow.AssertNotCalled(t, "Commit")
	uow.AssertCalled(t, "Rollback")
}

func TestLedgerService_Spend_RecordsNegatedAmount(t *testing.T) {
	ctx := context.Background()
	ledger, _, uow := newMockLedger()

	uow.On("Begin", ctx).Return(nil)
	uow.On("Commit").Return(nil)
	uow.On("Rollback").Return(nil)
	uow.Accounts.On("GetOrCreate", ctx, "u1", int64(1000)).Return(&models.Account{UserID: "u1", Balance: 1000}, nil)
	uow.Accounts.On("DeductBalance", ctx, "u1", int64(100)).Return(int64(900), true, nil)
	uow.Transactions.On("Append", ctx, mock.MatchedBy(func(txn *models.Transaction) bool {
		return txn.Amount == -100 && txn.BalanceBefore == 1000 && txn.BalanceAfter == 900 && txn.Kind == models.TransactionKindSpend
	})).Return(nil)

	ok, err := ledger.Spend(ctx, "u1", 100, "shop")

	require.NoError(t, err)
	assert.True(t, ok)
	uow.Transactions.AssertExpectations(t)
}

func TestLedgerService_GetBalance_StoreFailure(t *testing.T) {
	ctx := context.Background()
	ledger, factory, _ := newMockLedger()

	factory.ReaderRepos.Accounts.On("GetOrCreate", ctx, "u1", int64(1000)).Return(nil, errors.New("pool closed"))

	_, err := ledger.GetBalance(ctx, "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
