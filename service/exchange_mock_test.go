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

func newMockExchange() (ExchangeService, *MockUnitOfWork, *MockRepositories) {
	uow := &MockUnitOfWork{
		MockRepositories: MockRepositories{
			Accounts:     new(MockAccountRepository),
			Transactions: new(MockTransactionRepository),
			Ownerships:   new(MockOwnershipRepository),
			Exchanges:    new(MockExchangeRepository),
			GiftRequests: new(MockGiftRequestRepository),
		},
	}
	reader := &MockRepositories{
		Accounts:   new(MockAccountRepository),
		Items:      new(MockItemRepository),
		Ownerships: new(MockOwnershipRepository),
	}
	factory := &MockUnitOfWorkFactory{ReaderRepos: reader}
	factory.On("Create").Return(uow)

	ledger := NewLedgerService(factory, config.NewTestConfig())
	return NewExchangeService(factory, ledger), uow, reader
}

func TestExchangeService_Gift_OwnershipFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	exchange, uow, reader := newMockExchange()
	item := &models.Item{ID: "golden-dice", Name: "Golden Dice", Category: models.ItemCategoryCosmetic, Price: 300}

	reader.Ownerships.On("Get", mock.Anything, "bob", "golden-dice").Return(nil, nil)
	reader.Items.On("GetByID", mock.Anything, "golden-dice").Return(item, nil)
	reader.Accounts.On("GetOrCreate", mock.Anything, "alice", int64(1000)).Return(&models.Account{UserID: "alice", Balance: 1000}, nil)

	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.Accounts.On("GetOrCreate", ctx, "alice", int64(1000)).Return(&models.Account{UserID: "alice", Balance: 1000}, nil)
	uow.Accounts.On("DeductBalance", ctx, "alice", int64(330)).Return(int64(670), true, nil)
	uow.Transactions.On("Append", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	uow.Ownerships.On("Create", ctx, mock.AnythingOfType("*models.Ownership")).Return(errors.New("deadlock detected"))

	result, err := exchange.Gift(ctx, "alice", "bob", "golden-dice", nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, ErrStoreUnavailable)

	uow.AssertCalled(t, "Rollback")
	uow.AssertNotCalled(t, "Commit")
	uow.Exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExchangeService_Gift_PreReadFailure(t *testing.T) {
	ctx := context.Background()
	exchange, uow, reader := newMockExchange()

	reader.Ownerships.On("Get", mock.Anything, "bob", "golden-dice").Return(nil, errors.New("timeout"))
	reader.Items.On("GetByID", mock.Anything, "golden-dice").Return(nil, nil).Maybe()
	reader.Accounts.On("GetOrCreate", mock.Anything, "alice", int64(1000)).Return(&models.Account{UserID: "alice", Balance: 1000}, nil).Maybe()

	result, err := exchange.Gift(ctx, "alice", "bob", "golden-dice", nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, result.Error, ErrStoreUnavailable)
	uow.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestExchangeService_Purchase_DeclinedSpendWritesNothing(t *testing.T) {
	ctx := context.Background()
	exchange, uow, reader := newMockExchange()
	item := &models.Item{ID: "lucky-cat", Name: "Lucky Cat", Category: models.ItemCategoryCosmetic, Price: 450}

	reader.Items.On("GetByID", ctx, "lucky-cat").Return(item, nil)
	reader.Ownerships.On("Get", ctx, "alice", "lucky-cat").Return(nil, nil)

	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.Accounts.On("GetOrCreate", ctx, "alice", int64(1000)).Return(&models.Account{UserID: "alice", Balance: 100}, nil)
	uow.Accounts.On("DeductBalance", ctx, "alice", int64(450)).Return(int64(100), false, nil)

	result, err := exchange.Purchase(ctx, "alice", "lucky-cat")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, ErrInsufficientFunds)

	uow.AssertNotCalled(t, "Commit")
	uow.Transactions.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	uow.Ownerships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
