package service

import (
	"context"
	"time"

	"economy/events"
	"economy/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Get(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetOrCreate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error) {
	args := m.Called(ctx, userID, initialBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error) {
	args := m.Called(ctx, userID, initialBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) DeductBalance(ctx context.Context, userID string, amount int64) (int64, bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockAccountRepository) GetTop(ctx context.Context, limit int) ([]*models.Account, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Append(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockItemRepository is a mock implementation of ItemRepository
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) GetByID(ctx context.Context, itemID string) (*models.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}

func (m *MockItemRepository) List(ctx context.Context) ([]*models.Item, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Item), args.Error(1)
}

func (m *MockItemRepository) Upsert(ctx context.Context, item *models.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// MockOwnershipRepository is a mock implementation of OwnershipRepository
type MockOwnershipRepository struct {
	mock.Mock
}

func (m *MockOwnershipRepository) Get(ctx context.Context, userID, itemID string) (*models.Ownership, error) {
	args := m.Called(ctx, userID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ownership), args.Error(1)
}

func (m *MockOwnershipRepository) Create(ctx context.Context, ownership *models.Ownership) error {
	args := m.Called(ctx, ownership)
	return args.Error(0)
}

func (m *MockOwnershipRepository) ListByUser(ctx context.Context, userID string) ([]*models.Ownership, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Ownership), args.Error(1)
}

// MockExchangeRepository is a mock implementation of ExchangeRepository
type MockExchangeRepository struct {
	mock.Mock
}

func (m *MockExchangeRepository) Create(ctx context.Context, record *models.ExchangeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockExchangeRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ExchangeRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ExchangeRecord), args.Error(1)
}

// MockGiftRequestRepository is a mock implementation of GiftRequestRepository
type MockGiftRequestRepository struct {
	mock.Mock
}

func (m *MockGiftRequestRepository) Create(ctx context.Context, request *models.GiftRequest) (bool, error) {
	args := m.Called(ctx, request)
	return args.Bool(0), args.Error(1)
}

func (m *MockGiftRequestRepository) GetOpen(ctx context.Context, userID, itemID string) (*models.GiftRequest, error) {
	args := m.Called(ctx, userID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GiftRequest), args.Error(1)
}

func (m *MockGiftRequestRepository) ListByUser(ctx context.Context, userID string) ([]*models.GiftRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GiftRequest), args.Error(1)
}

func (m *MockGiftRequestRepository) MarkFulfilled(ctx context.Context, id int64, fulfilledBy string, at time.Time) error {
	args := m.Called(ctx, id, fulfilledBy, at)
	return args.Error(0)
}

// MockSettlementRepository is a mock implementation of SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Claim(ctx context.Context, record *models.SettlementRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) SaveResults(ctx context.Context, record *models.SettlementRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSettlementRepository) Get(ctx context.Context, sessionKey string) (*models.SettlementRecord, error) {
	args := m.Called(ctx, sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettlementRecord), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockBalanceReader is a mock implementation of BalanceReader
type MockBalanceReader struct {
	mock.Mock
}

func (m *MockBalanceReader) GetBalance(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockRepositories hands out whichever repository mocks a test sets. Unset
// repositories are returned as nil interfaces.
type MockRepositories struct {
	Accounts     *MockAccountRepository
	Transactions *MockTransactionRepository
	Items        *MockItemRepository
	Ownerships   *MockOwnershipRepository
	Exchanges    *MockExchangeRepository
	GiftRequests *MockGiftRequestRepository
	Settlements  *MockSettlementRepository
}

func (m *MockRepositories) AccountRepository() AccountRepository {
	if m.Accounts == nil {
		return nil
	}
	return m.Accounts
}

func (m *MockRepositories) TransactionRepository() TransactionRepository {
	if m.Transactions == nil {
		return nil
	}
	return m.Transactions
}

func (m *MockRepositories) ItemRepository() ItemRepository {
	if m.Items == nil {
		return nil
	}
	return m.Items
}

func (m *MockRepositories) OwnershipRepository() OwnershipRepository {
	if m.Ownerships == nil {
		return nil
	}
	return m.Ownerships
}

func (m *MockRepositories) ExchangeRepository() ExchangeRepository {
	if m.Exchanges == nil {
		return nil
	}
	return m.Exchanges
}

func (m *MockRepositories) GiftRequestRepository() GiftRequestRepository {
	if m.GiftRequests == nil {
		return nil
	}
	return m.GiftRequests
}

func (m *MockRepositories) SettlementRepository() SettlementRepository {
	if m.Settlements == nil {
		return nil
	}
	return m.Settlements
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	MockRepositories
	Bus *MockEventPublisher
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.Bus == nil {
		m.Bus = new(MockEventPublisher)
		m.Bus.On("Publish", mock.Anything).Maybe()
	}
	return m.Bus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
	ReaderRepos *MockRepositories
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

func (m *MockUnitOfWorkFactory) Reader() Repositories {
	if m.ReaderRepos == nil {
		return &MockRepositories{}
	}
	return m.ReaderRepos
}
