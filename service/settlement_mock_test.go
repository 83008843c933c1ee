package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"economy/config"
	"economy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSettlementCoordinator_SaveFailureLeavesSessionResolving(t *testing.T) {
	ctx := context.Background()

	uow := &MockUnitOfWork{MockRepositories: MockRepositories{Settlements: new(MockSettlementRepository)}}
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.Settlements.On("Claim", ctx, mock.AnythingOfType("*models.SettlementRecord")).Return(true, nil)
	uow.Settlements.On("SaveResults", ctx, mock.AnythingOfType("*models.SettlementRecord")).Return(errors.New("disk full"))

	factory := &MockUnitOfWorkFactory{}
	factory.On("Create").Return(uow)

	sessions := NewSessionStore(NewBetValidator(new(MockBalanceReader)), nil, time.Minute)
	ledger := NewLedgerService(factory, config.NewTestConfig())
	coordinator := NewSettlementCoordinator(factory, ledger, sessions, NewPayoutCalculator(rand.NewSource(1)))

	key, _ := sessions.Start(ctx, StartOptions{})

	record, err := coordinator.Settle(ctx, key, 5)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	uow.AssertCalled(t, "Rollback")
	uow.AssertNotCalled(t, "Commit")

	session, ok := sessions.Get(key)
	require.True(t, ok, "failed settlements keep the session for a retry")
	assert.Equal(t, models.SessionPhaseResolving, session.Phase)
	assert.Contains(t, sessions.Expired(), key)
}

func TestSettlementCoordinator_ClaimedElsewhereWritesNothing(t *testing.T) {
	ctx := context.Background()
	stored := &models.SettlementRecord{SessionKey: "placeholder", Outcome: 12, Winners: 1}

	uow := &MockUnitOfWork{MockRepositories: MockRepositories{Settlements: new(MockSettlementRepository)}}
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.Settlements.On("Claim", ctx, mock.AnythingOfType("*models.SettlementRecord")).Return(false, nil)
	uow.Settlements.On("Get", ctx, mock.AnythingOfType("string")).Return(stored, nil)

	factory := &MockUnitOfWorkFactory{}
	factory.On("Create").Return(uow)

	sessions := NewSessionStore(NewBetValidator(new(MockBalanceReader)), nil, time.Minute)
	ledger := NewLedgerService(factory, config.NewTestConfig())
	coordinator := NewSettlementCoordinator(factory, ledger, sessions, NewPayoutCalculator(rand.NewSource(1)))

	key, _ := sessions.Start(ctx, StartOptions{})

	record, err := coordinator.Settle(ctx, key, 3)
	require.NoError(t, err)
	assert.Same(t, stored, record)

	uow.Settlements.AssertNotCalled(t, "SaveResults", mock.Anything, mock.Anything)
	uow.AssertNotCalled(t, "Commit")

	_, ok := sessions.Get(key)
	assert.False(t, ok)
}

func TestSettlementCoordinator_ReaderFailureOnSettledKey(t *testing.T) {
	ctx := context.Background()

	reader := &MockRepositories{Settlements: new(MockSettlementRepository)}
	reader.Settlements.On("Get", ctx, "gone").Return(nil, errors.New("connection refused"))
	factory := &MockUnitOfWorkFactory{ReaderRepos: reader}

	sessions := NewSessionStore(NewBetValidator(new(MockBalanceReader)), nil, time.Minute)
	coordinator := NewSettlementCoordinator(factory, NewLedgerService(factory, config.NewTestConfig()), sessions, NewPayoutCalculator(nil))

	_, err := coordinator.Settle(ctx, "gone", 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
