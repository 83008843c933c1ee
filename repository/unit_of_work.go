package repository

import (
	"context"
	"errors"
	"fmt"

	"economy/database"
	"economy/events"
	"economy/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	accountRepo      service.AccountRepository
	transactionRepo  service.TransactionRepository
	itemRepo         service.ItemRepository
	ownershipRepo    service.OwnershipRepository
	exchangeRepo     service.ExchangeRepository
	giftRequestRepo  service.GiftRequestRepository
	settlementRepo   service.SettlementRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
		reader:   newPoolRepositories(db),
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
	reader   *poolRepositories
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

func (f *unitOfWorkFactory) Reader() service.Repositories {
	return f.reader
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.accountRepo = newAccountRepositoryWithTx(tx)
	u.transactionRepo = newTransactionRepositoryWithTx(tx)
	u.itemRepo = newItemRepositoryWithTx(tx)
	u.ownershipRepo = newOwnershipRepositoryWithTx(tx)
	u.exchangeRepo = newExchangeRepositoryWithTx(tx)
	u.giftRequestRepo = newGiftRequestRepositoryWithTx(tx)
	u.settlementRepo = newSettlementRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

func (u *unitOfWork) mustBegin() {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	u.mustBegin()
	return u.accountRepo
}

// TransactionRepository returns the transaction repository for this unit of work
func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	u.mustBegin()
	return u.transactionRepo
}

// ItemRepository returns the item repository for this unit of work
func (u *unitOfWork) ItemRepository() service.ItemRepository {
	u.mustBegin()
	return u.itemRepo
}

// OwnershipRepository returns the ownership repository for this unit of work
func (u *unitOfWork) OwnershipRepository() service.OwnershipRepository {
	u.mustBegin()
	return u.ownershipRepo
}

// ExchangeRepository returns the exchange repository for this unit of work
func (u *unitOfWork) ExchangeRepository() service.ExchangeRepository {
	u.mustBegin()
	return u.exchangeRepo
}

// GiftRequestRepository returns the gift request repository for this unit of work
func (u *unitOfWork) GiftRequestRepository() service.GiftRequestRepository {
	u.mustBegin()
	return u.giftRequestRepo
}

// SettlementRepository returns the settlement repository for this unit of work
func (u *unitOfWork) SettlementRepository() service.SettlementRepository {
	u.mustBegin()
	return u.settlementRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}

// poolRepositories serves reads straight from the pool
type poolRepositories struct {
	accounts     *AccountRepository
	transactions *TransactionRepository
	items        *ItemRepository
	ownerships   *OwnershipRepository
	exchanges    *ExchangeRepository
	giftRequests *GiftRequestRepository
	settlements  *SettlementRepository
}

func newPoolRepositories(db *database.DB) *poolRepositories {
	return &poolRepositories{
		accounts:     NewAccountRepository(db),
		transactions: NewTransactionRepository(db),
		items:        NewItemRepository(db),
		ownerships:   NewOwnershipRepository(db),
		exchanges:    NewExchangeRepository(db),
		giftRequests: NewGiftRequestRepository(db),
		settlements:  NewSettlementRepository(db),
	}
}

func (p *poolRepositories) AccountRepository() service.AccountRepository { return p.accounts }
func (p *poolRepositories) TransactionRepository() service.TransactionRepository {
	return p.transactions
}
func (p *poolRepositories) ItemRepository() service.ItemRepository           { return p.items }
func (p *poolRepositories) OwnershipRepository() service.OwnershipRepository { return p.ownerships }
func (p *poolRepositories) ExchangeRepository() service.ExchangeRepository   { return p.exchanges }
func (p *poolRepositories) GiftRequestRepository() service.GiftRequestRepository {
	return p.giftRequests
}
func (p *poolRepositories) SettlementRepository() service.SettlementRepository {
	return p.settlements
}
