package memory

import (
	"context"
	"fmt"

	"economy/events"
	"economy/models"
	"economy/service"
)

// txState is the private write set of one unit of work. It is applied to the
// store in a single critical section on commit.
type txState struct {
	store *Store
	held  []string

	accounts     map[string]*models.Account
	transactions []*models.Transaction
	items        map[string]*models.Item
	ownerships   map[ownershipKey]*models.Ownership
	exchanges    []*models.ExchangeRecord
	giftRequests map[int64]*models.GiftRequest
	settlements  map[string]*models.SettlementRecord
}

func newTxState(store *Store) *txState {
	return &txState{
		store:        store,
		accounts:     make(map[string]*models.Account),
		items:        make(map[string]*models.Item),
		ownerships:   make(map[ownershipKey]*models.Ownership),
		giftRequests: make(map[int64]*models.GiftRequest),
		settlements:  make(map[string]*models.SettlementRecord),
	}
}

// acquire takes a row lock once per unit of work
func (t *txState) acquire(ctx context.Context, name string) error {
	for _, held := range t.held {
		if held == name {
			return nil
		}
	}
	if err := t.store.lock(ctx, name); err != nil {
		return err
	}
	t.held = append(t.held, name)
	return nil
}

func (t *txState) holds(name string) bool {
	for _, held := range t.held {
		if held == name {
			return true
		}
	}
	return false
}

func (t *txState) apply() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, account := range t.accounts {
		s.accounts[id] = account
	}
	s.transactions = append(s.transactions, t.transactions...)
	for id, item := range t.items {
		s.items[id] = item
	}
	for key, ownership := range t.ownerships {
		s.ownerships[key] = ownership
	}
	s.exchanges = append(s.exchanges, t.exchanges...)
	for id, request := range t.giftRequests {
		s.giftRequests[id] = request
	}
	for key, record := range t.settlements {
		s.settlements[key] = record
	}
}

func (t *txState) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.unlock(t.held[i])
	}
	t.held = nil
}

// autocommit runs fn in a throwaway write set that is committed when fn succeeds.
// Used by reader repositories outside any unit of work.
func (s *Store) autocommit(fn func(t *txState) error) error {
	t := newTxState(s)
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	t.apply()
	return nil
}

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	store            *Store
	state            *txState
	transactionalBus *events.TransactionalBus
	repos            *repositories
}

// NewUnitOfWorkFactory creates a UnitOfWork factory over the store
func NewUnitOfWorkFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		store:    store,
		eventBus: eventBus,
		reader:   &repositories{store: store},
	}
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus *events.Bus
	reader   *repositories
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

func (f *unitOfWorkFactory) Reader() service.Repositories {
	return f.reader
}

// Begin starts a new unit of work
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.state != nil {
		return fmt.Errorf("transaction already started")
	}

	u.state = newTxState(u.store)
	u.repos = &repositories{store: u.store, tx: u.state}
	return nil
}

// Commit applies the write set atomically and releases row locks
func (u *unitOfWork) Commit() error {
	if u.state == nil {
		return fmt.Errorf("no transaction to commit")
	}

	u.state.apply()
	u.state.release()
	u.state = nil

	// Flush pending events after successful commit
	u.transactionalBus.Flush(context.Background())
	return nil
}

// Rollback drops the write set and releases row locks
func (u *unitOfWork) Rollback() error {
	if u.state == nil {
		return nil // Nothing to rollback
	}

	u.state.release()
	u.state = nil

	u.transactionalBus.Discard()
	return nil
}

func (u *unitOfWork) active() *repositories {
	if u.state == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.repos
}

func (u *unitOfWork) AccountRepository() service.AccountRepository {
	return u.active().AccountRepository()
}

func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	return u.active().TransactionRepository()
}

func (u *unitOfWork) ItemRepository() service.ItemRepository {
	return u.active().ItemRepository()
}

func (u *unitOfWork) OwnershipRepository() service.OwnershipRepository {
	return u.active().OwnershipRepository()
}

func (u *unitOfWork) ExchangeRepository() service.ExchangeRepository {
	return u.active().ExchangeRepository()
}

func (u *unitOfWork) GiftRequestRepository() service.GiftRequestRepository {
	return u.active().GiftRequestRepository()
}

func (u *unitOfWork) SettlementRepository() service.SettlementRepository {
	return u.active().SettlementRepository()
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
