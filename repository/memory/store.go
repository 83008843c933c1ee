// Package memory is an in-process storage driver with the same unit of work
// contract as the postgres repositories. Writes made inside a unit of work stay
// private until Commit, and mutated rows are locked until the work ends.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"economy/models"
)

type ownershipKey struct {
	userID string
	itemID string
}

// Store holds committed state for every repository
type Store struct {
	mu sync.RWMutex

	accounts     map[string]*models.Account
	transactions []*models.Transaction
	items        map[string]*models.Item
	ownerships   map[ownershipKey]*models.Ownership
	exchanges    []*models.ExchangeRecord
	giftRequests map[int64]*models.GiftRequest
	settlements  map[string]*models.SettlementRecord

	// sequences, guarded by mu
	accountSeq     int64
	transactionSeq int64
	exchangeSeq    int64
	giftRequestSeq int64

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	now func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithItems seeds the item catalog
func WithItems(items []*models.Item) Option {
	return func(s *Store) {
		for _, item := range items {
			copied := *item
			s.items[item.ID] = &copied
		}
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts:     make(map[string]*models.Account),
		items:        make(map[string]*models.Item),
		ownerships:   make(map[ownershipKey]*models.Ownership),
		giftRequests: make(map[int64]*models.GiftRequest),
		settlements:  make(map[string]*models.SettlementRecord),
		locks:        make(map[string]chan struct{}),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) nextSeq(seq *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*seq++
	return *seq
}

// lock acquires the named row lock, giving up when ctx is done
func (s *Store) lock(ctx context.Context, name string) error {
	s.locksMu.Lock()
	ch, ok := s.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[name] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to lock %s: %w", name, ctx.Err())
	}
}

func (s *Store) unlock(name string) {
	s.locksMu.Lock()
	ch := s.locks[name]
	s.locksMu.Unlock()
	<-ch
}

func accountLock(userID string) string {
	return "account:" + userID
}

func ownershipLock(userID, itemID string) string {
	return "ownership:" + userID + ":" + itemID
}

func giftRequestLock(userID, itemID string) string {
	return "gift_request:" + userID + ":" + itemID
}

func settlementLock(sessionKey string) string {
	return "settlement:" + sessionKey
}
