package service

import (
	"context"
	"time"

	"economy/events"
	"economy/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// Get retrieves an account, returning nil if it does not exist
	Get(ctx context.Context, userID string) (*models.Account, error)

	// GetOrCreate retrieves an account, inserting it with initialBalance first if it does not exist
	GetOrCreate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error)

	// GetForUpdate is GetOrCreate that also locks the account row until the unit of work ends
	GetForUpdate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error)

	// Update persists the balance, streak, boost and shield fields of an account
	Update(ctx context.Context, account *models.Account) error

	// DeductBalance subtracts amount in one conditional step.
	// Returns ok=false and leaves the account untouched when the balance does not cover amount.
	DeductBalance(ctx context.Context, userID string, amount int64) (newBalance int64, ok bool, err error)

	// GetTop returns accounts ordered by balance descending, oldest account first on ties
	GetTop(ctx context.Context, limit int) ([]*models.Account, error)
}

// TransactionRepository defines the interface for the append-only transaction log
type TransactionRepository interface {
	// Append records a transaction and fills in its ID and CreatedAt
	Append(ctx context.Context, txn *models.Transaction) error

	// GetByUser returns a user's transactions, newest first
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// SumByUser returns the sum of all transaction amounts for a user
	SumByUser(ctx context.Context, userID string) (int64, error)
}

// ItemRepository defines the interface for the item catalog
type ItemRepository interface {
	// GetByID retrieves an item, returning nil if it does not exist
	GetByID(ctx context.Context, itemID string) (*models.Item, error)

	// List returns the whole catalog ordered by price
	List(ctx context.Context) ([]*models.Item, error)

	// Upsert inserts or replaces a catalog item
	Upsert(ctx context.Context, item *models.Item) error
}

// OwnershipRepository defines the interface for item ownership
type OwnershipRepository interface {
	// Get retrieves an ownership record, returning nil if the user does not own the item
	Get(ctx context.Context, userID, itemID string) (*models.Ownership, error)

	// Create records ownership. Returns ErrAlreadyOwned if the pair already exists.
	Create(ctx context.Context, ownership *models.Ownership) error

	// ListByUser returns every item a user owns, oldest first
	ListByUser(ctx context.Context, userID string) ([]*models.Ownership, error)
}

// ExchangeRepository defines the interface for gift history
type ExchangeRepository interface {
	// Create appends an exchange record and fills in its ID and CreatedAt
	Create(ctx context.Context, record *models.ExchangeRecord) error

	// ListByUser returns exchanges the user sent or received, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.ExchangeRecord, error)
}

// GiftRequestRepository defines the interface for wishlist entries
type GiftRequestRepository interface {
	// Create adds a wishlist entry. Returns false if the user already asked for the item.
	Create(ctx context.Context, request *models.GiftRequest) (bool, error)

	// GetOpen returns the unfulfilled request for the pair, or nil
	GetOpen(ctx context.Context, userID, itemID string) (*models.GiftRequest, error)

	// ListByUser returns a user's wishlist, oldest first
	ListByUser(ctx context.Context, userID string) ([]*models.GiftRequest, error)

	// MarkFulfilled records who gifted the requested item
	MarkFulfilled(ctx context.Context, id int64, fulfilledBy string, at time.Time) error
}

// SettlementRepository defines the interface for the settled-session guard
type SettlementRepository interface {
	// Claim inserts the record for its session key.
	// Returns false without writing if the key was already claimed.
	Claim(ctx context.Context, record *models.SettlementRecord) (bool, error)

	// SaveResults stores the per-participant results of a claimed record
	SaveResults(ctx context.Context, record *models.SettlementRecord) error

	// Get retrieves the record for a session key, returning nil if none exists
	Get(ctx context.Context, sessionKey string) (*models.SettlementRecord, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// Repositories groups the repository getters shared by readers and units of work
type Repositories interface {
	AccountRepository() AccountRepository
	TransactionRepository() TransactionRepository
	ItemRepository() ItemRepository
	OwnershipRepository() OwnershipRepository
	ExchangeRepository() ExchangeRepository
	GiftRequestRepository() GiftRequestRepository
	SettlementRepository() SettlementRepository
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	Repositories

	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// EventBus returns the transactional event bus for this unit of work
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork

	// Reader returns repositories outside any transaction, safe for concurrent use
	Reader() Repositories
}

// BalanceReader is the read side of the ledger the bet validator depends on
type BalanceReader interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// LedgerService owns every balance. Mutations lock the account for the whole
// unit of work so writes to one user are linearizable.
type LedgerService interface {
	BalanceReader

	// Award credits a game win, applying the first-win doubling or the streak bonus
	Award(ctx context.Context, userID string, amount int64, reason string) (*models.AwardResult, error)

	// Spend deducts amount if the balance covers it. Returns false with no side effect otherwise.
	Spend(ctx context.Context, userID string, amount int64, reason string) (bool, error)

	// AdminAdjust moves a balance outside gameplay rules. Removals are clamped to the balance.
	AdminAdjust(ctx context.Context, userID string, amount int64, reason string) (*models.AdjustResult, error)

	// RecordLoss consumes a streak shield if one is available, otherwise resets the streak
	RecordLoss(ctx context.Context, userID string) (*models.LossResult, error)

	// ClaimDaily pays the daily bonus at most once per UTC day
	ClaimDaily(ctx context.Context, userID string) (*models.DailyClaimResult, error)

	ActivateDailyBoost(ctx context.Context, userID string) (time.Time, error)
	AddStreakShield(ctx context.Context, userID string) (int, error)
	GetBoostStatus(ctx context.Context, userID string) (*models.BoostStatus, error)

	// GetTransactionHistory returns a user's transactions, newest first
	GetTransactionHistory(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// GetLeaderboard returns the richest accounts, oldest account first on ties
	GetLeaderboard(ctx context.Context, limit int) ([]*models.Account, error)

	// Reconcile compares the balance with the sum of the user's transactions
	Reconcile(ctx context.Context, userID string) (*models.ReconcileResult, error)

	// Tx binds ledger writes to a unit of work the caller has already begun
	Tx(uow UnitOfWork) LedgerTx
}

// LedgerTx is the ledger inside a caller's unit of work. Nothing it writes is
// visible until the caller commits.
type LedgerTx interface {
	// LockAccounts locks several accounts in user ID order, for writes that touch more than one
	LockAccounts(ctx context.Context, userIDs ...string) error

	Award(ctx context.Context, userID string, amount int64, reason string, metadata map[string]any) (*models.AwardResult, error)

	// Spend deducts amount in one conditional step and records it under kind
	Spend(ctx context.Context, userID string, amount int64, kind models.TransactionKind, reason string, metadata map[string]any) (newBalance int64, ok bool, err error)

	// Forfeit deducts up to amount, clamped to the balance, and returns what was taken
	Forfeit(ctx context.Context, userID string, amount int64, reason string, metadata map[string]any) (debited int64, newBalance int64, err error)

	RecordLoss(ctx context.Context, userID string) (*models.LossResult, error)
	ActivateDailyBoost(ctx context.Context, userID string) (time.Time, error)
	AddStreakShield(ctx context.Context, userID string) (int, error)
}

// SettlementService pays out wagering sessions exactly once
type SettlementService interface {
	// Settle pays out the session for outcome. Settling an already settled
	// session returns the stored record without writing anything.
	Settle(ctx context.Context, sessionKey string, outcome int) (*models.SettlementRecord, error)

	// SpinAndSettle draws the outcome and settles the session
	SpinAndSettle(ctx context.Context, sessionKey string) (*models.SettlementRecord, error)

	// GetSettlement returns the stored record for a session key, or nil if it was never settled
	GetSettlement(ctx context.Context, sessionKey string) (*models.SettlementRecord, error)
}

// ExchangeService handles purchases, gifts and wishlists
type ExchangeService interface {
	Gift(ctx context.Context, senderID, recipientID, itemID string, message *string) (*models.GiftResult, error)
	Purchase(ctx context.Context, userID, itemID string) (*models.PurchaseResult, error)
	RequestGift(ctx context.Context, userID, itemID, note string) (*models.GiftRequest, error)
	ListWishlist(ctx context.Context, userID string) ([]*models.GiftRequest, error)
	Inventory(ctx context.Context, userID string) ([]*models.Ownership, error)
	Catalog(ctx context.Context) ([]*models.Item, error)
	GetExchangeHistory(ctx context.Context, userID string, limit int) ([]*models.ExchangeRecord, error)
}
