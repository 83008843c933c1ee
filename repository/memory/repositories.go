package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"economy/models"
	"economy/service"
)

// repositories implements every repository interface over the store. With a
// nil tx each write runs in its own autocommitted write set.
type repositories struct {
	store *Store
	tx    *txState
}

func (r *repositories) AccountRepository() service.AccountRepository {
	return &accountRepository{r}
}

func (r *repositories) TransactionRepository() service.TransactionRepository {
	return &transactionRepository{r}
}

func (r *repositories) ItemRepository() service.ItemRepository {
	return &itemRepository{r}
}

func (r *repositories) OwnershipRepository() service.OwnershipRepository {
	return &ownershipRepository{r}
}

func (r *repositories) ExchangeRepository() service.ExchangeRepository {
	return &exchangeRepository{r}
}

func (r *repositories) GiftRequestRepository() service.GiftRequestRepository {
	return &giftRequestRepository{r}
}

func (r *repositories) SettlementRepository() service.SettlementRepository {
	return &settlementRepository{r}
}

func (r *repositories) write(fn func(t *txState) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.autocommit(fn)
}

// checkLimit rejects negative limits the same way postgres rejects LIMIT -1
func checkLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("LIMIT must not be negative: %d", limit)
	}
	return nil
}

func (r *repositories) now() time.Time {
	return r.store.now().UTC()
}

// lookupAccount returns the staged account if t has one, otherwise the committed one
func (r *repositories) lookupAccount(t *txState, userID string) *models.Account {
	if t != nil {
		if account, ok := t.accounts[userID]; ok {
			return account
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.accounts[userID]
}

// accountRepository implements service.AccountRepository
type accountRepository struct {
	*repositories
}

func (r *accountRepository) Get(ctx context.Context, userID string) (*models.Account, error) {
	account := r.lookupAccount(r.tx, userID)
	if account == nil {
		return nil, nil
	}
	return account.Clone(), nil
}

func (r *accountRepository) GetOrCreate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error) {
	if account := r.lookupAccount(r.tx, userID); account != nil {
		return account.Clone(), nil
	}
	return r.getLocked(ctx, userID, initialBalance)
}

func (r *accountRepository) GetForUpdate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error) {
	return r.getLocked(ctx, userID, initialBalance)
}

func (r *accountRepository) getLocked(ctx context.Context, userID string, initialBalance int64) (*models.Account, error) {
	var result *models.Account
	err := r.write(func(t *txState) error {
		if err := t.acquire(ctx, accountLock(userID)); err != nil {
			return err
		}

		account := r.lookupAccount(t, userID)
		if account == nil {
			now := r.now()
			account = &models.Account{
				ID:        r.store.nextSeq(&r.store.accountSeq),
				UserID:    userID,
				Balance:   initialBalance,
				CreatedAt: now,
				UpdatedAt: now,
			}
			t.accounts[userID] = account
		}
		result = account.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	return r.write(func(t *txState) error {
		if err := t.acquire(ctx, accountLock(account.UserID)); err != nil {
			return err
		}

		existing := r.lookupAccount(t, account.UserID)
		if existing == nil {
			return fmt.Errorf("account %s not found", account.UserID)
		}

		updated := account.Clone()
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = r.now()
		t.accounts[account.UserID] = updated

		account.UpdatedAt = updated.UpdatedAt
		return nil
	})
}

func (r *accountRepository) DeductBalance(ctx context.Context, userID string, amount int64) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, fmt.Errorf("amount must be positive")
	}

	var newBalance int64
	var ok bool
	err := r.write(func(t *txState) error {
		if err := t.acquire(ctx, accountLock(userID)); err != nil {
			return err
		}

		existing := r.lookupAccount(t, userID)
		if existing == nil || existing.Balance < amount {
			return nil
		}

		updated := existing.Clone()
		updated.Balance -= amount
		updated.UpdatedAt = r.now()
		t.accounts[userID] = updated

		newBalance, ok = updated.Balance, true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return newBalance, ok, nil
}

func (r *accountRepository) GetTop(ctx context.Context, limit int) ([]*models.Account, error) {
	merged := make(map[string]*models.Account)

	r.store.mu.RLock()
	for id, account := range r.store.accounts {
		merged[id] = account
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for id, account := range r.tx.accounts {
			merged[id] = account
		}
	}

	accounts := make([]*models.Account, 0, len(merged))
	for _, account := range merged {
		accounts = append(accounts, account.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Balance != accounts[j].Balance {
			return accounts[i].Balance > accounts[j].Balance
		}
		return accounts[i].ID < accounts[j].ID
	})

	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// transactionRepository implements service.TransactionRepository
type transactionRepository struct {
	*repositories
}

func (r *transactionRepository) Append(ctx context.Context, txn *models.Transaction) error {
	return r.write(func(t *txState) error {
		copied := *txn
		copied.ID = r.store.nextSeq(&r.store.transactionSeq)
		copied.CreatedAt = r.now()
		if txn.Metadata != nil {
			copied.Metadata = make(map[string]any, len(txn.Metadata))
			for k, v := range txn.Metadata {
				copied.Metadata[k] = v
			}
		}
		t.transactions = append(t.transactions, &copied)

		txn.ID = copied.ID
		txn.CreatedAt = copied.CreatedAt
		return nil
	})
}

func (r *transactionRepository) byUser(userID string) []*models.Transaction {
	var result []*models.Transaction

	r.store.mu.RLock()
	for _, txn := range r.store.transactions {
		if txn.UserID == userID {
			result = append(result, txn)
		}
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for _, txn := range r.tx.transactions {
			if txn.UserID == userID {
				result = append(result, txn)
			}
		}
	}
	return result
}

func (r *transactionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	all := r.byUser(userID)
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}

	result := make([]*models.Transaction, len(all))
	for i, txn := range all {
		copied := *txn
		result[i] = &copied
	}
	return result, nil
}

func (r *transactionRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	for _, txn := range r.byUser(userID) {
		sum += txn.Amount
	}
	return sum, nil
}

// itemRepository implements service.ItemRepository
type itemRepository struct {
	*repositories
}

func (r *itemRepository) GetByID(ctx context.Context, itemID string) (*models.Item, error) {
	if r.tx != nil {
		if item, ok := r.tx.items[itemID]; ok {
			copied := *item
			return &copied, nil
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.items[itemID]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *itemRepository) List(ctx context.Context) ([]*models.Item, error) {
	merged := make(map[string]*models.Item)

	r.store.mu.RLock()
	for id, item := range r.store.items {
		merged[id] = item
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for id, item := range r.tx.items {
			merged[id] = item
		}
	}

	items := make([]*models.Item, 0, len(merged))
	for _, item := range merged {
		copied := *item
		items = append(items, &copied)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Price != items[j].Price {
			return items[i].Price < items[j].Price
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (r *itemRepository) Upsert(ctx context.Context, item *models.Item) error {
	return r.write(func(t *txState) error {
		copied := *item
		if existing, _ := r.GetByID(ctx, item.ID); existing != nil {
			copied.CreatedAt = existing.CreatedAt
		} else {
			copied.CreatedAt = r.now()
		}
		t.items[item.ID] = &copied
		item.CreatedAt = copied.CreatedAt
		return nil
	})
}

// ownershipRepository implements service.OwnershipRepository
type ownershipRepository struct {
	*repositories
}

func (r *ownershipRepository) lookup(t *txState, key ownershipKey) *models.Ownership {
	if t != nil {
		if ownership, ok := t.ownerships[key]; ok {
			return ownership
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.ownerships[key]
}

func (r *ownershipRepository) Get(ctx context.Context, userID, itemID string) (*models.Ownership, error) {
	ownership := r.lookup(r.tx, ownershipKey{userID: userID, itemID: itemID})
	if ownership == nil {
		return nil, nil
	}
	copied := *ownership
	return &copied, nil
}

func (r *ownershipRepository) Create(ctx context.Context, ownership *models.Ownership) error {
	return r.write(func(t *txState) error {
		if err := t.acquire(ctx, ownershipLock(ownership.UserID, ownership.ItemID)); err != nil {
			return err
		}

		key := ownershipKey{userID: ownership.UserID, itemID: ownership.ItemID}
		if r.lookup(t, key) != nil {
			return service.ErrAlreadyOwned
		}

		copied := *ownership
		copied.AcquiredAt = r.now()
		t.ownerships[key] = &copied
		ownership.AcquiredAt = copied.AcquiredAt
		return nil
	})
}

func (r *ownershipRepository) ListByUser(ctx context.Context, userID string) ([]*models.Ownership, error) {
	merged := make(map[ownershipKey]*models.Ownership)

	r.store.mu.RLock()
	for key, ownership := range r.store.ownerships {
		if key.userID == userID {
			merged[key] = ownership
		}
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for key, ownership := range r.tx.ownerships {
			if key.userID == userID {
				merged[key] = ownership
			}
		}
	}

	result := make([]*models.Ownership, 0, len(merged))
	for _, ownership := range merged {
		copied := *ownership
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].AcquiredAt.Equal(result[j].AcquiredAt) {
			return result[i].AcquiredAt.Before(result[j].AcquiredAt)
		}
		return result[i].ItemID < result[j].ItemID
	})
	return result, nil
}

// exchangeRepository implements service.ExchangeRepository
type exchangeRepository struct {
	*repositories
}

func (r *exchangeRepository) Create(ctx context.Context, record *models.ExchangeRecord) error {
	return r.write(func(t *txState) error {
		copied := *record
		copied.ID = r.store.nextSeq(&r.store.exchangeSeq)
		copied.CreatedAt = r.now()
		t.exchanges = append(t.exchanges, &copied)

		record.ID = copied.ID
		record.CreatedAt = copied.CreatedAt
		return nil
	})
}

func (r *exchangeRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ExchangeRecord, error) {
	var all []*models.ExchangeRecord
	involves := func(record *models.ExchangeRecord) bool {
		return record.SenderID == userID || record.RecipientID == userID
	}

	r.store.mu.RLock()
	for _, record := range r.store.exchanges {
		if involves(record) {
			all = append(all, record)
		}
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for _, record := range r.tx.exchanges {
			if involves(record) {
				all = append(all, record)
			}
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}

	result := make([]*models.ExchangeRecord, len(all))
	for i, record := range all {
		copied := *record
		result[i] = &copied
	}
	return result, nil
}

// giftRequestRepository implements service.GiftRequestRepository
type giftRequestRepository struct {
	*repositories
}

// merged returns committed requests overlaid with the staged ones
func (r *giftRequestRepository) merged(t *txState) map[int64]*models.GiftRequest {
	merged := make(map[int64]*models.GiftRequest)

	r.store.mu.RLock()
	for id, request := range r.store.giftRequests {
		merged[id] = request
	}
	r.store.mu.RUnlock()

	if t != nil {
		for id, request := range t.giftRequests {
			merged[id] = request
		}
	}
	return merged
}

func (r *giftRequestRepository) find(t *txState, userID, itemID string) *models.GiftRequest {
	for _, request := range r.merged(t) {
		if request.UserID == userID && request.ItemID == itemID {
			return request
		}
	}
	return nil
}

func (r *giftRequestRepository) Create(ctx context.Context, request *models.GiftRequest) (bool, error) {
	created := false
	err := r.write(func(t *txState) error {
		if err := t.acquire(ctx, giftRequestLock(request.UserID, request.ItemID)); err != nil {
			return err
		}
		if r.find(t, request.UserID, request.ItemID) != nil {
			return nil
		}

		copied := *request
		copied.ID = r.store.nextSeq(&r.store.giftRequestSeq)
		copied.CreatedAt = r.now()
		t.giftRequests[copied.ID] = &copied

		request.ID = copied.ID
		request.CreatedAt = copied.CreatedAt
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *giftRequestRepository) GetOpen(ctx context.Context, userID, itemID string) (*models.GiftRequest, error) {
	request := r.find(r.tx, userID, itemID)
	if request == nil || !request.IsOpen() {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (r *giftRequestRepository) ListByUser(ctx context.Context, userID string) ([]*models.GiftRequest, error) {
	var result []*models.GiftRequest
	for _, request := range r.merged(r.tx) {
		if request.UserID == userID {
			copied := *request
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *giftRequestRepository) MarkFulfilled(ctx context.Context, id int64, fulfilledBy string, at time.Time) error {
	return r.write(func(t *txState) error {
		request, ok := r.merged(t)[id]
		if !ok {
			return fmt.Errorf("gift request %d not found or already fulfilled", id)
		}
		if err := t.acquire(ctx, giftRequestLock(request.UserID, request.ItemID)); err != nil {
			return err
		}

		// re-read under the lock
		request = r.merged(t)[id]
		if !request.IsOpen() {
			return fmt.Errorf("gift request %d not found or already fulfilled", id)
		}

		copied := *request
		by := fulfilledBy
		when := at
		copied.FulfilledBy = &by
		copied.FulfilledAt = &when
		t.giftRequests[id] = &copied
		return nil
	})
}

// settlementRepository implements service.SettlementRepository
type settlementRepository struct {
	*repositories
}

func (r *settlementRepository) lookup(t *txState, sessionKey string) *models.SettlementRecord {
	if t != nil {
		if record, ok := t.settlements[sessionKey]; ok {
			return record
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.settlements[sessionKey]
}

func copySettlement(record *models.SettlementRecord) *models.SettlementRecord {
	copied := *record
	copied.Results = append([]models.ParticipantResult(nil), record.Results...)
	return &copied
}

func (r *settlementRepository) Claim(ctx context.Context, record *models.SettlementRecord) (bool, error) {
	claimed := false
	err := r.write(func(t *txState) error {
		if err := t.acquire(ctx, settlementLock(record.SessionKey)); err != nil {
			return err
		}
		if r.lookup(t, record.SessionKey) != nil {
			return nil
		}

		copied := copySettlement(record)
		copied.SettledAt = r.now()
		t.settlements[record.SessionKey] = copied

		record.SettledAt = copied.SettledAt
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (r *settlementRepository) SaveResults(ctx context.Context, record *models.SettlementRecord) error {
	return r.write(func(t *txState) error {
		if err := t.acquire(ctx, settlementLock(record.SessionKey)); err != nil {
			return err
		}

		existing := r.lookup(t, record.SessionKey)
		if existing == nil {
			return fmt.Errorf("settlement for session %s not claimed", record.SessionKey)
		}

		updated := copySettlement(existing)
		updated.TotalPayout = record.TotalPayout
		updated.Winners = record.Winners
		updated.Losers = record.Losers
		updated.Results = append([]models.ParticipantResult(nil), record.Results...)
		t.settlements[record.SessionKey] = updated
		return nil
	})
}

func (r *settlementRepository) Get(ctx context.Context, sessionKey string) (*models.SettlementRecord, error) {
	record := r.lookup(r.tx, sessionKey)
	if record == nil {
		return nil, nil
	}
	return copySettlement(record), nil
}
