package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"economy/events"
	"economy/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// GiftMarkupPercent is added to the item price when it is bought for someone else
const GiftMarkupPercent = 10

// GiftCost returns the floored price of gifting an item
func GiftCost(price int64) int64 {
	return price * (100 + GiftMarkupPercent) / 100
}

type exchangeService struct {
	uowFactory UnitOfWorkFactory
	ledger     LedgerService
	now        func() time.Time
}

// ExchangeOption configures the exchange service
type ExchangeOption func(*exchangeService)

// WithExchangeClock overrides the clock used to stamp fulfilled wishlist entries
func WithExchangeClock(now func() time.Time) ExchangeOption {
	return func(s *exchangeService) {
		s.now = now
	}
}

// NewExchangeService creates a new exchange service
func NewExchangeService(uowFactory UnitOfWorkFactory, ledger LedgerService, opts ...ExchangeOption) ExchangeService {
	s := &exchangeService{
		uowFactory: uowFactory,
		ledger:     ledger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *exchangeService) Gift(ctx context.Context, senderID, recipientID, itemID string, message *string) (*models.GiftResult, error) {
	if senderID == recipientID {
		return &models.GiftResult{Error: ErrSelfGift}, nil
	}

	fields := log.Fields{"senderId": senderID, "recipientId": recipientID, "itemId": itemID}
	reader := s.uowFactory.Reader()

	var (
		owned   *models.Ownership
		item    *models.Item
		balance int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = reader.OwnershipRepository().Get(gctx, recipientID, itemID)
		return err
	})
	g.Go(func() error {
		var err error
		item, err = reader.ItemRepository().GetByID(gctx, itemID)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = s.ledger.GetBalance(gctx, senderID)
		return err
	})
	if err := g.Wait(); err != nil {
		return &models.GiftResult{Error: ErrStoreUnavailable}, logStoreError("read gift state", fields, err)
	}

	if item == nil {
		return &models.GiftResult{Error: ErrItemNotFound}, nil
	}
	cost := GiftCost(item.Price)
	if owned != nil {
		return &models.GiftResult{Item: item, Cost: cost, Error: ErrAlreadyOwned}, nil
	}
	if balance < cost {
		return &models.GiftResult{Item: item, Cost: cost, Error: ErrInsufficientFunds}, nil
	}

	record, domainErr, err := s.applyGift(ctx, senderID, recipientID, item, cost, message)
	if err != nil {
		return &models.GiftResult{Item: item, Cost: cost, Error: ErrStoreUnavailable}, logStoreError("gift item", fields, err)
	}
	if domainErr != nil {
		return &models.GiftResult{Item: item, Cost: cost, Error: domainErr}, nil
	}

	log.WithFields(log.Fields{
		"senderId":    senderID,
		"recipientId": recipientID,
		"itemId":      item.ID,
		"cost":        cost,
	}).Info("Gift completed")

	return &models.GiftResult{
		Success:  true,
		Cost:     cost,
		Item:     item,
		Exchange: record,
	}, nil
}

// applyGift performs every gift write in one unit of work. A non-nil
// domainErr means the unit of work was rolled back for an expected reason.
func (s *exchangeService) applyGift(ctx context.Context, senderID, recipientID string, item *models.Item, cost int64, message *string) (record *models.ExchangeRecord, domainErr error, err error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx := s.ledger.Tx(uow)

	if item.Category.IsConsumable() {
		// Both balances may change, so lock the accounts in a fixed order
		if err := tx.LockAccounts(ctx, senderID, recipientID); err != nil {
			return nil, nil, err
		}
	}

	metadata := map[string]any{"recipient_id": recipientID, "item_id": item.ID}
	_, ok, err := tx.Spend(ctx, senderID, cost, models.TransactionKindGift, "gift "+item.Name, metadata)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, ErrInsufficientFunds, nil
	}

	switch item.Category {
	case models.ItemCategoryBoost:
		if _, err := tx.ActivateDailyBoost(ctx, recipientID); err != nil {
			return nil, nil, err
		}
	case models.ItemCategoryShield:
		if _, err := tx.AddStreakShield(ctx, recipientID); err != nil {
			return nil, nil, err
		}
	default:
		source := senderID
		err := uow.OwnershipRepository().Create(ctx, &models.Ownership{
			UserID:       recipientID,
			ItemID:       item.ID,
			Method:       models.AcquisitionMethodGift,
			SourceUserID: &source,
		})
		if errors.Is(err, ErrAlreadyOwned) {
			return nil, ErrAlreadyOwned, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ownership: %w", err)
		}
	}

	record = &models.ExchangeRecord{
		SenderID:    senderID,
		RecipientID: recipientID,
		ItemID:      item.ID,
		Cost:        cost,
		Message:     message,
	}
	if err := uow.ExchangeRepository().Create(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("failed to create exchange record: %w", err)
	}

	request, err := uow.GiftRequestRepository().GetOpen(ctx, recipientID, item.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get gift request: %w", err)
	}
	if request != nil {
		if err := uow.GiftRequestRepository().MarkFulfilled(ctx, request.ID, senderID, s.now().UTC()); err != nil {
			return nil, nil, fmt.Errorf("failed to fulfil gift request: %w", err)
		}
	}

	uow.EventBus().Publish(events.ExchangeCompletedEvent{
		Method:      models.AcquisitionMethodGift,
		SenderID:    senderID,
		RecipientID: recipientID,
		ItemID:      item.ID,
		Cost:        cost,
	})

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit gift: %w", err)
	}
	return record, nil, nil
}

func (s *exchangeService) Purchase(ctx context.Context, userID, itemID string) (*models.PurchaseResult, error) {
	fields := log.Fields{"userId": userID, "itemId": itemID}
	reader := s.uowFactory.Reader()

	item, err := reader.ItemRepository().GetByID(ctx, itemID)
	if err != nil {
		return &models.PurchaseResult{Error: ErrStoreUnavailable}, logStoreError("get item", fields, err)
	}
	if item == nil {
		return &models.PurchaseResult{
			Message: fmt.Sprintf("There is no item called %q in the shop.", itemID),
			Error:   ErrItemNotFound,
		}, nil
	}

	if !item.Category.IsConsumable() {
		owned, err := reader.OwnershipRepository().Get(ctx, userID, itemID)
		if err != nil {
			return &models.PurchaseResult{Item: item, Error: ErrStoreUnavailable}, logStoreError("get ownership", fields, err)
		}
		if owned != nil {
			return &models.PurchaseResult{
				Item:    item,
				Message: fmt.Sprintf("You already own %s.", item.Name),
				Error:   ErrAlreadyOwned,
			}, nil
		}
	}

	result, err := s.applyPurchase(ctx, userID, item)
	if err != nil {
		return &models.PurchaseResult{Item: item, Error: ErrStoreUnavailable}, logStoreError("purchase item", fields, err)
	}
	return result, nil
}

func (s *exchangeService) applyPurchase(ctx context.Context, userID string, item *models.Item) (*models.PurchaseResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx := s.ledger.Tx(uow)

	newBalance, ok, err := tx.Spend(ctx, userID, item.Price, models.TransactionKindPurchase, "purchase "+item.Name, map[string]any{"item_id": item.ID})
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.PurchaseResult{
			Item:    item,
			Message: fmt.Sprintf("%s costs %d and you cannot afford it.", item.Name, item.Price),
			Error:   ErrInsufficientFunds,
		}, nil
	}

	var message string
	switch item.Category {
	case models.ItemCategoryBoost:
		expiry, err := tx.ActivateDailyBoost(ctx, userID)
		if err != nil {
			return nil, err
		}
		message = fmt.Sprintf("Daily boost active until %s.", expiry.Format(time.RFC1123))
	case models.ItemCategoryShield:
		shields, err := tx.AddStreakShield(ctx, userID)
		if err != nil {
			return nil, err
		}
		message = fmt.Sprintf("You now hold %d streak shield(s).", shields)
	default:
		err := uow.OwnershipRepository().Create(ctx, &models.Ownership{
			UserID: userID,
			ItemID: item.ID,
			Method: models.AcquisitionMethodPurchase,
		})
		if errors.Is(err, ErrAlreadyOwned) {
			return &models.PurchaseResult{
				Item:    item,
				Message: fmt.Sprintf("You already own %s.", item.Name),
				Error:   ErrAlreadyOwned,
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create ownership: %w", err)
		}
		message = fmt.Sprintf("You bought %s for %d.", item.Name, item.Price)
	}

	uow.EventBus().Publish(events.ExchangeCompletedEvent{
		Method:      models.AcquisitionMethodPurchase,
		SenderID:    userID,
		RecipientID: userID,
		ItemID:      item.ID,
		Cost:        item.Price,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return &models.PurchaseResult{
		Success:    true,
		Message:    message,
		Item:       item,
		NewBalance: newBalance,
	}, nil
}

// RequestGift adds an item to the user's wishlist. It returns nil when the
// item is already on it.
func (s *exchangeService) RequestGift(ctx context.Context, userID, itemID, note string) (*models.GiftRequest, error) {
	reader := s.uowFactory.Reader()
	fields := log.Fields{"userId": userID, "itemId": itemID}

	item, err := reader.ItemRepository().GetByID(ctx, itemID)
	if err != nil {
		return nil, logStoreError("get item", fields, err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	request := &models.GiftRequest{UserID: userID, ItemID: itemID, Note: note}
	created, err := reader.GiftRequestRepository().Create(ctx, request)
	if err != nil {
		return nil, logStoreError("create gift request", fields, err)
	}
	if !created {
		return nil, nil
	}
	return request, nil
}

func (s *exchangeService) ListWishlist(ctx context.Context, userID string) ([]*models.GiftRequest, error) {
	requests, err := s.uowFactory.Reader().GiftRequestRepository().ListByUser(ctx, userID)
	if err != nil {
		return nil, logStoreError("list wishlist", log.Fields{"userId": userID}, err)
	}
	return requests, nil
}

func (s *exchangeService) Inventory(ctx context.Context, userID string) ([]*models.Ownership, error) {
	owned, err := s.uowFactory.Reader().OwnershipRepository().ListByUser(ctx, userID)
	if err != nil {
		return nil, logStoreError("list inventory", log.Fields{"userId": userID}, err)
	}
	return owned, nil
}

func (s *exchangeService) Catalog(ctx context.Context) ([]*models.Item, error) {
	items, err := s.uowFactory.Reader().ItemRepository().List(ctx)
	if err != nil {
		return nil, logStoreError("list catalog", nil, err)
	}
	return items, nil
}

func (s *exchangeService) GetExchangeHistory(ctx context.Context, userID string, limit int) ([]*models.ExchangeRecord, error) {
	records, err := s.uowFactory.Reader().ExchangeRepository().ListByUser(ctx, userID, pageLimit(limit))
	if err != nil {
		return nil, logStoreError("list exchanges", log.Fields{"userId": userID}, err)
	}
	return records, nil
}
