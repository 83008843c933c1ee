package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"economy/config"
	"economy/events"
	"economy/models"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultPageSize is used when a history or leaderboard read asks for no positive limit
	DefaultPageSize = 10
	// MaxPageSize caps any single history or leaderboard read
	MaxPageSize = 100
)

// pageLimit maps a requested limit onto 1..MaxPageSize
func pageLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

type ledgerService struct {
	uowFactory         UnitOfWorkFactory
	startingBalance    int64
	dailyBoostDuration time.Duration
	now                func() time.Time
}

// LedgerOption configures the ledger service
type LedgerOption func(*ledgerService)

// WithLedgerClock overrides the clock used for streaks, boosts and daily claims
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(s *ledgerService) {
		s.now = now
	}
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory, cfg *config.Config, opts ...LedgerOption) LedgerService {
	s := &ledgerService{
		uowFactory:         uowFactory,
		startingBalance:    cfg.StartingBalance,
		dailyBoostDuration: cfg.DailyBoostDuration,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ledgerService) Tx(uow UnitOfWork) LedgerTx {
	return &ledgerTx{ledger: s, uow: uow}
}

// withTx runs fn inside a fresh unit of work and commits it if fn succeeds
func (s *ledgerService) withTx(ctx context.Context, fn func(tx *ledgerTx) error) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op after commit

	if err := fn(&ledgerTx{ledger: s, uow: uow}); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *ledgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := s.uowFactory.Reader().AccountRepository().GetOrCreate(ctx, userID, s.startingBalance)
	if err != nil {
		return 0, logStoreError("get balance", log.Fields{"userId": userID}, err)
	}
	return account.Balance, nil
}

func (s *ledgerService) Award(ctx context.Context, userID string, amount int64, reason string) (*models.AwardResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result *models.AwardResult
	err := s.withTx(ctx, func(tx *ledgerTx) error {
		var err error
		result, err = tx.Award(ctx, userID, amount, reason, nil)
		return err
	})
	if err != nil {
		return nil, logStoreError("award", log.Fields{"userId": userID, "amount": amount}, err)
	}

	log.WithFields(log.Fields{
		"userId":   userID,
		"amount":   amount,
		"credited": result.CreditedAmount,
		"streak":   result.Streak,
	}).Debug("Awarded win")
	return result, nil
}

func (s *ledgerService) Spend(ctx context.Context, userID string, amount int64, reason string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	var ok bool
	err := s.withTx(ctx, func(tx *ledgerTx) error {
		var err error
		_, ok, err = tx.Spend(ctx, userID, amount, models.TransactionKindSpend, reason, nil)
		return err
	})
	if err != nil {
		return false, logStoreError("spend", log.Fields{"userId": userID, "amount": amount}, err)
	}
	return ok, nil
}

func (s *ledgerService) AdminAdjust(ctx context.Context, userID string, amount int64, reason string) (*models.AdjustResult, error) {
	if amount == 0 {
		return &models.AdjustResult{Error: ErrInvalidAmount}, nil
	}

	result := &models.AdjustResult{}
	err := s.withTx(ctx, func(tx *ledgerTx) error {
		account, err := tx.lockAccount(ctx, userID)
		if err != nil {
			return err
		}

		actual := amount
		if amount < 0 && -amount > account.Balance {
			actual = -account.Balance
		}

		if actual != 0 {
			metadata := map[string]any{"requested_amount": amount}
			if _, err := tx.applyBalanceChange(ctx, account, actual, models.TransactionKindAdmin, reason, metadata); err != nil {
				return err
			}
		}

		result.Success = true
		result.NewBalance = account.Balance
		result.ActualAmount = actual
		return nil
	})
	if err != nil {
		return &models.AdjustResult{Error: ErrStoreUnavailable},
			logStoreError("adjust balance", log.Fields{"userId": userID, "amount": amount}, err)
	}

	log.WithFields(log.Fields{
		"userId":    userID,
		"requested": amount,
		"actual":    result.ActualAmount,
		"reason":    reason,
	}).Info("Admin balance adjustment")
	return result, nil
}

func (s *ledgerService) RecordLoss(ctx context.Context, userID string) (*models.LossResult, error) {
	var result *models.LossResult
	err := s.withTx(ctx, func(tx *ledgerTx) error {
		var err error
		result, err = tx.RecordLoss(ctx, userID)
		return err
	})
	if err != nil {
		return nil, logStoreError("record loss", log.Fields{"userId": userID}, err)
	}
	return result, nil
}

func (s *ledgerService) ClaimDaily(ctx context.Context, userID string) (*models.DailyClaimResult, error) {
	result := &models.DailyClaimResult{}
	err := s.withTx(ctx, func(tx *ledgerTx) error {
		account, err := tx.lockAccount(ctx, userID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		result.NewBalance = account.Balance

		if !CanClaimDaily(account, now) {
			result.Reason = models.DailyReasonAlreadyClaimed
			result.NextClaimAt = NextUTCDay(now)
			return nil
		}

		base := DailyBonusAmount(account.Balance)
		if base == 0 {
			// Nothing to pay, so the day stays unclaimed
			result.Reason = models.DailyReasonBalanceTooHigh
			result.NextClaimAt = now
			return nil
		}

		amount := ApplyDailyBoost(base, account, now)
		account.LastDailyClaim = &now
		account.TotalEarned += amount

		metadata := map[string]any{"base_amount": base, "boosted": amount != base}
		if _, err := tx.applyBalanceChange(ctx, account, amount, models.TransactionKindDaily, "daily bonus", metadata); err != nil {
			return err
		}

		result.Claimed = true
		result.Amount = amount
		result.Boosted = amount != base
		result.NewBalance = account.Balance
		result.NextClaimAt = NextUTCDay(now)
		return nil
	})
	if err != nil {
		return nil, logStoreError("claim daily bonus", log.Fields{"userId": userID}, err)
	}
	return result, nil
}

func (s *ledgerService) ActivateDailyBoost(ctx context.Context, userID string) (time.Time, error) {
	var expiry time.Time
	err := s.withTx(ctx, func(tx *ledgerTx) error {
		var err error
		expiry, err = tx.ActivateDailyBoost(ctx, userID)
		return err
	})
	if err != nil {
		return time.Time{}, logStoreError("activate daily boost", log.Fields{"userId": userID}, err)
	}
	return expiry, nil
}

func (s *ledgerService) AddStreakShield(ctx context.Context, userID string) (int, error) {
	var shields int
	err := s.withTx(ctx, func(tx *ledgerTx) error {
		var err error
		shields, err = tx.AddStreakShield(ctx, userID)
		return err
	})
	if err != nil {
		return 0, logStoreError("add streak shield", log.Fields{"userId": userID}, err)
	}
	return shields, nil
}

func (s *ledgerService) GetBoostStatus(ctx context.Context, userID string) (*models.BoostStatus, error) {
	account, err := s.uowFactory.Reader().AccountRepository().GetOrCreate(ctx, userID, s.startingBalance)
	if err != nil {
		return nil, logStoreError("get boost status", log.Fields{"userId": userID}, err)
	}

	now := s.now().UTC()
	status := &models.BoostStatus{
		Active:          HasActiveDailyBoost(account, now),
		Shields:         account.StreakShields,
		Streak:          account.WinStreak,
		NextStreakBonus: StreakBonusPercent(account.WinStreak + 1),
		DailyClaimable:  CanClaimDaily(account, now) && DailyBonusAmount(account.Balance) > 0,
	}
	if status.Active {
		expiry := *account.DailyBoostExpiry
		status.Expiry = &expiry
		status.Remaining = expiry.Sub(now)
	}
	if status.DailyClaimable {
		status.NextDailyAmount = ApplyDailyBoost(DailyBonusAmount(account.Balance), account, now)
	}
	return status, nil
}

func (s *ledgerService) GetTransactionHistory(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	txns, err := s.uowFactory.Reader().TransactionRepository().GetByUser(ctx, userID, pageLimit(limit))
	if err != nil {
		return nil, logStoreError("get transaction history", log.Fields{"userId": userID}, err)
	}
	return txns, nil
}

func (s *ledgerService) GetLeaderboard(ctx context.Context, limit int) ([]*models.Account, error) {
	accounts, err := s.uowFactory.Reader().AccountRepository().GetTop(ctx, pageLimit(limit))
	if err != nil {
		return nil, logStoreError("get leaderboard", nil, err)
	}
	return accounts, nil
}

func (s *ledgerService) Reconcile(ctx context.Context, userID string) (*models.ReconcileResult, error) {
	reader := s.uowFactory.Reader()

	account, err := reader.AccountRepository().GetOrCreate(ctx, userID, s.startingBalance)
	if err != nil {
		return nil, logStoreError("reconcile", log.Fields{"userId": userID}, err)
	}
	sum, err := reader.TransactionRepository().SumByUser(ctx, userID)
	if err != nil {
		return nil, logStoreError("reconcile", log.Fields{"userId": userID}, err)
	}

	result := &models.ReconcileResult{
		UserID:          userID,
		Balance:         account.Balance,
		StartingBalance: s.startingBalance,
		TransactionSum:  sum,
		Consistent:      account.Balance-s.startingBalance == sum,
	}
	if !result.Consistent {
		log.WithFields(log.Fields{
			"userId":         userID,
			"balance":        account.Balance,
			"transactionSum": sum,
		}).Warn("Balance does not match transaction history")
	}
	return result, nil
}

// ledgerTx implements LedgerTx over a begun unit of work
type ledgerTx struct {
	ledger *ledgerService
	uow    UnitOfWork
}

// lockAccount loads the account and holds its row lock until the unit of work ends
func (t *ledgerTx) lockAccount(ctx context.Context, userID string) (*models.Account, error) {
	account, err := t.uow.AccountRepository().GetForUpdate(ctx, userID, t.ledger.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

// applyBalanceChange moves a locked account's balance by amount, persists it
// and records the transaction
func (t *ledgerTx) applyBalanceChange(ctx context.Context, account *models.Account, amount int64, kind models.TransactionKind, reason string, metadata map[string]any) (*models.Transaction, error) {
	before := account.Balance
	if before+amount < 0 {
		return nil, fmt.Errorf("balance of %s would go negative", account.UserID)
	}
	account.Balance = before + amount

	if err := t.uow.AccountRepository().Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	txn := &models.Transaction{
		UserID:        account.UserID,
		Amount:        amount,
		Reason:        reason,
		Kind:          kind,
		BalanceBefore: before,
		BalanceAfter:  account.Balance,
		Metadata:      metadata,
	}
	if err := recordBalanceChange(ctx, t.uow, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (t *ledgerTx) LockAccounts(ctx context.Context, userIDs ...string) error {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := t.lockAccount(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *ledgerTx) Award(ctx context.Context, userID string, amount int64, reason string, metadata map[string]any) (*models.AwardResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := t.lockAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := t.ledger.now().UTC()
	firstWin := IsFirstWin(account)
	streak := account.WinStreak + 1

	var percent int64
	credited := amount
	if firstWin {
		credited = amount * 2
	} else {
		percent = StreakBonusPercent(streak)
		credited = amount + StreakBonus(amount, percent)
	}

	account.WinStreak = streak
	account.LastWinAt = &now
	account.TotalEarned += credited

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["base_amount"] = amount
	metadata["streak"] = streak
	metadata["bonus_percent"] = percent
	metadata["first_win"] = firstWin

	if _, err := t.applyBalanceChange(ctx, account, credited, models.TransactionKindAward, reason, metadata); err != nil {
		return nil, err
	}

	return &models.AwardResult{
		CreditedAmount: credited,
		NewBalance:     account.Balance,
		Streak:         streak,
		FirstWinBonus:  firstWin,
		BonusPercent:   percent,
	}, nil
}

func (t *ledgerTx) Spend(ctx context.Context, userID string, amount int64, kind models.TransactionKind, reason string, metadata map[string]any) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}

	accounts := t.uow.AccountRepository()
	if _, err := accounts.GetOrCreate(ctx, userID, t.ledger.startingBalance); err != nil {
		return 0, false, fmt.Errorf("failed to get account: %w", err)
	}

	newBalance, ok, err := accounts.DeductBalance(ctx, userID, amount)
	if err != nil {
		return 0, false, fmt.Errorf("failed to deduct balance: %w", err)
	}
	if !ok {
		return 0, false, nil
	}

	txn := &models.Transaction{
		UserID:        userID,
		Amount:        -amount,
		Reason:        reason,
		Kind:          kind,
		BalanceBefore: newBalance + amount,
		BalanceAfter:  newBalance,
		Metadata:      metadata,
	}
	if err := recordBalanceChange(ctx, t.uow, txn); err != nil {
		return 0, false, err
	}
	return newBalance, true, nil
}

func (t *ledgerTx) Forfeit(ctx context.Context, userID string, amount int64, reason string, metadata map[string]any) (int64, int64, error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}

	account, err := t.lockAccount(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	debit := amount
	if debit > account.Balance {
		debit = account.Balance
	}
	if debit == 0 {
		return 0, account.Balance, nil
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["requested_amount"] = amount

	if _, err := t.applyBalanceChange(ctx, account, -debit, models.TransactionKindWagerLoss, reason, metadata); err != nil {
		return 0, 0, err
	}
	return debit, account.Balance, nil
}

func (t *ledgerTx) RecordLoss(ctx context.Context, userID string) (*models.LossResult, error) {
	account, err := t.lockAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &models.LossResult{}
	if account.StreakShields > 0 {
		account.StreakShields--
		result.ShieldUsed = true
	} else {
		account.WinStreak = 0
	}
	result.Streak = account.WinStreak
	result.ShieldsRemaining = account.StreakShields

	if err := t.uow.AccountRepository().Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return result, nil
}

func (t *ledgerTx) ActivateDailyBoost(ctx context.Context, userID string) (time.Time, error) {
	account, err := t.lockAccount(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}

	expiry := ExtendBoost(account.DailyBoostExpiry, t.ledger.now().UTC(), t.ledger.dailyBoostDuration)
	account.DailyBoostExpiry = &expiry

	if err := t.uow.AccountRepository().Update(ctx, account); err != nil {
		return time.Time{}, fmt.Errorf("failed to update account: %w", err)
	}

	t.uow.EventBus().Publish(events.DailyBoostActivatedEvent{
		UserID: userID,
		Expiry: expiry,
	})
	return expiry, nil
}

func (t *ledgerTx) AddStreakShield(ctx context.Context, userID string) (int, error) {
	account, err := t.lockAccount(ctx, userID)
	if err != nil {
		return 0, err
	}

	account.StreakShields++
	if err := t.uow.AccountRepository().Update(ctx, account); err != nil {
		return 0, fmt.Errorf("failed to update account: %w", err)
	}
	return account.StreakShields, nil
}
