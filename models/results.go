package models

import (
	"time"
)

// AwardResult describes a completed ledger award
type AwardResult struct {
	CreditedAmount int64
	NewBalance     int64
	Streak         int
	FirstWinBonus  bool
	BonusPercent   int64
}

// AdjustResult describes an administrative balance adjustment
type AdjustResult struct {
	Success      bool
	NewBalance   int64
	ActualAmount int64 // clamped on removal so the balance never goes negative
	Error        error
}

// LossResult describes the streak bookkeeping after a loss
type LossResult struct {
	ShieldUsed       bool
	Streak           int
	ShieldsRemaining int
}

// DailyClaimResult describes a daily bonus claim
type DailyClaimResult struct {
	Claimed     bool
	Amount      int64
	Boosted     bool
	NewBalance  int64
	NextClaimAt time.Time
	Reason      string // why nothing was credited
}

// Reasons a daily claim credits nothing
const (
	DailyReasonAlreadyClaimed = "already_claimed"
	DailyReasonBalanceTooHigh = "balance_too_high"
)

// BoostStatus summarises an account's boost, shield and streak state
type BoostStatus struct {
	Active          bool
	Expiry          *time.Time
	Remaining       time.Duration
	Shields         int
	Streak          int
	NextStreakBonus int64 // percent applied to the next win
	DailyClaimable  bool
	NextDailyAmount int64
}

// BetReceipt is the answer to a bet placement. Handled is true whenever the
// request was understood, including rejections.
type BetReceipt struct {
	Handled     bool
	Accepted    bool
	Reason      error
	Bet         *Bet
	TotalStaked int64
}

// GiftResult describes the outcome of a gift exchange
type GiftResult struct {
	Success  bool
	Cost     int64
	Item     *Item
	Exchange *ExchangeRecord
	Error    error
}

// PurchaseResult describes the outcome of a shop purchase
type PurchaseResult struct {
	Success    bool
	Message    string
	Item       *Item
	NewBalance int64
	Error      error
}

// ReconcileResult compares an account balance with its transaction history
type ReconcileResult struct {
	UserID          string
	Balance         int64
	StartingBalance int64
	TransactionSum  int64
	Consistent      bool
}
