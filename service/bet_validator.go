package service

import (
	"context"
	"fmt"
	"time"

	"economy/models"
)

const (
	// RouletteMinValue and RouletteMaxValue bound the wheel
	RouletteMinValue = 0
	RouletteMaxValue = 36

	// MaxSessionStake bounds what one user can stake on a single table, which
	// keeps a straight-up payout of 36x well inside int64
	MaxSessionStake int64 = 1_000_000_000_000
)

// BetValidator checks a proposed bet against the session and the bettor's balance
type BetValidator struct {
	balances BalanceReader
}

// NewBetValidator creates a validator reading balances from the ledger
func NewBetValidator(balances BalanceReader) *BetValidator {
	return &BetValidator{balances: balances}
}

// CheckSession rejects bets on sessions outside the betting phase or past their window
func (v *BetValidator) CheckSession(session *models.Session, now time.Time) error {
	if session.Phase != models.SessionPhaseBetting {
		return fmt.Errorf("%w: session is %s", ErrBettingClosed, session.Phase)
	}
	if !session.WindowOpen(now) {
		return fmt.Errorf("%w: betting window ended at %s", ErrBettingClosed, session.Deadline().Format(time.RFC3339))
	}
	return nil
}

// BuildBet validates the category, amount and target and returns the bet
func (v *BetValidator) BuildBet(category models.BetCategory, amount int64, target *int) (*models.Bet, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidBet, category)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidBet)
	}
	if amount > MaxSessionStake {
		return nil, fmt.Errorf("%w: amount exceeds the table limit of %d", ErrInvalidBet, MaxSessionStake)
	}

	bet := &models.Bet{
		Category:         category,
		Amount:           amount,
		PayoutMultiplier: category.PayoutMultiplier(),
	}

	if category.RequiresTarget() {
		if target == nil {
			return nil, fmt.Errorf("%w: %s bets need a number", ErrInvalidBet, category)
		}
		if *target < RouletteMinValue || *target > RouletteMaxValue {
			return nil, fmt.Errorf("%w: number must be between %d and %d", ErrInvalidBet, RouletteMinValue, RouletteMaxValue)
		}
		value := *target
		bet.Target = &value
	} else if target != nil {
		return nil, fmt.Errorf("%w: %s bets do not take a number", ErrInvalidBet, category)
	}

	return bet, nil
}

// CheckStakeLimit rejects a bet that would take the user's stake on one
// table past MaxSessionStake
func (v *BetValidator) CheckStakeLimit(alreadyStaked, amount int64) error {
	if amount > MaxSessionStake-alreadyStaked {
		return fmt.Errorf("%w: table limit is %d, %d already staked", ErrInvalidBet, MaxSessionStake, alreadyStaked)
	}
	return nil
}

// CheckFunds requires the balance to cover everything the user has staked in
// the session plus the new amount. Store failures are returned unwrapped from
// ErrInsufficientFunds.
func (v *BetValidator) CheckFunds(ctx context.Context, userID string, alreadyStaked, amount int64) error {
	balance, err := v.balances.GetBalance(ctx, userID)
	if err != nil {
		return err
	}
	if amount > balance-alreadyStaked {
		return fmt.Errorf("%w: balance %d does not cover %d more on top of %d staked", ErrInsufficientFunds, balance, amount, alreadyStaked)
	}
	return nil
}
