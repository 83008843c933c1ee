package service

import (
	"time"

	"economy/models"
)

const (
	// MaxStreakBonusPercent caps the streak bonus
	MaxStreakBonusPercent = 50
	// StreakBonusStepPercent is added for every consecutive win after the first
	StreakBonusStepPercent = 10

	// DailyBonusCap is the most a single daily claim pays before boosting
	DailyBonusCap = 100
	// DailyBonusCeiling is the balance at or above which no daily bonus is paid
	DailyBonusCeiling = 1000
)

// StreakBonusPercent returns the bonus percentage for a win that brings the
// streak to the given value
func StreakBonusPercent(streak int) int64 {
	if streak <= 1 {
		return 0
	}
	percent := int64(streak-1) * StreakBonusStepPercent
	if percent > MaxStreakBonusPercent {
		return MaxStreakBonusPercent
	}
	return percent
}

// StreakBonus applies a percentage bonus with integer floor
func StreakBonus(amount, percent int64) int64 {
	return amount * percent / 100
}

// IsFirstWin returns true if the account has never been awarded a win
func IsFirstWin(account *models.Account) bool {
	return account.LastWinAt == nil
}

// HasActiveDailyBoost reports whether the account's daily boost covers now
func HasActiveDailyBoost(account *models.Account, now time.Time) bool {
	return account.HasActiveBoost(now)
}

// ApplyDailyBoost doubles base while the daily boost is active
func ApplyDailyBoost(base int64, account *models.Account, now time.Time) int64 {
	if HasActiveDailyBoost(account, now) {
		return base * 2
	}
	return base
}

// DailyBonusAmount tops a low balance up towards the ceiling, at most DailyBonusCap at a time
func DailyBonusAmount(balance int64) int64 {
	if balance >= DailyBonusCeiling {
		return 0
	}
	gap := DailyBonusCeiling - balance
	if gap > DailyBonusCap {
		return DailyBonusCap
	}
	return gap
}

// CanClaimDaily returns true if the account has not claimed on now's UTC date
func CanClaimDaily(account *models.Account, now time.Time) bool {
	if account.LastDailyClaim == nil {
		return true
	}
	return StartOfUTCDay(*account.LastDailyClaim).Before(StartOfUTCDay(now))
}

// ExtendBoost returns the new expiry after adding d to a boost, stacking on
// whatever time is left
func ExtendBoost(current *time.Time, now time.Time, d time.Duration) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(d)
}
