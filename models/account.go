package models

import (
	"time"
)

// Account holds a user's balance together with the streak and boost state the
// ledger maintains for them
type Account struct {
	ID               int64      `db:"id"`
	UserID           string     `db:"user_id"`
	Balance          int64      `db:"balance"`
	LastDailyClaim   *time.Time `db:"last_daily_claim"`
	WinStreak        int        `db:"win_streak"`
	LastWinAt        *time.Time `db:"last_win_at"`
	TotalEarned      int64      `db:"total_earned"`
	DailyBoostExpiry *time.Time `db:"daily_boost_expiry"`
	StreakShields    int        `db:"streak_shields"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// HasActiveBoost reports whether the daily boost is still running at now
func (a *Account) HasActiveBoost(now time.Time) bool {
	return a.DailyBoostExpiry != nil && now.Before(*a.DailyBoostExpiry)
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	c := *a
	c.LastDailyClaim = cloneTime(a.LastDailyClaim)
	c.LastWinAt = cloneTime(a.LastWinAt)
	c.DailyBoostExpiry = cloneTime(a.DailyBoostExpiry)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
